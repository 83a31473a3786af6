package bus

import (
	"context"
	"testing"
	"time"
)

func mustMessage(t *testing.T, msgType MessageType, from, to, runID string, payload interface{}) *Message {
	t.Helper()
	msg, err := New(msgType, from, to, runID, payload)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	return msg
}

func TestPublishValidation(t *testing.T) {
	b := NewBus("")

	if err := b.Publish(nil); err == nil {
		t.Error("expected error for nil message")
	}
	if err := b.Publish(&Message{Type: "bogus", To: "w1"}); err == nil {
		t.Error("expected error for unknown type")
	}
	if err := b.Publish(&Message{Type: TypeGuidance}); err == nil {
		t.Error("expected error for missing recipient")
	}
}

func TestPollReturnsPublished(t *testing.T) {
	b := NewBus("")
	sent := mustMessage(t, TypeTaskAssign, "manager-1", "worker-1", "run-1", map[string]string{"k": "v"})
	if err := b.Publish(sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := b.Poll(context.Background(), "worker-1", time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if got == nil {
		t.Fatal("expected a message")
	}
	if got.ID != sent.ID {
		t.Errorf("id = %s, want %s", got.ID, sent.ID)
	}
	var payload map[string]string
	if err := got.DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["k"] != "v" {
		t.Errorf("payload = %v", payload)
	}
}

func TestPollTimeoutReturnsNil(t *testing.T) {
	b := NewBus("")
	got, err := b.Poll(context.Background(), "worker-1", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil message on timeout, got %v", got)
	}
}

func TestPollContextCancellation(t *testing.T) {
	b := NewBus("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Poll(ctx, "worker-1", time.Second); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestPerPairOrdering(t *testing.T) {
	b := NewBus("")
	const n = 20
	for i := 0; i < n; i++ {
		msg := mustMessage(t, TypeGuidance, "manager-1", "worker-1", "run-1",
			map[string]int{"seq": i})
		if err := b.Publish(msg); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		msg, err := b.Poll(context.Background(), "worker-1", time.Second)
		if err != nil || msg == nil {
			t.Fatalf("poll %d: msg=%v err=%v", i, msg, err)
		}
		var payload map[string]int
		if err := msg.DecodePayload(&payload); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if payload["seq"] != i {
			t.Fatalf("message %d arrived out of order: seq=%d", i, payload["seq"])
		}
	}
}

func TestRecipientIsolation(t *testing.T) {
	b := NewBus("")
	_ = b.Publish(mustMessage(t, TypeGuidance, "m", "worker-1", "", nil))
	_ = b.Publish(mustMessage(t, TypeGuidance, "m", "worker-2", "", nil))

	if got := b.Pending("worker-1"); got != 1 {
		t.Errorf("worker-1 pending = %d, want 1", got)
	}
	if got := b.Pending("worker-2"); got != 1 {
		t.Errorf("worker-2 pending = %d, want 1", got)
	}

	msg, _ := b.Poll(context.Background(), "worker-1", time.Second)
	if msg == nil || msg.To != "worker-1" {
		t.Errorf("worker-1 received %v", msg)
	}
	if got := b.Pending("worker-2"); got != 1 {
		t.Errorf("worker-2 queue drained by worker-1 poll")
	}
}

func TestPollWakesOnLatePublish(t *testing.T) {
	b := NewBus("")
	done := make(chan *Message, 1)

	go func() {
		msg, _ := b.Poll(context.Background(), "worker-1", 2*time.Second)
		done <- msg
	}()

	time.Sleep(50 * time.Millisecond)
	_ = b.Publish(mustMessage(t, TypeTaskComplete, "worker-1", "worker-1", "", nil))

	select {
	case msg := <-done:
		if msg == nil {
			t.Fatal("poller timed out instead of waking")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("poller never returned")
	}
}

func TestReplay(t *testing.T) {
	root := t.TempDir()
	b := NewBus(root)

	for i := 0; i < 3; i++ {
		msg := mustMessage(t, TypeTaskFailed, "worker-1", "manager-1", "run-7",
			map[string]int{"seq": i})
		if err := b.Publish(msg); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	// Drain the live queue, then replay from disk.
	for i := 0; i < 3; i++ {
		if msg, _ := b.Poll(context.Background(), "manager-1", time.Second); msg == nil {
			t.Fatalf("drain %d: no message", i)
		}
	}

	if err := b.Replay("run-7"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	for i := 0; i < 3; i++ {
		msg, err := b.Poll(context.Background(), "manager-1", time.Second)
		if err != nil || msg == nil {
			t.Fatalf("replayed poll %d: msg=%v err=%v", i, msg, err)
		}
		var payload map[string]int
		if err := msg.DecodePayload(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload["seq"] != i {
			t.Fatalf("replay out of order: got seq=%d at position %d", payload["seq"], i)
		}
	}
}

func TestReplayMissingRun(t *testing.T) {
	b := NewBus(t.TempDir())
	if err := b.Replay("run-none"); err != nil {
		t.Fatalf("expected nil for missing run, got %v", err)
	}
}

func TestMessageTypeValid(t *testing.T) {
	valid := []MessageType{
		TypeTaskAssign, TypeTaskComplete, TypeTaskFailed, TypeEscalate,
		TypeQualityGateFailed, TypeStatusRequest, TypeStatusResponse, TypeGuidance,
	}
	for _, mt := range valid {
		if !mt.Valid() {
			t.Errorf("%s should be valid", mt)
		}
	}
	for _, mt := range []MessageType{"", "bogus", "TASK_ASSIGN"} {
		if mt.Valid() {
			t.Errorf("%q should be invalid", mt)
		}
	}
}

func TestMessageIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		msg, err := New(TypeGuidance, "a", "b", "", nil)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if seen[msg.ID] {
			t.Fatal("duplicate message id")
		}
		seen[msg.ID] = true
	}
}
