package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sync"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// DefaultPollTimeout bounds a Poll call when the caller passes zero.
const DefaultPollTimeout = 5 * time.Second

// Bus is the in-process message bus. Messages for each recipient are kept
// in arrival order, which preserves per-(sender, recipient) send order; no
// ordering is promised across pairs.
type Bus struct {
	mu      sync.Mutex
	queues  map[string][]*Message
	signals map[string]chan struct{}
	root    string
	seq     uint64
}

// NewBus creates a bus persisting messages under
// <root>/runtime/runs/<run-id>/bus/. An empty root disables persistence.
func NewBus(root string) *Bus {
	return &Bus{
		queues:  make(map[string][]*Message),
		signals: make(map[string]chan struct{}),
		root:    root,
	}
}

// signalFor returns the wakeup channel for a recipient, creating it lazily.
// Caller must hold b.mu.
func (b *Bus) signalFor(recipient string) chan struct{} {
	ch, ok := b.signals[recipient]
	if !ok {
		ch = make(chan struct{}, 1)
		b.signals[recipient] = ch
	}
	return ch
}

// Publish enqueues a message for its recipient and persists it.
// Persistence failures do not fail delivery.
func (b *Bus) Publish(msg *Message) error {
	if msg == nil {
		return errkind.Errorf(errkind.InvalidInput, "message is nil")
	}
	if !msg.Type.Valid() {
		return errkind.Errorf(errkind.InvalidInput, "unknown message type %q", msg.Type)
	}
	if msg.To == "" {
		return errkind.Errorf(errkind.InvalidInput, "message has no recipient")
	}

	b.mu.Lock()
	b.queues[msg.To] = append(b.queues[msg.To], msg)
	b.seq++
	seq := b.seq
	ch := b.signalFor(msg.To)
	b.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}

	b.persist(seq, msg)
	return nil
}

// Poll returns the next message for a recipient, waiting up to timeout
// (DefaultPollTimeout when zero). A timeout returns (nil, nil); context
// cancellation returns the context error wrapped as COMMUNICATION_ERROR.
func (b *Bus) Poll(ctx context.Context, recipient string, timeout time.Duration) (*Message, error) {
	if recipient == "" {
		return nil, errkind.Errorf(errkind.InvalidInput, "recipient is empty")
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		b.mu.Lock()
		if q := b.queues[recipient]; len(q) > 0 {
			msg := q[0]
			b.queues[recipient] = q[1:]
			b.mu.Unlock()
			return msg, nil
		}
		ch := b.signalFor(recipient)
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, errkind.Wrap(errkind.CommunicationError, ctx.Err())
		case <-deadline.C:
			return nil, nil
		case <-ch:
		}
	}
}

// Pending returns the number of queued messages for a recipient.
func (b *Bus) Pending(recipient string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[recipient])
}

// busDir returns the persistence directory for a run.
func (b *Bus) busDir(runID string) string {
	return filepath.Join(b.root, "runtime", "runs", runID, "bus")
}

// persist writes the message to the run's bus directory. Best effort.
func (b *Bus) persist(seq uint64, msg *Message) {
	if b.root == "" || msg.RunID == "" {
		return
	}
	dir := b.busDir(msg.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return
	}
	name := fmt.Sprintf("%09d-%s.json", seq, msg.Type)
	_ = os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// Replay re-enqueues every persisted message of a run in original publish
// order. Duplicates are acceptable under at-least-once delivery.
func (b *Bus) Replay(runID string) error {
	dir := b.busDir(runID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errkind.Wrap(errkind.CommunicationError, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		b.mu.Lock()
		b.queues[msg.To] = append(b.queues[msg.To], &msg)
		ch := b.signalFor(msg.To)
		b.mu.Unlock()

		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}
