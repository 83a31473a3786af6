package manager

import (
	"testing"
	"time"
)

func TestScalingConfigDefaults(t *testing.T) {
	c := ScalingConfig{}.withDefaults()

	if c.MaxWorkers != 5 {
		t.Errorf("MaxWorkers = %d, want 5", c.MaxWorkers)
	}
	if c.ScaleUpThreshold != 2.0 {
		t.Errorf("ScaleUpThreshold = %v, want 2.0", c.ScaleUpThreshold)
	}
	if c.ScaleDownThreshold != 0.5 {
		t.Errorf("ScaleDownThreshold = %v, want 0.5", c.ScaleDownThreshold)
	}
	if c.Cooldown != 30*time.Second {
		t.Errorf("Cooldown = %v, want 30s", c.Cooldown)
	}
	if c.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", c.Interval)
	}
	if c.MonitorInterval != 2*time.Second {
		t.Errorf("MonitorInterval = %v, want 2s", c.MonitorInterval)
	}
	if c.NotificationThreshold != 3 {
		t.Errorf("NotificationThreshold = %d, want 3", c.NotificationThreshold)
	}
	if c.AutoReplaceThreshold != 5 {
		t.Errorf("AutoReplaceThreshold = %d, want 5", c.AutoReplaceThreshold)
	}
}

func TestCurrentWorkload(t *testing.T) {
	m, _ := newTestManager(t, 4, ScalingConfig{MaxWorkers: 5})
	m.HireWorker(WorkerSpec{})
	m.HireWorker(WorkerSpec{})

	wl := m.CurrentWorkload()
	if wl.PendingTasks != 4 {
		t.Errorf("pending = %d, want 4", wl.PendingTasks)
	}
	if wl.ActiveWorkers != 2 || wl.IdleWorkers != 2 {
		t.Errorf("active = %d idle = %d, want 2/2", wl.ActiveWorkers, wl.IdleWorkers)
	}
	if wl.Ratio != 2.0 {
		t.Errorf("ratio = %v, want 2.0", wl.Ratio)
	}
}

func TestWorkloadRatioWithEmptyPool(t *testing.T) {
	m, _ := newTestManager(t, 3, ScalingConfig{})
	wl := m.CurrentWorkload()
	if wl.Ratio != 3.0 {
		t.Errorf("ratio = %v, want 3.0 (divisor floors at 1)", wl.Ratio)
	}
}

func TestScaleUpOnHighWorkload(t *testing.T) {
	m, _ := newTestManager(t, 5, ScalingConfig{MaxWorkers: 5, Cooldown: -1})
	m.HireWorker(WorkerSpec{})

	// 5 pending / 1 worker = 5.0, above the 2.0 threshold.
	decision := m.ScaleWorkersByWorkload()
	if decision.Action != ScaledUp {
		t.Fatalf("action = %s, want scaled_up (%s)", decision.Action, decision.Reason)
	}
	if decision.WorkersAdded != 3 {
		t.Errorf("added = %d, want ceil(5/2) = 3", decision.WorkersAdded)
	}
	if m.PoolSize() != 4 {
		t.Errorf("pool size = %d, want 4", m.PoolSize())
	}
}

func TestScaleUpCappedAtMax(t *testing.T) {
	m, _ := newTestManager(t, 10, ScalingConfig{MaxWorkers: 3, Cooldown: -1})
	m.HireWorker(WorkerSpec{})

	decision := m.ScaleWorkersByWorkload()
	if decision.Action != ScaledUp {
		t.Fatalf("action = %s, want scaled_up", decision.Action)
	}
	if m.PoolSize() != 3 {
		t.Errorf("pool size = %d, want max 3", m.PoolSize())
	}
}

func TestScaleDownWhenIdle(t *testing.T) {
	m := newPoolManager(ScalingConfig{MinWorkers: 1, MaxWorkers: 5, Cooldown: -1})
	for i := 0; i < 3; i++ {
		m.HireWorker(WorkerSpec{})
	}

	// No sub-tasks pending and everyone idle.
	decision := m.ScaleWorkersByWorkload()
	if decision.Action != ScaledDown {
		t.Fatalf("action = %s, want scaled_down (%s)", decision.Action, decision.Reason)
	}
	if decision.WorkersRemoved != 2 {
		t.Errorf("removed = %d, want 2", decision.WorkersRemoved)
	}
	if m.PoolSize() != 1 {
		t.Errorf("pool size = %d, want min 1", m.PoolSize())
	}
}

func TestScaleDownRemovesLowestPriorityFirst(t *testing.T) {
	m := newPoolManager(ScalingConfig{MinWorkers: 1, MaxWorkers: 5, Cooldown: -1})
	low, _ := m.HireWorker(WorkerSpec{Priority: 1})
	high, _ := m.HireWorker(WorkerSpec{Priority: 5})

	decision := m.ScaleWorkersByWorkload()
	if decision.WorkersRemoved != 1 {
		t.Fatalf("removed = %d, want 1", decision.WorkersRemoved)
	}
	gone, _ := m.Worker(low.ID)
	kept, _ := m.Worker(high.ID)
	if gone.Status != "terminated" {
		t.Errorf("low-priority worker should be removed first, status = %s", gone.Status)
	}
	if kept.Status == "terminated" {
		t.Error("high-priority worker should survive scale-down")
	}
}

func TestScaleNoChangeWithinBounds(t *testing.T) {
	m, _ := newTestManager(t, 2, ScalingConfig{MaxWorkers: 5, Cooldown: -1})
	m.HireWorker(WorkerSpec{})
	m.HireWorker(WorkerSpec{})

	// 2 pending / 2 workers = 1.0, below threshold; pending work blocks
	// scale-down.
	decision := m.ScaleWorkersByWorkload()
	if decision.Action != NoChange {
		t.Errorf("action = %s, want no_change (%s)", decision.Action, decision.Reason)
	}
}

func TestScaleCooldownBlocksSecondAction(t *testing.T) {
	m, _ := newTestManager(t, 8, ScalingConfig{MaxWorkers: 3, Cooldown: time.Minute})
	m.HireWorker(WorkerSpec{})

	first := m.ScaleWorkersByWorkload()
	if first.Action != ScaledUp {
		t.Fatalf("first action = %s, want scaled_up", first.Action)
	}
	second := m.ScaleWorkersByWorkload()
	if second.Action != NoChange {
		t.Errorf("second action = %s, want no_change within cooldown", second.Action)
	}
	if second.Reason != "within cooldown" {
		t.Errorf("reason = %q", second.Reason)
	}
}

func TestHealthCheckReplacesFailingWorker(t *testing.T) {
	m := newPoolManager(ScalingConfig{MaxWorkers: 2, AutoReplaceThreshold: 5})
	w, _ := m.HireWorker(WorkerSpec{Name: "flaky"})

	m.mu.Lock()
	m.workers[w.ID].ConsecutiveFailures = 5
	m.workers[w.ID].FailedCount = 5
	m.mu.Unlock()

	decisions := m.PerformHealthCheck()
	if len(decisions) != 1 {
		t.Fatalf("expected 1 replacement decision, got %d", len(decisions))
	}

	old, _ := m.Worker(w.ID)
	if old.Status != "terminated" {
		t.Errorf("old worker status = %s, want terminated", old.Status)
	}
	if m.PoolSize() != 1 {
		t.Errorf("pool size = %d, want 1", m.PoolSize())
	}
	// The replacement inherits the name with fresh counters.
	for _, nw := range m.Workers() {
		if nw.ID == w.ID {
			continue
		}
		if nw.Name != "flaky" || nw.ConsecutiveFailures != 0 {
			t.Errorf("replacement = %+v", nw)
		}
	}
}

func TestHealthCheckLeavesHealthyPoolAlone(t *testing.T) {
	m := newPoolManager(ScalingConfig{MaxWorkers: 3})
	m.HireWorker(WorkerSpec{})
	m.HireWorker(WorkerSpec{})

	if decisions := m.PerformHealthCheck(); len(decisions) != 0 {
		t.Errorf("expected no decisions, got %v", decisions)
	}
	if m.PoolSize() != 2 {
		t.Errorf("pool size = %d, want 2", m.PoolSize())
	}
}
