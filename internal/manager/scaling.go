package manager

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// ScalingConfig holds pool limits, thresholds, and loop intervals.
type ScalingConfig struct {
	// MinWorkers is the pool floor.
	MinWorkers int
	// MaxWorkers is the pool ceiling (default 5).
	MaxWorkers int
	// ScaleUpThreshold is the workload ratio that triggers scale-up
	// (default 2.0).
	ScaleUpThreshold float64
	// ScaleDownThreshold is the idle fraction that permits scale-down
	// (default 0.5).
	ScaleDownThreshold float64
	// Cooldown rate-limits scaling actions (default 30s). Negative
	// disables the cooldown.
	Cooldown time.Duration
	// Interval is the auto-scaling loop period (default 10s).
	Interval time.Duration
	// MonitorInterval is the progress-monitor loop period (default 2s).
	MonitorInterval time.Duration
	// NotificationThreshold is the consecutive-failure count that triggers
	// automatic support (default 3).
	NotificationThreshold int
	// AutoReplaceThreshold is the consecutive-failure count that triggers
	// worker replacement (default 5).
	AutoReplaceThreshold int
}

// withDefaults fills in zero fields.
func (c ScalingConfig) withDefaults() ScalingConfig {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 5
	}
	if c.ScaleUpThreshold <= 0 {
		c.ScaleUpThreshold = 2.0
	}
	if c.ScaleDownThreshold <= 0 {
		c.ScaleDownThreshold = 0.5
	}
	if c.Cooldown == 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 2 * time.Second
	}
	if c.NotificationThreshold <= 0 {
		c.NotificationThreshold = 3
	}
	if c.AutoReplaceThreshold <= 0 {
		c.AutoReplaceThreshold = 5
	}
	return c
}

// Scaling returns the effective scaling configuration.
func (m *Manager) Scaling() ScalingConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scaling
}

// ScaleAction is the outcome of one scaling evaluation.
type ScaleAction string

const (
	// ScaledUp indicates workers were added.
	ScaledUp ScaleAction = "scaled_up"
	// ScaledDown indicates idle workers were removed.
	ScaledDown ScaleAction = "scaled_down"
	// NoChange indicates the pool was left as is.
	NoChange ScaleAction = "no_change"
)

// ScalingDecision records one evaluation of the workload.
type ScalingDecision struct {
	// Action is what the manager did.
	Action ScaleAction `json:"action"`
	// WorkersAdded counts hires performed by this decision.
	WorkersAdded int `json:"workers_added"`
	// WorkersRemoved counts terminations performed by this decision.
	WorkersRemoved int `json:"workers_removed"`
	// Ratio is the observed workload ratio.
	Ratio float64 `json:"ratio"`
	// Reason explains the decision.
	Reason string `json:"reason"`
}

// Workload summarizes the pending/active balance of the pool.
type Workload struct {
	// PendingTasks counts sub-tasks in status pending.
	PendingTasks int `json:"pending_tasks"`
	// ActiveWorkers counts non-terminated workers.
	ActiveWorkers int `json:"active_workers"`
	// IdleWorkers counts workers in status idle.
	IdleWorkers int `json:"idle_workers"`
	// Ratio is pending divided by max(active, 1).
	Ratio float64 `json:"ratio"`
}

// CurrentWorkload computes the pending/active balance.
func (m *Manager) CurrentWorkload() Workload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.workloadLocked()
}

func (m *Manager) workloadLocked() Workload {
	wl := Workload{}
	for _, st := range m.subTasks {
		if st.Status == models.SubTaskStatusPending {
			wl.PendingTasks++
		}
	}
	for _, w := range m.workers {
		switch w.Status {
		case models.WorkerStatusTerminated:
		case models.WorkerStatusIdle:
			wl.ActiveWorkers++
			wl.IdleWorkers++
		default:
			wl.ActiveWorkers++
		}
	}
	divisor := wl.ActiveWorkers
	if divisor < 1 {
		divisor = 1
	}
	wl.Ratio = float64(wl.PendingTasks) / float64(divisor)
	return wl
}

// ScaleWorkersByWorkload evaluates the workload and hires or fires
// workers accordingly. Decisions inside the cooldown window are
// no_change.
func (m *Manager) ScaleWorkersByWorkload() ScalingDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	wl := m.workloadLocked()
	decision := ScalingDecision{Action: NoChange, Ratio: wl.Ratio}

	if m.scaling.Cooldown > 0 && !m.lastScale.IsZero() &&
		time.Since(m.lastScale) < m.scaling.Cooldown {
		decision.Reason = "within cooldown"
		return decision
	}

	size := m.activePoolSizeLocked()

	if wl.Ratio >= m.scaling.ScaleUpThreshold && size < m.scaling.MaxWorkers {
		toAdd := int(math.Ceil(float64(wl.PendingTasks) / 2))
		if room := m.scaling.MaxWorkers - size; toAdd > room {
			toAdd = room
		}
		for i := 0; i < toAdd; i++ {
			if _, err := m.hireLocked(WorkerSpec{Capabilities: []string{"general"}}); err != nil {
				break
			}
			decision.WorkersAdded++
		}
		if decision.WorkersAdded > 0 {
			decision.Action = ScaledUp
			decision.Reason = "workload ratio above threshold"
			m.lastScale = time.Now()
		}
		return decision
	}

	if wl.PendingTasks == 0 && wl.ActiveWorkers > 0 &&
		float64(wl.IdleWorkers)/float64(wl.ActiveWorkers) >= m.scaling.ScaleDownThreshold &&
		size > m.scaling.MinWorkers {
		// Remove idle workers, lowest priority first.
		var idle []*models.WorkerInfo
		for _, w := range m.workers {
			if w.Status == models.WorkerStatusIdle {
				idle = append(idle, w)
			}
		}
		sort.Slice(idle, func(i, j int) bool {
			if idle[i].Priority != idle[j].Priority {
				return idle[i].Priority < idle[j].Priority
			}
			return m.hireOrder[idle[i].ID] < m.hireOrder[idle[j].ID]
		})
		for _, w := range idle {
			if m.activePoolSizeLocked() <= m.scaling.MinWorkers {
				break
			}
			m.terminateLocked(w.ID)
			decision.WorkersRemoved++
		}
		if decision.WorkersRemoved > 0 {
			decision.Action = ScaledDown
			decision.Reason = "pool mostly idle with no pending work"
			m.lastScale = time.Now()
		}
		return decision
	}

	decision.Reason = "workload within bounds"
	return decision
}

// PerformHealthCheck recomputes every worker's health and replaces those
// past the auto-replace threshold or below the health floor.
func (m *Manager) PerformHealthCheck() []ScalingDecision {
	m.mu.Lock()
	var toReplace []string
	now := time.Now().UTC()
	for _, w := range m.workers {
		if w.Status == models.WorkerStatusTerminated {
			continue
		}
		w.HealthScore = HealthScore(w, now)
		if w.ConsecutiveFailures >= m.scaling.AutoReplaceThreshold || w.HealthScore < 10 {
			toReplace = append(toReplace, w.ID)
		}
	}
	sort.Strings(toReplace)
	m.mu.Unlock()

	var decisions []ScalingDecision
	for _, id := range toReplace {
		if _, err := m.ReplaceWorker(id, WorkerSpec{}); err == nil {
			decisions = append(decisions, ScalingDecision{
				Action: ScaledUp,
				Reason: "replaced unhealthy worker " + id,
			})
		}
	}
	return decisions
}

// StartAutoScaling launches the auto-scaling loop: every interval it
// scales by workload and performs a health check. Starting twice is a
// no-op.
func (m *Manager) StartAutoScaling(ctx context.Context) {
	m.mu.Lock()
	if m.scaleCancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.scaleCancel = cancel
	interval := m.scaling.Interval
	m.mu.Unlock()

	m.loops.Add(1)
	go func() {
		defer m.loops.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.ScaleWorkersByWorkload()
				m.PerformHealthCheck()
			}
		}
	}()
}

// StopAutoScaling stops the auto-scaling loop. Idempotent.
func (m *Manager) StopAutoScaling() {
	m.mu.Lock()
	cancel := m.scaleCancel
	m.scaleCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
