package manager

import (
	"context"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// Progress is the by-status summary returned by MonitorProgress.
type Progress struct {
	// Total is the number of sub-tasks under the parent.
	Total int `json:"total"`
	// Pending through Blocked count sub-tasks per status.
	Pending   int `json:"pending"`
	Assigned  int `json:"assigned"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Blocked   int `json:"blocked"`
	// Assignments maps worker id to the sub-task it currently holds.
	Assignments map[string]string `json:"assignments"`
}

// WorkerProgress is the per-worker slice of a detailed report.
type WorkerProgress struct {
	// Worker is a snapshot of the worker record.
	Worker *models.WorkerInfo `json:"worker"`
	// CurrentSubTask is the held sub-task id, empty when idle.
	CurrentSubTask string `json:"current_sub_task,omitempty"`
	// Failures lists this worker's failure records.
	Failures []*models.FailureRecord `json:"failures,omitempty"`
}

// DetailedProgress extends Progress with per-worker state.
type DetailedProgress struct {
	Progress
	// Workers lists per-worker progress in hire order.
	Workers []*WorkerProgress `json:"workers"`
	// PercentComplete is completed over total, 0 when there are no
	// sub-tasks.
	PercentComplete float64 `json:"percent_complete"`
	// ActiveEscalations counts escalations received so far.
	ActiveEscalations int `json:"active_escalations"`
}

// MonitorProgress returns sub-task totals by status and a snapshot of the
// assignment map.
func (m *Manager) MonitorProgress() Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressLocked()
}

func (m *Manager) progressLocked() Progress {
	p := Progress{Assignments: make(map[string]string, len(m.assignments))}
	for _, st := range m.subTasks {
		p.Total++
		switch st.Status {
		case models.SubTaskStatusPending:
			p.Pending++
		case models.SubTaskStatusAssigned:
			p.Assigned++
		case models.SubTaskStatusRunning:
			p.Running++
		case models.SubTaskStatusCompleted:
			p.Completed++
		case models.SubTaskStatusFailed:
			p.Failed++
		case models.SubTaskStatusBlocked:
			p.Blocked++
		}
	}
	for worker, st := range m.assignments {
		p.Assignments[worker] = st
	}
	return p
}

// MonitorDetailedProgress extends MonitorProgress with per-worker status,
// failure history, overall percentage, and escalation count.
func (m *Manager) MonitorDetailedProgress() DetailedProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d := DetailedProgress{
		Progress:          m.progressLocked(),
		ActiveEscalations: len(m.escalations),
	}
	if d.Total > 0 {
		d.PercentComplete = 100 * float64(d.Completed) / float64(d.Total)
	}

	for _, w := range m.workers {
		wp := &WorkerProgress{
			Worker:         w.Clone(),
			CurrentSubTask: m.assignments[w.ID],
		}
		for _, f := range m.failures {
			if f.WorkerID == w.ID {
				rec := *f
				wp.Failures = append(wp.Failures, &rec)
			}
		}
		d.Workers = append(d.Workers, wp)
	}
	for i := 0; i < len(d.Workers); i++ {
		for j := i + 1; j < len(d.Workers); j++ {
			if m.hireOrder[d.Workers[j].Worker.ID] < m.hireOrder[d.Workers[i].Worker.ID] {
				d.Workers[i], d.Workers[j] = d.Workers[j], d.Workers[i]
			}
		}
	}
	return d
}

// StartMonitoring launches the progress-monitor loop: every tick it
// drains the bus and dispatches each message. Starting twice is a no-op.
func (m *Manager) StartMonitoring(ctx context.Context) {
	m.mu.Lock()
	if m.monitorCancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.monitorCancel = cancel
	interval := m.scaling.MonitorInterval
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
				m.drainBus(loopCtx)
			}
		}
	}()
}

// drainBus processes every queued message for the manager without
// waiting for more.
func (m *Manager) drainBus(ctx context.Context) {
	for m.bus.Pending(m.id) > 0 {
		msg, err := m.bus.Poll(ctx, m.id, 50*time.Millisecond)
		if err != nil || msg == nil {
			return
		}
		_ = m.ProcessMessage(ctx, msg)
	}
}

// StopMonitoring stops the progress-monitor loop. Idempotent.
func (m *Manager) StopMonitoring() {
	m.mu.Lock()
	cancel := m.monitorCancel
	m.monitorCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown stops both loops and waits for them to exit.
func (m *Manager) Shutdown() {
	m.StopMonitoring()
	m.StopAutoScaling()
	m.loops.Wait()
}
