package manager

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// WorkerSpec describes a hire request.
type WorkerSpec struct {
	// Name is the human-readable worker name; defaults to the new id.
	Name string
	// Capabilities lists the work categories; defaults to general.
	Capabilities []string
	// Priority influences selection and scale-down ordering.
	Priority int
	// Adapter names the LLM backend for this worker.
	Adapter string
	// Model names the LLM model for this worker.
	Model string
}

// HireWorker adds a worker to the pool. Fails when the pool is at
// max-workers.
func (m *Manager) HireWorker(spec WorkerSpec) (*models.WorkerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hireLocked(spec)
}

// hireLocked adds a worker while holding the lock.
func (m *Manager) hireLocked(spec WorkerSpec) (*models.WorkerInfo, error) {
	if m.activePoolSizeLocked() >= m.scaling.MaxWorkers {
		return nil, errkind.Errorf(errkind.AssignmentError, "pool is at max capacity (%d)", m.scaling.MaxWorkers)
	}

	id := models.NewWorkerID()
	name := spec.Name
	if name == "" {
		name = id
	}
	caps := spec.Capabilities
	if len(caps) == 0 {
		caps = []string{"general"}
	}

	w := &models.WorkerInfo{
		ID:           id,
		Name:         name,
		Capabilities: append([]string(nil), caps...),
		Status:       models.WorkerStatusIdle,
		HiredAt:      time.Now().UTC(),
		HealthScore:  100,
		Priority:     spec.Priority,
		Adapter:      spec.Adapter,
		Model:        spec.Model,
	}
	m.workers[id] = w
	m.hireSeq++
	m.hireOrder[id] = m.hireSeq
	return w.Clone(), nil
}

// FireWorker terminates a worker. The record is retained in history with
// status terminated; any sub-task it held returns to pending. Fails when
// the pool would drop below min-workers.
func (m *Manager) FireWorker(workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workers[workerID]; !ok {
		return errkind.Errorf(errkind.WorkerNotFound, "worker %s", workerID)
	}
	if m.activePoolSizeLocked() <= m.scaling.MinWorkers {
		return errkind.Errorf(errkind.AssignmentError, "pool is at min capacity (%d)", m.scaling.MinWorkers)
	}
	m.terminateLocked(workerID)
	return nil
}

// terminateLocked marks a worker terminated and releases its assignment.
func (m *Manager) terminateLocked(workerID string) {
	w := m.workers[workerID]
	w.Status = models.WorkerStatusTerminated
	w.LastActivity = time.Now().UTC()
	m.releaseAssignmentLocked(workerID)
}

// releaseAssignmentLocked resets any sub-task held by the worker back to
// pending with its assignee cleared, atomically with the assignment-map
// update.
func (m *Manager) releaseAssignmentLocked(workerID string) {
	stID, ok := m.assignments[workerID]
	if !ok {
		return
	}
	delete(m.assignments, workerID)
	st, ok := m.subTasks[stID]
	if !ok {
		return
	}
	if st.Status == models.SubTaskStatusAssigned || st.Status == models.SubTaskStatusRunning {
		st.Status = models.SubTaskStatusPending
		st.Assignee = ""
		st.UpdatedAt = time.Now().UTC()
	}
}

// ReplaceWorker fires a worker and hires a fresh one carrying the same
// capabilities and priority. The terminated record stays in history.
func (m *Manager) ReplaceWorker(oldID string, spec WorkerSpec) (*models.WorkerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.workers[oldID]
	if !ok {
		return nil, errkind.Errorf(errkind.WorkerNotFound, "worker %s", oldID)
	}
	if spec.Name == "" {
		spec.Name = old.Name
	}
	if len(spec.Capabilities) == 0 {
		spec.Capabilities = append([]string(nil), old.Capabilities...)
	}
	if spec.Priority == 0 {
		spec.Priority = old.Priority
	}
	if spec.Adapter == "" {
		spec.Adapter = old.Adapter
	}
	if spec.Model == "" {
		spec.Model = old.Model
	}

	// Terminate first so the hire cannot exceed max-workers.
	m.terminateLocked(oldID)
	return m.hireLocked(spec)
}

// activePoolSizeLocked counts non-terminated workers.
func (m *Manager) activePoolSizeLocked() int {
	n := 0
	for _, w := range m.workers {
		if w.Status != models.WorkerStatusTerminated {
			n++
		}
	}
	return n
}

// PoolSize returns the number of non-terminated workers.
func (m *Manager) PoolSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activePoolSizeLocked()
}

// Worker returns a snapshot of one worker record, terminated included.
func (m *Manager) Worker(id string) (*models.WorkerInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// Workers returns snapshots of every worker record, sorted by hire order.
func (m *Manager) Workers() []*models.WorkerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.WorkerInfo, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return m.hireOrder[out[i].ID] < m.hireOrder[out[j].ID]
	})
	return out
}

// capabilityKeywords maps work categories to the keywords that signal them
// in a sub-task's title and description.
var capabilityKeywords = map[string][]string{
	"frontend":      {"frontend", "ui", "css", "component", "page", "view", "react", "layout"},
	"backend":       {"backend", "api", "server", "database", "endpoint", "service", "model", "schema"},
	"testing":       {"test", "coverage", "verify", "e2e", "regression"},
	"devops":        {"deploy", "docker", "pipeline", "ci", "infrastructure", "kubernetes", "terraform"},
	"documentation": {"document", "readme", "guide", "changelog"},
}

// RequiredCapabilities extracts the capability buckets a sub-task calls
// for from its title and description. General is the fallback when no
// bucket matches.
func RequiredCapabilities(st *models.SubTask) []string {
	text := strings.ToLower(st.Title + " " + st.Description)
	var out []string
	for _, cat := range []string{"frontend", "backend", "testing", "devops", "documentation"} {
		for _, kw := range capabilityKeywords[cat] {
			if strings.Contains(text, kw) {
				out = append(out, cat)
				break
			}
		}
	}
	if len(out) == 0 {
		out = []string{"general"}
	}
	return out
}

// WorkerScore computes the selection score of a worker for the given
// required capabilities. Identical inputs yield identical scores.
func WorkerScore(w *models.WorkerInfo, required []string) float64 {
	matches := 0
	for _, need := range required {
		for _, have := range w.Capabilities {
			if need == have {
				matches++
				break
			}
		}
	}
	return 20*float64(matches) +
		0.3*w.HealthScore +
		5*float64(w.Priority) +
		30*w.SuccessRate() -
		10*float64(w.ConsecutiveFailures)
}

// SelectBestWorkerForTask picks the idle worker with the highest score
// for the sub-task. Ties break on higher priority, then earlier hire.
// Returns false when no idle worker exists.
func (m *Manager) SelectBestWorkerForTask(st *models.SubTask) (*models.WorkerInfo, bool) {
	return m.selectWorkerExcluding(st, "")
}

// selectWorkerExcluding is SelectBestWorkerForTask with one worker ruled
// out, used when reassigning away from a failing worker.
func (m *Manager) selectWorkerExcluding(st *models.SubTask, exclude string) (*models.WorkerInfo, bool) {
	required := RequiredCapabilities(st)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.WorkerInfo
	var bestScore float64
	for _, w := range m.workers {
		if w.Status != models.WorkerStatusIdle || w.ID == exclude {
			continue
		}
		score := WorkerScore(w, required)
		if best == nil || score > bestScore ||
			(score == bestScore && betterTieBreakLocked(w, best, m.hireOrder)) {
			best = w
			bestScore = score
		}
	}
	if best == nil {
		return nil, false
	}
	return best.Clone(), true
}

// betterTieBreakLocked prefers higher priority, then earlier hire.
func betterTieBreakLocked(a, b *models.WorkerInfo, hireOrder map[string]int) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return hireOrder[a.ID] < hireOrder[b.ID]
}

// inactivityThreshold is the idle span after which health is penalized.
const inactivityThreshold = 30 * time.Minute

// inactivityPenalty is subtracted from health once a worker has been
// silent past the threshold.
const inactivityPenalty = 20.0

// HealthScore computes a worker's 0-100 health from its failure counters,
// failure rate, recency, and error state.
func HealthScore(w *models.WorkerInfo, now time.Time) float64 {
	score := 100.0
	score -= 15 * float64(w.ConsecutiveFailures)
	score -= 30 * w.FailureRate()
	if !w.LastActivity.IsZero() && now.Sub(w.LastActivity) > inactivityThreshold {
		score -= inactivityPenalty
	}
	if w.Status == models.WorkerStatusError {
		score -= 30
	}
	return math.Max(0, math.Min(100, score))
}

// recomputeHealthLocked refreshes one worker's health score.
func (m *Manager) recomputeHealthLocked(w *models.WorkerInfo) {
	w.HealthScore = HealthScore(w, time.Now().UTC())
}
