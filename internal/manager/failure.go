package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kawanishi0117/agent-company-sub000/internal/bus"
	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// QualityAuthority is the bus address of the external quality collaborator.
const QualityAuthority = "quality_authority"

// handleTaskComplete finalizes a successful sub-task: the worker's streak
// resets, its unresolved failure records resolve, and the parent moves to
// reviewing once every sub-task is complete.
func (m *Manager) handleTaskComplete(p *bus.TaskResultPayload) error {
	m.mu.Lock()

	st, ok := m.subTasks[p.SubTaskID]
	if !ok {
		m.mu.Unlock()
		return errkind.Errorf(errkind.NoCurrentTask, "unknown sub-task %s", p.SubTaskID)
	}

	now := time.Now().UTC()
	st.Status = models.SubTaskStatusCompleted
	st.Artifacts = append(st.Artifacts, p.Artifacts...)
	st.UpdatedAt = now
	if m.graph != nil {
		m.graph.MarkComplete(st.ID)
	}
	delete(m.assignments, p.WorkerID)

	if w, known := m.workers[p.WorkerID]; known {
		w.ConsecutiveFailures = 0
		w.CompletedCount++
		w.Status = models.WorkerStatusIdle
		w.LastActivity = now
		for _, f := range m.failures {
			if f.WorkerID == w.ID && !f.Resolved {
				f.Resolved = true
			}
		}
		m.recomputeHealthLocked(w)
	}

	allDone := true
	for _, other := range m.subTasks {
		if other.Status != models.SubTaskStatusCompleted {
			allDone = false
			break
		}
	}
	if allDone && m.parent != nil && m.parent.Status.CanTransition(models.ParentStatusReviewing) {
		m.parent.Status = models.ParentStatusReviewing
		m.parent.UpdatedAt = now
	}
	m.mu.Unlock()
	return nil
}

// handleTaskFailed records the failure, updates the worker's counters and
// health, logs to errors.log, and applies the support / replace /
// escalate thresholds.
func (m *Manager) handleTaskFailed(ctx context.Context, runID string, p *bus.TaskResultPayload) error {
	taskErr := models.TaskError{Code: "UNKNOWN", Message: "worker reported failure"}
	if p.Error != nil {
		taskErr = *p.Error
	}

	m.mu.Lock()
	st, ok := m.subTasks[p.SubTaskID]
	if !ok {
		m.mu.Unlock()
		return errkind.Errorf(errkind.NoCurrentTask, "unknown sub-task %s", p.SubTaskID)
	}

	now := time.Now().UTC()
	m.failures = append(m.failures, &models.FailureRecord{
		ID:        uuid.New().String(),
		WorkerID:  p.WorkerID,
		SubTaskID: p.SubTaskID,
		Error:     taskErr,
		Timestamp: now,
	})

	if st.Status.CanTransition(models.SubTaskStatusFailed) {
		st.Status = models.SubTaskStatusFailed
		st.UpdatedAt = now
	}
	delete(m.assignments, p.WorkerID)
	st.Assignee = ""

	var consecutive int
	health := 100.0
	w, known := m.workers[p.WorkerID]
	if known {
		w.FailedCount++
		w.ConsecutiveFailures++
		w.Status = models.WorkerStatusIdle
		w.LastActivity = now
		m.recomputeHealthLocked(w)
		consecutive = w.ConsecutiveFailures
		health = w.HealthScore
	}

	// Recoverable failures go back to pending for another attempt.
	if taskErr.Recoverable {
		st.Status = models.SubTaskStatusPending
		st.UpdatedAt = now
	}

	if runID == "" {
		runID = m.runIDs[p.SubTaskID]
	}
	notify := m.scaling.NotificationThreshold
	replace := m.scaling.AutoReplaceThreshold
	m.mu.Unlock()

	m.errorLogFor(runID).RecordCode(taskErr.Code, taskErr.Recoverable, taskErr.Message)

	if consecutive >= notify {
		issue := fmt.Sprintf("%d consecutive failures on %s: %s", consecutive, p.SubTaskID, taskErr.Message)
		if _, err := m.ProvideSupport(ctx, p.WorkerID, issue); err != nil {
			return err
		}
	}
	if known && (consecutive >= replace || health < 10) {
		if _, err := m.ReplaceWorker(p.WorkerID, WorkerSpec{}); err != nil {
			return err
		}
	}
	if consecutive >= 3*notify {
		return m.escalateToQualityAuthority(p.SubTaskID, p.WorkerID,
			fmt.Sprintf("worker %s failed %d times in a row", p.WorkerID, consecutive))
	}
	return nil
}

// ProvideSupport analyzes the worker's failure history, synthesizes
// guidance, and transmits it over the bus.
func (m *Manager) ProvideSupport(ctx context.Context, workerID, issue string) (*models.Guidance, error) {
	m.mu.Lock()
	if _, ok := m.workers[workerID]; !ok {
		m.mu.Unlock()
		return nil, errkind.Errorf(errkind.WorkerNotFound, "worker %s", workerID)
	}

	var codes []string
	var latest *models.FailureRecord
	for _, f := range m.failures {
		if f.WorkerID == workerID {
			codes = append(codes, f.Error.Code)
			latest = f
		}
	}
	if latest != nil {
		latest.SupportProvided = true
	}
	subTaskID := m.assignments[workerID]
	if subTaskID == "" && latest != nil {
		subTaskID = latest.SubTaskID
	}
	m.mu.Unlock()

	g := synthesizeGuidance(issue, codes)

	msg, err := bus.New(bus.TypeGuidance, m.id, workerID, "", bus.GuidancePayload{
		SubTaskID: subTaskID,
		Guidance:  *g,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.CommunicationError, err)
	}
	if err := m.bus.Publish(msg); err != nil {
		return nil, err
	}
	return g, nil
}

// synthesizeGuidance maps observed failure codes to advice.
func synthesizeGuidance(issue string, codes []string) *models.Guidance {
	g := &models.Guidance{
		Advice: "Review the failure history and retry with a smaller change set.",
		SuggestedActions: []string{
			"Re-read the sub-task acceptance criteria",
			"Reproduce the failure locally before retrying",
		},
	}
	if issue != "" {
		g.Advice = fmt.Sprintf("Observed: %s. %s", issue, g.Advice)
	}
	for _, code := range codes {
		switch code {
		case "PROCESS_TIMEOUT", "ADAPTER_TIMEOUT":
			g.SuggestedActions = append(g.SuggestedActions, "Split the work into smaller commits to stay inside timeouts")
		case "GIT_CONFLICT":
			g.SuggestedActions = append(g.SuggestedActions, "Rebase onto the latest integration branch before pushing")
		case "QUALITY_GATE_FAILURE":
			g.SuggestedActions = append(g.SuggestedActions, "Run the quality gates locally before reporting completion")
		}
	}
	g.SuggestedActions = dedupe(g.SuggestedActions)
	return g
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// HandleEscalation records a worker's request for help, adjusts the
// affected sub-task, and dispatches by escalation type.
func (m *Manager) HandleEscalation(ctx context.Context, esc *models.Escalation) error {
	if esc == nil || !esc.Type.Valid() {
		return errkind.Errorf(errkind.InvalidInput, "invalid escalation")
	}

	m.mu.Lock()
	m.escalations = append(m.escalations, esc)
	if st, ok := m.subTasks[esc.SubTaskID]; ok {
		next := models.SubTaskStatusBlocked
		if esc.Type == models.EscalationError {
			next = models.SubTaskStatusFailed
		}
		if st.Status.CanTransition(next) {
			st.Status = next
			st.UpdatedAt = time.Now().UTC()
		}
	}
	m.mu.Unlock()

	switch esc.Type {
	case models.EscalationQualityFailed:
		return m.escalateToQualityAuthority(esc.SubTaskID, esc.FromWorker, esc.Issue)
	default:
		_, err := m.ProvideSupport(ctx, esc.FromWorker, esc.Issue)
		if errkind.CodeOf(err) == "WORKER_NOT_FOUND" {
			// The worker may already be terminated; the escalation record
			// is kept either way.
			return nil
		}
		return err
	}
}

// escalateToQualityAuthority forwards the sub-task's failure history to
// the external quality collaborator.
func (m *Manager) escalateToQualityAuthority(subTaskID, workerID, issue string) error {
	m.mu.RLock()
	var history []models.FailureRecord
	for _, f := range m.failures {
		if f.SubTaskID == subTaskID {
			history = append(history, *f)
		}
	}
	m.mu.RUnlock()

	msg, err := bus.New(bus.TypeEscalate, m.id, QualityAuthority, "", bus.EscalatePayload{
		Escalation: models.Escalation{
			ID:         uuid.New().String(),
			FromWorker: workerID,
			SubTaskID:  subTaskID,
			Issue:      issue,
			Type:       models.EscalationQualityFailed,
			Timestamp:  time.Now().UTC(),
		},
		FailureHistory: history,
	})
	if err != nil {
		return errkind.Wrap(errkind.CommunicationError, err)
	}
	return m.bus.Publish(msg)
}

// GateDecision is the manager's reaction to a quality-gate failure.
type GateDecision string

const (
	// DecisionRetry sends the same worker back with extra instructions.
	DecisionRetry GateDecision = "retry"
	// DecisionReassign hands the sub-task to a different worker.
	DecisionReassign GateDecision = "reassign"
	// DecisionEscalate forwards the case to the quality authority.
	DecisionEscalate GateDecision = "escalate"
)

// HandleQualityGateFailure decides retry, reassign, or escalate based on
// the worker's consecutive-failure count before this rejection: 0 means
// retry, 1 or 2 reassign, 3 and above escalate.
func (m *Manager) HandleQualityGateFailure(ctx context.Context, p *bus.QualityGatePayload) (GateDecision, error) {
	m.mu.Lock()
	w, known := m.workers[p.WorkerID]
	if !known {
		m.mu.Unlock()
		return "", errkind.Errorf(errkind.WorkerNotFound, "worker %s", p.WorkerID)
	}
	prior := w.ConsecutiveFailures

	now := time.Now().UTC()
	m.failures = append(m.failures, &models.FailureRecord{
		ID:        uuid.New().String(),
		WorkerID:  p.WorkerID,
		SubTaskID: p.SubTaskID,
		Error: models.TaskError{
			Code:        "QUALITY_GATE_FAILURE",
			Message:     strings.Join(p.Reasons, "; "),
			Recoverable: true,
		},
		Timestamp: now,
	})
	w.FailedCount++
	w.ConsecutiveFailures++
	w.LastActivity = now
	m.recomputeHealthLocked(w)
	m.mu.Unlock()

	m.errorLogFor(p.RunID).RecordCode("QUALITY_GATE_FAILURE", true, strings.Join(p.Reasons, "; "))

	switch {
	case prior == 0:
		return DecisionRetry, m.retryWithInstructions(p)
	case prior <= 2:
		return DecisionReassign, m.reassign(ctx, p.SubTaskID, p.WorkerID)
	default:
		return DecisionEscalate, m.escalateToQualityAuthority(p.SubTaskID, p.WorkerID,
			"quality gates failed repeatedly: "+strings.Join(p.FailedGates(), ", "))
	}
}

// retryWithInstructions sends the rejected worker a guidance message with
// instructions tailored to the failed gates.
func (m *Manager) retryWithInstructions(p *bus.QualityGatePayload) error {
	var parts []string
	for _, gate := range p.FailedGates() {
		switch gate {
		case "lint":
			parts = append(parts, "Fix all linter findings and run the linter before resubmitting.")
		case "test":
			parts = append(parts, "Make the failing tests pass; add coverage for the changed paths.")
		case "e2e":
			parts = append(parts, "Re-run the end-to-end suite against a clean checkout.")
		case "format":
			parts = append(parts, "Apply the project formatter to every touched file.")
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "Address the rejection reasons and resubmit.")
	}

	msg, err := bus.New(bus.TypeGuidance, m.id, p.WorkerID, p.RunID, bus.GuidancePayload{
		SubTaskID: p.SubTaskID,
		Guidance: models.Guidance{
			Advice:           "Quality gates rejected the submission; retry on the same branch.",
			SuggestedActions: append([]string(nil), p.Reasons...),
		},
		AdditionalInstructions: strings.Join(parts, " "),
	})
	if err != nil {
		return errkind.Wrap(errkind.CommunicationError, err)
	}
	return m.bus.Publish(msg)
}

// reassign pulls the sub-task back from the rejected worker and assigns
// it to the best other idle worker. With no candidate the sub-task stays
// pending for the scheduler.
func (m *Manager) reassign(ctx context.Context, subTaskID, fromWorker string) error {
	m.mu.Lock()
	st, ok := m.subTasks[subTaskID]
	if !ok {
		m.mu.Unlock()
		return errkind.Errorf(errkind.NoCurrentTask, "unknown sub-task %s", subTaskID)
	}
	if m.assignments[fromWorker] == subTaskID {
		delete(m.assignments, fromWorker)
	}
	if w, known := m.workers[fromWorker]; known && w.Status == models.WorkerStatusWorking {
		w.Status = models.WorkerStatusIdle
	}
	if st.Status != models.SubTaskStatusPending {
		if !st.Status.CanTransition(models.SubTaskStatusPending) {
			// failed/blocked both return to pending; assigned/running must
			// pass through failed first.
			st.Status = models.SubTaskStatusFailed
		}
		st.Status = models.SubTaskStatusPending
	}
	st.Assignee = ""
	st.UpdatedAt = time.Now().UTC()
	snapshot := st.Clone()
	m.mu.Unlock()

	next, found := m.selectWorkerExcluding(snapshot, fromWorker)
	if !found {
		return nil
	}
	return m.AssignTask(ctx, subTaskID, next.ID)
}
