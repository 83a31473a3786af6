package bus

import (
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// TaskAssignPayload is the body of a task_assign message.
type TaskAssignPayload struct {
	// RunID is the fresh run created for this assignment.
	RunID string `json:"run_id"`
	// Project is a snapshot of the target project descriptor.
	Project models.Project `json:"project"`
	// SubTask is the work to perform.
	SubTask models.SubTask `json:"sub_task"`
}

// TaskResultPayload is the body of task_complete and task_failed messages.
type TaskResultPayload struct {
	// SubTaskID is the finished sub-task.
	SubTaskID string `json:"sub_task_id"`
	// WorkerID is the reporting worker.
	WorkerID string `json:"worker_id"`
	// Artifacts lists produced paths or refs.
	Artifacts []string `json:"artifacts,omitempty"`
	// Error describes the failure for task_failed messages.
	Error *models.TaskError `json:"error,omitempty"`
}

// QualityGatePayload is the body of a quality_gate_failed message.
type QualityGatePayload struct {
	// SubTaskID is the rejected sub-task.
	SubTaskID string `json:"sub_task_id"`
	// WorkerID is the worker whose output was judged.
	WorkerID string `json:"worker_id"`
	// RunID scopes the judgment artifacts.
	RunID string `json:"run_id"`
	// Checks holds the per-gate outcomes.
	Checks models.JudgmentChecks `json:"checks"`
	// Reasons lists the judged failure reasons.
	Reasons []string `json:"reasons,omitempty"`
}

// FailedGates returns the names of the gates that did not pass.
func (p *QualityGatePayload) FailedGates() []string {
	var failed []string
	for _, g := range []struct {
		name   string
		status string
	}{
		{"lint", p.Checks.Lint},
		{"test", p.Checks.Test},
		{"e2e", p.Checks.E2E},
		{"format", p.Checks.Format},
	} {
		if g.status != "" && g.status != "PASS" {
			failed = append(failed, g.name)
		}
	}
	return failed
}

// GuidancePayload is the body of a guidance message.
type GuidancePayload struct {
	// SubTaskID is the sub-task the guidance concerns, if any.
	SubTaskID string `json:"sub_task_id,omitempty"`
	// Guidance is the manager's advice.
	Guidance models.Guidance `json:"guidance"`
	// AdditionalInstructions carries retry instructions for quality-gate
	// retries.
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

// EscalatePayload is the body of an escalate message.
type EscalatePayload struct {
	// Escalation describes the request for help.
	Escalation models.Escalation `json:"escalation"`
	// FailureHistory carries the sub-task's failure records when the
	// manager escalates to the quality authority.
	FailureHistory []models.FailureRecord `json:"failure_history,omitempty"`
}

// StatusResponsePayload is the body of a status_response message.
type StatusResponsePayload struct {
	// WorkerID is the responding worker.
	WorkerID string `json:"worker_id"`
	// Status is the worker's current state.
	Status models.WorkerStatus `json:"status"`
	// CurrentSubTask is the active sub-task id, if any.
	CurrentSubTask string `json:"current_sub_task,omitempty"`
}
