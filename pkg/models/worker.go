package models

import "time"

// WorkerStatus represents the current state of a pool worker.
type WorkerStatus string

const (
	// WorkerStatusIdle indicates the worker is available for assignment.
	WorkerStatusIdle WorkerStatus = "idle"
	// WorkerStatusWorking indicates the worker holds an active sub-task.
	WorkerStatusWorking WorkerStatus = "working"
	// WorkerStatusError indicates the worker is in a degraded state.
	WorkerStatusError WorkerStatus = "error"
	// WorkerStatusTerminated indicates the worker has been fired; the record
	// is retained for history only.
	WorkerStatusTerminated WorkerStatus = "terminated"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusIdle, WorkerStatusWorking, WorkerStatusError, WorkerStatusTerminated:
		return true
	default:
		return false
	}
}

// WorkerInfo is the pool-member record owned by the manager.
type WorkerInfo struct {
	// ID is the unique identifier, of form worker-<base36>-<rand>.
	ID string `json:"id"`
	// Name is the human-readable worker name.
	Name string `json:"name"`
	// Capabilities lists the work categories this worker handles
	// (frontend, backend, testing, devops, documentation, general).
	Capabilities []string `json:"capabilities"`
	// Status is the current state of the worker.
	Status WorkerStatus `json:"status"`
	// HiredAt is when the worker joined the pool.
	HiredAt time.Time `json:"hired_at"`
	// LastActivity is the last time the worker was assigned work or reported progress.
	LastActivity time.Time `json:"last_activity"`
	// CompletedCount is the number of sub-tasks completed successfully.
	CompletedCount int `json:"completed_count"`
	// FailedCount is the number of sub-tasks that failed.
	FailedCount int `json:"failed_count"`
	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`
	// HealthScore is a derived 0-100 reliability metric.
	HealthScore float64 `json:"health_score"`
	// Priority influences selection and scale-down ordering; higher wins.
	Priority int `json:"priority"`
	// Adapter names the LLM backend this worker uses.
	Adapter string `json:"adapter,omitempty"`
	// Model names the LLM model this worker uses.
	Model string `json:"model,omitempty"`
}

// SuccessRate returns the fraction of completed sub-tasks over all attempts.
// A worker with no history has a success rate of 1.
func (w *WorkerInfo) SuccessRate() float64 {
	total := w.CompletedCount + w.FailedCount
	if total == 0 {
		return 1.0
	}
	return float64(w.CompletedCount) / float64(total)
}

// FailureRate returns the fraction of failed sub-tasks over all attempts.
func (w *WorkerInfo) FailureRate() float64 {
	total := w.CompletedCount + w.FailedCount
	if total == 0 {
		return 0
	}
	return float64(w.FailedCount) / float64(total)
}

// Clone returns a deep copy of the worker record.
func (w *WorkerInfo) Clone() *WorkerInfo {
	c := *w
	c.Capabilities = append([]string(nil), w.Capabilities...)
	return &c
}

// TaskError describes a failure reported by a worker.
type TaskError struct {
	// Code is the machine-readable error category.
	Code string `json:"code"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Recoverable indicates whether a retry may succeed.
	Recoverable bool `json:"recoverable"`
}

// FailureRecord is an audit entry for one worker failure.
type FailureRecord struct {
	// ID is the unique identifier of this record.
	ID string `json:"id"`
	// WorkerID is the worker that failed.
	WorkerID string `json:"worker_id"`
	// SubTaskID is the sub-task that was being worked on.
	SubTaskID string `json:"sub_task_id"`
	// Error describes the failure.
	Error TaskError `json:"error"`
	// Timestamp is when the failure was recorded.
	Timestamp time.Time `json:"timestamp"`
	// SupportProvided indicates whether guidance was dispatched for this failure.
	SupportProvided bool `json:"support_provided"`
	// Resolved is set once the same worker subsequently succeeds.
	Resolved bool `json:"resolved"`
}

// EscalationType categorizes a worker's request for help.
type EscalationType string

const (
	// EscalationError indicates the worker hit an error it cannot handle.
	EscalationError EscalationType = "error"
	// EscalationBlocked indicates the worker cannot proceed.
	EscalationBlocked EscalationType = "blocked"
	// EscalationHelpNeeded indicates the worker requests guidance.
	EscalationHelpNeeded EscalationType = "help_needed"
	// EscalationQualityFailed indicates a quality gate rejected the work.
	EscalationQualityFailed EscalationType = "quality_failed"
)

// Valid returns true if the escalation type is a known value.
func (t EscalationType) Valid() bool {
	switch t {
	case EscalationError, EscalationBlocked, EscalationHelpNeeded, EscalationQualityFailed:
		return true
	default:
		return false
	}
}

// Escalation is a request for manager or reviewer intervention.
type Escalation struct {
	// ID is the unique identifier of this escalation.
	ID string `json:"id"`
	// FromWorker is the worker raising the escalation.
	FromWorker string `json:"from_worker"`
	// SubTaskID is the affected sub-task.
	SubTaskID string `json:"sub_task_id"`
	// Issue is the free-form problem description.
	Issue string `json:"issue"`
	// Type categorizes the escalation.
	Type EscalationType `json:"type"`
	// Timestamp is when the escalation was raised.
	Timestamp time.Time `json:"timestamp"`
}

// Guidance is the manager's advice in response to worker distress.
type Guidance struct {
	// Advice is the headline recommendation.
	Advice string `json:"advice"`
	// SuggestedActions lists concrete next steps.
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	// AdditionalResources lists docs or references that may help.
	AdditionalResources []string `json:"additional_resources,omitempty"`
}
