// Package models defines the shared entities of the orchestrator control
// plane: tasks, workers, pull requests, projects, and their identifiers.
package models

import "time"

// ParentStatus represents the lifecycle state of a parent task.
type ParentStatus string

const (
	// ParentStatusPending indicates the instruction has been received but not decomposed.
	ParentStatusPending ParentStatus = "pending"
	// ParentStatusDecomposing indicates decomposition is in progress.
	ParentStatusDecomposing ParentStatus = "decomposing"
	// ParentStatusExecuting indicates sub-tasks are being worked on.
	ParentStatusExecuting ParentStatus = "executing"
	// ParentStatusReviewing indicates all sub-tasks completed and the result is under review.
	ParentStatusReviewing ParentStatus = "reviewing"
	// ParentStatusCompleted indicates the parent task finished successfully.
	ParentStatusCompleted ParentStatus = "completed"
	// ParentStatusFailed indicates the parent task failed.
	ParentStatusFailed ParentStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s ParentStatus) Valid() bool {
	switch s {
	case ParentStatusPending, ParentStatusDecomposing, ParentStatusExecuting,
		ParentStatusReviewing, ParentStatusCompleted, ParentStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from this status.
func (s ParentStatus) Terminal() bool {
	return s == ParentStatusCompleted || s == ParentStatusFailed
}

// CanTransition reports whether a transition to next is legal.
// The happy path is pending -> decomposing -> executing -> reviewing -> completed;
// any non-terminal state may transition to failed.
func (s ParentStatus) CanTransition(next ParentStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ParentStatusFailed {
		return true
	}
	switch s {
	case ParentStatusPending:
		return next == ParentStatusDecomposing
	case ParentStatusDecomposing:
		return next == ParentStatusExecuting
	case ParentStatusExecuting:
		return next == ParentStatusReviewing
	case ParentStatusReviewing:
		return next == ParentStatusCompleted
	default:
		return false
	}
}

// ParentTask is the root of one decomposition, created from an operator instruction.
type ParentTask struct {
	// ID is the unique identifier, of form task-<base36>-<rand>.
	ID string `json:"id"`
	// ProjectID identifies the target project.
	ProjectID string `json:"project_id"`
	// Instruction is the original free-form operator request.
	Instruction string `json:"instruction"`
	// Status is the current lifecycle state.
	Status ParentStatus `json:"status"`
	// AssignedManager is the id of the manager that owns this task.
	AssignedManager string `json:"assigned_manager,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// SubTaskStatus represents the lifecycle state of a sub-task.
type SubTaskStatus string

const (
	// SubTaskStatusPending indicates the sub-task is waiting for assignment.
	SubTaskStatusPending SubTaskStatus = "pending"
	// SubTaskStatusAssigned indicates the sub-task has been handed to a worker.
	SubTaskStatusAssigned SubTaskStatus = "assigned"
	// SubTaskStatusRunning indicates the worker reported starting the sub-task.
	SubTaskStatusRunning SubTaskStatus = "running"
	// SubTaskStatusCompleted indicates the sub-task finished successfully.
	SubTaskStatusCompleted SubTaskStatus = "completed"
	// SubTaskStatusFailed indicates the sub-task failed.
	SubTaskStatusFailed SubTaskStatus = "failed"
	// SubTaskStatusBlocked indicates the sub-task cannot proceed.
	SubTaskStatusBlocked SubTaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s SubTaskStatus) Valid() bool {
	switch s {
	case SubTaskStatusPending, SubTaskStatusAssigned, SubTaskStatusRunning,
		SubTaskStatusCompleted, SubTaskStatusFailed, SubTaskStatusBlocked:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a transition to next is legal.
// pending -> assigned -> running -> completed; assigned or running may fail
// or block; blocked and failed return to pending on reassignment.
func (s SubTaskStatus) CanTransition(next SubTaskStatus) bool {
	switch s {
	case SubTaskStatusPending:
		return next == SubTaskStatusAssigned
	case SubTaskStatusAssigned:
		return next == SubTaskStatusRunning || next == SubTaskStatusCompleted ||
			next == SubTaskStatusFailed || next == SubTaskStatusBlocked
	case SubTaskStatusRunning:
		return next == SubTaskStatusCompleted || next == SubTaskStatusFailed ||
			next == SubTaskStatusBlocked
	case SubTaskStatusBlocked, SubTaskStatusFailed:
		return next == SubTaskStatusPending
	default:
		return false
	}
}

// Effort is the estimated size of a sub-task.
type Effort string

const (
	// EffortSmall indicates a small task.
	EffortSmall Effort = "small"
	// EffortMedium indicates a medium task.
	EffortMedium Effort = "medium"
	// EffortLarge indicates a large task.
	EffortLarge Effort = "large"
)

// NormalizeEffort maps arbitrary effort strings onto the known values.
// Unknown or empty values become medium.
func NormalizeEffort(s string) Effort {
	switch Effort(s) {
	case EffortSmall, EffortMedium, EffortLarge:
		return Effort(s)
	default:
		return EffortMedium
	}
}

// SubTask is a unit of work produced by decomposition.
type SubTask struct {
	// ID is the unique identifier, of form <parent-id>-NNN.
	ID string `json:"id"`
	// ParentID is the id of the owning parent task.
	ParentID string `json:"parent_id"`
	// Title is the short description of the sub-task.
	Title string `json:"title"`
	// Description provides detailed information about the sub-task.
	Description string `json:"description"`
	// AcceptanceCriteria lists the criteria for completion.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// EstimatedEffort is the normalized size estimate.
	EstimatedEffort Effort `json:"estimated_effort,omitempty"`
	// Dependencies lists the ids of sub-tasks that must complete first.
	Dependencies []string `json:"dependencies,omitempty"`
	// Status is the current lifecycle state.
	Status SubTaskStatus `json:"status"`
	// Assignee is the id of the worker this sub-task is assigned to.
	Assignee string `json:"assignee,omitempty"`
	// Artifacts lists paths or refs produced while working on the sub-task.
	Artifacts []string `json:"artifacts,omitempty"`
	// CreatedAt is when the sub-task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the sub-task was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the sub-task. Accessors that return
// snapshots use this so callers never alias manager-owned state.
func (t *SubTask) Clone() *SubTask {
	c := *t
	c.AcceptanceCriteria = append([]string(nil), t.AcceptanceCriteria...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Artifacts = append([]string(nil), t.Artifacts...)
	return &c
}
