package models

import (
	"strings"
	"testing"
)

func TestSubTaskID(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "task-x-001"},
		{10, "task-x-010"},
		{999, "task-x-999"},
	}
	for _, tt := range tests {
		if got := SubTaskID("task-x", tt.n); got != tt.want {
			t.Errorf("SubTaskID(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestIDPrefixes(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewTaskID(), "task-"},
		{NewWorkerID(), "worker-"},
		{NewManagerID(), "manager-"},
		{NewPRID(), "pr-"},
		{NewRunID(), "run-"},
	}
	for _, tt := range tests {
		if !strings.HasPrefix(tt.id, tt.prefix) {
			t.Errorf("id %q missing prefix %q", tt.id, tt.prefix)
		}
	}
}

func TestParentStatusTransitions(t *testing.T) {
	tests := []struct {
		from ParentStatus
		to   ParentStatus
		want bool
	}{
		{ParentStatusPending, ParentStatusDecomposing, true},
		{ParentStatusDecomposing, ParentStatusExecuting, true},
		{ParentStatusExecuting, ParentStatusReviewing, true},
		{ParentStatusReviewing, ParentStatusCompleted, true},
		{ParentStatusPending, ParentStatusExecuting, false},
		{ParentStatusExecuting, ParentStatusCompleted, false},
		{ParentStatusPending, ParentStatusFailed, true},
		{ParentStatusReviewing, ParentStatusFailed, true},
		{ParentStatusCompleted, ParentStatusFailed, false},
		{ParentStatusFailed, ParentStatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParentStatusTerminal(t *testing.T) {
	for _, s := range []ParentStatus{ParentStatusCompleted, ParentStatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ParentStatus{ParentStatusPending, ParentStatusDecomposing, ParentStatusExecuting, ParentStatusReviewing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSubTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from SubTaskStatus
		to   SubTaskStatus
		want bool
	}{
		{SubTaskStatusPending, SubTaskStatusAssigned, true},
		{SubTaskStatusAssigned, SubTaskStatusRunning, true},
		{SubTaskStatusRunning, SubTaskStatusCompleted, true},
		{SubTaskStatusAssigned, SubTaskStatusFailed, true},
		{SubTaskStatusRunning, SubTaskStatusBlocked, true},
		{SubTaskStatusFailed, SubTaskStatusPending, true},
		{SubTaskStatusBlocked, SubTaskStatusPending, true},
		{SubTaskStatusPending, SubTaskStatusRunning, false},
		{SubTaskStatusPending, SubTaskStatusCompleted, false},
		{SubTaskStatusCompleted, SubTaskStatusPending, false},
		{SubTaskStatusFailed, SubTaskStatusAssigned, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNormalizeEffort(t *testing.T) {
	tests := []struct {
		in   string
		want Effort
	}{
		{"small", EffortSmall},
		{"medium", EffortMedium},
		{"large", EffortLarge},
		{"", EffortMedium},
		{"huge", EffortMedium},
		{"SMALL", EffortMedium},
	}
	for _, tt := range tests {
		if got := NormalizeEffort(tt.in); got != tt.want {
			t.Errorf("NormalizeEffort(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSubTaskClone(t *testing.T) {
	st := &SubTask{
		ID:                 "task-x-001",
		AcceptanceCriteria: []string{"a"},
		Dependencies:       []string{"task-x-000"},
		Artifacts:          []string{"out.go"},
	}
	c := st.Clone()
	c.AcceptanceCriteria[0] = "changed"
	c.Dependencies[0] = "changed"
	c.Artifacts[0] = "changed"

	if st.AcceptanceCriteria[0] != "a" || st.Dependencies[0] != "task-x-000" || st.Artifacts[0] != "out.go" {
		t.Error("clone aliases the original's slices")
	}
}
