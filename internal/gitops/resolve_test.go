package gitops

import (
	"testing"

	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

func TestResolveThreeWay(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		ours     string
		theirs   string
		want     string
		resolved bool
	}{
		{
			name: "both sides identical",
			base: "a", ours: "b", theirs: "b",
			want: "b", resolved: true,
		},
		{
			name: "ours deleted theirs changed",
			base: "a", ours: "", theirs: "b",
			want: "b", resolved: true,
		},
		{
			name: "theirs deleted ours changed",
			base: "a", ours: "b", theirs: "",
			want: "b", resolved: true,
		},
		{
			name: "only theirs changed",
			base: "a", ours: "a", theirs: "b",
			want: "b", resolved: true,
		},
		{
			name: "only ours changed",
			base: "a", ours: "b", theirs: "a",
			want: "b", resolved: true,
		},
		{
			name: "divergent edits",
			base: "a", ours: "b", theirs: "c",
			resolved: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveThreeWay(tt.base, tt.ours, tt.theirs)
			if got.resolved != tt.resolved {
				t.Fatalf("resolved = %v, want %v", got.resolved, tt.resolved)
			}
			if got.resolved && got.content != tt.want {
				t.Errorf("content = %q, want %q", got.content, tt.want)
			}
		})
	}
}

func TestNewEscalationPayload(t *testing.T) {
	report := &models.ConflictReport{
		Branch:  "agent/TICKET-1-fix",
		Total:   2,
		Summary: "merge of agent/TICKET-1-fix left 2 conflicting files, 1 not auto-resolvable",
	}
	p := NewEscalationPayload(report)
	if p.Branch != report.Branch {
		t.Errorf("branch = %s", p.Branch)
	}
	if p.Summary != report.Summary {
		t.Errorf("summary = %s", p.Summary)
	}
	if p.Report != report {
		t.Error("report not attached")
	}
}
