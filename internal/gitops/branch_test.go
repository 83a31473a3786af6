package gitops

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Implement login flow", "implement-login-flow"},
		{"Fix  bug #42 (urgent!)", "fix-bug-42-urgent"},
		{"UPPER case", "upper-case"},
		{"--already--hyphened--", "already-hyphened"},
		{"日本語のみ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugTruncates(t *testing.T) {
	long := strings.Repeat("abcde ", 20)
	got := Slug(long)
	if len(got) > 50 {
		t.Errorf("slug length = %d, want <= 50", len(got))
	}
	if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
		t.Errorf("slug %q has stray hyphens", got)
	}
}

func TestBranchName(t *testing.T) {
	tests := []struct {
		ticket string
		desc   string
		want   string
	}{
		{"TICKET-1", "Implement login", "agent/TICKET-1-implement-login"},
		{"TICKET-2", "", "agent/TICKET-2"},
		{"TICKET-3", "###", "agent/TICKET-3"},
	}

	for _, tt := range tests {
		if got := BranchName(tt.ticket, tt.desc); got != tt.want {
			t.Errorf("BranchName(%q, %q) = %q, want %q", tt.ticket, tt.desc, got, tt.want)
		}
	}
}

func TestCommitMessage(t *testing.T) {
	if got := CommitMessage("TICKET-9", "Add login"); got != "[TICKET-9] Add login" {
		t.Errorf("CommitMessage() = %q", got)
	}
}

func TestIsProtected(t *testing.T) {
	protected := []string{"main", "master", "Main", "MASTER", " main ", "MaStEr"}
	for _, b := range protected {
		if !IsProtected(b) {
			t.Errorf("IsProtected(%q) = false, want true", b)
		}
	}
	open := []string{"develop", "agent/TICKET-1-fix", "mainline", "master-copy", ""}
	for _, b := range open {
		if IsProtected(b) {
			t.Errorf("IsProtected(%q) = true, want false", b)
		}
	}
}
