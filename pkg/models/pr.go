package models

import "time"

// PRStatus represents the lifecycle state of a pull request.
type PRStatus string

const (
	// PRStatusOpen indicates the pull request awaits approval.
	PRStatusOpen PRStatus = "open"
	// PRStatusApproved indicates the pull request has been approved.
	PRStatusApproved PRStatus = "approved"
	// PRStatusMerged indicates the pull request has been merged.
	PRStatusMerged PRStatus = "merged"
	// PRStatusClosed indicates the pull request was closed without merging.
	PRStatusClosed PRStatus = "closed"
)

// Valid returns true if the status is a known value.
func (s PRStatus) Valid() bool {
	switch s {
	case PRStatusOpen, PRStatusApproved, PRStatusMerged, PRStatusClosed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a transition to next is legal.
// Progress is strictly open -> approved -> merged; closed absorbs any
// non-merged state.
func (s PRStatus) CanTransition(next PRStatus) bool {
	if next == PRStatusClosed {
		return s == PRStatusOpen || s == PRStatusApproved
	}
	switch s {
	case PRStatusOpen:
		return next == PRStatusApproved
	case PRStatusApproved:
		return next == PRStatusMerged
	default:
		return false
	}
}

// PullRequest is a merge proposal owned by the merger agent.
type PullRequest struct {
	// ID is the unique identifier, of form pr-<base36>-<rand>.
	ID string `json:"id"`
	// Title is the short summary of the change.
	Title string `json:"title"`
	// Description explains the change; auto-generated when absent.
	Description string `json:"description,omitempty"`
	// SourceBranch is the branch being merged.
	SourceBranch string `json:"source_branch"`
	// TargetBranch is the protected branch the change is destined for.
	TargetBranch string `json:"target_branch"`
	// TicketID links the pull request to its originating ticket.
	TicketID string `json:"ticket_id"`
	// Status is the current lifecycle state.
	Status PRStatus `json:"status"`
	// ChangedFiles lists files touched by the proposal.
	ChangedFiles []string `json:"changed_files,omitempty"`
	// CommitCount is the number of commits in the proposal.
	CommitCount int `json:"commit_count"`
	// CreatedAt is when the pull request was opened.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the pull request.
func (p *PullRequest) Clone() *PullRequest {
	c := *p
	c.ChangedFiles = append([]string(nil), p.ChangedFiles...)
	return &c
}

// ConflictFile describes one conflicting path in an unresolved merge.
type ConflictFile struct {
	// Path is the repository-relative file path.
	Path string `json:"path"`
	// HasBase indicates the file exists in the merge base.
	HasBase bool `json:"has_base"`
	// HasOurs indicates the file exists on our side.
	HasOurs bool `json:"has_ours"`
	// HasTheirs indicates the file exists on their side.
	HasTheirs bool `json:"has_theirs"`
	// AutoResolvable indicates the three-way rules can resolve this file.
	AutoResolvable bool `json:"auto_resolvable"`
}

// ConflictReport is a snapshot of an unresolved merge, consumed by the
// reviewer escalation path.
type ConflictReport struct {
	// Timestamp is when the report was generated.
	Timestamp time.Time `json:"timestamp"`
	// Branch is the branch that failed to merge.
	Branch string `json:"branch"`
	// Total is the number of conflicting files.
	Total int `json:"total"`
	// Files lists each conflicting file with resolvability flags.
	Files []ConflictFile `json:"files"`
	// Summary is a human-readable description of the conflict.
	Summary string `json:"summary"`
}
