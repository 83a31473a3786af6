// Package merger merges agent branches into the integration branch and
// owns the pull-request lifecycle toward protected branches. Merge and PR
// operations return result values at the public boundary; errors are
// reserved for violated preconditions.
package merger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/adapter"
	"github.com/kawanishi0117/agent-company-sub000/internal/gitops"
	"github.com/kawanishi0117/agent-company-sub000/internal/runlog"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// DefaultIntegrationBranch receives agent branches when no target is
// configured.
const DefaultIntegrationBranch = "develop"

// protectedRejection is the reason returned for direct merges into
// protected branches.
const protectedRejection = "直接マージ禁止 (direct merge to protected branch is forbidden)"

// Merger owns pull-request records and performs branch merges.
type Merger struct {
	git         *gitops.Manager
	ad          adapter.Adapter
	root        string
	integration string

	mu  sync.RWMutex
	prs map[string]*models.PullRequest
}

// New creates a merger. The adapter may be nil; PR descriptions then fall
// back to a template.
func New(git *gitops.Manager, ad adapter.Adapter, root, integration string) *Merger {
	if integration == "" {
		integration = DefaultIntegrationBranch
	}
	return &Merger{
		git:         git,
		ad:          ad,
		root:        root,
		integration: integration,
		prs:         make(map[string]*models.PullRequest),
	}
}

// IntegrationBranch returns the configured integration branch.
func (m *Merger) IntegrationBranch() string { return m.integration }

// MergeRequest describes one branch merge.
type MergeRequest struct {
	// RunID scopes the merge.log entries.
	RunID string `json:"run_id"`
	// Source is the branch to merge.
	Source string `json:"source"`
	// Target is the branch to merge into; defaults to the integration
	// branch.
	Target string `json:"target,omitempty"`
	// Ticket links the merge to its originating ticket.
	Ticket string `json:"ticket"`
	// Message overrides the generated merge commit message.
	Message string `json:"message,omitempty"`
	// Force skips the fast-forward check. Reserved; the underlying merge
	// is always --no-ff.
	Force bool `json:"force,omitempty"`
}

// MergeResult is the outcome of a merge operation.
type MergeResult struct {
	// Success indicates the merge commit was created.
	Success bool `json:"success"`
	// CommitHash is the merge commit, set on success.
	CommitHash string `json:"commit_hash,omitempty"`
	// HadConflicts indicates git reported conflicts.
	HadConflicts bool `json:"had_conflicts,omitempty"`
	// Error is the failure reason, set when Success is false.
	Error string `json:"error,omitempty"`
}

// mergeLog returns the merge.log writer for a run.
func (m *Merger) mergeLog(runID string) *runlog.Logger {
	if m.root == "" || runID == "" {
		return runlog.Nop()
	}
	return runlog.New(m.root, runID, "merge.log")
}

// Merge merges the source branch into the target. Protected targets are
// rejected before any git invocation; such changes must go through a pull
// request.
func (m *Merger) Merge(ctx context.Context, req MergeRequest) MergeResult {
	log := m.mergeLog(req.RunID)

	target := req.Target
	if target == "" {
		target = m.integration
	}
	if gitops.IsProtected(target) {
		log.Log("[merge] %s -> %s [REJECTED: %s]", req.Source, target, protectedRejection)
		return MergeResult{Success: false, Error: protectedRejection}
	}
	if strings.TrimSpace(req.Source) == "" {
		log.Log("[merge] -> %s [REJECTED: empty source]", target)
		return MergeResult{Success: false, Error: "source branch is empty"}
	}

	result := m.gitMerge(ctx, req, target)
	if result.Success {
		log.Log("[merge] %s -> %s [SUCCESS] commit=%s", req.Source, target, result.CommitHash)
	} else {
		log.Log("[merge] %s -> %s [FAILED: %s] conflicts=%v", req.Source, target, result.Error, result.HadConflicts)
	}
	return result
}

// gitMerge performs the checkout and merge, mapping git failures onto the
// result type.
func (m *Merger) gitMerge(ctx context.Context, req MergeRequest, target string) MergeResult {
	if err := m.git.Checkout(ctx, target); err != nil {
		return MergeResult{Success: false, Error: err.Error()}
	}

	message := req.Message
	if message == "" {
		message = fmt.Sprintf("[%s] Merge %s into %s", req.Ticket, req.Source, target)
	}

	hash, err := m.git.Merge(ctx, req.Source, message)
	if err != nil {
		result := MergeResult{Success: false, Error: err.Error()}
		if strings.Contains(strings.ToLower(err.Error()), "conflict") {
			result.HadConflicts = true
		}
		return result
	}
	return MergeResult{Success: true, CommitHash: hash}
}

// generateDescription asks the model backend for a PR description, with a
// template fallback.
func (m *Merger) generateDescription(ctx context.Context, pr *models.PullRequest) string {
	fallback := fmt.Sprintf("Merge %s into %s for ticket %s (%d files changed).",
		pr.SourceBranch, pr.TargetBranch, pr.TicketID, len(pr.ChangedFiles))
	if m.ad == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Write a concise pull request description.\nTitle: %s\nTicket: %s\nSource: %s\nTarget: %s\nChanged files:\n%s",
		pr.Title, pr.TicketID, pr.SourceBranch, pr.TargetBranch, strings.Join(pr.ChangedFiles, "\n"))

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := m.ad.Generate(callCtx, prompt)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		return fallback
	}
	return strings.TrimSpace(resp.Content)
}
