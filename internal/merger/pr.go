package merger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/internal/runlog"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// PROptions describe a pull request to open.
type PROptions struct {
	// RunID scopes the persisted pr-<id>.json file and log entries.
	RunID string
	// Title is the PR summary; defaults to the commit-message form.
	Title string
	// Description explains the change; auto-generated when empty.
	Description string
	// Source is the branch being proposed.
	Source string
	// Target is the protected branch the change is destined for.
	Target string
	// Ticket links the PR to its originating ticket.
	Ticket string
}

// CreatePullRequest opens a pull request: a fresh pr- id, changed files
// and commit count from git, a generated description when absent, and a
// persisted record with status open.
func (m *Merger) CreatePullRequest(ctx context.Context, opts PROptions) (*models.PullRequest, error) {
	if strings.TrimSpace(opts.Source) == "" || strings.TrimSpace(opts.Target) == "" {
		return nil, errkind.Errorf(errkind.InvalidInput, "source and target branches are required")
	}

	pr := &models.PullRequest{
		ID:           models.NewPRID(),
		Title:        opts.Title,
		Description:  opts.Description,
		SourceBranch: opts.Source,
		TargetBranch: opts.Target,
		TicketID:     opts.Ticket,
		Status:       models.PRStatusOpen,
		CreatedAt:    time.Now().UTC(),
	}
	if pr.Title == "" {
		pr.Title = fmt.Sprintf("[%s] Merge %s into %s", opts.Ticket, opts.Source, opts.Target)
	}

	if files, err := m.git.ChangedFilesBetween(ctx, opts.Target, opts.Source); err == nil {
		pr.ChangedFiles = files
	}
	if count, err := m.git.CommitCountBetween(ctx, opts.Target, opts.Source); err == nil {
		pr.CommitCount = count
	}
	if pr.Description == "" {
		pr.Description = m.generateDescription(ctx, pr)
	}

	m.mu.Lock()
	m.prs[pr.ID] = pr
	m.mu.Unlock()

	m.persistPR(opts.RunID, pr)
	m.mergeLog(opts.RunID).Log("[pr] created %s: %s -> %s (%d files)", pr.ID, pr.SourceBranch, pr.TargetBranch, len(pr.ChangedFiles))
	return pr.Clone(), nil
}

// persistPR writes the PR record to runtime/runs/<run-id>/pr-<id>.json.
// Best effort.
func (m *Merger) persistPR(runID string, pr *models.PullRequest) {
	if m.root == "" || runID == "" {
		return
	}
	dir := runlog.RunDir(m.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(pr, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, pr.ID+".json"), data, 0o644)
}

// PullRequest returns a snapshot of one PR record.
func (m *Merger) PullRequest(id string) (*models.PullRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pr, ok := m.prs[id]
	if !ok {
		return nil, errkind.Errorf(errkind.PRNotFound, "pull request %s", id)
	}
	return pr.Clone(), nil
}

// PullRequests returns snapshots of every PR, oldest first.
func (m *Merger) PullRequests() []*models.PullRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.PullRequest, 0, len(m.prs))
	for _, pr := range m.prs {
		out = append(out, pr.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ApprovePullRequest moves a PR from open to approved.
func (m *Merger) ApprovePullRequest(runID, id string) error {
	m.mu.Lock()
	pr, ok := m.prs[id]
	if !ok {
		m.mu.Unlock()
		return errkind.Errorf(errkind.PRNotFound, "pull request %s", id)
	}
	if !pr.Status.CanTransition(models.PRStatusApproved) {
		m.mu.Unlock()
		return errkind.Errorf(errkind.InvalidInput, "pull request %s is %s, cannot approve", id, pr.Status)
	}
	pr.Status = models.PRStatusApproved
	snapshot := pr.Clone()
	m.mu.Unlock()

	m.persistPR(runID, snapshot)
	m.mergeLog(runID).Log("[pr] approved %s", id)
	return nil
}

// MergePullRequest merges an approved PR into its target. Pull requests
// are the sanctioned path into protected branches, so the protection
// check does not apply here; approval is the gate.
func (m *Merger) MergePullRequest(ctx context.Context, runID, id string) MergeResult {
	log := m.mergeLog(runID)

	m.mu.Lock()
	pr, ok := m.prs[id]
	if !ok {
		m.mu.Unlock()
		log.Log("[pr] merge %s [FAILED: not found]", id)
		return MergeResult{Success: false, Error: fmt.Sprintf("pull request %s not found", id)}
	}
	if pr.Status != models.PRStatusApproved {
		status := pr.Status
		m.mu.Unlock()
		log.Log("[pr] merge %s [FAILED: not approved, status=%s]", id, status)
		return MergeResult{Success: false, Error: fmt.Sprintf("pull request %s is not approved (status %s)", id, status)}
	}
	req := MergeRequest{
		RunID:   runID,
		Source:  pr.SourceBranch,
		Ticket:  pr.TicketID,
		Message: fmt.Sprintf("[%s] Merge %s into %s", pr.TicketID, pr.SourceBranch, pr.TargetBranch),
	}
	target := pr.TargetBranch
	m.mu.Unlock()

	result := m.gitMerge(ctx, req, target)
	if !result.Success {
		log.Log("[pr] merge %s [FAILED: %s]", id, result.Error)
		return result
	}

	m.mu.Lock()
	pr.Status = models.PRStatusMerged
	snapshot := pr.Clone()
	m.mu.Unlock()

	m.persistPR(runID, snapshot)
	log.Log("[pr] merged %s commit=%s", id, result.CommitHash)
	return result
}

// ClosePullRequest closes an open or approved PR without merging.
func (m *Merger) ClosePullRequest(runID, id string) error {
	m.mu.Lock()
	pr, ok := m.prs[id]
	if !ok {
		m.mu.Unlock()
		return errkind.Errorf(errkind.PRNotFound, "pull request %s", id)
	}
	if !pr.Status.CanTransition(models.PRStatusClosed) {
		m.mu.Unlock()
		return errkind.Errorf(errkind.InvalidInput, "pull request %s is %s, cannot close", id, pr.Status)
	}
	pr.Status = models.PRStatusClosed
	snapshot := pr.Clone()
	m.mu.Unlock()

	m.persistPR(runID, snapshot)
	m.mergeLog(runID).Log("[pr] closed %s", id)
	return nil
}
