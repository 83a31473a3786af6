package merger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kawanishi0117/agent-company-sub000/internal/exec"
	"github.com/kawanishi0117/agent-company-sub000/internal/gitops"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// fakeRunner records git invocations and replies from a canned script.
type fakeRunner struct {
	calls   []exec.Request
	replies map[string]fakeReply
}

type fakeReply struct {
	stdout string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: make(map[string]fakeReply)}
}

func (f *fakeRunner) reply(argPrefix string, stdout string, err error) {
	f.replies[argPrefix] = fakeReply{stdout: stdout, err: err}
}

func (f *fakeRunner) Run(ctx context.Context, req exec.Request) (*exec.Result, error) {
	f.calls = append(f.calls, req)
	joined := strings.Join(req.Args, " ")
	for prefix, r := range f.replies {
		if strings.HasPrefix(joined, prefix) {
			if r.err != nil {
				return &exec.Result{ExitCode: 1, Stderr: r.err.Error()}, r.err
			}
			return &exec.Result{ExitCode: 0, Stdout: r.stdout}, nil
		}
	}
	return &exec.Result{ExitCode: 0}, nil
}

func newTestMerger(t *testing.T, runner *fakeRunner) *Merger {
	t.Helper()
	git := gitops.New(t.TempDir(), runner, nil)
	return New(git, nil, t.TempDir(), "")
}

func TestMergeProtectedTargetRejected(t *testing.T) {
	for _, target := range []string{"main", "master", "Main", "MASTER"} {
		runner := newFakeRunner()
		m := newTestMerger(t, runner)

		result := m.Merge(context.Background(), MergeRequest{
			RunID:  "run-1",
			Source: "agent/worker-1/ticket-1",
			Target: target,
			Ticket: "TICKET-1",
		})

		if result.Success {
			t.Errorf("target %q: expected rejection", target)
		}
		if !strings.Contains(result.Error, "直接マージ禁止") {
			t.Errorf("target %q: expected rejection reason, got %q", target, result.Error)
		}
		if len(runner.calls) != 0 {
			t.Errorf("target %q: expected no git invocation, got %d", target, len(runner.calls))
		}
	}
}

func TestMergeEmptySourceRejected(t *testing.T) {
	runner := newFakeRunner()
	m := newTestMerger(t, runner)

	result := m.Merge(context.Background(), MergeRequest{Target: "develop", Ticket: "T-1"})
	if result.Success {
		t.Fatal("expected failure for empty source")
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no git invocation, got %d", len(runner.calls))
	}
}

func TestMergeIntoIntegrationBranch(t *testing.T) {
	runner := newFakeRunner()
	runner.reply("rev-parse HEAD", "abc1234def", nil)
	m := newTestMerger(t, runner)

	result := m.Merge(context.Background(), MergeRequest{
		RunID:  "run-1",
		Source: "agent/worker-1/ticket-1",
		Ticket: "TICKET-1",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.CommitHash != "abc1234def" {
		t.Errorf("expected commit hash abc1234def, got %q", result.CommitHash)
	}

	// checkout develop, merge, rev-parse
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 git invocations, got %d", len(runner.calls))
	}
	if got := strings.Join(runner.calls[0].Args, " "); got != "checkout develop" {
		t.Errorf("expected checkout of integration branch, got %q", got)
	}
	mergeArgs := strings.Join(runner.calls[1].Args, " ")
	if !strings.Contains(mergeArgs, "--no-ff") {
		t.Errorf("expected --no-ff merge, got %q", mergeArgs)
	}
	if !strings.Contains(mergeArgs, "[TICKET-1] Merge agent/worker-1/ticket-1 into develop") {
		t.Errorf("unexpected merge message in %q", mergeArgs)
	}
}

func TestMergeConflictDetection(t *testing.T) {
	runner := newFakeRunner()
	runner.reply("merge --no-ff", "", errors.New("merge: CONFLICT (content): Merge conflict in main.go"))
	m := newTestMerger(t, runner)

	result := m.Merge(context.Background(), MergeRequest{
		Source: "agent/worker-1/ticket-1",
		Target: "develop",
		Ticket: "T-1",
	})
	if result.Success {
		t.Fatal("expected failure")
	}
	if !result.HadConflicts {
		t.Error("expected HadConflicts to be set")
	}
}

func TestPullRequestLifecycle(t *testing.T) {
	runner := newFakeRunner()
	runner.reply("diff --name-only", "cmd/main.go\ninternal/core/core.go", nil)
	runner.reply("rev-list --count", "4", nil)
	runner.reply("rev-parse HEAD", "deadbeef01", nil)
	m := newTestMerger(t, runner)

	pr, err := m.CreatePullRequest(context.Background(), PROptions{
		RunID:  "run-1",
		Source: "develop",
		Target: "main",
		Ticket: "TICKET-9",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pr.Status != models.PRStatusOpen {
		t.Fatalf("expected open, got %s", pr.Status)
	}
	if pr.Title != "[TICKET-9] Merge develop into main" {
		t.Errorf("unexpected default title %q", pr.Title)
	}
	if len(pr.ChangedFiles) != 2 {
		t.Errorf("expected 2 changed files, got %d", len(pr.ChangedFiles))
	}
	if pr.CommitCount != 4 {
		t.Errorf("expected commit count 4, got %d", pr.CommitCount)
	}
	if pr.Description == "" {
		t.Error("expected a generated description")
	}

	// Merging before approval must fail.
	if res := m.MergePullRequest(context.Background(), "run-1", pr.ID); res.Success {
		t.Fatal("expected unapproved merge to fail")
	} else if !strings.Contains(res.Error, "not approved") {
		t.Errorf("expected not-approved error, got %q", res.Error)
	}

	if err := m.ApprovePullRequest("run-1", pr.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	res := m.MergePullRequest(context.Background(), "run-1", pr.ID)
	if !res.Success {
		t.Fatalf("expected merge success, got %q", res.Error)
	}
	if res.CommitHash != "deadbeef01" {
		t.Errorf("expected commit deadbeef01, got %q", res.CommitHash)
	}

	merged, err := m.PullRequest(pr.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if merged.Status != models.PRStatusMerged {
		t.Errorf("expected merged, got %s", merged.Status)
	}
}

func TestApproveUnknownPR(t *testing.T) {
	m := newTestMerger(t, newFakeRunner())
	if err := m.ApprovePullRequest("run-1", "pr-missing"); err == nil {
		t.Fatal("expected error for unknown PR")
	}
}

func TestClosePullRequest(t *testing.T) {
	runner := newFakeRunner()
	m := newTestMerger(t, runner)

	pr, err := m.CreatePullRequest(context.Background(), PROptions{
		Source: "develop", Target: "main", Ticket: "T-2",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.ClosePullRequest("", pr.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := m.PullRequest(pr.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Status != models.PRStatusClosed {
		t.Errorf("expected closed, got %s", got.Status)
	}
	// A closed PR cannot be approved or merged.
	if err := m.ApprovePullRequest("", pr.ID); err == nil {
		t.Error("expected approve of closed PR to fail")
	}
	if res := m.MergePullRequest(context.Background(), "", pr.ID); res.Success {
		t.Error("expected merge of closed PR to fail")
	}
}

func TestPullRequestIDsUnique(t *testing.T) {
	m := newTestMerger(t, newFakeRunner())
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		pr, err := m.CreatePullRequest(context.Background(), PROptions{
			Source: "develop", Target: "main", Ticket: "T-3",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[pr.ID] {
			t.Fatalf("duplicate PR id %s", pr.ID)
		}
		seen[pr.ID] = true
	}
	if len(m.PullRequests()) != 10 {
		t.Errorf("expected 10 PRs, got %d", len(m.PullRequests()))
	}
}
