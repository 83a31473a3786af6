// Package gitops encapsulates every git operation the core performs:
// clone, branch isolation, staging, commits, merges, conflict inspection
// and auto-resolution, and host-key validation. Every operation appends to
// the per-run audit log at runtime/runs/<run-id>/git.log.
package gitops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/exec"
	"github.com/kawanishi0117/agent-company-sub000/internal/runlog"
)

// Operation timeouts.
const (
	TimeoutClone   = 300 * time.Second
	TimeoutBranch  = 60 * time.Second
	TimeoutPush    = 120 * time.Second
	TimeoutMerge   = 120 * time.Second
	TimeoutKeyscan = 30 * time.Second
	TimeoutStatus  = 30 * time.Second
)

// Manager wraps a ProcessRunner to expose git operations against one
// repository working directory.
type Manager struct {
	repoPath   string
	runner     exec.ProcessRunner
	log        *runlog.Logger
	auth       *AuthProvider
	knownHosts *KnownHostsValidator
}

// New creates a Manager for the repository at repoPath. The logger may be
// a no-op logger; it must not be nil.
func New(repoPath string, runner exec.ProcessRunner, log *runlog.Logger) *Manager {
	if log == nil {
		log = runlog.Nop()
	}
	return &Manager{
		repoPath:   repoPath,
		runner:     runner,
		log:        log,
		knownHosts: NewKnownHostsValidator(runner),
	}
}

// RepoPath returns the repository working directory.
func (m *Manager) RepoPath() string { return m.repoPath }

// KnownHosts returns the host-key validator.
func (m *Manager) KnownHosts() *KnownHostsValidator { return m.knownHosts }

// run executes a git command, records the audit log line, and returns
// trimmed output.
func (m *Manager) run(ctx context.Context, op string, timeout time.Duration, args ...string) (string, error) {
	out, err := m.runRaw(ctx, op, timeout, args...)
	return strings.TrimSpace(out), err
}

// runRaw is run without the output trim. Stage contents go through here;
// they must stay byte-exact or the three-way comparison misjudges sides
// that differ only in whitespace.
func (m *Manager) runRaw(ctx context.Context, op string, timeout time.Duration, args ...string) (string, error) {
	req := exec.Request{
		Name:    "git",
		Args:    args,
		Dir:     m.repoPath,
		Timeout: timeout,
	}
	if m.auth != nil {
		req.Env = m.auth.Env(m.knownHosts.FilePath())
	}

	start := time.Now()
	res, err := m.runner.Run(ctx, req)
	dur := time.Since(start).Milliseconds()

	detail := strings.Join(args, " ")
	if err != nil {
		reason := err.Error()
		if res != nil && res.Stderr != "" {
			reason = strings.TrimSpace(res.Stderr)
		}
		m.log.Log("[%s] %s [FAILED: %s] [%dms]", op, detail, firstLine(reason), dur)
		if res != nil {
			return res.Stdout + res.Stderr, fmt.Errorf("git %s: %w: %s", detail, err, strings.TrimSpace(res.Stderr))
		}
		return "", fmt.Errorf("git %s: %w", detail, err)
	}

	m.log.Log("[%s] %s [SUCCESS] [%dms]", op, detail, dur)
	return res.Stdout, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Clone clones a repository URL into the manager's working directory.
// SSH URLs require prior host-key validation; a validation failure is
// fatal to the clone it guards.
func (m *Manager) Clone(ctx context.Context, url string) error {
	if host := sshHost(url); host != "" {
		if err := m.knownHosts.Validate(ctx, host); err != nil {
			m.log.Log("[clone] %s [FAILED: %s] [0ms]", url, firstLine(err.Error()))
			return err
		}
	}
	if m.auth != nil {
		url = m.auth.InjectToken(url)
	}
	_, err := m.run(ctx, "clone", TimeoutClone, "clone", url, m.repoPath)
	return err
}

// sshHost extracts the host from an SSH-style git URL, or returns empty
// for HTTPS and local paths.
func sshHost(url string) string {
	if strings.HasPrefix(url, "ssh://") {
		rest := strings.TrimPrefix(url, "ssh://")
		if at := strings.Index(rest, "@"); at >= 0 {
			rest = rest[at+1:]
		}
		for i, r := range rest {
			if r == '/' || r == ':' {
				return rest[:i]
			}
		}
		return rest
	}
	// scp-like syntax: git@host:path
	if at := strings.Index(url, "@"); at > 0 && !strings.Contains(url[:at], "/") {
		rest := url[at+1:]
		if colon := strings.Index(rest, ":"); colon > 0 {
			return rest[:colon]
		}
	}
	return ""
}

// CurrentBranch returns the name of the current branch.
func (m *Manager) CurrentBranch(ctx context.Context) (string, error) {
	return m.run(ctx, "rev-parse", TimeoutStatus, "rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranch creates a new branch without switching to it.
func (m *Manager) CreateBranch(ctx context.Context, name string) error {
	_, err := m.run(ctx, "branch", TimeoutBranch, "branch", name)
	return err
}

// Checkout switches to the named branch.
func (m *Manager) Checkout(ctx context.Context, name string) error {
	_, err := m.run(ctx, "checkout", TimeoutBranch, "checkout", name)
	return err
}

// CreateAndCheckout creates and switches to a new branch (git checkout -b).
func (m *Manager) CreateAndCheckout(ctx context.Context, name string) error {
	_, err := m.run(ctx, "checkout", TimeoutBranch, "checkout", "-b", name)
	return err
}

// Stage stages the given paths for commit.
func (m *Manager) Stage(ctx context.Context, paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := m.run(ctx, "stage", TimeoutBranch, args...)
	return err
}

// Commit creates a commit with the given message.
func (m *Manager) Commit(ctx context.Context, message string) error {
	_, err := m.run(ctx, "commit", TimeoutBranch, "commit", "-m", message)
	return err
}

// CommitTask creates a commit using the ticket commit-message contract.
func (m *Manager) CommitTask(ctx context.Context, ticketID, description string) error {
	return m.Commit(ctx, CommitMessage(ticketID, description))
}

// Push pushes the named branch to origin.
func (m *Manager) Push(ctx context.Context, branch string) error {
	_, err := m.run(ctx, "push", TimeoutPush, "push", "origin", branch)
	return err
}

// Merge merges the named branch into the current branch with a custom
// message, creating a merge commit.
func (m *Manager) Merge(ctx context.Context, branch, message string) (string, error) {
	out, err := m.run(ctx, "merge", TimeoutMerge, "merge", "--no-ff", "-m", message, branch)
	if err != nil {
		return out, err
	}
	return m.Head(ctx)
}

// MergeAbort aborts an in-progress merge.
func (m *Manager) MergeAbort(ctx context.Context) error {
	_, err := m.run(ctx, "merge", TimeoutMerge, "merge", "--abort")
	return err
}

// Head returns the current commit hash.
func (m *Manager) Head(ctx context.Context) (string, error) {
	return m.run(ctx, "rev-parse", TimeoutStatus, "rev-parse", "HEAD")
}

// Status returns the output of git status --porcelain.
func (m *Manager) Status(ctx context.Context) (string, error) {
	return m.run(ctx, "status", TimeoutStatus, "status", "--porcelain")
}

// ChangedFiles returns the paths with uncommitted or staged changes.
func (m *Manager) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 3 {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return files, nil
}

// ChangedFilesBetween returns files changed between two refs.
func (m *Manager) ChangedFilesBetween(ctx context.Context, ref1, ref2 string) ([]string, error) {
	out, err := m.run(ctx, "diff", TimeoutStatus, "diff", "--name-only", ref1, ref2)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CommitCountBetween returns the number of commits on branch not on base.
func (m *Manager) CommitCountBetween(ctx context.Context, base, branch string) (int, error) {
	out, err := m.run(ctx, "rev-list", TimeoutStatus, "rev-list", "--count", base+".."+branch)
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscanf(out, "%d", &n); err != nil {
		return 0, fmt.Errorf("parse commit count %q: %w", out, err)
	}
	return n, nil
}

// ConflictedFiles returns paths with unmerged changes.
func (m *Manager) ConflictedFiles(ctx context.Context) ([]string, error) {
	out, err := m.run(ctx, "diff", TimeoutStatus, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ShowStage returns the content of a conflicted file at an index stage
// (1 = base, 2 = ours, 3 = theirs), byte-exact. Missing stages return
// empty content.
func (m *Manager) ShowStage(ctx context.Context, stage int, path string) (string, bool) {
	out, err := m.runRaw(ctx, "show", TimeoutStatus, "show", fmt.Sprintf(":%d:%s", stage, path))
	if err != nil {
		return "", false
	}
	return out, true
}
