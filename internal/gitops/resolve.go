package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// resolution is the outcome of the three-way rules for one file.
type resolution struct {
	content  string
	resolved bool
}

// resolveThreeWay applies the auto-resolution rules to one file's stage
// contents. Empty content with a false presence flag means the side
// deleted the file.
func resolveThreeWay(base, ours, theirs string) resolution {
	switch {
	case ours == theirs:
		return resolution{content: ours, resolved: true}
	case ours == "" && theirs != "":
		// Change-vs-delete: keep the change.
		return resolution{content: theirs, resolved: true}
	case theirs == "" && ours != "":
		return resolution{content: ours, resolved: true}
	case ours == base && theirs != base:
		return resolution{content: theirs, resolved: true}
	case theirs == base && ours != base:
		return resolution{content: ours, resolved: true}
	default:
		return resolution{resolved: false}
	}
}

// AutoResolve inspects every conflicting file after a failed merge and
// applies the three-way rules. When all files resolve, it writes the
// resolved contents, stages them, and creates an automatic merge commit,
// returning (nil, true, nil). Otherwise conflict markers are left in place
// and a ConflictReport is returned for reviewer escalation.
func (m *Manager) AutoResolve(ctx context.Context, branch string) (*models.ConflictReport, bool, error) {
	files, err := m.ConflictedFiles(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(files) == 0 {
		return nil, true, nil
	}

	report := &models.ConflictReport{
		Timestamp: time.Now().UTC(),
		Branch:    branch,
		Total:     len(files),
	}

	resolved := make(map[string]string, len(files))
	allResolved := true

	for _, path := range files {
		base, hasBase := m.ShowStage(ctx, 1, path)
		ours, hasOurs := m.ShowStage(ctx, 2, path)
		theirs, hasTheirs := m.ShowStage(ctx, 3, path)

		res := resolveThreeWay(base, ours, theirs)
		report.Files = append(report.Files, models.ConflictFile{
			Path:           path,
			HasBase:        hasBase,
			HasOurs:        hasOurs,
			HasTheirs:      hasTheirs,
			AutoResolvable: res.resolved,
		})

		if res.resolved {
			resolved[path] = res.content
		} else {
			allResolved = false
		}
	}

	if !allResolved {
		unresolvable := 0
		for _, f := range report.Files {
			if !f.AutoResolvable {
				unresolvable++
			}
		}
		report.Summary = fmt.Sprintf("merge of %s left %d conflicting files, %d not auto-resolvable",
			branch, report.Total, unresolvable)
		m.log.Log("[auto-resolve] %s [FAILED: %d unresolvable] [0ms]", branch, unresolvable)
		return report, false, nil
	}

	for path, content := range resolved {
		full := filepath.Join(m.repoPath, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, false, errkind.Wrap(errkind.GitConflict, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return nil, false, errkind.Wrap(errkind.GitConflict, err)
		}
	}

	if err := m.Stage(ctx, files...); err != nil {
		return nil, false, errkind.Wrap(errkind.GitConflict, err)
	}
	if err := m.Commit(ctx, fmt.Sprintf("Auto-resolve merge of %s", branch)); err != nil {
		return nil, false, errkind.Wrap(errkind.GitConflict, err)
	}

	m.log.Log("[auto-resolve] %s [SUCCESS] [0ms]", branch)
	return nil, true, nil
}

// EscalationPayload is the structured message sent to the reviewer
// collaborator when auto-resolution fails.
type EscalationPayload struct {
	// Branch is the branch that failed to merge.
	Branch string `json:"branch"`
	// Report carries per-file resolvability flags.
	Report *models.ConflictReport `json:"report"`
	// Summary is a human-readable description.
	Summary string `json:"summary"`
}

// NewEscalationPayload builds the reviewer escalation for a failed
// auto-resolution.
func NewEscalationPayload(report *models.ConflictReport) *EscalationPayload {
	return &EscalationPayload{
		Branch:  report.Branch,
		Report:  report,
		Summary: report.Summary,
	}
}
