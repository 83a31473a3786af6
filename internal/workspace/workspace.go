// Package workspace allocates isolated per-project working directories and
// per-task branches.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/internal/gitops"
)

// Manager allocates project workspaces under a root directory.
type Manager struct {
	root string
}

// NewManager creates a workspace manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// sanitize keeps path-safe characters of a project id.
func sanitize(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ProjectDir returns the working directory for a project id. The mapping
// is deterministic: the same id always yields the same path, and distinct
// ids yield distinct paths (a digest suffix disambiguates ids that
// sanitize to the same name).
func (m *Manager) ProjectDir(projectID string) (string, error) {
	if strings.TrimSpace(projectID) == "" {
		return "", errkind.Errorf(errkind.InvalidInput, "project id is empty")
	}
	sum := sha256.Sum256([]byte(projectID))
	name := sanitize(projectID) + "-" + hex.EncodeToString(sum[:4])
	return filepath.Join(m.root, "projects", name), nil
}

// Allocate returns the project directory, creating it if needed.
func (m *Manager) Allocate(projectID string) (string, error) {
	dir, err := m.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// TaskBranch returns the branch name for a sub-task, following the
// agent/<ticket>-<slug> contract.
func (m *Manager) TaskBranch(ticketID, description string) string {
	return gitops.BranchName(ticketID, description)
}
