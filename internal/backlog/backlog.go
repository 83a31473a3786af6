// Package backlog persists sub-tasks as frontmatter markdown files under
// workflows/backlog/, the durable form of the decomposed plan.
package backlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// Store reads and writes backlog entries under a project root.
type Store struct {
	root string
}

// NewStore creates a backlog store rooted at the project directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Dir returns the backlog directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, "workflows", "backlog")
}

// Path returns the file path for a sub-task id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.Dir(), id+".md")
}

// frontmatter is the YAML header of a backlog entry.
type frontmatter struct {
	ID       string `yaml:"id"`
	ParentID string `yaml:"parent_id"`
	Status   string `yaml:"status"`
	Assignee string `yaml:"assignee"`
	Created  string `yaml:"created"`
	Updated  string `yaml:"updated"`
}

// Save writes one sub-task as a markdown file with YAML frontmatter.
// The id and parent id must be non-empty.
func (s *Store) Save(t *models.SubTask) error {
	if t == nil || strings.TrimSpace(t.ID) == "" {
		return errkind.Errorf(errkind.InvalidInput, "sub-task id is empty")
	}
	if strings.TrimSpace(t.ParentID) == "" {
		return errkind.Errorf(errkind.InvalidInput, "sub-task %s has no parent id", t.ID)
	}
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.Path(t.ID), []byte(render(t)), 0o644)
}

// SaveAll persists every sub-task, stopping on the first error.
func (s *Store) SaveAll(tasks []*models.SubTask) error {
	for _, t := range tasks {
		if err := s.Save(t); err != nil {
			return err
		}
	}
	return nil
}

// render produces the markdown body for a sub-task.
func render(t *models.SubTask) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: '%s'\n", t.ID)
	fmt.Fprintf(&b, "parent_id: '%s'\n", t.ParentID)
	fmt.Fprintf(&b, "status: %s\n", t.Status)
	fmt.Fprintf(&b, "assignee: '%s'\n", t.Assignee)
	fmt.Fprintf(&b, "created: %s\n", t.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "updated: %s\n", t.UpdatedAt.UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", t.Title)

	b.WriteString("## Purpose\n\n")
	fmt.Fprintf(&b, "%s\n\n", t.Description)

	b.WriteString("## Scope\n\n_TBD_\n\n")

	b.WriteString("## DoD\n\n")
	if len(t.AcceptanceCriteria) == 0 {
		b.WriteString("- [ ] Implementation complete and verified\n")
	} else {
		for _, c := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", c)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Risk\n\n")
	b.WriteString("| Risk | Mitigation |\n")
	b.WriteString("| ---- | ---------- |\n")
	b.WriteString("| TBD  | TBD        |\n\n")

	b.WriteString("## Rollback\n\n_TBD_\n\n")

	b.WriteString("## Work Log\n\n")
	fmt.Fprintf(&b, "### %s\n\n", t.CreatedAt.UTC().Format("2006-01-02"))
	b.WriteString("- Created from decomposition.\n")

	return b.String()
}

// Entry is a loaded backlog file: the parsed header plus raw body.
type Entry struct {
	ID       string
	ParentID string
	Status   models.SubTaskStatus
	Assignee string
	Created  time.Time
	Updated  time.Time
	Title    string
	Body     string
}

// Load parses one backlog file.
func (s *Store) Load(id string) (*Entry, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, err
	}
	return parse(string(data))
}

// LoadAll parses every backlog file in the directory.
func (s *Store) LoadAll() ([]*Entry, error) {
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*Entry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir(), e.Name()))
		if err != nil {
			return nil, err
		}
		entry, err := parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// parse splits frontmatter from body and decodes the header.
func parse(content string) (*Entry, error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return nil, errkind.Errorf(errkind.InvalidInput, "missing frontmatter")
	}
	header, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return nil, errkind.Errorf(errkind.InvalidInput, "unterminated frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, errkind.Wrap(errkind.InvalidInput, err)
	}

	entry := &Entry{
		ID:       fm.ID,
		ParentID: fm.ParentID,
		Status:   models.SubTaskStatus(fm.Status),
		Assignee: fm.Assignee,
		Body:     strings.TrimSpace(body),
	}
	if t, err := time.Parse(time.RFC3339, fm.Created); err == nil {
		entry.Created = t
	}
	if t, err := time.Parse(time.RFC3339, fm.Updated); err == nil {
		entry.Updated = t
	}
	for _, line := range strings.Split(body, "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			entry.Title = strings.TrimSpace(title)
			break
		}
	}
	return entry, nil
}
