package backlog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

func sampleSubTask() *models.SubTask {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	return &models.SubTask{
		ID:                 "task-abc-001",
		ParentID:           "task-abc",
		Title:              "Implement login",
		Description:        "Add the login endpoint.",
		AcceptanceCriteria: []string{"returns 200 on valid credentials", "returns 401 otherwise"},
		Status:             models.SubTaskStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := NewStore(t.TempDir())
	st := sampleSubTask()

	if err := s.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	entry, err := s.Load(st.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if entry.ID != st.ID {
		t.Errorf("id = %s, want %s", entry.ID, st.ID)
	}
	if entry.ParentID != st.ParentID {
		t.Errorf("parent = %s, want %s", entry.ParentID, st.ParentID)
	}
	if entry.Status != models.SubTaskStatusPending {
		t.Errorf("status = %s, want pending", entry.Status)
	}
	if entry.Title != st.Title {
		t.Errorf("title = %q, want %q", entry.Title, st.Title)
	}
	if !entry.Created.Equal(st.CreatedAt) {
		t.Errorf("created = %v, want %v", entry.Created, st.CreatedAt)
	}
}

func TestRenderedSections(t *testing.T) {
	s := NewStore(t.TempDir())
	st := sampleSubTask()
	if err := s.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(s.Path(st.ID))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"# Implement login",
		"## Purpose",
		"## Scope",
		"## DoD",
		"- [ ] returns 200 on valid credentials",
		"- [ ] returns 401 otherwise",
		"## Risk",
		"## Rollback",
		"## Work Log",
		"### 2026-08-24",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in rendered ticket", want)
		}
	}
}

func TestDefaultDoDWhenNoCriteria(t *testing.T) {
	s := NewStore(t.TempDir())
	st := sampleSubTask()
	st.AcceptanceCriteria = nil
	if err := s.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, _ := os.ReadFile(s.Path(st.ID))
	if !strings.Contains(string(data), "- [ ] Implementation complete and verified") {
		t.Error("expected default DoD item")
	}
}

func TestSaveValidation(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Save(nil); errkind.CodeOf(err) != "INVALID_INPUT" {
		t.Errorf("nil task: code = %s, want INVALID_INPUT", errkind.CodeOf(err))
	}
	if err := s.Save(&models.SubTask{ID: "x"}); errkind.CodeOf(err) != "INVALID_INPUT" {
		t.Errorf("missing parent: code = %s, want INVALID_INPUT", errkind.CodeOf(err))
	}
}

func TestLoadAll(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, id := range []string{"task-abc-001", "task-abc-002", "task-abc-003"} {
		st := sampleSubTask()
		st.ID = id
		if err := s.Save(st); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	entries, err := s.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestLoadAllMissingDir(t *testing.T) {
	s := NewStore(t.TempDir())
	entries, err := s.LoadAll()
	if err != nil {
		t.Fatalf("expected nil error for missing dir, got %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}

func TestParseRejectsMissingFrontmatter(t *testing.T) {
	if _, err := parse("# Just a title\n"); err == nil {
		t.Error("expected error for missing frontmatter")
	}
	if _, err := parse("---\nid: 'x'\nno terminator"); err == nil {
		t.Error("expected error for unterminated frontmatter")
	}
}
