package graph

import (
	"reflect"
	"testing"

	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

func subTask(id string, deps ...string) *models.SubTask {
	return &models.SubTask{ID: id, Title: id, Status: models.SubTaskStatusPending, Dependencies: deps}
}

func TestBuildAndLookup(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{
		subTask("task-1-001"),
		subTask("task-1-002", "task-1-001"),
		subTask("task-1-003", "task-1-001", "task-1-002"),
	})

	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected 3 edges, got %d", g.EdgeCount())
	}
	if g.HasCycle() {
		t.Error("unexpected cycle")
	}
	if deps := g.Dependencies("task-1-003"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies, got %v", deps)
	}
	if got := g.Dependents("task-1-001"); !reflect.DeepEqual(got, []string{"task-1-002", "task-1-003"}) {
		t.Errorf("unexpected dependents %v", got)
	}
	if g.Task("task-1-002") == nil {
		t.Error("expected node lookup to succeed")
	}
	if g.Task("task-1-999") != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestBuildDropsUnknownDependencies(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{
		subTask("a", "ghost"),
		subTask("b", "a"),
	})
	if g.EdgeCount() != 1 {
		t.Errorf("expected unknown reference dropped, got %d edges", g.EdgeCount())
	}
}

func TestCycleDetection(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.SubTask
		want  bool
	}{
		{
			name:  "no edges",
			tasks: []*models.SubTask{subTask("a"), subTask("b")},
			want:  false,
		},
		{
			name:  "chain",
			tasks: []*models.SubTask{subTask("a"), subTask("b", "a"), subTask("c", "b")},
			want:  false,
		},
		{
			name:  "self loop",
			tasks: []*models.SubTask{subTask("a", "a")},
			want:  true,
		},
		{
			name:  "two node cycle",
			tasks: []*models.SubTask{subTask("a", "b"), subTask("b", "a")},
			want:  true,
		},
		{
			name: "cycle behind a chain",
			tasks: []*models.SubTask{
				subTask("a"),
				subTask("b", "a", "d"),
				subTask("c", "b"),
				subTask("d", "c"),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			g.Build(tt.tasks)
			if got := g.HasCycle(); got != tt.want {
				t.Errorf("HasCycle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParallelLevels(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{
		subTask("a"),
		subTask("b"),
		subTask("c", "a", "b"),
		subTask("d", "c"),
		subTask("e", "c"),
	})

	levels := g.ParallelLevels()
	want := [][]string{{"a", "b"}, {"c"}, {"d", "e"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("ParallelLevels() = %v, want %v", levels, want)
	}
}

func TestParallelLevelsIndependentTasksFormOneLevel(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{subTask("x"), subTask("y"), subTask("z")})

	levels := g.ParallelLevels()
	if len(levels) != 1 {
		t.Fatalf("expected 1 level, got %d: %v", len(levels), levels)
	}
	if !reflect.DeepEqual(levels[0], []string{"x", "y", "z"}) {
		t.Errorf("unexpected level %v", levels[0])
	}
}

func TestParallelLevelsCoverAllNodes(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{
		subTask("a"),
		subTask("b", "a"),
		subTask("c", "b"),
		subTask("d", "c"),
		subTask("e"),
	})

	seen := make(map[string]bool)
	for _, level := range g.ParallelLevels() {
		for _, id := range level {
			if seen[id] {
				t.Fatalf("id %s emitted twice", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != g.Size() {
		t.Errorf("levels cover %d nodes, graph has %d", len(seen), g.Size())
	}
}

func TestParallelLevelsCyclicRemainder(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{
		subTask("a"),
		subTask("b", "c"),
		subTask("c", "b"),
	})

	levels := g.ParallelLevels()
	want := [][]string{{"a"}, {"b", "c"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("ParallelLevels() = %v, want %v", levels, want)
	}
}

func TestReadyAndMarkComplete(t *testing.T) {
	g := New()
	g.Build([]*models.SubTask{
		subTask("a"),
		subTask("b", "a"),
		subTask("c", "a"),
		subTask("d", "b", "c"),
	})

	if got := g.Ready(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("initial ready = %v, want [a]", got)
	}

	g.MarkComplete("a")
	if got := g.Ready(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("after a: ready = %v, want [b c]", got)
	}

	g.MarkComplete("b")
	if got := g.Ready(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("after b: ready = %v, want [c]", got)
	}

	g.MarkComplete("c")
	if got := g.Ready(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Fatalf("after c: ready = %v, want [d]", got)
	}

	g.MarkComplete("d")
	if got := g.Ready(); len(got) != 0 {
		t.Fatalf("after all: ready = %v, want empty", got)
	}
}
