package decompose

import (
	"strings"

	"github.com/kawanishi0117/agent-company-sub000/internal/graph"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// AnalyzeDependencies detects dependency edges between sub-tasks by
// textual reference: task A depends on B when A's description or
// acceptance text contains "after <B title>" or "depends on <B title>",
// case-insensitive. The heuristic is deliberately conservative and may
// under-detect. The detected edges are written into each sub-task's
// Dependencies field and the built graph is returned.
func AnalyzeDependencies(tasks []*models.SubTask) *graph.DependencyGraph {
	for _, a := range tasks {
		text := strings.ToLower(a.Description + " " + strings.Join(a.AcceptanceCriteria, " "))
		for _, b := range tasks {
			if a.ID == b.ID {
				continue
			}
			title := strings.ToLower(strings.TrimSpace(b.Title))
			if title == "" {
				continue
			}
			if strings.Contains(text, "after "+title) || strings.Contains(text, "depends on "+title) {
				a.Dependencies = append(a.Dependencies, b.ID)
			}
		}
	}

	g := graph.New()
	g.Build(tasks)
	return g
}
