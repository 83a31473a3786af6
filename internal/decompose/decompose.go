// Package decompose turns one operator instruction into a validated,
// acyclic set of sub-tasks, persisted to the backlog.
package decompose

import (
	"context"
	"strings"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/adapter"
	"github.com/kawanishi0117/agent-company-sub000/internal/backlog"
	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/internal/graph"
	"github.com/kawanishi0117/agent-company-sub000/internal/runlog"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// Options govern one decomposition call. The zero value is usable.
type Options struct {
	// MinSubTasks is the minimum accepted plan size (default 1).
	MinSubTasks int
	// MaxSubTasks is the maximum plan size; excess entries are truncated
	// (default 10).
	MaxSubTasks int
	// IncludeEstimates asks the model for effort estimates.
	IncludeEstimates bool
	// GenerateAcceptanceCriteria asks the model for acceptance criteria.
	GenerateAcceptanceCriteria bool
}

// withDefaults fills in zero fields.
func (o Options) withDefaults() Options {
	if o.MinSubTasks <= 0 {
		o.MinSubTasks = 1
	}
	if o.MaxSubTasks <= 0 {
		o.MaxSubTasks = 10
	}
	return o
}

// Context carries the project facts embedded in the prompt.
type Context struct {
	// ProjectID identifies the target project. Required.
	ProjectID string
	// TechStack lists the project's languages and frameworks.
	TechStack []string
	// Files lists paths relevant to the instruction.
	Files []string
	// Notes is free-form additional context.
	Notes string
}

// Result is the outcome of one decomposition.
type Result struct {
	// ParentID is the freshly generated parent task id.
	ParentID string
	// SubTasks is the validated plan, in model order.
	SubTasks []*models.SubTask
	// Graph is the dependency graph over the plan.
	Graph *graph.DependencyGraph
	// TokensUsed is the backend-reported token count.
	TokensUsed int64
	// DurationMS is the wall-clock time of the call in milliseconds.
	DurationMS int64
}

// Decomposer calls the model backend to split instructions into sub-tasks.
type Decomposer struct {
	ad    adapter.Adapter
	store *backlog.Store
	log   *runlog.Logger
}

// New creates a decomposer. The store may be nil to skip persistence.
func New(ad adapter.Adapter, store *backlog.Store) *Decomposer {
	return &Decomposer{ad: ad, store: store}
}

// SetLogger attaches a run logger. A nil logger discards output.
func (d *Decomposer) SetLogger(log *runlog.Logger) {
	d.log = log
}

// Decompose produces a plan for the instruction. The instruction must be
// non-empty after trimming and the context must carry a project id.
func (d *Decomposer) Decompose(ctx context.Context, instruction string, pctx Context, opts Options) (*Result, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, errkind.Errorf(errkind.InvalidInput, "instruction is empty")
	}
	if strings.TrimSpace(pctx.ProjectID) == "" {
		return nil, errkind.Errorf(errkind.InvalidInput, "project id is empty")
	}
	opts = opts.withDefaults()

	start := time.Now()
	resp, err := d.ad.Chat(ctx, []adapter.Message{
		{Role: adapter.RoleSystem, Content: systemPrompt},
		{Role: adapter.RoleUser, Content: buildUserPrompt(instruction, pctx, opts)},
	})
	if err != nil {
		return nil, err
	}

	entries, err := parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	if len(entries) < opts.MinSubTasks {
		return nil, errkind.Errorf(errkind.InsufficientSubtasks,
			"model produced %d sub-tasks, need at least %d", len(entries), opts.MinSubTasks)
	}
	if len(entries) > opts.MaxSubTasks {
		entries = entries[:opts.MaxSubTasks]
	}

	parentID := models.NewTaskID()
	now := time.Now().UTC()
	tasks := make([]*models.SubTask, len(entries))
	for i, e := range entries {
		tasks[i] = &models.SubTask{
			ID:                 models.SubTaskID(parentID, i+1),
			ParentID:           parentID,
			Title:              strings.TrimSpace(e.Title),
			Description:        strings.TrimSpace(e.Description),
			AcceptanceCriteria: normalizeCriteria(e.AcceptanceCriteria),
			EstimatedEffort:    models.NormalizeEffort(e.EstimatedEffort),
			Status:             models.SubTaskStatusPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}

	g := AnalyzeDependencies(tasks)

	if d.store != nil {
		if err := d.store.SaveAll(tasks); err != nil {
			return nil, err
		}
	}

	elapsed := time.Since(start).Milliseconds()
	d.log.Log("[decompose] %s -> %d sub-tasks, %d edges, cycle=%v [%dms]",
		parentID, len(tasks), g.EdgeCount(), g.HasCycle(), elapsed)

	return &Result{
		ParentID:   parentID,
		SubTasks:   tasks,
		Graph:      g,
		TokensUsed: resp.TokensUsed,
		DurationMS: elapsed,
	}, nil
}
