package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kawanishi0117/agent-company-sub000/internal/adapter"
	"github.com/kawanishi0117/agent-company-sub000/internal/backlog"
	"github.com/kawanishi0117/agent-company-sub000/internal/bus"
	"github.com/kawanishi0117/agent-company-sub000/internal/config"
	"github.com/kawanishi0117/agent-company-sub000/internal/decompose"
	"github.com/kawanishi0117/agent-company-sub000/internal/exec"
	"github.com/kawanishi0117/agent-company-sub000/internal/gitops"
	"github.com/kawanishi0117/agent-company-sub000/internal/manager"
	"github.com/kawanishi0117/agent-company-sub000/internal/merger"
	"github.com/kawanishi0117/agent-company-sub000/internal/state"
	"github.com/kawanishi0117/agent-company-sub000/internal/watch"
	"github.com/kawanishi0117/agent-company-sub000/internal/workspace"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

var (
	runProjectID string
	runWorkers   int
	runTimeout   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <instruction>",
	Short: "Decompose an instruction and drive it to completion",
	Long: `Run receives one instruction, decomposes it into sub-tasks,
hires the initial worker pool, and schedules sub-tasks as their
dependencies complete. Progress monitoring and auto-scaling run until
the parent task reaches a terminal state.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOrchestration,
}

func init() {
	runCmd.Flags().StringVar(&runProjectID, "project", "", "Project identifier (required)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Initial worker count (defaults to pool.min_workers)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Hour, "Overall run timeout")
	_ = runCmd.MarkFlagRequired("project")
}

// buildRegistry constructs the adapter registry from configuration. The
// first registered backend becomes the default.
func buildRegistry(cfg *config.Config) (*adapter.Registry, error) {
	reg := adapter.NewRegistry()

	switch cfg.Adapter.Backend {
	case "ollama":
		reg.Register(adapter.NewOllama(adapter.OllamaConfig{
			Host:  cfg.Adapter.OllamaHost,
			Model: cfg.Adapter.Model,
		}))
	default:
		a, err := adapter.NewAnthropic(adapter.AnthropicConfig{
			APIKey: cfg.Adapter.APIKey,
			Model:  anthropic.Model(cfg.Adapter.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("configure anthropic backend: %w", err)
		}
		reg.Register(a)
	}
	return reg, nil
}

func runOrchestration(cmd *cobra.Command, args []string) error {
	instruction := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	ad, err := registry.Default()
	if err != nil {
		return err
	}

	ws := workspace.NewManager(cfg.WorkDir)
	projectDir, err := ws.Allocate(runProjectID)
	if err != nil {
		return err
	}

	db, err := state.OpenProject(projectDir)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	store := backlog.NewStore(projectDir)
	decomposer := decompose.New(ad, store)
	msgBus := bus.NewBus(projectDir)

	project := models.Project{
		ID:                runProjectID,
		Name:              runProjectID,
		IntegrationBranch: cfg.Merge.IntegrationBranch,
		WorkDir:           projectDir,
	}
	mgr := manager.New(manager.Config{
		Project: project,
		Root:    projectDir,
		Scaling: manager.ScalingConfig{
			MinWorkers:         cfg.Pool.MinWorkers,
			MaxWorkers:         cfg.Pool.MaxWorkers,
			ScaleUpThreshold:   cfg.Scaling.ScaleUpThreshold,
			ScaleDownThreshold: cfg.Scaling.ScaleDownThreshold,
			Cooldown:           cfg.Scaling.Cooldown,
			Interval:           cfg.Scaling.Interval,
			MonitorInterval:    cfg.Scaling.MonitorInterval,
		},
	}, msgBus, decomposer, ad)

	watcher := watch.New(msgBus, projectDir, mgr.ID(), mgr)
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	parent := &models.ParentTask{
		ID:          models.NewTaskID(),
		ProjectID:   runProjectID,
		Instruction: instruction,
		Status:      models.ParentStatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := mgr.ReceiveTask(parent); err != nil {
		return err
	}
	if err := db.SaveParentTask(parent); err != nil {
		return err
	}

	fmt.Printf("%s decomposing %q\n", color.CyanString("▸"), instruction)
	if err := mgr.DecomposeTask(ctx, parent); err != nil {
		_ = db.SaveParentTask(parent)
		return err
	}
	_ = db.SaveParentTask(parent)

	initial := runWorkers
	if initial <= 0 {
		initial = cfg.Pool.MinWorkers
	}
	for i := 0; i < initial; i++ {
		if _, err := mgr.HireWorker(manager.WorkerSpec{Capabilities: []string{"general"}}); err != nil {
			break
		}
	}

	mgr.StartMonitoring(ctx)
	mgr.StartAutoScaling(ctx)
	defer mgr.Shutdown()

	fmt.Printf("%s executing %d sub-tasks with %d workers\n",
		color.CyanString("▸"), mgr.MonitorProgress().Total, mgr.PoolSize())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, st := range mgr.ReadySubTasks() {
			worker, ok := mgr.SelectBestWorkerForTask(st)
			if !ok {
				break
			}
			if err := mgr.AssignTask(ctx, st.ID, worker.ID); err != nil {
				continue
			}
			if snapshot, found := mgr.SubTask(st.ID); found {
				_ = db.SaveSubTask(snapshot)
			}
		}

		current := mgr.Parent()
		if current == nil {
			continue
		}
		if current.Status == models.ParentStatusReviewing {
			if err := integrate(ctx, cfg, mgr, ad, db, ws, projectDir, current); err != nil {
				fmt.Printf("%s integration: %v\n", color.RedString("✗"), err)
			} else {
				_ = mgr.FinishReview()
			}
			current = mgr.Parent()
		}
		if current.Status.Terminal() || current.Status == models.ParentStatusReviewing {
			_ = db.SaveParentTask(current)
			for _, w := range mgr.Workers() {
				_ = db.SaveWorker(w)
			}
			printOutcome(current, mgr.MonitorDetailedProgress())
			if current.Status == models.ParentStatusFailed {
				return fmt.Errorf("parent task %s failed", current.ID)
			}
			return nil
		}
	}
}

// integrate merges every completed agent branch into the integration
// branch and opens a pull request toward the release branch.
func integrate(ctx context.Context, cfg *config.Config, mgr *manager.Manager, ad adapter.Adapter, db *state.DB, ws *workspace.Manager, projectDir string, parent *models.ParentTask) error {
	git := gitops.New(projectDir, exec.NewRunner(), nil)
	mrg := merger.New(git, ad, projectDir, cfg.Merge.IntegrationBranch)
	runID := models.NewRunID()

	for _, st := range mgr.SubTasks() {
		if st.Status != models.SubTaskStatusCompleted {
			continue
		}
		branch := ws.TaskBranch(st.ID, st.Title)
		result := mrg.Merge(ctx, merger.MergeRequest{RunID: runID, Source: branch, Ticket: st.ID})
		if !result.Success {
			return fmt.Errorf("merge %s: %s", branch, result.Error)
		}
	}

	pr, err := mrg.CreatePullRequest(ctx, merger.PROptions{
		RunID:  runID,
		Source: cfg.Merge.IntegrationBranch,
		Target: cfg.Merge.ReleaseBranch,
		Ticket: parent.ID,
	})
	if err != nil {
		return err
	}
	if err := db.SavePullRequest(pr); err != nil {
		return err
	}
	fmt.Printf("%s opened %s: %s -> %s (%d files)\n",
		color.CyanString("▸"), pr.ID, pr.SourceBranch, pr.TargetBranch, len(pr.ChangedFiles))
	return nil
}

// printOutcome summarizes the finished run.
func printOutcome(parent *models.ParentTask, progress manager.DetailedProgress) {
	switch parent.Status {
	case models.ParentStatusFailed:
		fmt.Printf("%s parent task %s failed (%d/%d sub-tasks completed)\n",
			color.RedString("✗"), parent.ID, progress.Completed, progress.Total)
	default:
		fmt.Printf("%s parent task %s: %d/%d sub-tasks completed (%.0f%%)\n",
			color.GreenString("✓"), parent.ID, progress.Completed, progress.Total, progress.PercentComplete)
	}
}
