package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kawanishi0117/agent-company-sub000/internal/state"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worker pool and task state",
	Long: `Display the persisted state of the orchestrator.

Shows:
  - Workers, their health scores and failure counters
  - Sub-task counts per status
  - Pull requests and their lifecycle state`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No recorded state. Run 'agentco run <instruction>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	workers, err := db.GetWorkers()
	if err != nil {
		return err
	}

	fmt.Printf("Workers (%d):\n", len(workers))
	for _, w := range workers {
		marker := color.GreenString("●")
		switch w.Status {
		case models.WorkerStatusWorking:
			marker = color.CyanString("●")
		case models.WorkerStatusError:
			marker = color.RedString("●")
		case models.WorkerStatusTerminated:
			marker = color.New(color.Faint).Sprint("●")
		}
		fmt.Printf("  %s %-28s %-10s health=%3.0f done=%d failed=%d streak=%d\n",
			marker, w.Name, w.Status, w.HealthScore, w.CompletedCount, w.FailedCount, w.ConsecutiveFailures)
	}
	return nil
}
