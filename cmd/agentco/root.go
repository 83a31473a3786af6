package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentco",
	Short: "Autonomous software-delivery orchestrator",
	Long: `Agentco runs an autonomous delivery pipeline: an instruction is
decomposed into sub-tasks, a managed worker pool executes them on
isolated git branches, and finished work flows through an integration
branch and an approval-gated pull request into the protected branch.

Core capabilities:
- Decomposes instructions into a dependency-aware sub-task plan
- Schedules sub-tasks onto a health-scored, auto-scaling worker pool
- Audits every git operation per run
- Merges via integration branch; protected branches only via approved PRs`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
