package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kawanishi0117/agent-company-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the merged configuration: built-in defaults, the user
config file, the project .agentco.yaml, and environment overrides.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("User config:    %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("Project config: %s\n", p)
	}
	fmt.Println()

	section := color.New(color.Bold)
	section.Println("adapter")
	fmt.Printf("  backend:            %s\n", cfg.Adapter.Backend)
	fmt.Printf("  model:              %s\n", orUnset(cfg.Adapter.Model))
	fmt.Printf("  api_key:            %s\n", maskSecret(cfg.Adapter.APIKey))

	section.Println("git")
	fmt.Printf("  auth_method:        %s\n", cfg.Git.AuthMethod)
	fmt.Printf("  allow_agent:        %v\n", cfg.Git.AllowAgent)

	section.Println("pool")
	fmt.Printf("  min_workers:        %d\n", cfg.Pool.MinWorkers)
	fmt.Printf("  max_workers:        %d\n", cfg.Pool.MaxWorkers)

	section.Println("scaling")
	fmt.Printf("  scale_up_threshold:   %.1f\n", cfg.Scaling.ScaleUpThreshold)
	fmt.Printf("  scale_down_threshold: %.1f\n", cfg.Scaling.ScaleDownThreshold)
	fmt.Printf("  cooldown:             %s\n", cfg.Scaling.Cooldown)
	fmt.Printf("  interval:             %s\n", cfg.Scaling.Interval)

	section.Println("decompose")
	fmt.Printf("  min_subtasks:       %d\n", cfg.Decompose.MinSubTasks)
	fmt.Printf("  max_subtasks:       %d\n", cfg.Decompose.MaxSubTasks)

	section.Println("merge")
	fmt.Printf("  integration_branch: %s\n", cfg.Merge.IntegrationBranch)

	fmt.Printf("\nwork_dir: %s\n", cfg.WorkDir)
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "…" + s[len(s)-4:]
}
