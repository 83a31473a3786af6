package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPathDefaults(t *testing.T) {
	path := writeConfig(t, "adapter:\n  backend: anthropic\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Pool.MinWorkers != 1 || cfg.Pool.MaxWorkers != 5 {
		t.Errorf("pool = %d/%d, want 1/5", cfg.Pool.MinWorkers, cfg.Pool.MaxWorkers)
	}
	if cfg.Scaling.ScaleUpThreshold != 2.0 {
		t.Errorf("scale_up_threshold = %v, want 2.0", cfg.Scaling.ScaleUpThreshold)
	}
	if cfg.Scaling.Cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cfg.Scaling.Cooldown)
	}
	if cfg.Scaling.MonitorInterval != 2*time.Second {
		t.Errorf("monitor_interval = %v, want 2s", cfg.Scaling.MonitorInterval)
	}
	if cfg.Decompose.MaxSubTasks != 10 {
		t.Errorf("max_subtasks = %d, want 10", cfg.Decompose.MaxSubTasks)
	}
	if cfg.Merge.IntegrationBranch != "develop" {
		t.Errorf("integration_branch = %s, want develop", cfg.Merge.IntegrationBranch)
	}
	if cfg.Merge.ReleaseBranch != "main" {
		t.Errorf("release_branch = %s, want main", cfg.Merge.ReleaseBranch)
	}
	if cfg.Git.AuthMethod != "token" {
		t.Errorf("auth_method = %s, want token", cfg.Git.AuthMethod)
	}
}

func TestLoadFromPathOverrides(t *testing.T) {
	path := writeConfig(t, `
adapter:
  backend: ollama
  model: qwen2.5-coder
  ollama_host: http://localhost:11434
pool:
  min_workers: 2
  max_workers: 8
scaling:
  scale_up_threshold: 3.5
  cooldown: 1m
decompose:
  max_subtasks: 6
merge:
  integration_branch: staging
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Adapter.Backend != "ollama" || cfg.Adapter.Model != "qwen2.5-coder" {
		t.Errorf("adapter = %+v", cfg.Adapter)
	}
	if cfg.Pool.MaxWorkers != 8 {
		t.Errorf("max_workers = %d, want 8", cfg.Pool.MaxWorkers)
	}
	if cfg.Scaling.ScaleUpThreshold != 3.5 {
		t.Errorf("scale_up_threshold = %v, want 3.5", cfg.Scaling.ScaleUpThreshold)
	}
	if cfg.Scaling.Cooldown != time.Minute {
		t.Errorf("cooldown = %v, want 1m", cfg.Scaling.Cooldown)
	}
	if cfg.Decompose.MaxSubTasks != 6 {
		t.Errorf("max_subtasks = %d, want 6", cfg.Decompose.MaxSubTasks)
	}
	if cfg.Merge.IntegrationBranch != "staging" {
		t.Errorf("integration_branch = %s, want staging", cfg.Merge.IntegrationBranch)
	}
	// Untouched sections keep their defaults.
	if cfg.Scaling.ScaleDownThreshold != 0.5 {
		t.Errorf("scale_down_threshold = %v, want 0.5", cfg.Scaling.ScaleDownThreshold)
	}
}

func TestLoadFromPathExpandsEnvReferences(t *testing.T) {
	t.Setenv("TEST_AGENTCO_KEY", "sk-test-123")
	t.Setenv("TEST_AGENTCO_TOKEN", "ghp-test-456")
	path := writeConfig(t, `
adapter:
  api_key: ${TEST_AGENTCO_KEY}
git:
  token: ${TEST_AGENTCO_TOKEN}
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Adapter.APIKey != "sk-test-123" {
		t.Errorf("api_key = %q", cfg.Adapter.APIKey)
	}
	if cfg.Git.Token != "ghp-test-456" {
		t.Errorf("token = %q", cfg.Git.Token)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Adapter.Backend != "anthropic" {
		t.Errorf("backend = %s, want anthropic", cfg.Adapter.Backend)
	}
	if cfg.Pool.MinWorkers != 1 || cfg.Pool.MaxWorkers != 5 {
		t.Errorf("pool = %+v", cfg.Pool)
	}
	if cfg.Scaling.Cooldown != 30*time.Second {
		t.Errorf("cooldown = %v", cfg.Scaling.Cooldown)
	}
	if cfg.WorkDir == "" {
		t.Error("expected a default work dir")
	}
}
