// Package config handles configuration loading for the orchestrator.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all orchestrator configuration.
type Config struct {
	Adapter   AdapterConfig   `mapstructure:"adapter"`
	Git       GitConfig       `mapstructure:"git"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Scaling   ScalingConfig   `mapstructure:"scaling"`
	Decompose DecomposeConfig `mapstructure:"decompose"`
	Merge     MergeConfig     `mapstructure:"merge"`
	WorkDir   string          `mapstructure:"work_dir"`
}

// AdapterConfig holds LLM backend settings.
type AdapterConfig struct {
	// Backend selects the adapter: anthropic or ollama.
	Backend string `mapstructure:"backend"`
	// Model is the model identifier for the selected backend.
	Model string `mapstructure:"model"`
	// APIKey authenticates the anthropic backend. Supports ${VAR}
	// references.
	APIKey string `mapstructure:"api_key"`
	// OllamaHost overrides OLLAMA_HOST for the ollama backend.
	OllamaHost string `mapstructure:"ollama_host"`
}

// GitConfig holds authentication and host-key settings.
type GitConfig struct {
	// AuthMethod is token, deploy_key, or ssh_agent.
	AuthMethod string `mapstructure:"auth_method"`
	// Token authenticates https remotes. Supports ${VAR} references.
	Token string `mapstructure:"token"`
	// DeployKeyPath is the private key for deploy_key auth.
	DeployKeyPath string `mapstructure:"deploy_key_path"`
	// AllowAgent permits ssh-agent forwarding.
	AllowAgent bool `mapstructure:"allow_agent"`
	// KnownHostsFile overrides the default known-hosts path.
	KnownHostsFile string `mapstructure:"known_hosts_file"`
}

// PoolConfig holds worker pool limits.
type PoolConfig struct {
	MinWorkers int `mapstructure:"min_workers"`
	MaxWorkers int `mapstructure:"max_workers"`
}

// ScalingConfig holds auto-scaling thresholds and intervals.
type ScalingConfig struct {
	ScaleUpThreshold   float64       `mapstructure:"scale_up_threshold"`
	ScaleDownThreshold float64       `mapstructure:"scale_down_threshold"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	Interval           time.Duration `mapstructure:"interval"`
	MonitorInterval    time.Duration `mapstructure:"monitor_interval"`
}

// DecomposeConfig holds decomposition limits.
type DecomposeConfig struct {
	MinSubTasks                int  `mapstructure:"min_subtasks"`
	MaxSubTasks                int  `mapstructure:"max_subtasks"`
	IncludeEstimates           bool `mapstructure:"include_estimates"`
	GenerateAcceptanceCriteria bool `mapstructure:"generate_acceptance_criteria"`
}

// MergeConfig holds merge and pull-request settings.
type MergeConfig struct {
	// IntegrationBranch receives agent branches (default develop).
	IntegrationBranch string `mapstructure:"integration_branch"`
	// ReleaseBranch is the protected branch pull requests target
	// (default main).
	ReleaseBranch string `mapstructure:"release_branch"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OLLAMA_HOST, GIT_TOKEN)
// 2. Project config (.agentco.yaml in current directory or parent)
// 3. User config (~/.config/agentco/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("adapter.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("adapter.ollama_host", "OLLAMA_HOST")
	v.BindEnv("git.token", "GIT_TOKEN")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Adapter.APIKey = os.ExpandEnv(cfg.Adapter.APIKey)
	cfg.Git.Token = os.ExpandEnv(cfg.Git.Token)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Adapter.APIKey = os.ExpandEnv(cfg.Adapter.APIKey)
	cfg.Git.Token = os.ExpandEnv(cfg.Git.Token)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("adapter.backend", cfg.Adapter.Backend)
	v.Set("adapter.model", cfg.Adapter.Model)
	v.Set("adapter.api_key", cfg.Adapter.APIKey)
	v.Set("adapter.ollama_host", cfg.Adapter.OllamaHost)
	v.Set("git.auth_method", cfg.Git.AuthMethod)
	v.Set("git.allow_agent", cfg.Git.AllowAgent)
	v.Set("git.known_hosts_file", cfg.Git.KnownHostsFile)
	v.Set("pool.min_workers", cfg.Pool.MinWorkers)
	v.Set("pool.max_workers", cfg.Pool.MaxWorkers)
	v.Set("scaling.scale_up_threshold", cfg.Scaling.ScaleUpThreshold)
	v.Set("scaling.scale_down_threshold", cfg.Scaling.ScaleDownThreshold)
	v.Set("scaling.cooldown", cfg.Scaling.Cooldown.String())
	v.Set("scaling.interval", cfg.Scaling.Interval.String())
	v.Set("scaling.monitor_interval", cfg.Scaling.MonitorInterval.String())
	v.Set("decompose.min_subtasks", cfg.Decompose.MinSubTasks)
	v.Set("decompose.max_subtasks", cfg.Decompose.MaxSubTasks)
	v.Set("merge.integration_branch", cfg.Merge.IntegrationBranch)
	v.Set("merge.release_branch", cfg.Merge.ReleaseBranch)
	v.Set("work_dir", cfg.WorkDir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("adapter.backend", "anthropic")
	v.SetDefault("adapter.model", "")
	v.SetDefault("adapter.api_key", "")
	v.SetDefault("adapter.ollama_host", "")

	v.SetDefault("git.auth_method", "token")
	v.SetDefault("git.allow_agent", false)

	v.SetDefault("pool.min_workers", 1)
	v.SetDefault("pool.max_workers", 5)

	v.SetDefault("scaling.scale_up_threshold", 2.0)
	v.SetDefault("scaling.scale_down_threshold", 0.5)
	v.SetDefault("scaling.cooldown", "30s")
	v.SetDefault("scaling.interval", "10s")
	v.SetDefault("scaling.monitor_interval", "2s")

	v.SetDefault("decompose.min_subtasks", 1)
	v.SetDefault("decompose.max_subtasks", 10)
	v.SetDefault("decompose.include_estimates", true)
	v.SetDefault("decompose.generate_acceptance_criteria", true)

	v.SetDefault("merge.integration_branch", "develop")
	v.SetDefault("merge.release_branch", "main")

	v.SetDefault("work_dir", defaultWorkDir())
}

// defaultWorkDir returns the XDG data directory for project workspaces.
func defaultWorkDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "agentco")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".agentco")
	}
	return filepath.Join(home, ".local", "share", "agentco")
}

// getUserConfigDir returns the XDG config directory.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "agentco")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "agentco")
	}
	return filepath.Join(home, ".config", "agentco")
}

// findProjectConfig searches for .agentco.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".agentco.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		Adapter: AdapterConfig{Backend: "anthropic"},
		Git:     GitConfig{AuthMethod: "token"},
		Pool:    PoolConfig{MinWorkers: 1, MaxWorkers: 5},
		Scaling: ScalingConfig{
			ScaleUpThreshold:   2.0,
			ScaleDownThreshold: 0.5,
			Cooldown:           30 * time.Second,
			Interval:           10 * time.Second,
			MonitorInterval:    2 * time.Second,
		},
		Decompose: DecomposeConfig{
			MinSubTasks:                1,
			MaxSubTasks:                10,
			IncludeEstimates:           true,
			GenerateAcceptanceCriteria: true,
		},
		Merge:   MergeConfig{IntegrationBranch: "develop", ReleaseBranch: "main"},
		WorkDir: defaultWorkDir(),
	}
}
