// Package config provides configuration management for taskforge, loading
// a TOML file of run defaults into models.Config and assembling the
// per-run models.RunContext from it. Grounded on the teacher's
// internal/config/config.go viper/TOML wiring, generalized from gwq's
// worktree-naming/tmux/claude defaults to taskforge's run/vcs/stack/scope
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taskforge/taskforge/pkg/models"
	"github.com/taskforge/taskforge/pkg/utils"
)

const (
	configName = "config"
	configType = "toml"
)

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskforge")
	}
	return filepath.Join(home, ".config", "taskforge")
}

// Init initializes the configuration system, creating a default config file
// if one doesn't already exist.
func Init() error {
	configDir := getConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.SetConfigName(configName)
	viper.SetConfigType(configType)
	viper.AddConfigPath(configDir)

	viper.SetDefault("worktree.basedir", "~/.taskforge/worktrees")
	viper.SetDefault("worktree.auto_mkdir", true)
	viper.SetDefault("naming.sanitize_chars", map[string]string{
		"/": "-",
		":": "-",
	})
	viper.SetDefault("ui.icons", true)
	viper.SetDefault("ui.tilde_home", true)
	viper.SetDefault("tmux.enabled", false)
	viper.SetDefault("tmux.tmux_command", "tmux")
	viper.SetDefault("tmux.history_limit", 50000)
	viper.SetDefault("tmux.detach_on_create", true)
	viper.SetDefault("finder.preview", true)
	viper.SetDefault("finder.keybind_select", "enter")
	viper.SetDefault("finder.keybind_cancel", "esc")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")

	viper.SetDefault("run.concurrency_cap", 4)
	viper.SetDefault("run.per_task_timeout_ms", int((2 * time.Hour).Milliseconds()))
	viper.SetDefault("run.max_retries", 1)
	viper.SetDefault("run.retryable_kinds", []string{"timeout", "nonzero_exit"})
	viper.SetDefault("run.vcs_mode", "worktree-parallel")
	viper.SetDefault("run.stacking_strategy", "dependency-order")
	viper.SetDefault("run.conflict_policy", "manual")
	viper.SetDefault("run.validation_mode", "strict")
	viper.SetDefault("run.cleanup_on_success", true)
	viper.SetDefault("run.cleanup_on_failure", false)
	viper.SetDefault("run.branch_prefix", "taskforge")
	viper.SetDefault("run.shadow_path", "~/.taskforge/shadow")
	viper.SetDefault("run.base_ref", "HEAD")
	viper.SetDefault("run.trunk", "main")
	viper.SetDefault("run.submit", false)
	viper.SetDefault("run.draft", false)
	viper.SetDefault("run.auto_merge", false)
	viper.SetDefault("run.agent_executable", "claude")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			configPath := filepath.Join(configDir, configName+"."+configType)
			if err := viper.SafeWriteConfig(); err != nil {
				if err := viper.WriteConfigAs(configPath); err != nil {
					return fmt.Errorf("failed to create config file: %w", err)
				}
			}
		} else {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

// Load loads and returns the current configuration, expanding home-relative
// path defaults the same way the teacher does for worktree.basedir.
func Load() (*models.Config, error) {
	var cfg models.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Worktree.BaseDir = expandHome(cfg.Worktree.BaseDir)
	cfg.Run.ShadowPath = expandHome(cfg.Run.ShadowPath)

	return &cfg, nil
}

// Get returns the current loaded configuration, falling back to viper's
// registered defaults if no config file could be read.
func Get() *models.Config {
	cfg, err := Load()
	if err != nil {
		var defaultCfg models.Config
		if err := viper.Unmarshal(&defaultCfg); err != nil {
			return &models.Config{}
		}
		defaultCfg.Worktree.BaseDir = expandHome(defaultCfg.Worktree.BaseDir)
		defaultCfg.Run.ShadowPath = expandHome(defaultCfg.Run.ShadowPath)
		return &defaultCfg
	}
	return cfg
}

// Set sets a configuration value by key and persists it to disk.
func Set(key string, value any) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

// GetValue retrieves a configuration value by key.
func GetValue(key string) any {
	return viper.Get(key)
}

// AllSettings returns all configuration settings.
func AllSettings() map[string]any {
	return viper.AllSettings()
}

// expandHome expands "~" and environment variables in path, falling back to
// the input unchanged if the home directory can't be resolved. Unlike
// utils.ExpandPath it deliberately does not force the result absolute:
// config-file paths like ShadowPath are meant to stay relative to repoRoot
// when the user wrote them that way, so the absolute-path step is only
// applied when a "~" was actually present.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return os.ExpandEnv(path)
	}
	expanded, err := utils.ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ToRunContext maps the loaded RunConfig's string-typed fields onto a fresh
// models.RunContext, resolving repoRoot and the event sink which are
// supplied at run time rather than read from disk.
func ToRunContext(cfg *models.Config, repoRoot string, eventSink chan<- models.Event) *models.RunContext {
	r := cfg.Run
	return &models.RunContext{
		ConcurrencyCap:   r.ConcurrencyCap,
		PerTaskTimeout:   time.Duration(r.PerTaskTimeoutMs) * time.Millisecond,
		RetryPolicy:      models.NewRetryPolicy(r.MaxRetries, r.RetryableKinds),
		VcsMode:          models.VcsMode(r.VcsMode),
		StackingStrategy: models.StackingStrategy(r.StackingStrategy),
		ConflictPolicy:   models.ConflictPolicy(r.ConflictPolicy),
		ValidationMode:   models.ValidationMode(r.ValidationMode),
		CleanupOnSuccess: r.CleanupOnSuccess,
		CleanupOnFailure: r.CleanupOnFailure,
		BranchPrefix:     r.BranchPrefix,
		ShadowPath:       expandHome(r.ShadowPath),
		BaseRef:          r.BaseRef,
		Trunk:            r.Trunk,
		Submit:           r.Submit,
		Draft:            r.Draft,
		AutoMerge:        r.AutoMerge,
		AgentExecutable:  r.AgentExecutable,
		RepoRoot:         repoRoot,
		EventSink:        eventSink,
	}
}
