// Package models defines the core data structures shared across taskforge.
package models

import "time"

// Worktree represents a Git worktree with its associated metadata.
type Worktree struct {
	Path       string    `json:"path"`        // Absolute path to the worktree directory
	Branch     string    `json:"branch"`      // Branch name associated with this worktree
	CommitHash string    `json:"commit_hash"` // Current HEAD commit hash
	IsMain     bool      `json:"is_main"`     // Whether this is the main worktree
	CreatedAt  time.Time `json:"created_at"`  // Creation timestamp
}

// Branch represents a Git branch with its metadata.
type Branch struct {
	Name       string     `json:"name"`
	IsCurrent  bool       `json:"is_current"`
	IsRemote   bool       `json:"is_remote"`
	LastCommit CommitInfo `json:"last_commit"`
}

// CommitInfo contains information about a Git commit.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// GitStatus contains detailed git status information for a workspace.
type GitStatus struct {
	Modified  int `json:"modified"`
	Added     int `json:"added"`
	Deleted   int `json:"deleted"`
	Untracked int `json:"untracked"`
	Staged    int `json:"staged"`
	Ahead     int `json:"ahead"`
	Behind    int `json:"behind"`
	Conflicts int `json:"conflicts"`
}

// Config is the application configuration loaded by internal/config.
type Config struct {
	Worktree WorktreeConfig `mapstructure:"worktree"`
	Naming   NamingConfig   `mapstructure:"naming"`
	UI       UIConfig       `mapstructure:"ui"`
	Tmux     TmuxConfig     `mapstructure:"tmux"`
	Finder   FinderConfig   `mapstructure:"finder"`
	Run      RunConfig      `mapstructure:"run"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// WorktreeConfig contains worktree-specific configuration options.
type WorktreeConfig struct {
	BaseDir   string `mapstructure:"basedir"`
	AutoMkdir bool   `mapstructure:"auto_mkdir"`
}

// NamingConfig contains worktree/branch naming convention configuration.
type NamingConfig struct {
	SanitizeChars map[string]string `mapstructure:"sanitize_chars"`
}

// UIConfig contains UI-related configuration options.
type UIConfig struct {
	Icons     bool `mapstructure:"icons"`
	TildeHome bool `mapstructure:"tilde_home"`
}

// TmuxConfig contains tmux session management configuration used for the
// optional live-attach observability path.
type TmuxConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	TmuxCommand    string `mapstructure:"tmux_command"`
	HistoryLimit   int    `mapstructure:"history_limit"`
	DetachOnCreate bool   `mapstructure:"detach_on_create"`
}

// FinderConfig contains fuzzy finder configuration options, used by the
// `tforge logs` task picker.
type FinderConfig struct {
	Preview       bool   `mapstructure:"preview"`
	KeybindSelect string `mapstructure:"keybind_select"`
	KeybindCancel string `mapstructure:"keybind_cancel"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RunConfig holds the default RunContext values read from the config file;
// CLI flags and Plan-specific overrides take precedence over these.
type RunConfig struct {
	ConcurrencyCap     int      `mapstructure:"concurrency_cap"`
	PerTaskTimeoutMs   int      `mapstructure:"per_task_timeout_ms"`
	MaxRetries         int      `mapstructure:"max_retries"`
	RetryableKinds     []string `mapstructure:"retryable_kinds"`
	VcsMode            string   `mapstructure:"vcs_mode"`
	StackingStrategy   string   `mapstructure:"stacking_strategy"`
	ConflictPolicy     string   `mapstructure:"conflict_policy"`
	ValidationMode     string   `mapstructure:"validation_mode"`
	CleanupOnSuccess   bool     `mapstructure:"cleanup_on_success"`
	CleanupOnFailure   bool     `mapstructure:"cleanup_on_failure"`
	BranchPrefix       string   `mapstructure:"branch_prefix"`
	ShadowPath         string   `mapstructure:"shadow_path"`
	BaseRef            string   `mapstructure:"base_ref"`
	Trunk              string   `mapstructure:"trunk"`
	Submit             bool     `mapstructure:"submit"`
	Draft              bool     `mapstructure:"draft"`
	AutoMerge          bool     `mapstructure:"auto_merge"`
	AgentExecutable    string   `mapstructure:"agent_executable"`
}
