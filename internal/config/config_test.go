package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/taskforge/taskforge/pkg/models"
)

func TestGetConfigDir(t *testing.T) {
	dir := getConfigDir()
	if !filepath.IsAbs(dir) {
		t.Errorf("getConfigDir() should return absolute path, got %s", dir)
	}
	if filepath.Base(dir) != "taskforge" {
		t.Errorf("getConfigDir() should end with 'taskforge', got %s", dir)
	}
}

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))

	viper.Reset()
	t.Cleanup(func() { viper.Reset() })

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if viper.GetString("run.vcs_mode") != "worktree-parallel" {
		t.Errorf("default run.vcs_mode not set correctly")
	}
	if viper.GetInt("run.concurrency_cap") != 4 {
		t.Errorf("default run.concurrency_cap not set correctly")
	}
	if !viper.GetBool("worktree.auto_mkdir") {
		t.Errorf("default worktree.auto_mkdir should be true")
	}
	if !viper.GetBool("finder.preview") {
		t.Errorf("default finder.preview should be true")
	}
}

func TestLoad(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })
	viper.Set("worktree.basedir", "~/test-worktrees")
	viper.Set("worktree.auto_mkdir", false)
	viper.Set("finder.preview", false)
	viper.Set("run.vcs_mode", "stacked")
	viper.Set("run.concurrency_cap", 8)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Worktree.AutoMkdir {
		t.Errorf("WorktreeConfig.AutoMkdir = %v, want false", cfg.Worktree.AutoMkdir)
	}
	if cfg.Finder.Preview {
		t.Errorf("FinderConfig.Preview = %v, want false", cfg.Finder.Preview)
	}
	if cfg.Run.VcsMode != "stacked" {
		t.Errorf("RunConfig.VcsMode = %q, want stacked", cfg.Run.VcsMode)
	}
	if cfg.Run.ConcurrencyCap != 8 {
		t.Errorf("RunConfig.ConcurrencyCap = %d, want 8", cfg.Run.ConcurrencyCap)
	}
}

func TestPathExpansionEnvironmentVariable(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })
	t.Setenv("TEST_WORKTREE_DIR", "/test/path")
	viper.Set("worktree.basedir", "$TEST_WORKTREE_DIR/worktrees")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := "/test/path/worktrees"; cfg.Worktree.BaseDir != want {
		t.Errorf("BaseDir = %s, want %s", cfg.Worktree.BaseDir, want)
	}
}

func TestPathExpansionHomeDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })
	viper.Set("worktree.basedir", "~/worktrees")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(tmpDir, "worktrees"); cfg.Worktree.BaseDir != want {
		t.Errorf("BaseDir = %s, want %s", cfg.Worktree.BaseDir, want)
	}
}

func TestGettersAndSetters(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })

	viper.Set("test.key", "test-value")
	if got := GetValue("test.key"); got != "test-value" {
		t.Errorf("GetValue() = %v, want test-value", got)
	}
}

func TestAllSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })
	viper.Set("test.key1", "value1")
	viper.Set("test.key2", 123)

	settings := AllSettings()
	section, ok := settings["test"].(map[string]interface{})
	if !ok {
		t.Fatal("AllSettings() missing 'test' section")
	}
	if section["key1"] != "value1" || section["key2"] != 123 {
		t.Errorf("AllSettings() incorrect test section: %+v", section)
	}
}

func TestToRunContextMapsRunConfig(t *testing.T) {
	cfg := &models.Config{
		Run: models.RunConfig{
			ConcurrencyCap:   3,
			PerTaskTimeoutMs: 60000,
			MaxRetries:       2,
			RetryableKinds:   []string{"timeout"},
			VcsMode:          "stacked",
			StackingStrategy: "complexity-first",
			ConflictPolicy:   "fail",
			ValidationMode:   "permissive",
			BranchPrefix:     "tf",
			BaseRef:          "main",
			Trunk:            "main",
			AgentExecutable:  "claude",
		},
	}
	sink := make(chan models.Event, 1)

	rc := ToRunContext(cfg, "/repo", sink)

	if rc.ConcurrencyCap != 3 {
		t.Errorf("ConcurrencyCap = %d, want 3", rc.ConcurrencyCap)
	}
	if rc.PerTaskTimeout != 60*time.Second {
		t.Errorf("PerTaskTimeout = %v, want 60s", rc.PerTaskTimeout)
	}
	if rc.VcsMode != models.VcsStacked {
		t.Errorf("VcsMode = %v, want stacked", rc.VcsMode)
	}
	if rc.StackingStrategy != models.StackComplexityFirst {
		t.Errorf("StackingStrategy = %v, want complexity-first", rc.StackingStrategy)
	}
	if rc.ConflictPolicy != models.ConflictFail {
		t.Errorf("ConflictPolicy = %v, want fail", rc.ConflictPolicy)
	}
	if rc.ValidationMode != models.ValidationPermissive {
		t.Errorf("ValidationMode = %v, want permissive", rc.ValidationMode)
	}
	if rc.RepoRoot != "/repo" {
		t.Errorf("RepoRoot = %q, want /repo", rc.RepoRoot)
	}
	if !rc.RetryPolicy.Allows(models.RetryableTimeout) {
		t.Error("RetryPolicy should allow timeout retries")
	}
	if rc.EventSink == nil {
		t.Error("EventSink should be wired through")
	}
}
