package finder

import (
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/tmux"
	"github.com/taskforge/taskforge/pkg/models"
)

func TestNew(t *testing.T) {
	cfg := &models.FinderConfig{Preview: true}
	f := New(cfg)
	if f.config != cfg {
		t.Error("expected config to be stored")
	}
}

func TestSelectTask_EmptyList(t *testing.T) {
	f := New(&models.FinderConfig{})
	if _, err := f.SelectTask(nil, nil); err == nil {
		t.Error("expected error for empty task list")
	}
}

func TestSelectSession_EmptyList(t *testing.T) {
	f := New(&models.FinderConfig{})
	if _, err := f.SelectSession(nil); err == nil {
		t.Error("expected error for empty session list")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"just now", 30 * time.Second, "just now"},
		{"one minute", 1 * time.Minute, "1 min"},
		{"several minutes", 5 * time.Minute, "5 mins"},
		{"one hour", 1 * time.Hour, "1 hour"},
		{"several hours", 3 * time.Hour, "3 hours"},
		{"one day", 24 * time.Hour, "1 day"},
		{"several days", 48 * time.Hour, "2 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestGenerateTaskPreview(t *testing.T) {
	f := New(&models.FinderConfig{})
	task := models.Task{
		ID:           "t1",
		Name:         "write handler",
		Complexity:   models.ComplexityM,
		Dependencies: []string{"t0"},
		Files:        []string{"handler.go"},
		Description:  "add the HTTP handler",
	}

	preview := f.generateTaskPreview(task, models.StateRunning, 20)
	if preview == "" {
		t.Fatal("expected non-empty preview")
	}
	if !contains(preview, "t1") || !contains(preview, "running") || !contains(preview, "handler.go") {
		t.Errorf("preview missing expected fields: %s", preview)
	}
}

func TestGenerateTaskPreview_MaxLines(t *testing.T) {
	f := New(&models.FinderConfig{})
	task := models.Task{ID: "t1", Name: "x", Complexity: models.ComplexityS, Description: "a long description"}
	preview := f.generateTaskPreview(task, models.StatePending, 2)
	lines := countLines(preview)
	if lines > 2 {
		t.Errorf("expected at most 2 lines, got %d", lines)
	}
}

func TestGenerateSessionPreview(t *testing.T) {
	f := New(&models.FinderConfig{})
	session := &tmux.Session{
		SessionName: "tforge-run1-t1-20240101000000",
		Context:     "run1",
		Identifier:  "t1",
		WorkingDir:  "/tmp/work",
		Status:      tmux.StatusRunning,
		StartTime:   time.Now().Add(-2 * time.Minute),
	}

	preview := f.generateSessionPreview(session, 20)
	if !contains(preview, "t1") || !contains(preview, "running") || !contains(preview, "/tmp/work") {
		t.Errorf("preview missing expected fields: %s", preview)
	}
}

func TestGenerateSessionPreview_NoWorkingDir(t *testing.T) {
	f := New(&models.FinderConfig{})
	session := &tmux.Session{Context: "run1", Identifier: "t1", Status: tmux.StatusExited, StartTime: time.Now()}
	preview := f.generateSessionPreview(session, 20)
	if contains(preview, "Directory:") {
		t.Error("expected no Directory line when WorkingDir is empty")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func countLines(s string) int {
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
