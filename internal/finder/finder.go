// Package finder provides fuzzy finder integration for interactively
// picking a task or a live-attach session out of a run, used by
// `tforge logs`/`tforge attach`. Adapted from the teacher's worktree/branch
// picker (internal/finder) onto taskforge's Task/Session domain.
package finder

import (
	"fmt"
	"strings"
	"time"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/taskforge/taskforge/internal/tmux"
	"github.com/taskforge/taskforge/pkg/models"
)

// Finder provides fuzzy finder functionality over a run's tasks and
// live-attach sessions.
type Finder struct {
	config *models.FinderConfig
}

// New creates a new Finder instance.
func New(config *models.FinderConfig) *Finder {
	return &Finder{config: config}
}

// SelectTask displays a fuzzy finder for picking one task out of a plan,
// keyed by the task's current transcript state.
func (f *Finder) SelectTask(tasks []models.Task, states map[string]models.TaskState) (*models.Task, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks available")
	}

	opts := []fuzzyfinder.Option{
		fuzzyfinder.WithPromptString("Select task> "),
	}
	if f.config.Preview {
		opts = append(opts, fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			return f.generateTaskPreview(tasks[i], states[tasks[i].ID], h)
		}))
	}

	idx, err := fuzzyfinder.Find(
		tasks,
		func(i int) string {
			t := tasks[i]
			state := states[t.ID]
			return fmt.Sprintf("%s [%s] %s", t.ID, state, t.Name)
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return &tasks[idx], nil
}

// SelectSession displays a fuzzy finder for live-attach session selection.
func (f *Finder) SelectSession(sessions []*tmux.Session) (*tmux.Session, error) {
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no sessions available")
	}

	opts := []fuzzyfinder.Option{
		fuzzyfinder.WithPromptString("Select session> "),
	}
	if f.config.Preview {
		opts = append(opts, fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			return f.generateSessionPreview(sessions[i], h)
		}))
	}

	idx, err := fuzzyfinder.Find(
		sessions,
		func(i int) string {
			session := sessions[i]
			marker := "  "
			if session.Status == tmux.StatusRunning {
				marker = "● "
			}
			return fmt.Sprintf("%s%s/%s (%s)", marker, session.Context, session.Identifier, session.Status)
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return sessions[idx], nil
}

func (f *Finder) generateTaskPreview(t models.Task, state models.TaskState, maxLines int) string {
	preview := []string{
		fmt.Sprintf("ID: %s", t.ID),
		fmt.Sprintf("Name: %s", t.Name),
		fmt.Sprintf("State: %s", state),
		fmt.Sprintf("Complexity: %s", t.Complexity),
	}
	if len(t.Dependencies) > 0 {
		preview = append(preview, fmt.Sprintf("Depends on: %s", strings.Join(t.Dependencies, ", ")))
	}
	if len(t.Files) > 0 {
		preview = append(preview, "", "Files:")
		for _, fpath := range t.Files {
			preview = append(preview, "  "+fpath)
		}
	}
	if t.Description != "" {
		preview = append(preview, "", "Description:", t.Description)
	}
	if len(preview) > maxLines {
		preview = preview[:maxLines]
	}
	return strings.Join(preview, "\n")
}

func (f *Finder) generateSessionPreview(session *tmux.Session, maxLines int) string {
	preview := []string{
		fmt.Sprintf("Session: %s", session.SessionName),
		fmt.Sprintf("Task: %s", session.Identifier),
		fmt.Sprintf("Status: %s", session.Status),
		fmt.Sprintf("Duration: %s", formatDuration(time.Since(session.StartTime))),
		fmt.Sprintf("Started: %s", session.StartTime.Format("2006-01-02 15:04:05")),
	}
	if session.WorkingDir != "" {
		preview = append(preview, fmt.Sprintf("Directory: %s", session.WorkingDir))
	}
	if len(preview) > maxLines {
		preview = preview[:maxLines]
	}
	return strings.Join(preview, "\n")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min"
		}
		return fmt.Sprintf("%d mins", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
