package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/finder"
	"github.com/taskforge/taskforge/internal/tmux"
)

var attachSessionID string

// attachCmd attaches to a running task's live tmux session for the
// optional live-attach observability path (spec.md §6 supplemented
// feature), picked interactively unless --session is given.
var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a running task's live tmux session",
	Long: `Attach lists the tforge-managed tmux sessions and
attaches to one interactively, or directly when --session is given.`,
	Example: `  # Pick a live session interactively
  tforge attach

  # Attach to a known session id
  tforge attach --session a1b2c3d4`,
	RunE: runAttach,
}

func init() {
	rootCmd.AddCommand(attachCmd)
	attachCmd.Flags().StringVar(&attachSessionID, "session", "", "Session id to attach to (skips the interactive picker)")
}

func runAttach(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if !cfg.Tmux.Enabled {
		return fmt.Errorf("live-attach sessions are disabled (set tmux.enabled = true)")
	}

	mgr := tmux.NewSessionManager(&tmux.SessionConfig{
		Enabled:      cfg.Tmux.Enabled,
		TmuxCommand:  cfg.Tmux.TmuxCommand,
		HistoryLimit: cfg.Tmux.HistoryLimit,
	}, "")

	if attachSessionID != "" {
		session, err := mgr.GetSession(attachSessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return mgr.AttachSessionDirect(session)
	}

	sessions, err := mgr.ListSessions()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	f := finder.New(&cfg.Finder)
	session, err := f.SelectSession(sessions)
	if err != nil {
		return fmt.Errorf("select session: %w", err)
	}
	return mgr.AttachSessionDirect(session)
}
