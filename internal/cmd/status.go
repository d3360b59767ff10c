package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/orchestrator"
	"github.com/taskforge/taskforge/internal/ui"
	"github.com/taskforge/taskforge/pkg/models"
)

// statusCmd reports the outcome of a previously recorded run from its
// transcript file (see run --transcript), without re-running anything.
var statusCmd = &cobra.Command{
	Use:   "status <transcript-file>",
	Short: "Summarize a recorded run's transcript",
	Long: `Status reads a transcript previously written by "tforge run --transcript"
and reports how many tasks ended in each state plus overall progress, with
each final state re-derived by replaying the task's recorded transition
history rather than trusting the stored state verbatim.`,
	Example: `  # Summarize a completed run
  tforge status run.transcript.json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	transcript, err := orchestrator.UnmarshalTranscript(data)
	if err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	states, err := orchestrator.Replay(transcript)
	if err != nil {
		return fmt.Errorf("replay transcript: %w", err)
	}

	hist := make(models.Histogram)
	done := 0
	for _, state := range states {
		hist[state]++
		if state == models.StateCompleted || state == models.StateFailed || state == models.StateSkipped {
			done++
		}
	}

	cfg := config.Get()
	printer := ui.New(&cfg.UI)
	printer.PrintHistogram(hist)
	printer.PrintProgress(models.Progress{
		Done:    done,
		Total:   len(states),
		Percent: percent(done, len(states)),
	})
	return nil
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
