package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/internal/finder"
	"github.com/taskforge/taskforge/internal/orchestrator"
	"github.com/taskforge/taskforge/internal/tui"
)

var logsTaskID string

// logsCmd renders one task's recorded transition history from a transcript,
// picked interactively unless --task is given.
var logsCmd = &cobra.Command{
	Use:   "logs <plan-file> <transcript-file>",
	Short: "View a task's recorded transitions",
	Long: `Logs opens an interactive pager over one task's recorded state
transitions from a transcript previously written by "tforge run --transcript".
Without --task, the task is picked with a fuzzy finder over the plan.`,
	Example: `  # Pick a task interactively
  tforge logs plan.yaml run.transcript.json

  # Jump straight to one task's log
  tforge logs plan.yaml run.transcript.json --task build-api`,
	Args: cobra.ExactArgs(2),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().StringVar(&logsTaskID, "task", "", "Task id to view (skips the interactive picker)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	planData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	plan, err := dag.LoadPlan(args[0], planData)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	transcriptData, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	transcript, err := orchestrator.UnmarshalTranscript(transcriptData)
	if err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	taskID := logsTaskID
	if taskID == "" {
		cfg := config.Get()
		f := finder.New(&cfg.Finder)
		picked, err := f.SelectTask(plan.Tasks, transcript.States)
		if err != nil {
			return fmt.Errorf("select task: %w", err)
		}
		taskID = picked.ID
	}

	state, ok := transcript.States[taskID]
	if !ok {
		return fmt.Errorf("task %q not found in transcript", taskID)
	}

	meta := tui.TaskLogMeta{TaskID: taskID, State: state}
	if transitions := transcript.Transitions[taskID]; len(transitions) > 0 {
		meta.StartedAt = transitions[0].At.Format("2006-01-02 15:04:05")
		meta.Duration = transitions[len(transitions)-1].At.Sub(transitions[0].At).String()
	}

	var b strings.Builder
	b.WriteString("=== TRANSITIONS ===\n")
	for _, tr := range transcript.Transitions[taskID] {
		fmt.Fprintf(&b, "%s: %s -> %s", tr.At.Format("2006-01-02 15:04:05"), tr.From, tr.To)
		if tr.Reason != "" {
			fmt.Fprintf(&b, " (%s)", tr.Reason)
		}
		b.WriteString("\n")
	}

	return tui.RunLogViewer(meta, b.String())
}
