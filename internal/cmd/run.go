package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/internal/metrics"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/internal/orchestrator"
	"github.com/taskforge/taskforge/internal/ui"
	"github.com/taskforge/taskforge/pkg/models"
)

var (
	runConcurrency int
	runVcsMode     string
	runJSON        bool
	runLogLevel    string
	runLogFormat   string
	runMetrics     bool
	runTranscript  string
)

// runCmd drives a single Plan file to completion through the Orchestrator.
var runCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Run a plan to completion",
	Long: `Run loads a Plan from a YAML or JSON file, builds its dependency graph,
and drives every task through the scheduler under bounded concurrency.

On success or partial failure, the per-task outcomes and the assembled
stack of branches (if any) are printed; the process exits with the code
spec.md §7 assigns to the run's OverallStatus.`,
	Example: `  # Run a plan with default settings
  tforge run plan.yaml

  # Override concurrency and vcs mode for one run
  tforge run plan.yaml --concurrency 8 --vcs-mode stacked

  # Emit the result as JSON instead of a table
  tforge run plan.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Maximum number of tasks running at once (0 = use config default)")
	runCmd.Flags().StringVar(&runVcsMode, "vcs-mode", "", "VCS mode: flat, worktree-parallel, or stacked (empty = use config default)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run result as JSON")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	runCmd.Flags().StringVar(&runLogFormat, "log-format", "json", "Log format: json or text")
	runCmd.Flags().BoolVar(&runMetrics, "metrics", false, "Record Prometheus metrics for this run (overrides config)")
	runCmd.Flags().StringVar(&runTranscript, "transcript", "", "Write the run's transcript to this path on completion")
}

func runRun(cmd *cobra.Command, args []string) error {
	planPath := args[0]
	data, err := os.ReadFile(planPath)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	plan, err := dag.LoadPlan(planPath, data)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	events := make(chan models.Event, 256)
	rc := config.ToRunContext(cfg, repoRoot, events)
	rc.Logger = observability.New(observability.Format(runLogFormat), observability.ParseLevel(runLogLevel)).With("component", "run")

	if runConcurrency > 0 {
		rc.ConcurrencyCap = runConcurrency
	}
	if runVcsMode != "" {
		rc.VcsMode = models.VcsMode(runVcsMode)
	}

	go drainEvents(events, rc.Logger)

	orch := orchestrator.New(rc)
	if runMetrics || cfg.Metrics.Enabled {
		orch.SetMetrics(metrics.New(metrics.DefaultConfig()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := orch.Run(ctx, plan)
	if result == nil {
		return fmt.Errorf("run: %w", runErr)
	}

	printer := ui.New(&cfg.UI)
	if runJSON {
		if err := printer.PrintRunResultJSON(result); err != nil {
			return fmt.Errorf("print result: %w", err)
		}
	} else {
		printer.PrintRunResult(result)
	}

	if runTranscript != "" {
		if err := writeTranscript(orch, runTranscript); err != nil {
			printer.PrintError(fmt.Errorf("write transcript: %w", err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}

	os.Exit(result.OverallStatus.ExitCode())
	return nil
}

// drainEvents logs every streamed Event at debug level until the channel
// is closed, giving --log-level debug a live view of a run in progress.
func drainEvents(events <-chan models.Event, logger *slog.Logger) {
	for ev := range events {
		logger.Debug("event", "type", ev.Type, "taskId", ev.TaskID, "at", ev.At)
	}
}

func writeTranscript(orch *orchestrator.Orchestrator, path string) error {
	t, err := orch.Transcript()
	if err != nil {
		return err
	}
	data, err := orchestrator.MarshalTranscript(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
