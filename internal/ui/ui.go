// Package ui provides user interface utilities for the taskforge CLI.
package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/taskforge/taskforge/pkg/models"
	"github.com/taskforge/taskforge/pkg/utils"
)

// Printer handles output formatting.
type Printer struct {
	useIcons     bool
	useTildeHome bool
}

// New creates a new Printer instance.
func New(config *models.UIConfig) *Printer {
	return &Printer{
		useIcons:     config.Icons,
		useTildeHome: config.TildeHome,
	}
}

// stateMarker returns a short icon for a task's final state, or "" when
// icons are disabled.
func (p *Printer) stateMarker(state models.TaskState) string {
	if !p.useIcons {
		return ""
	}
	switch state {
	case models.StateCompleted:
		return "✓ "
	case models.StateFailed:
		return "✗ "
	case models.StateRunning:
		return "● "
	default:
		return "  "
	}
}

// PrintRunResult displays a RunResult as a formatted per-task table
// followed by the overall status line.
func (p *Printer) PrintRunResult(result *models.RunResult) {
	if result == nil || len(result.PerTask) == 0 {
		fmt.Println("No tasks ran")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "TASK\tSTATE\tRETRIES\tDURATION\tCOMMIT")
	for id, pt := range result.PerTask {
		_, _ = fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\t%s\n",
			p.stateMarker(pt.FinalState),
			id,
			pt.FinalState,
			pt.Retries,
			pt.Duration.Round(time.Millisecond),
			p.truncateHash(pt.Commit),
		)
	}
	_ = w.Flush()

	fmt.Printf("\nOverall: %s (exit %d)\n", result.OverallStatus, result.OverallStatus.ExitCode())

	if result.Stack != nil {
		p.PrintStackResult(result.Stack)
	}
}

// PrintRunResultJSON displays a RunResult as JSON.
func (p *Printer) PrintRunResultJSON(result *models.RunResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// PrintStackResult displays the branch chain StackBuilder assembled,
// including any recorded conflicts and review URLs.
func (p *Printer) PrintStackResult(stack *models.StackResult) {
	if stack == nil {
		return
	}
	fmt.Println("\nStack:")
	for i, branch := range stack.Branches {
		fmt.Printf("  %d. %s\n", i+1, branch)
	}
	for _, c := range stack.Conflicts {
		fmt.Printf("  conflict: %s (%s)\n", c.TaskID, c.Detail)
	}
	for _, url := range stack.ReviewURLs {
		fmt.Printf("  review: %s\n", url)
	}
}

// PrintProgress displays an aggregate completion summary.
func (p *Printer) PrintProgress(progress models.Progress) {
	fmt.Printf("%d/%d tasks done (%.0f%%)\n", progress.Done, progress.Total, progress.Percent)
}

// PrintHistogram displays a per-state task count breakdown.
func (p *Printer) PrintHistogram(hist models.Histogram) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "STATE\tCOUNT")
	for _, state := range []models.TaskState{
		models.StatePending, models.StateBlocked, models.StateReady, models.StateQueued,
		models.StateRunning, models.StateCompleted, models.StateFailed, models.StateSkipped,
	} {
		if n, ok := hist[state]; ok {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", state, n)
		}
	}
}

// PrintConfig displays configuration in a formatted manner.
func (p *Printer) PrintConfig(settings map[string]any) {
	p.printConfigRecursive("", settings)
}

// PrintError displays an error message.
func (p *Printer) PrintError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// PrintSuccess displays a success message.
func (p *Printer) PrintSuccess(message string) {
	fmt.Println(message)
}

// PrintInfo displays an informational message.
func (p *Printer) PrintInfo(message string) {
	fmt.Println(message)
}

// truncateHash truncates a commit hash to 8 characters.
func (p *Printer) truncateHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// truncateMessage truncates a message to the specified length.
func (p *Printer) truncateMessage(message string, maxLen int) string {
	if len(message) > maxLen {
		return message[:maxLen-3] + "..."
	}
	return message
}

// formatTime formats a time value for display.
func (p *Printer) formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// printConfigRecursive recursively prints configuration values. When
// useTildeHome is set, string values are shortened to a "~"-relative form
// so path-valued settings like run.shadow_path print the way the user
// likely wrote them.
func (p *Printer) printConfigRecursive(prefix string, data any) {
	switch v := data.(type) {
	case map[string]any:
		for key, value := range v {
			newPrefix := key
			if prefix != "" {
				newPrefix = prefix + "." + key
			}
			p.printConfigRecursive(newPrefix, value)
		}
	case string:
		if p.useTildeHome {
			v = utils.TildePath(v)
		}
		fmt.Printf("%s = %v\n", prefix, v)
	default:
		fmt.Printf("%s = %v\n", prefix, v)
	}
}
