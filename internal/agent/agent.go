// Package agent implements AgentRunner (spec.md §4.3): spawning an
// external agent subprocess per task, supervising it (timeout,
// cancellation, streaming output capture), and computing its authoritative
// touched-files set by diffing the workspace. Grounded primarily on
// 88lin-divinesense's ai/agents/runner.CCRunner.Execute/streamOutput
// (StdoutPipe/StderrPipe draining, kill-on-failure, exit-code extraction),
// with the file-diffing contract grounded on the teacher's
// claude_code_executor.go detectChangedFiles.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/taskforge/taskforge/pkg/models"
)

const (
	// scanBufInitial and scanBufMax size bufio.Scanner's buffer, matching
	// CCRunner's allowance for long JSON/tool-output lines without
	// truncating or erroring on ErrTooLong.
	scanBufInitial = 256 * 1024
	scanBufMax     = 1024 * 1024
)

// DiffSource computes the authoritative set of files an agent touched,
// never trusting agent-reported output (spec.md §9).
type DiffSource interface {
	DiffNameOnly(workdir, baseRef string) ([]string, error)
}

// OutputSink receives streamed stdout/stderr lines as they arrive, used to
// forward agent output onto the run's event stream without buffering it
// all in memory.
type OutputSink interface {
	AgentStdout(taskID, line string)
	AgentStderr(taskID, line string)
}

// Runner drives one external agent binary per task.
type Runner struct {
	executable string
	diff       DiffSource
	sink       OutputSink
}

// New builds a Runner invoking the given executable (e.g. "claude"),
// computing touched files via diff, and forwarding output to sink.
func New(executable string, diff DiffSource, sink OutputSink) *Runner {
	return &Runner{executable: executable, diff: diff, sink: sink}
}

// IsAvailable reports whether the configured agent binary is on PATH.
func (r *Runner) IsAvailable() bool {
	_, err := exec.LookPath(r.executable)
	return err == nil
}

// Execute spawns the agent with workdir as its working directory and the
// task prompt passed as its final argument, enforcing timeout and ctx
// cancellation by killing the process, and returns a TaskOutcome whose
// FilesTouched is computed by diffing workdir against baseRef.
func (r *Runner) Execute(ctx context.Context, taskID, prompt, workdir, baseRef string, timeout time.Duration, env []string) models.TaskOutcome {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path, err := exec.LookPath(r.executable)
	if err != nil {
		return models.TaskOutcome{
			Status: models.OutcomeSpawnError,
			Err:    fmt.Errorf("%w: agent binary %q not found: %v", models.ErrAgentExecutionError, r.executable, err),
		}
	}

	cmd := exec.CommandContext(runCtx, path, prompt)
	cmd.Dir = workdir
	if len(env) > 0 {
		cmd.Env = env
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return models.TaskOutcome{Status: models.OutcomeSpawnError, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return models.TaskOutcome{Status: models.OutcomeSpawnError, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return models.TaskOutcome{
			Status: models.OutcomeSpawnError,
			Err:    fmt.Errorf("%w: spawn failed: %v", models.ErrAgentExecutionError, err),
		}
	}

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go r.stream(taskID, stdout, &outBuf, false, &wg)
	go r.stream(taskID, stderr, &errBuf, true, &wg)
	wg.Wait()

	waitErr := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		return models.TaskOutcome{
			Status: models.OutcomeTimeout,
			Stdout: outBuf.String(),
			Stderr: errBuf.String(),
			Err:    fmt.Errorf("%w: exceeded %s", models.ErrAgentTimeout, timeout),
		}
	}
	if ctx.Err() == context.Canceled {
		return models.TaskOutcome{
			Status: models.OutcomeCancelled,
			Stdout: outBuf.String(),
			Stderr: errBuf.String(),
			Err:    fmt.Errorf("%w: run cancelled", models.ErrAgentCancelled),
		}
	}

	filesTouched, diffErr := r.diff.DiffNameOnly(workdir, baseRef)
	if diffErr != nil {
		filesTouched = nil
	}

	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ProcessState.ExitCode()
		}
		return models.TaskOutcome{
			Status:       models.OutcomeFailed,
			ExitCode:     exitCode,
			Stdout:       outBuf.String(),
			Stderr:       errBuf.String(),
			FilesTouched: filesTouched,
			Err:          fmt.Errorf("%w: exit %d: %s", models.ErrAgentExecutionError, exitCode, lastLines(errBuf.String(), 10)),
		}
	}

	return models.TaskOutcome{
		Status:       models.OutcomeCompleted,
		ExitCode:     0,
		Stdout:       outBuf.String(),
		Stderr:       errBuf.String(),
		FilesTouched: filesTouched,
	}
}

// stream drains r line by line into buf, non-blockingly forwarding each
// line to the sink, and tolerates stream failure by returning rather than
// killing the process itself — the caller's cmd.Wait()/context deadline is
// what terminates a hung process, matching CCRunner's division of labor
// between streamOutput and its caller's kill-on-failure.
func (r *Runner) stream(taskID string, rc io.Reader, buf *strings.Builder, isErr bool, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, scanBufInitial), scanBufMax)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if r.sink == nil {
			continue
		}
		if isErr {
			r.sink.AgentStderr(taskID, line)
		} else {
			r.sink.AgentStdout(taskID, line)
		}
	}
}

// lastLines returns the last n lines of s (trailing newlines trimmed first),
// joined by "; ", for
// compact inclusion in a wrapped error (mirrors CCRunner's stderr ring
// buffer truncation behavior without the separate ring-buffer type, since
// Runner already holds the full buffer in memory per invocation).
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
