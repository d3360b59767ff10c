// Package scheduler implements Scheduler (spec.md §4.2): the single-event-
// loop dispatcher that drives a Plan's tasks to a terminal state under a
// concurrency cap, wiring AgentRunner, VcsCoordinator, and FileScopeGuard
// together per the state machine's transition rules. Grounded on the
// dispatch/completion-channel shape of other_examples' trai-same
// scheduler.go (ready queue, active counter, single results channel
// consumed in a for-select loop), generalized from a build-task cache
// scheduler to taskforge's dependency-state-machine model, and on the
// teacher's concurrent-worktree-per-task model for what a "concurrent
// activity" actually provisions.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/internal/scope"
	"github.com/taskforge/taskforge/internal/statemachine"
	"github.com/taskforge/taskforge/internal/vcs"
	"github.com/taskforge/taskforge/pkg/models"
	"github.com/taskforge/taskforge/pkg/option"
)

// Agent is the subset of AgentRunner the scheduler drives.
type Agent interface {
	Execute(ctx context.Context, taskID, prompt, workdir, baseRef string, timeout time.Duration, env []string) models.TaskOutcome
}

// PromptBuilder renders a task into the prompt text handed to the agent.
type PromptBuilder func(models.Task) string

// DefaultPromptBuilder renders a task's name, description, and acceptance
// criteria into a single prompt, in the teacher's plain text-assembly style.
func DefaultPromptBuilder(t models.Task) string {
	prompt := t.Name
	if t.Description != "" {
		prompt += "\n\n" + t.Description
	}
	if len(t.AcceptanceCriteria) > 0 {
		prompt += "\n\nAcceptance criteria:"
		for _, c := range t.AcceptanceCriteria {
			prompt += "\n- " + c
		}
	}
	return prompt
}

// activityResult is what one task's AgentRunner.Execute activity reports
// back to the event loop, mirroring the teacher-grounded result struct.
type activityResult struct {
	taskID    string
	workspace *models.WorkspaceHandle
	outcome   models.TaskOutcome
	started   time.Time
}

// Scheduler drives one Plan's tasks to completion.
type Scheduler struct {
	graph  *dag.Graph
	rc     *models.RunContext
	agent  Agent
	coord  vcs.Coordinator
	guard  *scope.Guard
	prompt PromptBuilder

	records map[string]*models.TaskRecord

	ctx       context.Context
	resultsCh chan activityResult
	wg        conc.WaitGroup
	active    int
}

// New builds a Scheduler over graph, driven by rc's configuration.
func New(graph *dag.Graph, rc *models.RunContext, agent Agent, coord vcs.Coordinator, guard *scope.Guard, prompt PromptBuilder) *Scheduler {
	if prompt == nil {
		prompt = DefaultPromptBuilder
	}
	return &Scheduler{graph: graph, rc: rc, agent: agent, coord: coord, guard: guard, prompt: prompt, records: make(map[string]*models.TaskRecord)}
}

// Run drives the plan to a terminal state, returning the aggregate result.
// On ctx cancellation, tasks not yet dispatched (pending, blocked, ready)
// are marked skipped; running tasks end failed once their agent, which
// observes the same ctx, reports a cancelled outcome.
func (s *Scheduler) Run(ctx context.Context) (*models.RunResult, error) {
	ids := s.graph.OrderedIDs()
	for _, id := range ids {
		s.records[id] = models.NewTaskRecord(id, s.rc.RetryPolicy.MaxRetries)
	}
	s.ctx = ctx
	s.resultsCh = make(chan activityResult, max(1, s.rc.ConcurrencyCap))
	s.initializeReadiness()

	for {
		cancelled := ctx.Err() != nil
		if cancelled {
			s.cancelAllNonTerminal()
		} else {
			s.dispatch()
		}

		if s.active == 0 && !s.hasOutstandingWork() {
			break
		}

		select {
		case res := <-s.resultsCh:
			s.active--
			s.handleCompletion(res)
		case <-ctx.Done():
			// Loop back around; the next iteration's cancelled check skips
			// tasks not yet dispatched and drains any in-flight activities.
			if s.active > 0 {
				res := <-s.resultsCh
				s.active--
				s.handleCompletion(res)
			}
		}
	}

	s.wg.Wait()
	return s.buildResult()
}

// initializeReadiness computes each task's first state transition from its
// initial (all-pending) dependency states — leaves become ready, everything
// else stays pending until its dependencies change.
func (s *Scheduler) initializeReadiness() {
	for _, id := range s.graph.OrderedIDs() {
		s.advance(id)
	}
}

// advance recomputes one task's state from its dependencies' current
// states and applies the transition if the policy yields one.
func (s *Scheduler) advance(id string) {
	rec := s.records[id]
	depStates := make([]models.TaskState, 0, len(s.graph.Dependencies(id)))
	for _, dep := range s.graph.Dependencies(id) {
		depStates = append(depStates, s.records[dep].State)
	}
	next, ok := statemachine.NextFromDependencies(rec.State, depStates)
	if !ok || next == rec.State {
		return
	}
	statemachine.MustTransition(rec.State, next)
	rec.Transition(next, "dependency state change", time.Now())
	s.rc.Emit(models.Event{Type: models.EventTaskStateChanged, At: time.Now(), TaskID: id, Payload: models.TaskStateChangedPayload{From: rec.TransitionHistory[len(rec.TransitionHistory)-1].From, To: next}})
}

// hasOutstandingWork reports whether any task is still in a non-terminal
// state reachable by further scheduler action.
func (s *Scheduler) hasOutstandingWork() bool {
	for _, rec := range s.records {
		if !rec.State.IsTerminal() {
			return true
		}
	}
	return false
}

// dispatch starts agent activities for ready tasks while capacity remains,
// picking the task with fewest dependents-remaining, ties broken by
// topological index, per spec.md §4.2's work-conserving dispatch rule.
// A coordinator without parallel support limits dispatch to one task.
func (s *Scheduler) dispatch() {
	states := make(map[string]models.TaskState, len(s.records))
	for id, rec := range s.records {
		states[id] = rec.State
	}

	limit := s.rc.ConcurrencyCap
	if !s.coord.Capabilities().Parallel && limit > 1 {
		limit = 1
	}
	for s.active < limit {
		picked := s.pickReady(states)
		if picked.IsNone() {
			break
		}
		id := picked.Unwrap()
		states[id] = models.StateQueued

		rec := s.records[id]
		statemachine.MustTransition(rec.State, models.StateQueued)
		rec.Transition(models.StateQueued, "dispatched", time.Now())
		s.launch(id)
	}
}

// launch provisions a workspace and spawns the agent activity for a task
// already in state queued, transitioning it to running. Shared by dispatch
// (ready -> queued -> running) and failTask's retry path
// (failed -> queued -> running), since spec.md §4.2 requires a retried task
// to be re-provisioned and re-run exactly like a freshly dispatched one.
// Reports whether the activity was launched; on a Prepare failure the task
// is recorded failed instead and false is returned.
func (s *Scheduler) launch(id string) bool {
	rec := s.records[id]
	task := s.graph.Task(id)

	workspace, err := s.coord.Prepare(task)
	if err != nil {
		s.failImmediately(id, fmt.Errorf("%w: %v", models.ErrWorkspaceError, err))
		return false
	}
	s.rc.Emit(models.Event{Type: models.EventWorkspaceCreated, At: time.Now(), TaskID: id, Payload: workspace})

	statemachine.MustTransition(rec.State, models.StateRunning)
	rec.Transition(models.StateRunning, "agent started", time.Now())
	rec.Workspace = workspace

	started := time.Now()
	timeout := s.rc.PerTaskTimeout
	baseRef := workspace.BaseRef
	prompt := s.prompt(task)
	taskID := id
	ctx := s.ctx
	resultsCh := s.resultsCh

	s.active++
	s.wg.Go(func() {
		outcome := s.agent.Execute(ctx, taskID, prompt, workspace.AbsolutePath, baseRef, timeout, nil)
		resultsCh <- activityResult{taskID: taskID, workspace: workspace, outcome: outcome, started: started}
	})
	return true
}

// pickReady selects the ready task with fewest dependents-remaining, ties
// broken by topological index. Returns option.None() when nothing is
// ready to run yet.
func (s *Scheduler) pickReady(states map[string]models.TaskState) option.Option[string] {
	var candidates []string
	for id, st := range states {
		if st == models.StateReady {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return option.None[string]()
	}
	topoIndex := make(map[string]int, len(states))
	if order, err := s.graph.TopologicalOrder(); err == nil {
		for i, tid := range order {
			topoIndex[tid] = i
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri := s.graph.DependentsRemaining(candidates[i], states)
		rj := s.graph.DependentsRemaining(candidates[j], states)
		if ri != rj {
			return ri < rj
		}
		return topoIndex[candidates[i]] < topoIndex[candidates[j]]
	})
	return option.Some(candidates[0])
}

// handleCompletion processes one activity's outcome: scope check, commit,
// state transition, retry-or-skip propagation, and workspace release.
func (s *Scheduler) handleCompletion(res activityResult) {
	id := res.taskID
	rec := s.records[id]
	duration := time.Since(res.started)

	switch res.outcome.Status {
	case models.OutcomeCompleted:
		s.completeTask(id, res, duration)
	default:
		s.failTask(id, rec, res, duration)
	}

	for _, dep := range s.graph.Dependents(id) {
		s.advance(dep)
	}
}

func (s *Scheduler) completeTask(id string, res activityResult, duration time.Duration) {
	rec := s.records[id]
	report := s.guard.Check(id, res.outcome.FilesTouched, s.rc.ValidationMode)
	rec.Violations = report.Violations

	if !report.OK {
		rec.LastError = fmt.Errorf("%w: %d violation(s)", models.ErrScopeViolation, len(report.Violations)).Error()
		s.failTask(id, rec, res, duration)
		return
	}

	commit, err := s.coord.Commit(s.graph.Task(id), res.workspace, res.outcome.FilesTouched)
	if err != nil {
		rec.LastError = err.Error()
		s.failTask(id, rec, res, duration)
		return
	}
	rec.Commit = commit
	rec.Branch = res.workspace.BranchName

	statemachine.MustTransition(rec.State, models.StateCompleted)
	rec.Transition(models.StateCompleted, "agent completed, scope valid, committed", time.Now())
	s.rc.Emit(models.Event{Type: models.EventCommitCreated, At: time.Now(), TaskID: id, Payload: commit})
	s.rc.Emit(models.Event{Type: models.EventTaskStateChanged, At: time.Now(), TaskID: id, Payload: models.TaskStateChangedPayload{From: models.StateRunning, To: models.StateCompleted}})

	s.coord.Release(res.workspace, false)
	s.rc.Emit(models.Event{Type: models.EventWorkspaceReleased, At: time.Now(), TaskID: id})
}

func (s *Scheduler) failTask(id string, rec *models.TaskRecord, res activityResult, duration time.Duration) {
	if rec.LastError == "" && res.outcome.Err != nil {
		rec.LastError = res.outcome.Err.Error()
	}
	retryable := s.rc.RetryPolicy.Allows(retryableKindOf(res.outcome))

	if rec.State == models.StateRunning {
		statemachine.MustTransition(rec.State, models.StateFailed)
		rec.Transition(models.StateFailed, string(res.outcome.Status), time.Now())
	}

	if retryable && rec.RetryCount < rec.MaxRetries {
		rec.RetryCount++
		s.coord.Release(res.workspace, true)
		statemachine.MustTransition(rec.State, models.StateQueued)
		rec.Transition(models.StateQueued, "retrying", time.Now())
		rec.Workspace = nil
		s.launch(id)
		return
	}

	keep := s.rc.CleanupOnFailure == false
	s.coord.Release(res.workspace, keep)
	s.rc.Emit(models.Event{Type: models.EventTaskStateChanged, At: time.Now(), TaskID: id, Payload: models.TaskStateChangedPayload{From: models.StateRunning, To: models.StateFailed, Reason: string(res.outcome.Status)}})
}

// failImmediately records a task as failed without ever having run an
// activity (e.g. workspace preparation itself failed).
func (s *Scheduler) failImmediately(id string, err error) {
	rec := s.records[id]
	rec.LastError = err.Error()
	// queued -> failed is not a legal edge; pass through running first.
	statemachine.MustTransition(rec.State, models.StateRunning)
	rec.Transition(models.StateRunning, "workspace preparation", time.Now())
	statemachine.MustTransition(rec.State, models.StateFailed)
	rec.Transition(models.StateFailed, "workspace preparation failed", time.Now())
	for _, dep := range s.graph.Dependents(id) {
		s.advance(dep)
	}
}

// cancelAllNonTerminal marks every pending, blocked or ready task skipped,
// used when the run's context is cancelled externally; queued and running
// tasks are left to their in-flight activity.
func (s *Scheduler) cancelAllNonTerminal() {
	for id, rec := range s.records {
		if rec.State.IsTerminal() {
			continue
		}
		if rec.State == models.StatePending || rec.State == models.StateBlocked || rec.State == models.StateReady {
			statemachine.MustTransition(rec.State, models.StateSkipped)
			rec.Transition(models.StateSkipped, "run cancelled", time.Now())
			continue
		}
		// queued/running tasks are left for their in-flight activity to
		// report cancelled; AgentRunner observes ctx.Done() and returns a
		// cancelled outcome, which failTask then records terminally.
		_ = id
	}
}

// retryableKindOf classifies an outcome for RetryPolicy.Allows.
// OutcomeSpawnError (agent binary missing, process failed to start) falls
// through to the default "" case, which RetryPolicy.Allows never
// recognizes as retryable: spec.md §4.3 makes a spawn error non-retryable
// regardless of the configured nonzero-exit retry policy, since retrying
// it would just fail the same way maxRetries more times.
func retryableKindOf(o models.TaskOutcome) models.RetryableKind {
	switch o.Status {
	case models.OutcomeTimeout:
		return models.RetryableTimeout
	case models.OutcomeFailed:
		return models.RetryableNonzeroExit
	default:
		return ""
	}
}

// buildResult assembles the final RunResult from per-task records.
func (s *Scheduler) buildResult() (*models.RunResult, error) {
	perTask := make(map[string]models.PerTaskResult, len(s.records))
	states := make([]models.TaskState, 0, len(s.records))
	var successfulIDs []string

	for id, rec := range s.records {
		states = append(states, rec.State)
		perTask[id] = models.PerTaskResult{
			ID:         id,
			FinalState: rec.State,
			Commit:     rec.Commit,
			Branch:     rec.Branch,
			Retries:    rec.RetryCount,
			Duration:   rec.Duration(),
			Violations: rec.Violations,
		}
		if rec.State == models.StateCompleted {
			successfulIDs = append(successfulIDs, id)
		}
	}

	stackResult, err := s.coord.Finalize(successfulIDs)
	if err != nil {
		stackResult = nil
	}

	result := &models.RunResult{
		PerTask:       perTask,
		Stack:         stackResult,
		Aggregate:     statemachine.ComputeStats(states),
		OverallStatus: overallStatus(states, s.ctx.Err() != nil),
	}
	s.rc.Emit(models.Event{Type: models.EventRunCompleted, At: time.Now(), Payload: result.OverallStatus})
	return result, nil
}

// Records returns the scheduler's per-task records after Run completes,
// for callers (internal/orchestrator's transcript export) that need the
// full transition history rather than just RunResult's terminal summary.
func (s *Scheduler) Records() map[string]*models.TaskRecord {
	return s.records
}

// overallStatus derives the run's overall outcome (spec.md §7). cancelled
// reports whether the run's context was cancelled (ctx.Err() != nil);
// spec.md §7 requires this to take priority over a completed/failed/
// skipped tally, since an externally cancelled run is reported as
// cancelled rather than failed or partial even if some tasks did complete
// before the signal arrived.
func overallStatus(states []models.TaskState, cancelled bool) models.OverallStatus {
	if cancelled {
		return models.StatusCancelled
	}
	completed, failed, skipped := 0, 0, 0
	for _, st := range states {
		switch st {
		case models.StateCompleted:
			completed++
		case models.StateFailed:
			failed++
		case models.StateSkipped:
			skipped++
		}
	}
	switch {
	case failed == 0 && skipped == 0:
		return models.StatusSuccess
	case completed > 0:
		return models.StatusPartial
	default:
		return models.StatusFailed
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
