// Package orchestrator wires dag, scope, vcs, agent, scheduler, and stack
// into the single entry point spec.md's Orchestrator describes: validate a
// Plan, build its dependency graph, run every task to completion under
// bounded concurrency, and assemble the successful work into branches.
// Grounded on the compositional-engine style of the teacher's
// internal/claude/execution_engine.go (NewExecutionEngine wiring a session
// manager, log manager, and executor behind one Execute entry point).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskforge/taskforge/internal/agent"
	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/internal/git"
	"github.com/taskforge/taskforge/internal/metrics"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/scope"
	"github.com/taskforge/taskforge/internal/stack"
	"github.com/taskforge/taskforge/internal/vcs"
	"github.com/taskforge/taskforge/internal/worktree"
	"github.com/taskforge/taskforge/pkg/models"
)

// Orchestrator runs a validated Plan to completion against one RunContext.
type Orchestrator struct {
	rc      *models.RunContext
	git     *git.Backend
	metrics *metrics.Registry

	lastGraph   *dag.Graph
	lastRecords map[string]*models.TaskRecord
}

// New builds an Orchestrator over a plain git.Backend.
func New(rc *models.RunContext) *Orchestrator {
	return &Orchestrator{rc: rc, git: git.New()}
}

// SetMetrics attaches a metrics.Registry that Run populates from the
// RunResult once the scheduler finishes. Optional: a nil registry (the
// default) means metrics are not recorded.
func (o *Orchestrator) SetMetrics(reg *metrics.Registry) {
	o.metrics = reg
}

// Run builds plan's dependency graph, drives every task through the
// scheduler, and — for stacked mode — assembles the completed tasks' commits
// into a review-ready branch chain via internal/stack.Builder.
func (o *Orchestrator) Run(ctx context.Context, plan *models.Plan) (*models.RunResult, error) {
	graph, err := dag.Build(plan)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	guard := scope.New(graph)

	var pool vcs.WorkspacePool
	if o.rc.VcsMode != models.VcsFlat {
		pool = worktree.New(o.git, o.rc.RepoRoot, o.rc.ShadowPath)
	}
	coord, err := vcs.New(o.rc, vcs.GitAdapter{Git: o.git}, pool)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if err := coord.Initialize(plan); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	runner := agent.New(o.rc.AgentExecutable, o.git, &eventOutputSink{rc: o.rc})

	sched := scheduler.New(graph, o.rc, runner, coord, guard, nil)
	result, err := sched.Run(ctx)
	o.lastGraph = graph
	o.lastRecords = sched.Records()
	if err != nil {
		return result, fmt.Errorf("orchestrator: %w", err)
	}

	if coord.Capabilities().Stacking {
		if err := o.assembleStack(graph, result); err != nil {
			o.rc.Logf(slog.LevelWarn, "stack assembly failed", "error", err)
		}
	}

	o.recordMetrics(result)

	return result, nil
}

// recordMetrics populates the attached metrics.Registry from a finished
// RunResult. No-op when SetMetrics was never called.
func (o *Orchestrator) recordMetrics(result *models.RunResult) {
	if o.metrics == nil || result == nil {
		return
	}
	for _, pt := range result.PerTask {
		o.metrics.RecordTaskTerminal(string(pt.FinalState))
		o.metrics.RecordTaskDuration(pt.ID, pt.Duration)
		for i := 0; i < pt.Retries; i++ {
			o.metrics.RecordRetry()
		}
		for _, v := range pt.Violations {
			o.metrics.RecordScopeViolation(string(v.Kind))
		}
	}
	if result.Stack != nil {
		for range result.Stack.Conflicts {
			o.metrics.RecordStackConflict()
		}
	}
}

// assembleStack re-derives the authoritative StackResult via
// internal/stack.Builder, run over the main repo working copy, overwriting
// the provisional branch list the VcsCoordinator reported from Finalize.
func (o *Orchestrator) assembleStack(graph *dag.Graph, result *models.RunResult) error {
	var commits []stack.TaskCommit
	for id, pt := range result.PerTask {
		if pt.FinalState == models.StateCompleted && pt.Commit != "" {
			commits = append(commits, stack.TaskCommit{TaskID: id, Commit: pt.Commit})
		}
	}
	if len(commits) == 0 {
		return nil
	}

	builder := stack.New(stack.GitAdapter{Git: o.git}, o.rc.RepoRoot)
	sr, err := builder.Assemble(graph, commits, o.rc)
	if err != nil {
		return err
	}
	result.Stack = sr
	return nil
}
