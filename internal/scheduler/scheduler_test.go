package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/internal/scope"
	"github.com/taskforge/taskforge/internal/vcs"
	"github.com/taskforge/taskforge/pkg/models"
)

// fakeAgent executes instantly, returning a scripted outcome per task id,
// defaulting to a single-file success.
type fakeAgent struct {
	outcomes map[string][]models.TaskOutcome // per task, consumed in order across retries
	calls    map[string]int
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{outcomes: make(map[string][]models.TaskOutcome), calls: make(map[string]int)}
}

func (f *fakeAgent) Execute(ctx context.Context, taskID, prompt, workdir, baseRef string, timeout time.Duration, env []string) models.TaskOutcome {
	seq := f.outcomes[taskID]
	i := f.calls[taskID]
	f.calls[taskID]++
	if i < len(seq) {
		return seq[i]
	}
	return models.TaskOutcome{Status: models.OutcomeCompleted, FilesTouched: []string{taskID + ".go"}}
}

// fakeCoordinator hands out an in-memory workspace per task, never touching
// the filesystem or git.
type fakeCoordinator struct {
	commits   map[string]string
	finalized []string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{commits: make(map[string]string)}
}

func (c *fakeCoordinator) Initialize(plan *models.Plan) error { return nil }

func (c *fakeCoordinator) Prepare(task models.Task) (*models.WorkspaceHandle, error) {
	return &models.WorkspaceHandle{TaskID: task.ID, AbsolutePath: "/ws/" + task.ID, BranchName: "task/" + task.ID, BaseRef: "main"}, nil
}

func (c *fakeCoordinator) Commit(task models.Task, workspace *models.WorkspaceHandle, filesTouched []string) (string, error) {
	hash := "commit-" + task.ID
	c.commits[task.ID] = hash
	return hash, nil
}

func (c *fakeCoordinator) Release(workspace *models.WorkspaceHandle, keepOnFailure bool) {}

func (c *fakeCoordinator) Finalize(successfulTaskIDs []string) (*models.StackResult, error) {
	c.finalized = successfulTaskIDs
	return &models.StackResult{Branches: successfulTaskIDs}, nil
}

func (c *fakeCoordinator) Capabilities() vcs.Capabilities { return vcs.Capabilities{Parallel: true} }

func buildGraph(t *testing.T, tasks ...models.Task) *dag.Graph {
	t.Helper()
	g, err := dag.Build(&models.Plan{Name: "p", Tasks: tasks})
	if err != nil {
		t.Fatalf("dag.Build() error = %v", err)
	}
	return g
}

func task(id string, deps ...string) models.Task {
	return models.Task{ID: id, Name: id, Complexity: models.ComplexityM, Files: []string{id + ".go"}, Dependencies: deps}
}

func newRunContext(cap int) *models.RunContext {
	return &models.RunContext{
		ConcurrencyCap: cap,
		PerTaskTimeout: time.Second,
		RetryPolicy:    models.NewRetryPolicy(1, []string{"timeout", "nonzero_exit"}),
		ValidationMode: models.ValidationStrict,
		EventSink:      make(chan models.Event, 64),
	}
}

func TestRunLinearChainAllComplete(t *testing.T) {
	g := buildGraph(t, task("a"), task("b", "a"))
	rc := newRunContext(2)
	agent := newFakeAgent()
	coord := newFakeCoordinator()
	guard := scope.New(g)

	s := New(g, rc, agent, coord, guard, nil)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.OverallStatus != models.StatusSuccess {
		t.Errorf("OverallStatus = %v, want success", result.OverallStatus)
	}
	if result.PerTask["a"].FinalState != models.StateCompleted || result.PerTask["b"].FinalState != models.StateCompleted {
		t.Errorf("unexpected final states: %+v", result.PerTask)
	}
	if len(coord.finalized) != 2 {
		t.Errorf("expected both tasks finalized, got %v", coord.finalized)
	}
}

func TestRunSpawnErrorIsNotRetried(t *testing.T) {
	g := buildGraph(t, task("a"))
	rc := newRunContext(1)
	agent := newFakeAgent()
	agent.outcomes["a"] = []models.TaskOutcome{
		{Status: models.OutcomeSpawnError, Err: errAgentBoom},
	}
	coord := newFakeCoordinator()
	guard := scope.New(g)

	s := New(g, rc, agent, coord, guard, nil)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.PerTask["a"].FinalState != models.StateFailed {
		t.Errorf("a final state = %v, want failed", result.PerTask["a"].FinalState)
	}
	if agent.calls["a"] != 1 {
		t.Errorf("agent.calls[a] = %d, want 1 (spawn error must not be retried even though nonzero_exit retries are enabled)", agent.calls["a"])
	}
}

func TestRunFailedDependencySkipsDependent(t *testing.T) {
	g := buildGraph(t, task("a"), task("b", "a"))
	rc := newRunContext(2)
	agent := newFakeAgent()
	agent.outcomes["a"] = []models.TaskOutcome{
		{Status: models.OutcomeFailed, ExitCode: 1, Err: errAgentBoom},
		{Status: models.OutcomeFailed, ExitCode: 1, Err: errAgentBoom},
	}
	coord := newFakeCoordinator()
	guard := scope.New(g)

	s := New(g, rc, agent, coord, guard, nil)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.PerTask["a"].FinalState != models.StateFailed {
		t.Errorf("a final state = %v, want failed", result.PerTask["a"].FinalState)
	}
	if result.PerTask["b"].FinalState != models.StateSkipped {
		t.Errorf("b final state = %v, want skipped", result.PerTask["b"].FinalState)
	}
	if result.OverallStatus != models.StatusFailed {
		t.Errorf("OverallStatus = %v, want failed", result.OverallStatus)
	}
}

func TestRunRetriesTransientFailureThenSucceeds(t *testing.T) {
	g := buildGraph(t, task("a"))
	rc := newRunContext(1)
	agent := newFakeAgent()
	agent.outcomes["a"] = []models.TaskOutcome{
		{Status: models.OutcomeTimeout, Err: errAgentBoom},
	}
	coord := newFakeCoordinator()
	guard := scope.New(g)

	s := New(g, rc, agent, coord, guard, nil)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.PerTask["a"].FinalState != models.StateCompleted {
		t.Errorf("a final state = %v, want completed after retry", result.PerTask["a"].FinalState)
	}
	if result.PerTask["a"].Retries != 1 {
		t.Errorf("a retries = %d, want 1", result.PerTask["a"].Retries)
	}
}

func TestRunScopeViolationFailsTaskEvenOnAgentSuccess(t *testing.T) {
	g := buildGraph(t, task("a"))
	rc := newRunContext(1)
	agent := newFakeAgent()
	agent.outcomes["a"] = []models.TaskOutcome{
		{Status: models.OutcomeCompleted, FilesTouched: []string{"not-owned.go"}},
		{Status: models.OutcomeCompleted, FilesTouched: []string{"not-owned.go"}},
	}
	coord := newFakeCoordinator()
	guard := scope.New(g)

	s := New(g, rc, agent, coord, guard, nil)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.PerTask["a"].FinalState != models.StateFailed {
		t.Errorf("a final state = %v, want failed due to out-of-scope write", result.PerTask["a"].FinalState)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name      string
		states    []models.TaskState
		cancelled bool
		want      models.OverallStatus
	}{
		{"all completed", []models.TaskState{models.StateCompleted, models.StateCompleted}, false, models.StatusSuccess},
		{"some failed", []models.TaskState{models.StateCompleted, models.StateFailed}, false, models.StatusPartial},
		{"all failed", []models.TaskState{models.StateFailed, models.StateFailed}, false, models.StatusFailed},
		{"cancelled takes priority over completed", []models.TaskState{models.StateCompleted, models.StateCompleted}, true, models.StatusCancelled},
		{"cancelled takes priority over failed", []models.TaskState{models.StateFailed}, true, models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overallStatus(tt.states, tt.cancelled); got != tt.want {
				t.Errorf("overallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

var errAgentBoom = &boomError{}

type boomError struct{}

func (e *boomError) Error() string { return "agent boom" }
