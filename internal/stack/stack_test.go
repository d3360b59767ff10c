package stack

import (
	"errors"
	"testing"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/pkg/models"
)

// fakeBackend records calls and lets a test script conflicts per commit.
type fakeBackend struct {
	branchesCreated []string
	cherryPicked    []string
	conflictFor     map[string]bool
	submitErr       error
	submitURLs      []string
	aborts          int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{conflictFor: make(map[string]bool)}
}

func (f *fakeBackend) CheckoutNewBranchFrom(workdir, branch, baseRef string) error {
	f.branchesCreated = append(f.branchesCreated, branch)
	return nil
}

func (f *fakeBackend) CherryPick(workdir, commit string) error {
	f.cherryPicked = append(f.cherryPicked, commit)
	if f.conflictFor[commit] {
		return errors.New("conflict")
	}
	return nil
}

func (f *fakeBackend) HasConflicts(workdir string) (bool, error) {
	// last cherry-pick attempted determines conflict state
	if len(f.cherryPicked) == 0 {
		return false, nil
	}
	return f.conflictFor[f.cherryPicked[len(f.cherryPicked)-1]], nil
}

func (f *fakeBackend) AbortMerge(workdir string) error {
	f.aborts++
	return nil
}

func (f *fakeBackend) ResetHard(workdir, ref string) error { return nil }

func (f *fakeBackend) Restack(workdir, parent string) error { return nil }

func (f *fakeBackend) Submit(branches []string, opts SubmitOpts) ([]string, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitURLs, nil
}

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

func TestAssembleDependencyOrderChainsBranches(t *testing.T) {
	g := buildGraph(t, task("a"), task("b", "a"))
	backend := newFakeBackend()
	b := New(backend, "/repo")
	rc := &models.RunContext{
		StackingStrategy: models.StackDependencyOrder,
		ConflictPolicy:   models.ConflictAuto,
		BranchPrefix:     "stack",
		BaseRef:          "main",
	}

	result, err := b.Assemble(g, []TaskCommit{{TaskID: "b", Commit: "c-b"}, {TaskID: "a", Commit: "c-a"}}, rc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	want := []string{"stack/a", "stack/b"}
	if len(result.Branches) != 2 || result.Branches[0] != want[0] || result.Branches[1] != want[1] {
		t.Errorf("Branches = %v, want %v", result.Branches, want)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", result.Conflicts)
	}
}

func TestAssembleAutoPolicySkipsConflictingTaskAndContinues(t *testing.T) {
	g := buildGraph(t, task("a"), task("b", "a"), task("c", "b"))
	backend := newFakeBackend()
	backend.conflictFor["c-b"] = true
	b := New(backend, "/repo")
	rc := &models.RunContext{
		StackingStrategy: models.StackDependencyOrder,
		ConflictPolicy:   models.ConflictAuto,
		BaseRef:          "main",
	}

	result, err := b.Assemble(g, []TaskCommit{
		{TaskID: "a", Commit: "c-a"},
		{TaskID: "b", Commit: "c-b"},
		{TaskID: "c", Commit: "c-c"},
	}, rc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].TaskID != "b" {
		t.Errorf("Conflicts = %+v, want one conflict for b", result.Conflicts)
	}
	if backend.aborts != 1 {
		t.Errorf("aborts = %d, want 1", backend.aborts)
	}
	// a still lands; c still attempts since auto policy keeps building the
	// rest of the chain after skipping the conflicting task.
	for _, branch := range []string{"a", "c"} {
		found := false
		for _, got := range result.Branches {
			if got == branch {
				found = true
			}
		}
		if !found {
			t.Errorf("expected branch %q in result, got %v", branch, result.Branches)
		}
	}
}

func TestAssembleFailPolicyAbortsWholeFinalize(t *testing.T) {
	g := buildGraph(t, task("a"))
	backend := newFakeBackend()
	backend.conflictFor["c-a"] = true
	b := New(backend, "/repo")
	rc := &models.RunContext{
		StackingStrategy: models.StackDependencyOrder,
		ConflictPolicy:   models.ConflictFail,
		BaseRef:          "main",
	}

	_, err := b.Assemble(g, []TaskCommit{{TaskID: "a", Commit: "c-a"}}, rc)
	if !errors.Is(err, models.ErrStackConflict) {
		t.Errorf("Assemble() error = %v, want ErrStackConflict", err)
	}
}

func TestAssembleManualPolicyRecordsConflictAndHalts(t *testing.T) {
	g := buildGraph(t, task("a"), task("b", "a"))
	backend := newFakeBackend()
	backend.conflictFor["c-a"] = true
	b := New(backend, "/repo")
	rc := &models.RunContext{
		StackingStrategy: models.StackDependencyOrder,
		ConflictPolicy:   models.ConflictManual,
		BaseRef:          "main",
	}

	result, err := b.Assemble(g, []TaskCommit{{TaskID: "a", Commit: "c-a"}, {TaskID: "b", Commit: "c-b"}}, rc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].TaskID != "a" {
		t.Errorf("Conflicts = %+v, want one conflict for a", result.Conflicts)
	}
}

func TestAssembleComplexityFirstBreaksTiesByAscendingComplexity(t *testing.T) {
	tasks := []models.Task{
		{ID: "big", Name: "big", Complexity: models.ComplexityXL, Files: []string{"a.go"}},
		{ID: "small", Name: "small", Complexity: models.ComplexityXS, Files: []string{"b.go"}},
	}
	g2 := buildGraph(t, tasks...)
	backend := newFakeBackend()
	b := New(backend, "/repo")
	rc := &models.RunContext{StackingStrategy: models.StackComplexityFirst, ConflictPolicy: models.ConflictAuto, BaseRef: "main"}

	result, err := b.Assemble(g2, []TaskCommit{{TaskID: "big", Commit: "c-big"}, {TaskID: "small", Commit: "c-small"}}, rc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(result.Branches) != 2 || result.Branches[0] != "small" || result.Branches[1] != "big" {
		t.Errorf("Branches = %v, want [small big]", result.Branches)
	}
}

func TestAssembleSubmitCollectsReviewURLs(t *testing.T) {
	g := buildGraph(t, task("a"))
	backend := newFakeBackend()
	backend.submitURLs = []string{"https://example.com/pr/1"}
	b := New(backend, "/repo")
	rc := &models.RunContext{StackingStrategy: models.StackDependencyOrder, ConflictPolicy: models.ConflictAuto, BaseRef: "main", Submit: true}

	result, err := b.Assemble(g, []TaskCommit{{TaskID: "a", Commit: "c-a"}}, rc)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(result.ReviewURLs) != 1 || result.ReviewURLs[0] != "https://example.com/pr/1" {
		t.Errorf("ReviewURLs = %v", result.ReviewURLs)
	}
}
