package orchestrator

import (
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/pkg/models"
)

func buildGraph(t *testing.T, tasks ...models.Task) *dag.Graph {
	t.Helper()
	g, err := dag.Build(&models.Plan{Name: "p", Tasks: tasks})
	if err != nil {
		t.Fatalf("dag.Build() error = %v", err)
	}
	return g
}

func TestTranscriptRoundTripReproducesFinalStates(t *testing.T) {
	g := buildGraph(t,
		models.Task{ID: "a", Name: "a", Complexity: models.ComplexityM},
		models.Task{ID: "b", Name: "b", Complexity: models.ComplexityM, Dependencies: []string{"a"}},
	)

	recA := models.NewTaskRecord("a", 1)
	recA.Transition(models.StateReady, "", time.Unix(0, 0))
	recA.Transition(models.StateQueued, "", time.Unix(1, 0))
	recA.Transition(models.StateRunning, "", time.Unix(2, 0))
	recA.Transition(models.StateCompleted, "", time.Unix(3, 0))

	recB := models.NewTaskRecord("b", 1)
	recB.Transition(models.StateBlocked, "", time.Unix(0, 0))
	recB.Transition(models.StateReady, "", time.Unix(4, 0))
	recB.Transition(models.StateQueued, "", time.Unix(5, 0))
	recB.Transition(models.StateRunning, "", time.Unix(6, 0))
	recB.Transition(models.StateFailed, "", time.Unix(7, 0))

	o := &Orchestrator{
		lastGraph:   g,
		lastRecords: map[string]*models.TaskRecord{"a": recA, "b": recB},
	}

	transcript, err := o.Transcript()
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(transcript.Dependencies["b"]) != 1 || transcript.Dependencies["b"][0] != "a" {
		t.Errorf("Dependencies[b] = %v, want [a]", transcript.Dependencies["b"])
	}

	data, err := MarshalTranscript(transcript)
	if err != nil {
		t.Fatalf("MarshalTranscript() error = %v", err)
	}

	roundTripped, err := UnmarshalTranscript(data)
	if err != nil {
		t.Fatalf("UnmarshalTranscript() error = %v", err)
	}

	derived, err := Replay(roundTripped)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if derived["a"] != models.StateCompleted {
		t.Errorf("derived[a] = %v, want completed", derived["a"])
	}
	if derived["b"] != models.StateFailed {
		t.Errorf("derived[b] = %v, want failed", derived["b"])
	}
}

func TestReplayRejectsInconsistentHistory(t *testing.T) {
	transcript := &Transcript{
		Transitions: map[string][]models.Transition{
			"a": {
				{From: models.StatePending, To: models.StateReady},
				{From: models.StateBlocked, To: models.StateQueued}, // doesn't follow from ready
			},
		},
	}
	if _, err := Replay(transcript); err == nil {
		t.Fatal("expected error for inconsistent transition history")
	}
}

func TestTranscriptErrorsBeforeRun(t *testing.T) {
	o := &Orchestrator{}
	if _, err := o.Transcript(); err == nil {
		t.Fatal("expected error when no run has happened yet")
	}
}
