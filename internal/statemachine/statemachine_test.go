package statemachine

import (
	"testing"

	"github.com/taskforge/taskforge/pkg/models"
)

func TestIsLegal(t *testing.T) {
	tests := []struct {
		from, to models.TaskState
		want     bool
	}{
		{models.StatePending, models.StateReady, true},
		{models.StatePending, models.StateBlocked, true},
		{models.StatePending, models.StateSkipped, true},
		{models.StatePending, models.StateRunning, false},
		{models.StateReady, models.StateQueued, true},
		{models.StateQueued, models.StateRunning, true},
		{models.StateRunning, models.StateCompleted, true},
		{models.StateRunning, models.StateFailed, true},
		{models.StateRunning, models.StatePending, false},
		{models.StateFailed, models.StateQueued, true},
		{models.StateFailed, models.StateReady, false},
		{models.StateCompleted, models.StateFailed, false},
	}
	for _, tt := range tests {
		if got := IsLegal(tt.from, tt.to); got != tt.want {
			t.Errorf("IsLegal(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMustTransitionPanicsOnIllegal(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on illegal transition")
		}
	}()
	MustTransition(models.StateCompleted, models.StateRunning)
}

func TestNextFromDependencies(t *testing.T) {
	tests := []struct {
		name    string
		current models.TaskState
		deps    []models.TaskState
		want    models.TaskState
		wantOK  bool
	}{
		{"no deps, pending -> ready", models.StatePending, nil, models.StateReady, true},
		{"all completed, pending -> ready", models.StatePending, []models.TaskState{models.StateCompleted, models.StateCompleted}, models.StateReady, true},
		{"one running, pending -> blocked", models.StatePending, []models.TaskState{models.StateRunning}, models.StateBlocked, true},
		{"one queued, pending -> blocked", models.StatePending, []models.TaskState{models.StateQueued}, models.StateBlocked, true},
		{"one failed, pending -> skipped", models.StatePending, []models.TaskState{models.StateFailed}, models.StateSkipped, true},
		{"one skipped, blocked -> skipped", models.StateBlocked, []models.TaskState{models.StateSkipped}, models.StateSkipped, true},
		{"all completed, blocked -> ready", models.StateBlocked, []models.TaskState{models.StateCompleted}, models.StateReady, true},
		{"failed dep but already terminal, no transition", models.StateCompleted, []models.TaskState{models.StateFailed}, "", false},
		{"partial completion with one running, pending -> blocked", models.StatePending, []models.TaskState{models.StateCompleted, models.StateRunning}, models.StateBlocked, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextFromDependencies(tt.current, tt.deps)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NextFromDependencies(%s, %v) = (%s, %v), want (%s, %v)", tt.current, tt.deps, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestComputeStatsAndProgress(t *testing.T) {
	states := []models.TaskState{
		models.StateCompleted, models.StateCompleted, models.StateFailed,
		models.StateRunning, models.StatePending,
	}
	hist := ComputeStats(states)
	if hist[models.StateCompleted] != 2 {
		t.Errorf("expected 2 completed, got %d", hist[models.StateCompleted])
	}
	prog := Progress(states)
	if prog.Done != 3 || prog.Total != 5 {
		t.Errorf("expected done=3 total=5, got done=%d total=%d", prog.Done, prog.Total)
	}
}
