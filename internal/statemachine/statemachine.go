// Package statemachine implements the pure, side-effect-free task lifecycle
// described in spec.md §3/§4.1: the legal transition table, the
// dependency-driven next-state policy, and run-wide stats/progress.
package statemachine

import (
	"fmt"

	"github.com/taskforge/taskforge/pkg/models"
)

// legal is the fixed transition table from spec.md §3:
//
//	pending  -> ready | blocked | skipped
//	ready    -> queued | skipped
//	blocked  -> ready | skipped
//	queued   -> running | skipped
//	running  -> completed | failed
//	failed   -> queued (retry)
var legal = map[models.TaskState]map[models.TaskState]bool{
	models.StatePending: {
		models.StateReady:   true,
		models.StateBlocked: true,
		models.StateSkipped: true,
	},
	models.StateReady: {
		models.StateQueued:  true,
		models.StateSkipped: true,
	},
	models.StateBlocked: {
		models.StateReady:   true,
		models.StateSkipped: true,
	},
	models.StateQueued: {
		models.StateRunning: true,
		models.StateSkipped: true,
	},
	models.StateRunning: {
		models.StateCompleted: true,
		models.StateFailed:    true,
	},
	models.StateFailed: {
		models.StateQueued: true,
	},
}

// ErrIllegalTransition is the panic value raised when a caller attempts a
// transition IsLegal reports as false. Per spec.md §4.1, an illegal
// transition "is a contract violation and must propagate as a programming
// error to the caller; never silently ignored" — in Go that means panic,
// not a returned error, since no legitimate caller should ever construct one.
type ErrIllegalTransition struct {
	From models.TaskState
	To   models.TaskState
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal task state transition: %s -> %s", e.From, e.To)
}

// IsLegal reports whether the transition from -> to is present in the
// fixed transition table.
func IsLegal(from, to models.TaskState) bool {
	return legal[from][to]
}

// MustTransition panics with ErrIllegalTransition if IsLegal(from, to) is
// false; otherwise it is a no-op assertion helper for callers (principally
// internal/scheduler) that have already decided a transition and want a
// cheap, centralized legality assertion before applying it.
func MustTransition(from, to models.TaskState) {
	if !IsLegal(from, to) {
		panic(ErrIllegalTransition{From: from, To: to})
	}
}

// NextFromDependencies implements the deterministic policy of spec.md
// §4.1: given the current state of a task and the states of its
// dependencies, compute the next state, or false if no transition applies.
//
//  1. If any dependency is failed or skipped: yield skipped if legal from
//     current, else none.
//  2. Else if all dependencies are completed and current is pending or
//     blocked: yield ready.
//  3. Else if any dependency is running or queued and current is pending:
//     yield blocked.
//  4. Else none.
func NextFromDependencies(current models.TaskState, depStates []models.TaskState) (models.TaskState, bool) {
	anyFailedOrSkipped := false
	allCompleted := true // vacuously true when depStates is empty
	anyRunningOrQueued := false

	for _, d := range depStates {
		switch d {
		case models.StateFailed, models.StateSkipped:
			anyFailedOrSkipped = true
		case models.StateRunning, models.StateQueued:
			anyRunningOrQueued = true
		}
		if d != models.StateCompleted {
			allCompleted = false
		}
	}

	if anyFailedOrSkipped {
		if IsLegal(current, models.StateSkipped) {
			return models.StateSkipped, true
		}
		return "", false
	}
	if allCompleted && (current == models.StatePending || current == models.StateBlocked) {
		return models.StateReady, true
	}
	if anyRunningOrQueued && current == models.StatePending {
		return models.StateBlocked, true
	}
	return "", false
}

// ComputeStats tallies the given states into a histogram of state -> count.
func ComputeStats(states []models.TaskState) models.Histogram {
	h := make(models.Histogram)
	for _, s := range states {
		h[s]++
	}
	return h
}

// Progress reports how many of the given states are terminal.
func Progress(states []models.TaskState) models.Progress {
	total := len(states)
	done := 0
	for _, s := range states {
		if s.IsTerminal() {
			done++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	return models.Progress{Done: done, Total: total, Percent: pct}
}
