package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/taskforge/taskforge/internal/statemachine"
	"github.com/taskforge/taskforge/pkg/models"
)

// Transcript is a self-contained, replayable record of one run: every
// task's final state, its full transition history, and the dependency
// edges that governed it. Named in spec.md §6/§8 as a debugging aid and a
// round-trip-idempotence testable property.
type Transcript struct {
	States       map[string]models.TaskState    `json:"states"`
	Transitions  map[string][]models.Transition `json:"transitions"`
	Dependencies map[string][]string            `json:"dependencies"`
}

// Transcript exports the most recent Run's full transition history. It
// returns an error if Run has not yet been called.
func (o *Orchestrator) Transcript() (*Transcript, error) {
	if o.lastGraph == nil || o.lastRecords == nil {
		return nil, fmt.Errorf("orchestrator: no run to export a transcript from")
	}

	t := &Transcript{
		States:       make(map[string]models.TaskState, len(o.lastRecords)),
		Transitions:  make(map[string][]models.Transition, len(o.lastRecords)),
		Dependencies: make(map[string][]string, len(o.lastRecords)),
	}
	for id, rec := range o.lastRecords {
		t.States[id] = rec.State
		t.Transitions[id] = rec.TransitionHistory
		t.Dependencies[id] = o.lastGraph.Dependencies(id)
	}
	return t, nil
}

// MarshalTranscript serializes a Transcript to indented JSON.
func MarshalTranscript(t *Transcript) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// UnmarshalTranscript parses a Transcript previously produced by
// MarshalTranscript.
func UnmarshalTranscript(data []byte) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	return &t, nil
}

// Replay re-derives each task's final state from its recorded transition
// history by replaying the transitions through the legal-transition table,
// rather than trusting the recorded States map verbatim — the
// round-trip-idempotence property this supports is that Replay(Export())
// reproduces the same final states the live run reached.
func Replay(t *Transcript) (map[string]models.TaskState, error) {
	derived := make(map[string]models.TaskState, len(t.Transitions))
	for id, transitions := range t.Transitions {
		state := models.StatePending
		for _, tr := range transitions {
			if tr.From != state {
				return nil, fmt.Errorf("transcript: task %s transition history is inconsistent: expected from=%s, got from=%s", id, state, tr.From)
			}
			if !statemachine.IsLegal(state, tr.To) {
				return nil, fmt.Errorf("transcript: task %s: illegal transition %s -> %s", id, state, tr.To)
			}
			state = tr.To
		}
		derived[id] = state
	}
	return derived, nil
}
