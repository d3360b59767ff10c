package orchestrator

import (
	"time"

	"github.com/taskforge/taskforge/pkg/models"
)

// eventOutputSink forwards agent stdout/stderr lines onto the run's event
// stream as EventAgentStdout/EventAgentStderr events, so a `tforge logs`
// live-attach consumer can observe agent output without reading files.
type eventOutputSink struct {
	rc *models.RunContext
}

func (s *eventOutputSink) AgentStdout(taskID, line string) {
	s.rc.Emit(models.Event{Type: models.EventAgentStdout, At: time.Now(), TaskID: taskID, Payload: models.OutputPayload{Line: line}})
}

func (s *eventOutputSink) AgentStderr(taskID, line string) {
	s.rc.Emit(models.Event{Type: models.EventAgentStderr, At: time.Now(), TaskID: taskID, Payload: models.OutputPayload{Line: line}})
}
