package api

import (
	"time"

	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/jobs"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/session"
)

// StatePublisher returns a session.Options.OnStateChange hook that posts
// transitions to bus.
func StatePublisher(bus *events.Bus) func(session.StateChange) {
	return func(c session.StateChange) {
		ev := events.SessionStateEvent{
			Kind:      string(c.Kind),
			SessionID: c.ID,
			From:      c.From.String(),
			To:        c.To.String(),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if c.Err != nil {
			ev.Error = c.Err.Error()
		}
		bus.Publish(ev)
	}
}

// JobPublisher returns a jobs.Options.OnComplete hook that posts finished
// jobs to bus.
func JobPublisher(bus *events.Bus) func(jobs.Job) {
	return func(j jobs.Job) {
		finished := j.FinishedAt
		if finished.IsZero() {
			finished = time.Now()
		}
		bus.Publish(events.JobCompletedEvent{
			JobID:     j.ID,
			Kind:      j.Kind,
			State:     string(j.State),
			Error:     j.Error,
			Code:      j.Code,
			Seconds:   j.Elapsed().Seconds(),
			Timestamp: finished.Format(time.RFC3339),
		})
	}
}

// LogPublisher returns a logging callback that posts every buffered entry
// to bus.
func LogPublisher(bus *events.Bus) logging.LogCallback {
	return func(entry logging.LogEntry) {
		bus.Publish(LogEvent(entry))
	}
}
