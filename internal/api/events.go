package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/wasd845/AVGraphics/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session state changes, job completions, recording statistics, encoder progress and log entries",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, events.SSETypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStateEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingStatsEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.JobCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderProgressEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial connection confirmation
		if err := send.Data(events.LogEntryEvent{
			Timestamp: time.Now().Format(time.RFC3339Nano),
			Level:     "info",
			Module:    "api",
			Message:   "SSE connection established",
		}); err != nil {
			return
		}

		// Then the current recording, if any.
		if s.recorder != nil {
			if stats, ok := s.recorder.CurrentStats(); ok {
				if err := send.Data(stats); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
