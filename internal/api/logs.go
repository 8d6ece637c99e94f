package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/wasd845/AVGraphics/internal/api/models"
	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// registerLogRoutes registers the log buffer endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Read the newest entries of the in-memory log buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		minRank := 0
		if input.Level != "" {
			rank, ok := levelRank[input.Level]
			if !ok {
				return nil, huma.Error400BadRequest("unknown level: " + input.Level)
			}
			minRank = rank
		}

		buffer := logging.GetBuffer()
		// Filter over the whole buffer, then keep the newest limit entries.
		entries := make([]models.LogEntryData, 0)
		for _, e := range buffer.Tail(0) {
			if levelRank[e.Level] < minRank {
				continue
			}
			if input.Module != "" && e.Module != input.Module {
				continue
			}
			entries = append(entries, logEntryData(e))
		}
		if input.Limit > 0 && len(entries) > input.Limit {
			entries = slices.Clone(entries[len(entries)-input.Limit:])
		}

		return &models.LogsResponse{
			Body: models.LogsData{
				Entries: entries,
				Count:   len(entries),
				Total:   buffer.Count(),
			},
		}, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost;
		// the sequence number drops the overlap.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var lastSeq uint64
		backlog := logging.GetBuffer().Tail(0)
		if len(backlog) == 0 {
			// Nothing buffered yet; confirm the connection so headers flush.
			if err := send.Data(events.LogEntryEvent{
				Timestamp: time.Now().Format(time.RFC3339Nano),
				Level:     "info",
				Module:    "api",
				Message:   "SSE connection established",
			}); err != nil {
				return
			}
		}
		for _, entry := range backlog {
			if err := send.Data(LogEvent(entry)); err != nil {
				return
			}
			lastSeq = entry.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if e, ok := event.(events.LogEntryEvent); ok && e.Seq <= lastSeq {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func logEntryData(e logging.LogEntry) models.LogEntryData {
	return models.LogEntryData{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp,
		Level:      e.Level,
		Module:     e.Module,
		Message:    e.Message,
		Attributes: e.Attributes,
	}
}

// LogEvent converts a buffered entry to its SSE event.
func LogEvent(e logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
		Level:      e.Level,
		Module:     e.Module,
		Message:    e.Message,
		Attributes: e.Attributes,
	}
}
