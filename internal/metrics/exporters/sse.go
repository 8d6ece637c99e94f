package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// RecordingStatsFunc reports the current recording, if any.
type RecordingStatsFunc func() (events.RecordingStatsEvent, bool)

// SSEExporter periodically publishes encoder progress and recording stats
// to the event bus.
type SSEExporter struct {
	eventBus  EventPublisher
	recording RecordingStatsFunc
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter. recording may be nil.
func NewSSEExporter(eventBus EventPublisher, recording RecordingStatsFunc) *SSEExporter {
	return &SSEExporter{
		eventBus:  eventBus,
		recording: recording,
		interval:  1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *SSEExporter) publish() {
	for process, p := range metrics.GetAllFFmpegProgress() {
		s.eventBus.Publish(events.EncoderProgressEvent{
			Process:         process,
			Frames:          strconv.FormatFloat(p.Frames, 'f', 0, 64),
			FPS:             strconv.FormatFloat(p.FPS, 'f', 2, 64),
			BitrateKbps:     strconv.FormatFloat(p.BitrateKbps, 'f', 1, 64),
			DroppedFrames:   strconv.FormatFloat(p.DroppedFrames, 'f', 0, 64),
			DuplicateFrames: strconv.FormatFloat(p.DuplicateFrames, 'f', 0, 64),
			Speed:           strconv.FormatFloat(p.Speed, 'f', 2, 64),
		})
	}
	if s.recording == nil {
		return
	}
	if stats, ok := s.recording(); ok {
		s.eventBus.Publish(stats)
	}
}
