// Package capture produces raw video frames and PCM audio for a recording
// session: synthetic test sources and ffmpeg-backed v4l2/alsa devices.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// Sink receives captured units. *session.RecordingSession satisfies it.
type Sink interface {
	FeedFrame(unit media.RawUnit)
	FeedAudio(unit media.RawUnit)
}

// Source emits raw units until ctx is done or the source is exhausted.
type Source interface {
	Kind() media.Kind
	Run(ctx context.Context, emit func(media.RawUnit)) error
}

// Clock stamps captured units. All sources feeding one session must share it.
type Clock func() time.Duration

var epoch = time.Now()

// Monotonic is the default clock: time since process start.
func Monotonic() time.Duration {
	return time.Since(epoch)
}

func clockOr(c Clock) Clock {
	if c == nil {
		return Monotonic
	}
	return c
}

// Run drives every source into sink concurrently. It returns when all
// sources have ended, with the first source error. Cancelling ctx is a
// normal stop and is not reported.
func Run(ctx context.Context, sink Sink, sources ...Source) error {
	if len(sources) == 0 {
		return errors.New("no capture sources")
	}
	logger := logging.GetLogger("capture")

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		var emit func(media.RawUnit)
		switch src.Kind() {
		case media.KindVideo:
			emit = sink.FeedFrame
		case media.KindAudio:
			emit = sink.FeedAudio
		default:
			return fmt.Errorf("unsupported source kind %q", src.Kind())
		}
		g.Go(func() error {
			logger.Debug("Capture source started", "kind", src.Kind())
			err := src.Run(ctx, emit)
			if err != nil && ctx.Err() == nil {
				logger.Warn("Capture source failed", "kind", src.Kind(), "error", err)
				return fmt.Errorf("%s source: %w", src.Kind(), err)
			}
			logger.Debug("Capture source ended", "kind", src.Kind())
			return nil
		})
	}
	return g.Wait()
}
