package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// encodeWorker owns one encoder. It configures it, reports the output
// format, encodes every unit until its input closes and then drains the
// encoder into the mux stage.
type encodeWorker struct {
	slot    int
	encoder codec.Encoder
	input   media.TrackFormat
	units   <-chan media.RawUnit
	clock   *timeline
	stage   *muxStage
	logger  logging.Logger

	encoded atomic.Int64
	last    time.Duration
}

func (w *encodeWorker) run(ctx context.Context) {
	err := w.encode(ctx)
	w.stage.in <- muxMsg{kind: msgDone, slot: w.slot, err: err}
	if err != nil {
		// Keep the producer side moving until it closes the input.
		for range w.units {
		}
	}
}

func (w *encodeWorker) encode(ctx context.Context) error {
	defer func() {
		if err := w.encoder.Release(); err != nil {
			w.logger.Warn("Encoder release failed", "track", w.input.Kind.String(), "error", err)
		}
	}()

	out, err := w.encoder.Configure(ctx, w.input)
	if err != nil {
		return media.Coerce(err, media.ErrCodeInit, "session.configure")
	}
	w.stage.in <- muxMsg{kind: msgFormat, slot: w.slot, format: out}

	eos := false
	forward := func(s media.Sample) error {
		if s.EndOfStream {
			eos = true
		}
		if len(s.Payload) > 0 {
			w.encoded.Add(1)
		}
		w.stage.in <- muxMsg{kind: msgSample, slot: w.slot, sample: s}
		return nil
	}

	for unit := range w.units {
		unit.Timestamp = w.timestamp(unit.Timestamp)
		if err := codec.Drain(w.encoder.Encode(unit), forward); err != nil {
			return media.Coerce(err, media.ErrCodeCodec, "session.encode")
		}
	}
	if err := codec.Drain(w.encoder.SignalEndOfStream(), forward); err != nil {
		return media.Coerce(err, media.ErrCodeCodec, "session.drain")
	}
	if !eos {
		return media.CodecError("session.drain", nil, "%s encoder ended without end-of-stream", w.input.Kind)
	}
	return nil
}

// timestamp maps ts onto the session clock and keeps it non-decreasing.
func (w *encodeWorker) timestamp(ts time.Duration) time.Duration {
	if w.clock != nil {
		ts = w.clock.normalize(ts)
	}
	ts = max(ts, w.last)
	w.last = ts
	return ts
}
