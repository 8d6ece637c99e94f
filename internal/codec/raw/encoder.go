package raw

import (
	"context"
	"iter"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Encoder wraps raw units into samples without compressing them. Every
// sample is a key frame.
type Encoder struct {
	lifecycle
	pending delayLine[media.Sample]
	lastPTS int64
}

// NewEncoder creates an unconfigured encoder.
func NewEncoder(opts ...Option) *Encoder {
	o := apply(opts)
	return &Encoder{pending: delayLine[media.Sample]{depth: o.delay}}
}

// Configure accepts a raw format and returns it unchanged, with the bitrate
// filled in when the caller left it empty.
func (e *Encoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	if err := e.configure(ctx, "raw.configure", in); err != nil {
		return media.TrackFormat{}, err
	}
	out := in
	if out.Bitrate == 0 {
		out.Bitrate = rawBitrate(in)
	}
	e.format = out
	return out, nil
}

// Encode copies unit into a sample. Output is held back by the delay line.
func (e *Encoder) Encode(unit media.RawUnit) iter.Seq2[media.Sample, error] {
	if err := e.usable("raw.encode"); err != nil {
		return fail[media.Sample](err)
	}
	if unit.Kind != e.format.Kind {
		return fail[media.Sample](media.CodecError("raw.encode", nil, "%s unit sent to %s encoder", unit.Kind, e.format.Kind))
	}
	if err := checkPayload(e.format, unit.Payload); err != nil {
		return fail[media.Sample](media.CodecError("raw.encode", err, ""))
	}

	pts := media.Micros(unit.Timestamp)
	e.lastPTS = max(e.lastPTS, pts)
	e.pending.push(media.Sample{
		Payload:  unit.Payload,
		PTS:      pts,
		KeyFrame: true,
	})
	return e.pending.ready()
}

// SignalEndOfStream releases everything held and ends with an empty EOS
// sample at the last seen timestamp.
func (e *Encoder) SignalEndOfStream() iter.Seq2[media.Sample, error] {
	if err := e.usable("raw.end_of_stream"); err != nil {
		return fail[media.Sample](err)
	}
	e.ended = true
	return e.pending.flush(media.Sample{PTS: e.lastPTS, EndOfStream: true})
}

// Release drops buffered output.
func (e *Encoder) Release() error {
	e.released = true
	e.pending.items = nil
	return nil
}
