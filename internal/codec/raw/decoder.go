package raw

import (
	"context"
	"iter"
	"time"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Decoder unwraps raw samples back into units.
type Decoder struct {
	lifecycle
	pending  delayLine[media.RawUnit]
	lastTime time.Duration
}

// NewDecoder creates an unconfigured decoder.
func NewDecoder(opts ...Option) *Decoder {
	o := apply(opts)
	return &Decoder{pending: delayLine[media.RawUnit]{depth: o.delay}}
}

// Configure accepts the stored track format and returns it as the raw
// output format.
func (d *Decoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	if err := d.configure(ctx, "raw.configure", in); err != nil {
		return media.TrackFormat{}, err
	}
	return in, nil
}

// Decode turns sample into a unit. An empty end-of-stream sample produces
// nothing; the caller drains with SignalEndOfStream.
func (d *Decoder) Decode(sample media.Sample) iter.Seq2[media.RawUnit, error] {
	if err := d.usable("raw.decode"); err != nil {
		return fail[media.RawUnit](err)
	}
	if sample.EndOfStream && len(sample.Payload) == 0 {
		return func(func(media.RawUnit, error) bool) {}
	}
	if err := checkPayload(d.format, sample.Payload); err != nil {
		return fail[media.RawUnit](media.CodecError("raw.decode", err, ""))
	}

	ts := sample.PTSDuration()
	d.lastTime = max(d.lastTime, ts)
	d.pending.push(media.RawUnit{
		Kind:      d.format.Kind,
		Payload:   sample.Payload,
		Timestamp: ts,
	})
	return d.pending.ready()
}

// SignalEndOfStream releases everything held and ends with an EOS unit.
func (d *Decoder) SignalEndOfStream() iter.Seq2[media.RawUnit, error] {
	if err := d.usable("raw.end_of_stream"); err != nil {
		return fail[media.RawUnit](err)
	}
	d.ended = true
	return d.pending.flush(media.RawUnit{Kind: d.format.Kind, Timestamp: d.lastTime, EndOfStream: true})
}

// Release drops buffered output.
func (d *Decoder) Release() error {
	d.released = true
	d.pending.items = nil
	return nil
}
