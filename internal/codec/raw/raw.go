// Package raw implements passthrough codecs for video/raw and audio/raw.
//
// Units are copied through unchanged. An optional delay line holds the last
// n outputs back until more input arrives or end of stream is signalled, the
// way a real codec keeps frames in flight.
package raw

import (
	"context"
	"fmt"
	"iter"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Option configures a raw codec.
type Option func(*options)

type options struct {
	delay int
}

// WithDelay holds n outputs back inside the codec. Negative values are
// treated as zero.
func WithDelay(n int) Option {
	return func(o *options) {
		o.delay = max(n, 0)
	}
}

func apply(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IsRaw reports whether mime is one of the raw kinds.
func IsRaw(mime string) bool {
	return mime == media.MIMERawVideo || mime == media.MIMERawAudio
}

// checkFormat validates a raw track format for either direction.
func checkFormat(op string, f media.TrackFormat) error {
	if err := f.Validate(); err != nil {
		return media.InitError(op, err, "")
	}
	if !IsRaw(f.MIME) {
		return media.InitError(op, nil, "%s is not a raw format", f.MIME)
	}
	if f.Kind == media.KindVideo && f.PixelFormat == "" {
		return media.InitError(op, nil, "raw video needs a pixel format")
	}
	if f.Kind == media.KindVideo && f.MIME != media.MIMERawVideo {
		return media.InitError(op, nil, "video track with %s", f.MIME)
	}
	if f.Kind == media.KindAudio && f.MIME != media.MIMERawAudio {
		return media.InitError(op, nil, "audio track with %s", f.MIME)
	}
	return nil
}

// checkPayload verifies that payload is a whole number of frames or samples.
func checkPayload(f media.TrackFormat, payload []byte) error {
	switch f.Kind {
	case media.KindVideo:
		if want := f.FrameSize(); len(payload) != want {
			return fmt.Errorf("frame is %d bytes, want %d", len(payload), want)
		}
	case media.KindAudio:
		frame := media.BytesPerSample * f.Channels
		if len(payload)%frame != 0 {
			return fmt.Errorf("pcm buffer of %d bytes is not a multiple of %d", len(payload), frame)
		}
	}
	return nil
}

// rawBitrate is the uncompressed bitrate of f, or 0 when the frame rate of
// a video track is unknown.
func rawBitrate(f media.TrackFormat) int {
	if f.Kind == media.KindAudio {
		return f.SampleRate * f.Channels * media.BytesPerSample * 8
	}
	return f.FrameSize() * 8 * f.FrameRate
}

// delayLine is a FIFO that releases items once more than depth are held.
type delayLine[T any] struct {
	depth int
	items []T
}

func (d *delayLine[T]) push(v T) {
	d.items = append(d.items, v)
}

// ready yields the items that exceed the delay depth.
func (d *delayLine[T]) ready() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for len(d.items) > d.depth {
			v := d.items[0]
			d.items = d.items[1:]
			if !yield(v, nil) {
				return
			}
		}
	}
}

// flush yields everything still held then tail.
func (d *delayLine[T]) flush(tail T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for len(d.items) > 0 {
			v := d.items[0]
			d.items = d.items[1:]
			if !yield(v, nil) {
				return
			}
		}
		yield(tail, nil)
	}
}

type lifecycle struct {
	format     media.TrackFormat
	configured bool
	ended      bool
	released   bool
}

func (l *lifecycle) configure(ctx context.Context, op string, f media.TrackFormat) error {
	if err := ctx.Err(); err != nil {
		return media.InitError(op, err, "")
	}
	if l.released {
		return media.InitError(op, nil, "codec released")
	}
	if l.configured {
		return media.InitError(op, nil, "already configured")
	}
	if err := checkFormat(op, f); err != nil {
		return err
	}
	l.format = f
	l.configured = true
	return nil
}

func (l *lifecycle) usable(op string) error {
	switch {
	case l.released:
		return media.CodecError(op, nil, "codec released")
	case !l.configured:
		return media.CodecError(op, nil, "codec not configured")
	case l.ended:
		return media.CodecError(op, nil, "end of stream already signalled")
	}
	return nil
}

func fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
