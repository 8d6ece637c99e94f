// Package g711 implements µ-law and A-law audio codecs over S16LE PCM.
package g711

import (
	"context"
	"iter"
	"time"

	zg711 "github.com/zaf/g711"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Law selects the companding curve.
type Law int

const (
	ULaw Law = iota
	ALaw
)

// MIME returns the compressed MIME kind for the law.
func (l Law) MIME() string {
	if l == ALaw {
		return media.MIMEPCMA
	}
	return media.MIMEPCMU
}

func (l Law) String() string {
	if l == ALaw {
		return "alaw"
	}
	return "ulaw"
}

func (l Law) encode(pcm []byte) []byte {
	if l == ALaw {
		return zg711.EncodeAlaw(pcm)
	}
	return zg711.EncodeUlaw(pcm)
}

func (l Law) decode(data []byte) []byte {
	if l == ALaw {
		return zg711.DecodeAlaw(data)
	}
	return zg711.DecodeUlaw(data)
}

// LawFor maps a MIME kind to its law.
func LawFor(mime string) (Law, bool) {
	switch mime {
	case media.MIMEPCMU:
		return ULaw, true
	case media.MIMEPCMA:
		return ALaw, true
	}
	return 0, false
}

func fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

func one[T any](v T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		yield(v, nil)
	}
}

type state struct {
	format     media.TrackFormat
	configured bool
	ended      bool
	released   bool
}

func (s *state) usable(op string) error {
	switch {
	case s.released:
		return media.CodecError(op, nil, "codec released")
	case !s.configured:
		return media.CodecError(op, nil, "codec not configured")
	case s.ended:
		return media.CodecError(op, nil, "end of stream already signalled")
	}
	return nil
}

func (s *state) begin(ctx context.Context, op string, f media.TrackFormat, mime string) error {
	if err := ctx.Err(); err != nil {
		return media.InitError(op, err, "")
	}
	if s.released || s.configured {
		return media.InitError(op, nil, "codec already configured or released")
	}
	if f.Kind != media.KindAudio {
		return media.InitError(op, nil, "g711 needs an audio track, got %s", f.Kind)
	}
	if f.MIME != mime {
		return media.InitError(op, nil, "input is %s, want %s", f.MIME, mime)
	}
	if err := f.Validate(); err != nil {
		return media.InitError(op, err, "")
	}
	return nil
}

// Encoder compresses S16LE PCM. Each input buffer becomes one sample.
type Encoder struct {
	state
	law     Law
	lastPTS int64
}

// NewEncoder creates an encoder for law.
func NewEncoder(law Law) *Encoder {
	return &Encoder{law: law}
}

// Configure takes an audio/raw input and returns the companded format.
func (e *Encoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	if err := e.begin(ctx, "g711.configure", in, media.MIMERawAudio); err != nil {
		return media.TrackFormat{}, err
	}
	out := media.TrackFormat{
		Kind:       media.KindAudio,
		MIME:       e.law.MIME(),
		SampleRate: in.SampleRate,
		Channels:   in.Channels,
		Bitrate:    in.SampleRate * in.Channels * 8,
	}
	e.format = out
	e.configured = true
	return out, nil
}

func (e *Encoder) Encode(unit media.RawUnit) iter.Seq2[media.Sample, error] {
	if err := e.usable("g711.encode"); err != nil {
		return fail[media.Sample](err)
	}
	if unit.Kind != media.KindAudio {
		return fail[media.Sample](media.CodecError("g711.encode", nil, "%s unit sent to audio encoder", unit.Kind))
	}
	if frame := media.BytesPerSample * e.format.Channels; len(unit.Payload)%frame != 0 {
		return fail[media.Sample](media.CodecError("g711.encode", nil, "pcm buffer of %d bytes is not a multiple of %d", len(unit.Payload), frame))
	}

	pts := media.Micros(unit.Timestamp)
	e.lastPTS = max(e.lastPTS, pts)
	return one(media.Sample{
		Payload:  e.law.encode(unit.Payload),
		PTS:      pts,
		KeyFrame: true,
	})
}

func (e *Encoder) SignalEndOfStream() iter.Seq2[media.Sample, error] {
	if err := e.usable("g711.end_of_stream"); err != nil {
		return fail[media.Sample](err)
	}
	e.ended = true
	return one(media.Sample{PTS: e.lastPTS, EndOfStream: true})
}

func (e *Encoder) Release() error {
	e.released = true
	return nil
}

// Decoder expands companded samples back into S16LE PCM.
type Decoder struct {
	state
	law      Law
	lastTime time.Duration
}

// NewDecoder creates a decoder for law.
func NewDecoder(law Law) *Decoder {
	return &Decoder{law: law}
}

// Configure takes the stored pcmu/pcma format and returns audio/raw.
func (d *Decoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	if err := d.begin(ctx, "g711.configure", in, d.law.MIME()); err != nil {
		return media.TrackFormat{}, err
	}
	out := media.TrackFormat{
		Kind:       media.KindAudio,
		MIME:       media.MIMERawAudio,
		SampleRate: in.SampleRate,
		Channels:   in.Channels,
		Bitrate:    in.SampleRate * in.Channels * 16,
	}
	d.format = out
	d.configured = true
	return out, nil
}

func (d *Decoder) Decode(sample media.Sample) iter.Seq2[media.RawUnit, error] {
	if err := d.usable("g711.decode"); err != nil {
		return fail[media.RawUnit](err)
	}
	if len(sample.Payload) == 0 {
		return func(func(media.RawUnit, error) bool) {}
	}
	if len(sample.Payload)%d.format.Channels != 0 {
		return fail[media.RawUnit](media.CodecError("g711.decode", nil, "%d bytes for %d channels", len(sample.Payload), d.format.Channels))
	}

	ts := sample.PTSDuration()
	d.lastTime = max(d.lastTime, ts)
	return one(media.RawUnit{
		Kind:      media.KindAudio,
		Payload:   d.law.decode(sample.Payload),
		Timestamp: ts,
	})
}

func (d *Decoder) SignalEndOfStream() iter.Seq2[media.RawUnit, error] {
	if err := d.usable("g711.end_of_stream"); err != nil {
		return fail[media.RawUnit](err)
	}
	d.ended = true
	return one(media.RawUnit{Kind: media.KindAudio, Timestamp: d.lastTime, EndOfStream: true})
}

func (d *Decoder) Release() error {
	d.released = true
	return nil
}
