package ffmpeg

import (
	"context"
	"iter"
	"sync"
	"time"

	ffcmd "github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/process"
)

// DefaultPixelFormat is the decoder output layout when the stored track
// does not name one.
const DefaultPixelFormat = media.PixelI420

// Decoder expands H.264 access units to raw frames.
type Decoder struct {
	cfg    Config
	logger logging.Logger

	format media.TrackFormat
	pipe   *process.Pipe
	out    *outputQueue
	pts    ptsQueue
	ended  bool

	releaseOnce sync.Once
}

// NewDecoder creates an unconfigured decoder.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{cfg: cfg, logger: cfg.logger()}
}

// Configure starts ffmpeg for the stored track geometry. The raw output uses
// the track's pixel format when it carries one, DefaultPixelFormat otherwise.
func (d *Decoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	const op = "avc.configure"
	if d.pipe != nil {
		return media.TrackFormat{}, media.InitError(op, nil, "already configured")
	}
	if in.Kind != media.KindVideo || in.MIME != media.MIMEAVC {
		return media.TrackFormat{}, media.InitError(op, nil, "need video/avc input, got %s", in.MIME)
	}
	if err := in.Validate(); err != nil {
		return media.TrackFormat{}, media.InitError(op, err, "")
	}

	out := media.TrackFormat{
		Kind:        media.KindVideo,
		MIME:        media.MIMERawVideo,
		Width:       in.Width,
		Height:      in.Height,
		PixelFormat: in.PixelFormat,
		FrameRate:   in.FrameRate,
	}
	if out.PixelFormat == "" {
		out.PixelFormat = DefaultPixelFormat
	}
	if err := out.Validate(); err != nil {
		return media.TrackFormat{}, media.InitError(op, err, "")
	}
	out.Bitrate = out.FrameSize() * 8 * out.FrameRate

	args, err := ffcmd.DecodeArgs(&ffcmd.DecodeParams{
		Binary:      d.cfg.binary(),
		Width:       out.Width,
		Height:      out.Height,
		PixelFormat: string(out.PixelFormat),
	})
	if err != nil {
		return media.TrackFormat{}, media.InitError(op, err, "build ffmpeg command")
	}

	pipe := newPipe(nextPipeID("avc-decode"), args, d.logger)
	if err := pipe.Start(context.WithoutCancel(ctx)); err != nil {
		return media.TrackFormat{}, media.InitError(op, err, "start ffmpeg")
	}

	d.format = out
	d.pipe = pipe
	d.out = newOutputQueue()
	go readFrames(pipe.Stdout(), out.FrameSize(), d.out)

	d.logger.Debug("H.264 decoder started", "output", out.String())
	return out, nil
}

// Decode writes one access unit to ffmpeg and yields the frames that are
// ready. An empty end-of-stream sample writes nothing.
func (d *Decoder) Decode(sample media.Sample) iter.Seq2[media.RawUnit, error] {
	const op = "avc.decode"
	if err := d.usable(op); err != nil {
		return fail[media.RawUnit](err)
	}
	if len(sample.Payload) > 0 {
		if _, err := d.pipe.Stdin().Write(sample.Payload); err != nil {
			d.ended = true
			_ = d.pipe.CloseInput()
			if werr := awaitPipe(d.pipe, d.out, d.cfg.drainTimeout()); werr != nil {
				err = werr
			}
			return fail[media.RawUnit](media.CodecError(op, err, "write access unit"))
		}
		d.pts.push(sample.PTS)
	}
	return d.ready()
}

// SignalEndOfStream closes ffmpeg's input, waits for it to flush and yields
// the remaining frames followed by an EOS unit.
func (d *Decoder) SignalEndOfStream() iter.Seq2[media.RawUnit, error] {
	const op = "avc.end_of_stream"
	if err := d.usable(op); err != nil {
		return fail[media.RawUnit](err)
	}
	d.ended = true

	return func(yield func(media.RawUnit, error) bool) {
		if err := d.pipe.CloseInput(); err != nil {
			yield(media.RawUnit{}, media.CodecError(op, err, "close input"))
			return
		}
		if err := awaitPipe(d.pipe, d.out, d.cfg.drainTimeout()); err != nil {
			yield(media.RawUnit{}, media.CodecError(op, err, ""))
			return
		}
		for u, err := range d.ready() {
			if !yield(u, err) {
				return
			}
		}
		yield(media.RawUnit{Kind: media.KindVideo, Timestamp: fromMicros(d.pts.last), EndOfStream: true}, nil)
	}
}

// Release kills ffmpeg if it is still running.
func (d *Decoder) Release() error {
	d.releaseOnce.Do(func() {
		if d.pipe != nil {
			releasePipe(d.pipe, d.out)
		}
	})
	return nil
}

func (d *Decoder) usable(op string) error {
	if d.pipe == nil {
		return media.CodecError(op, nil, "codec not configured")
	}
	if d.ended {
		return media.CodecError(op, nil, "end of stream already signalled")
	}
	return nil
}

func (d *Decoder) ready() iter.Seq2[media.RawUnit, error] {
	frames := d.out.take()
	return func(yield func(media.RawUnit, error) bool) {
		for _, frame := range frames {
			unit := media.RawUnit{
				Kind:      media.KindVideo,
				Payload:   frame,
				Timestamp: fromMicros(d.pts.pop()),
			}
			if !yield(unit, nil) {
				return
			}
		}
	}
}

func fromMicros(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
