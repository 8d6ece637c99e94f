package ffmpeg

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"sync"
	"time"

	"github.com/wasd845/AVGraphics/internal/encoders"
	ffcmd "github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/metrics/collectors"
	"github.com/wasd845/AVGraphics/internal/process"
)

// Encoder compresses raw frames to H.264 access units.
type Encoder struct {
	cfg    Config
	logger logging.Logger

	in        media.TrackFormat
	selection *encoders.Selection
	progress  *collectors.FFmpegCollector
	pipe      *process.Pipe
	out       *outputQueue
	pts       ptsQueue
	checked   bool
	ended     bool

	releaseOnce sync.Once
}

// NewEncoder creates an unconfigured encoder.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg, logger: cfg.logger()}
}

// Configure selects an H.264 encoder for the input pixel format and starts
// ffmpeg.
func (e *Encoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	const op = "avc.configure"
	if e.pipe != nil {
		return media.TrackFormat{}, media.InitError(op, nil, "already configured")
	}
	if err := in.Validate(); err != nil {
		return media.TrackFormat{}, media.InitError(op, err, "")
	}
	if in.Kind != media.KindVideo || in.MIME != media.MIMERawVideo || in.PixelFormat == "" {
		return media.TrackFormat{}, media.InitError(op, nil, "need raw video input, got %s", in)
	}

	selector := e.cfg.Selector
	if selector == nil {
		selector = encoders.NewSelector(nil, "", e.logger)
	}
	sel, err := selector.Select(string(in.PixelFormat))
	if err != nil {
		return media.TrackFormat{}, media.InitError(op, err, "select encoder")
	}

	id := nextPipeID("avc-encode")
	progress := e.startProgress(ctx, id)

	args, err := ffcmd.EncodeArgs(&ffcmd.EncodeParams{
		Binary:       e.cfg.binary(),
		Width:        in.Width,
		Height:       in.Height,
		PixelFormat:  string(in.PixelFormat),
		FrameRate:    in.FrameRate,
		Encoder:      sel.Encoder,
		GlobalArgs:   sel.Settings.GlobalArgs,
		VideoFilters: sel.Settings.VideoFilters,
		OutputParams: sel.Settings.OutputParams,
		Bitrate:      in.Bitrate,
		Progress:     progressURL(progress),
	})
	if err != nil {
		stopProgress(progress)
		return media.TrackFormat{}, media.InitError(op, err, "build ffmpeg command")
	}

	pipe := newPipe(id, args, e.logger)
	if err := pipe.Start(context.WithoutCancel(ctx)); err != nil {
		stopProgress(progress)
		return media.TrackFormat{}, media.InitError(op, err, "start ffmpeg")
	}

	e.in = in
	e.selection = sel
	e.progress = progress
	e.pipe = pipe
	e.out = newOutputQueue()
	go readAccessUnits(pipe.Stdout(), e.out)

	e.logger.Info("H.264 encoder started",
		"encoder", sel.Encoder,
		"hardware", sel.Hardware,
		"geometry", fmt.Sprintf("%dx%d", in.Width, in.Height),
		"pixel_format", in.PixelFormat,
		"bitrate", in.Bitrate)

	return media.TrackFormat{
		Kind:      media.KindVideo,
		MIME:      media.MIMEAVC,
		Width:     in.Width,
		Height:    in.Height,
		FrameRate: in.FrameRate,
		Bitrate:   in.Bitrate,
	}, nil
}

// Selection reports the encoder picked by Configure.
func (e *Encoder) Selection() *encoders.Selection {
	return e.selection
}

// Encode writes one frame to ffmpeg and yields whatever access units are
// ready. ffmpeg keeps a few frames in flight, so early calls yield nothing.
func (e *Encoder) Encode(unit media.RawUnit) iter.Seq2[media.Sample, error] {
	const op = "avc.encode"
	if err := e.usable(op); err != nil {
		return fail[media.Sample](err)
	}
	if unit.Kind != media.KindVideo {
		return fail[media.Sample](media.CodecError(op, nil, "%s unit sent to video encoder", unit.Kind))
	}
	if want := e.in.FrameSize(); len(unit.Payload) != want {
		return fail[media.Sample](media.CodecError(op, nil, "frame is %d bytes, want %d", len(unit.Payload), want))
	}

	if _, err := e.pipe.Stdin().Write(unit.Payload); err != nil {
		return fail[media.Sample](media.CodecError(op, e.exitCause(err), "write frame"))
	}
	e.pts.push(media.Micros(unit.Timestamp))
	return e.ready()
}

// SignalEndOfStream closes ffmpeg's input and yields every remaining access
// unit followed by an empty EOS sample.
func (e *Encoder) SignalEndOfStream() iter.Seq2[media.Sample, error] {
	const op = "avc.end_of_stream"
	if err := e.usable(op); err != nil {
		return fail[media.Sample](err)
	}
	e.ended = true

	return func(yield func(media.Sample, error) bool) {
		if err := e.pipe.CloseInput(); err != nil {
			yield(media.Sample{}, media.CodecError(op, err, "close input"))
			return
		}
		if err := e.awaitExit(); err != nil {
			yield(media.Sample{}, media.CodecError(op, err, ""))
			return
		}
		for s, err := range e.ready() {
			if !yield(s, err) {
				return
			}
		}
		yield(media.Sample{PTS: e.pts.last, EndOfStream: true}, nil)
	}
}

// Release kills ffmpeg if it is still running. Safe to call more than once.
func (e *Encoder) Release() error {
	e.releaseOnce.Do(func() {
		if e.pipe != nil {
			releasePipe(e.pipe, e.out)
		}
		stopProgress(e.progress)
	})
	return nil
}

// startProgress opens the progress socket for process id. It returns nil
// when progress is disabled or the socket cannot be opened.
func (e *Encoder) startProgress(ctx context.Context, id string) *collectors.FFmpegCollector {
	if e.cfg.ProgressDir == "" {
		return nil
	}
	c := collectors.NewFFmpegCollector(filepath.Join(e.cfg.ProgressDir, id+".sock"), id)
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn("Encoder progress disabled", "process", id, "error", err)
		return nil
	}
	return c
}

func progressURL(c *collectors.FFmpegCollector) string {
	if c == nil {
		return ""
	}
	return c.URL()
}

func stopProgress(c *collectors.FFmpegCollector) {
	if c != nil {
		c.Stop()
	}
}

func (e *Encoder) usable(op string) error {
	if e.pipe == nil {
		return media.CodecError(op, nil, "codec not configured")
	}
	if e.ended {
		return media.CodecError(op, nil, "end of stream already signalled")
	}
	return nil
}

// ready yields the queued access units with their input timestamps.
func (e *Encoder) ready() iter.Seq2[media.Sample, error] {
	aus := e.out.take()
	return func(yield func(media.Sample, error) bool) {
		for _, au := range aus {
			key := isKeyFrame(au)
			if key && !e.checked {
				e.checkGeometry(au)
			}
			if !yield(media.Sample{Payload: au, PTS: e.pts.pop(), KeyFrame: key}, nil) {
				return
			}
		}
	}
}

func (e *Encoder) checkGeometry(au []byte) {
	w, h, ok := spsGeometry(au)
	if !ok {
		return
	}
	e.checked = true
	if w != e.in.Width || h != e.in.Height {
		e.logger.Warn("Encoder output geometry differs from input",
			"encoder", e.selection.Encoder,
			"input", fmt.Sprintf("%dx%d", e.in.Width, e.in.Height),
			"output", fmt.Sprintf("%dx%d", w, h))
	}
}

// awaitExit waits for stdout to drain and ffmpeg to exit, killing it after
// the drain timeout.
func (e *Encoder) awaitExit() error {
	return awaitPipe(e.pipe, e.out, e.cfg.drainTimeout())
}

// exitCause prefers ffmpeg's exit error over a bare broken pipe.
func (e *Encoder) exitCause(err error) error {
	e.ended = true
	_ = e.pipe.CloseInput()
	if werr := awaitPipe(e.pipe, e.out, time.Second); werr != nil {
		return werr
	}
	return err
}

func awaitPipe(pipe *process.Pipe, out *outputQueue, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-out.done:
	case <-timer.C:
		pipe.Kill()
		<-out.done
		_ = pipe.Wait()
		return fmt.Errorf("ffmpeg did not finish within %s", timeout)
	}
	if err := pipe.Wait(); err != nil {
		return err
	}
	return out.readErr()
}

func releasePipe(pipe *process.Pipe, out *outputQueue) {
	_ = pipe.CloseInput()
	if pipe.State() == process.StateRunning {
		pipe.Kill()
	}
	<-out.done
	_ = pipe.Wait()
}
