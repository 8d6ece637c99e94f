package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	ffcmd "github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/process"
)

var pipeSeq atomic.Uint64

// VideoDevice reads raw frames from a v4l2 device through ffmpeg. An empty
// Device uses the lavfi test source instead.
type VideoDevice struct {
	Binary      string
	Device      string
	InputFormat string
	Width       int
	Height      int
	FrameRate   int
	PixelFormat media.PixelFormat
	Options     []ffcmd.OptionType
	Clock       Clock
	Logger      logging.Logger
}

// Kind implements Source.
func (d *VideoDevice) Kind() media.Kind { return media.KindVideo }

// Run implements Source.
func (d *VideoDevice) Run(ctx context.Context, emit func(media.RawUnit)) error {
	pix := d.PixelFormat
	if pix == "" {
		pix = media.PixelNV21
	}
	size := pix.FrameSize(d.Width, d.Height)
	if size == 0 {
		return fmt.Errorf("unsupported pixel format %q", pix)
	}
	args, err := ffcmd.VideoCaptureArgs(&ffcmd.VideoCaptureParams{
		Binary:      d.Binary,
		Device:      d.Device,
		InputFormat: d.InputFormat,
		Width:       d.Width,
		Height:      d.Height,
		FrameRate:   d.FrameRate,
		PixelFormat: string(pix),
		Options:     d.Options,
	})
	if err != nil {
		return err
	}
	return (&pipeSource{
		kind:   media.KindVideo,
		args:   args,
		chunk:  size,
		clock:  clockOr(d.Clock),
		logger: loggerOr(d.Logger),
	}).Run(ctx, emit)
}

// AudioDevice reads S16LE PCM from an ALSA device through ffmpeg. An empty
// Device uses a sine tone instead.
type AudioDevice struct {
	Binary     string
	Device     string
	SampleRate int
	Channels   int
	Chunk      time.Duration // defaults to 20ms
	Options    []ffcmd.OptionType
	Clock      Clock
	Logger     logging.Logger
}

// Kind implements Source.
func (d *AudioDevice) Kind() media.Kind { return media.KindAudio }

// Run implements Source.
func (d *AudioDevice) Run(ctx context.Context, emit func(media.RawUnit)) error {
	args, err := ffcmd.AudioCaptureArgs(&ffcmd.AudioCaptureParams{
		Binary:     d.Binary,
		Device:     d.Device,
		SampleRate: d.SampleRate,
		Channels:   d.Channels,
		Options:    d.Options,
	})
	if err != nil {
		return err
	}
	chunk := d.Chunk
	if chunk <= 0 {
		chunk = 20 * time.Millisecond
	}
	frames := int(int64(d.SampleRate) * int64(chunk) / int64(time.Second))
	return (&pipeSource{
		kind:   media.KindAudio,
		args:   args,
		chunk:  max(frames, 1) * d.Channels * media.BytesPerSample,
		clock:  clockOr(d.Clock),
		logger: loggerOr(d.Logger),
	}).Run(ctx, emit)
}

func loggerOr(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.GetLogger("capture")
	}
	return l
}

// pipeSource cuts a subprocess's stdout into fixed-size units. Each unit is
// stamped when its last byte arrives.
type pipeSource struct {
	kind   media.Kind
	args   []string
	chunk  int
	clock  Clock
	logger logging.Logger
}

func (s *pipeSource) Run(ctx context.Context, emit func(media.RawUnit)) error {
	id := fmt.Sprintf("capture-%s-%d", s.kind, pipeSeq.Add(1))
	pipe := process.NewPipe(id, s.args, s.logger)
	pipe.SetLogParser(logging.GetLogger("ffmpeg"), ffcmd.ParseLogLine)
	if err := pipe.Start(ctx); err != nil {
		return err
	}
	_ = pipe.CloseInput()

	out := pipe.Stdout()
	units := 0
	var readErr error
	for {
		buf := make([]byte, s.chunk)
		if _, err := io.ReadFull(out, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
		emit(media.RawUnit{Kind: s.kind, Payload: buf, Timestamp: s.clock()})
		units++
	}

	waitErr := pipe.Wait()
	s.logger.Debug("Capture process ended", "id", id, "units", units)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return waitErr
	}
	return readErr
}
