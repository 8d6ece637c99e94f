package codec

import (
	"github.com/wasd845/AVGraphics/internal/codec/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/codec/g711"
	"github.com/wasd845/AVGraphics/internal/codec/raw"
	"github.com/wasd845/AVGraphics/internal/encoders"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// Options configures the built-in codecs.
type Options struct {
	// FFmpegPath is the ffmpeg executable for video/avc.
	FFmpegPath string
	// Selector picks the H.264 encoder. Nil uses the software fallback.
	Selector *encoders.Selector
	// RawDelay holds this many units inside raw codecs before releasing
	// them, emulating codec-internal buffering.
	RawDelay int
	// ProgressDir enables ffmpeg progress metrics with sockets in this
	// directory.
	ProgressDir string
	Logger      logging.Logger
}

// Default returns a registry with every built-in codec.
func Default(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("codec")
	}

	r := NewRegistry()

	for _, mime := range []string{media.MIMERawVideo, media.MIMERawAudio} {
		r.RegisterEncoder(mime, func() (Encoder, error) {
			return raw.NewEncoder(raw.WithDelay(opts.RawDelay)), nil
		})
		r.RegisterDecoder(mime, func() (Decoder, error) {
			return raw.NewDecoder(raw.WithDelay(opts.RawDelay)), nil
		})
	}

	for _, law := range []g711.Law{g711.ULaw, g711.ALaw} {
		r.RegisterEncoder(law.MIME(), func() (Encoder, error) {
			return g711.NewEncoder(law), nil
		})
		r.RegisterDecoder(law.MIME(), func() (Decoder, error) {
			return g711.NewDecoder(law), nil
		})
	}

	cfg := ffmpeg.Config{
		Binary:      opts.FFmpegPath,
		Selector:    opts.Selector,
		ProgressDir: opts.ProgressDir,
		Logger:      logger,
	}
	r.RegisterEncoder(media.MIMEAVC, func() (Encoder, error) {
		return ffmpeg.NewEncoder(cfg), nil
	})
	r.RegisterDecoder(media.MIMEAVC, func() (Decoder, error) {
		return ffmpeg.NewDecoder(cfg), nil
	})

	return r
}
