// Package session runs the three pipelines: recording (capture, encode,
// mux), decode (demux, decode, raw dump) and transcode (demux, decode,
// encode, mux). Each run is a fresh session object driven by one state
// machine.
package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// Defaults applied when neither the call nor Options set a value.
const (
	DefaultVideoMIME  = media.MIMEAVC
	DefaultAudioMIME  = media.MIMERawAudio
	DefaultQueueDepth = 32
	DefaultFrameRate  = 30
)

// Options are shared by every session kind.
type Options struct {
	// Codecs resolves MIME types. Nil uses codec.Default.
	Codecs *codec.Registry
	// Container names the output backend. Empty uses the container default.
	Container string

	VideoMIME   string
	AudioMIME   string
	QueueDepth  int
	MinDuration time.Duration

	// Transcode targets. Empty keeps the input codec.
	TranscodeVideoMIME    string
	TranscodeAudioMIME    string
	TranscodeVideoBitrate int

	Logger        logging.Logger
	OnStateChange func(StateChange)
}

func (o Options) withDefaults() Options {
	if o.Codecs == nil {
		o.Codecs = codec.Default(codec.Options{})
	}
	if o.VideoMIME == "" {
		o.VideoMIME = DefaultVideoMIME
	}
	if o.AudioMIME == "" {
		o.AudioMIME = DefaultAudioMIME
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.Logger == nil {
		o.Logger = logging.GetLogger("session")
	}
	return o
}

var idSeq atomic.Uint64

func newID(kind Kind) string {
	return fmt.Sprintf("%s-%d-%d", kind, time.Now().Unix(), idSeq.Add(1))
}
