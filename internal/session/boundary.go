package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wasd845/AVGraphics/internal/media"
)

// Recorder is the boolean entry point for recordings. Frames and audio
// buffers are stamped with the time of delivery.
type Recorder struct {
	opts Options

	// mu serializes Init; feeds read session without locking.
	mu      sync.Mutex
	session atomic.Pointer[RecordingSession]
	epoch   time.Time
}

// NewRecorder creates a recorder whose sessions use opts.
func NewRecorder(opts Options) *Recorder {
	return &Recorder{opts: opts, epoch: time.Now()}
}

// Init starts a new recording. It returns false if a recording is still
// in progress or the session could not reach Running.
func (r *Recorder) Init(width, height int, pix media.PixelFormat, bitrate, sampleRate, channels int, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.session.Load(); s != nil && !s.State().Terminal() {
		return false
	}

	s := NewRecordingSession(r.opts)
	err := s.Init(context.Background(), RecordingConfig{
		Width:        width,
		Height:       height,
		PixelFormat:  pix,
		VideoBitrate: bitrate,
		SampleRate:   sampleRate,
		Channels:     channels,
		OutputPath:   path,
	})
	if err != nil {
		r.session.Store(nil)
		return false
	}
	r.session.Store(s)
	return true
}

// RecordImage delivers one raw frame.
func (r *Recorder) RecordImage(data []byte) {
	if s := r.current(); s != nil {
		s.FeedFrame(media.RawUnit{Payload: data, Timestamp: time.Since(r.epoch)})
	}
}

// RecordSample delivers one PCM buffer.
func (r *Recorder) RecordSample(data []byte) {
	if s := r.current(); s != nil {
		s.FeedAudio(media.RawUnit{Payload: data, Timestamp: time.Since(r.epoch)})
	}
}

// Stop requests the drain of the current recording. The file is complete
// once Session().Done() is closed.
func (r *Recorder) Stop() {
	if s := r.current(); s != nil {
		s.Stop()
	}
}

// Session returns the most recent successfully started session.
func (r *Recorder) Session() *RecordingSession {
	return r.current()
}

func (r *Recorder) current() *RecordingSession {
	return r.session.Load()
}

// DecodeFile decodes in into raw video and audio dumps with default
// options.
func DecodeFile(ctx context.Context, in, yuv, pcm string) bool {
	return Decode(ctx, DecodeRequest{Input: in, VideoOutput: yuv, AudioOutput: pcm}, Options{}) == nil
}

// TranscodeFile transcodes in into out with default options.
func TranscodeFile(ctx context.Context, in, out string) bool {
	return Transcode(ctx, TranscodeRequest{Input: in, Output: out}, Options{}) == nil
}
