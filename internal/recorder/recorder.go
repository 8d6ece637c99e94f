// Package recorder runs at most one recording at a time: it owns the
// session and the capture sources feeding it.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wasd845/AVGraphics/internal/capture"
	"github.com/wasd845/AVGraphics/internal/container"
	ffcmd "github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/session"
)

// Source selects where frames and audio come from.
type Source string

const (
	// SourceTest uses the synthetic colour bars and sine tone.
	SourceTest Source = "test"
	// SourceDevice captures from v4l2 and ALSA through ffmpeg.
	SourceDevice Source = "device"
)

var (
	// ErrBusy is returned by Start while a recording is active.
	ErrBusy = errors.New("a recording is already in progress")
	// ErrNoRecording is returned by Stop when nothing is recording.
	ErrNoRecording = errors.New("no active recording")
)

// Request describes one recording. Zero fields take the manager defaults.
type Request struct {
	Source       Source
	OutputPath   string
	Width        int
	Height       int
	PixelFormat  media.PixelFormat
	FrameRate    int
	VideoBitrate int
	SampleRate   int
	Channels     int
	VideoDevice  string
	AudioDevice  string
	InputFormat  string
	// Duration stops the recording automatically. Zero records until Stop.
	Duration time.Duration
}

// Options configures a Manager.
type Options struct {
	Session session.Options
	// Defaults fills unset Request fields.
	Defaults Request
	// OutputDir receives recordings without an explicit path.
	OutputDir    string
	FFmpegPath   string
	CaptureFlags []ffcmd.OptionType
	// ResolveDevice maps a stable video device ID to a path. Nil passes
	// the configured name to ffmpeg unchanged.
	ResolveDevice func(id string) (string, error)
	Logger        logging.Logger
}

// active is the recording currently owned by the manager.
type active struct {
	session *session.RecordingSession
	request Request
	cancel  context.CancelFunc
	timer   *time.Timer
	done    chan struct{}
}

// Manager starts and stops recordings.
type Manager struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	current *active
	last    *session.RecordingSession
	wg      sync.WaitGroup
}

// New creates a manager.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("recorder")
	}
	if opts.Defaults.Source == "" {
		opts.Defaults.Source = SourceTest
	}
	return &Manager{opts: opts, logger: opts.Logger}
}

// Start initialises a session and begins capture. It fails with ErrBusy
// while another recording has not finished.
func (m *Manager) Start(ctx context.Context, req Request) (*session.RecordingSession, error) {
	req = m.resolve(req)
	sources, err := m.sources(req)
	if err != nil {
		return nil, media.InitError("recorder.start", err, "")
	}

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	a, err := m.begin(ctx, req, sources)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sess := a.session
	// Registered outside mu: a session that already ended runs fn at once.
	sess.OnComplete(func(err error) {
		a.cancel()
		m.release(a)
		if err != nil {
			m.logger.Warn("Recording failed", "session_id", sess.ID(), "path", sess.Path(), "error", err)
			return
		}
		m.logger.Info("Recording finished", "session_id", sess.ID(), "path", sess.Path())
	})

	m.logger.Info("Recording started",
		"session_id", sess.ID(),
		"path", sess.Path(),
		"source", req.Source,
		"geometry", fmt.Sprintf("%dx%d", req.Width, req.Height),
		"duration", req.Duration)
	return sess, nil
}

// begin initialises the session and starts capture. Needs mu.
func (m *Manager) begin(ctx context.Context, req Request, sources []capture.Source) (*active, error) {
	if dir := filepath.Dir(req.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, media.IOError("recorder.start", err, "create output directory")
		}
	}

	sess := session.NewRecordingSession(m.opts.Session)
	if err := sess.Init(ctx, session.RecordingConfig{
		Width:        req.Width,
		Height:       req.Height,
		PixelFormat:  req.PixelFormat,
		FrameRate:    req.FrameRate,
		VideoBitrate: req.VideoBitrate,
		SampleRate:   req.SampleRate,
		Channels:     req.Channels,
		OutputPath:   req.OutputPath,
	}); err != nil {
		return nil, err
	}

	captureCtx, cancel := context.WithCancel(context.Background())
	a := &active{session: sess, request: req, cancel: cancel, done: make(chan struct{})}
	m.current = a
	m.last = sess

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(a.done)
		if err := capture.Run(captureCtx, sess, sources...); err != nil {
			m.logger.Warn("Capture ended with error", "session_id", sess.ID(), "error", err)
		}
		// Sources that run out end the recording.
		if captureCtx.Err() == nil {
			m.stopSession(sess)
		}
	}()

	if req.Duration > 0 {
		a.timer = time.AfterFunc(req.Duration, func() { m.stopSession(sess) })
	}
	return a, nil
}

// Stop asks the current recording to drain. It returns the session, which
// completes asynchronously.
func (m *Manager) Stop() (*session.RecordingSession, error) {
	m.mu.Lock()
	a := m.current
	m.mu.Unlock()
	if a == nil {
		return nil, ErrNoRecording
	}
	if err := a.session.Stop(); err != nil {
		return a.session, err
	}
	return a.session, nil
}

// Current returns the active recording.
func (m *Manager) Current() (*session.RecordingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false
	}
	return m.current.session, true
}

// Last returns the most recently started recording, active or not.
func (m *Manager) Last() (*session.RecordingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.last != nil
}

// Close stops any active recording and waits for it to finish or ctx to
// end.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	a := m.current
	m.mu.Unlock()
	if a != nil {
		m.stopSession(a.session)
		if err := a.session.Wait(ctx); err != nil && ctx.Err() != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) stopSession(sess *session.RecordingSession) {
	if err := sess.Stop(); err != nil && !media.IsCode(err, media.ErrCodeNotRunning) {
		m.logger.Warn("Stop failed", "session_id", sess.ID(), "error", err)
	}
}

func (m *Manager) release(a *active) {
	if a.timer != nil {
		a.timer.Stop()
	}
	m.mu.Lock()
	if m.current == a {
		m.current = nil
	}
	m.mu.Unlock()
}

func (m *Manager) resolve(req Request) Request {
	d := m.opts.Defaults
	if req.Source == "" {
		req.Source = d.Source
	}
	if req.Width == 0 && req.Height == 0 {
		req.Width, req.Height = d.Width, d.Height
	}
	if req.PixelFormat == "" {
		req.PixelFormat = d.PixelFormat
	}
	if req.PixelFormat == "" {
		req.PixelFormat = media.PixelNV21
	}
	if req.FrameRate == 0 {
		req.FrameRate = d.FrameRate
	}
	if req.VideoBitrate == 0 {
		req.VideoBitrate = d.VideoBitrate
	}
	if req.SampleRate == 0 {
		req.SampleRate = d.SampleRate
	}
	if req.Channels == 0 {
		req.Channels = d.Channels
	}
	if req.VideoDevice == "" {
		req.VideoDevice = d.VideoDevice
	}
	if req.AudioDevice == "" {
		req.AudioDevice = d.AudioDevice
	}
	if req.InputFormat == "" {
		req.InputFormat = d.InputFormat
	}
	if req.Duration == 0 {
		req.Duration = d.Duration
	}
	if req.OutputPath == "" {
		ext := container.DefaultFormat
		if f, ok := container.LookupFormat(m.opts.Session.Container); ok {
			ext = f.Name
		}
		req.OutputPath = filepath.Join(m.opts.OutputDir, "recording-"+time.Now().Format("20060102-150405")+"."+ext)
	}
	return req
}

// sources builds the capture pair for req. Both share one clock.
func (m *Manager) sources(req Request) ([]capture.Source, error) {
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = session.DefaultFrameRate
	}
	switch req.Source {
	case SourceTest:
		return []capture.Source{
			&capture.TestPattern{Width: req.Width, Height: req.Height, PixelFormat: req.PixelFormat, FrameRate: frameRate},
			&capture.Tone{SampleRate: req.SampleRate, Channels: req.Channels},
		}, nil
	case SourceDevice:
		if req.VideoDevice == "" || req.AudioDevice == "" {
			return nil, errors.New("device source needs a video and an audio device")
		}
		video := req.VideoDevice
		if m.opts.ResolveDevice != nil {
			resolved, err := m.opts.ResolveDevice(video)
			if err != nil {
				return nil, err
			}
			video = resolved
		}
		return []capture.Source{
			&capture.VideoDevice{
				Binary:      m.opts.FFmpegPath,
				Device:      video,
				InputFormat: req.InputFormat,
				Width:       req.Width,
				Height:      req.Height,
				FrameRate:   frameRate,
				PixelFormat: req.PixelFormat,
				Options:     m.opts.CaptureFlags,
			},
			&capture.AudioDevice{
				Binary:     m.opts.FFmpegPath,
				Device:     req.AudioDevice,
				SampleRate: req.SampleRate,
				Channels:   req.Channels,
				Options:    m.opts.CaptureFlags,
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown source %q", req.Source)
}
