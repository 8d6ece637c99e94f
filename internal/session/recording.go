package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/exchange"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// RecordingConfig describes the capture input and the output file. Zero
// MIME, queue depth and minimum duration fall back to Options.
type RecordingConfig struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	PixelFormat  media.PixelFormat `json:"pixel_format"`
	FrameRate    int               `json:"frame_rate,omitempty"`
	VideoBitrate int               `json:"video_bitrate"`
	SampleRate   int               `json:"sample_rate"`
	Channels     int               `json:"channels"`
	OutputPath   string            `json:"output_path"`
	VideoMIME    string            `json:"video_mime,omitempty"`
	AudioMIME    string            `json:"audio_mime,omitempty"`
	QueueDepth   int               `json:"queue_depth,omitempty"`
	MinDuration  time.Duration     `json:"min_duration,omitempty"`
}

func (c RecordingConfig) videoFormat() media.TrackFormat {
	return media.TrackFormat{
		Kind:        media.KindVideo,
		MIME:        media.MIMERawVideo,
		Width:       c.Width,
		Height:      c.Height,
		PixelFormat: c.PixelFormat,
		FrameRate:   c.FrameRate,
		Bitrate:     c.VideoBitrate,
	}
}

func (c RecordingConfig) audioFormat() media.TrackFormat {
	return media.TrackFormat{
		Kind:       media.KindAudio,
		MIME:       media.MIMERawAudio,
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
	}
}

// TrackStats counts one track of a recording.
type TrackStats struct {
	Accepted      uint64 `json:"accepted"`
	DroppedFull   uint64 `json:"dropped_full"`
	DroppedClosed uint64 `json:"dropped_closed"`
	DroppedIdle   uint64 `json:"dropped_not_running"`
	Encoded       int64  `json:"encoded"`
	Written       int64  `json:"written"`
	Bytes         int64  `json:"bytes"`
	LastPTS       int64  `json:"last_pts_us"`
}

// RecordingStats is a snapshot of a recording.
type RecordingStats struct {
	ID          string        `json:"id"`
	State       State         `json:"state"`
	Path        string        `json:"path,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
	Duration    time.Duration `json:"duration"`
	StopPending bool          `json:"stop_pending"`
	Video       TrackStats    `json:"video"`
	Audio       TrackStats    `json:"audio"`
}

// RecordingSession captures video and audio into one container file.
type RecordingSession struct {
	id      string
	opts    Options
	logger  logging.Logger
	machine *machine
	clock   *timeline

	idle          [2]atomic.Uint64
	stopRequested atomic.Bool

	// Written under mu during Init, before the session becomes Running.
	mu        sync.Mutex
	path      string
	queues    [2]*exchange.Queue[media.RawUnit]
	workers   [2]*encodeWorker
	stage     *muxStage
	minRun    time.Duration
	startedAt time.Time
	stoppedAt time.Time
	abortErr  error
	callbacks []func(error)
	ended     bool
	err       error
	done      chan struct{}
}

const (
	slotVideo = 0
	slotAudio = 1
)

// NewRecordingSession creates an idle session.
func NewRecordingSession(opts Options) *RecordingSession {
	opts = opts.withDefaults()
	id := newID(KindRecording)
	return &RecordingSession{
		id:      id,
		opts:    opts,
		logger:  opts.Logger,
		machine: newMachine(KindRecording, id, opts.OnStateChange),
		clock:   newTimeline(),
		done:    make(chan struct{}),
	}
}

// ID identifies the session in events.
func (s *RecordingSession) ID() string {
	return s.id
}

// State returns the current state.
func (s *RecordingSession) State() State {
	return s.machine.load()
}

// Path is the absolute output path once Init has claimed it.
func (s *RecordingSession) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Init creates the output, starts both encoders and blocks until both
// tracks have negotiated a format and the container has started. Any
// failure leaves the session Failed with no file on disk.
func (s *RecordingSession) Init(ctx context.Context, cfg RecordingConfig) error {
	const op = "recording.init"
	if !s.machine.transition(StateIdle, StateConfiguring) {
		return media.InitError(op, nil, "session is %s", s.machine.load())
	}

	cfg = s.resolve(cfg)
	video, audio := cfg.videoFormat(), cfg.audioFormat()
	if err := video.Validate(); err != nil {
		return s.failEarly(media.InitError(op, err, ""))
	}
	if err := audio.Validate(); err != nil {
		return s.failEarly(media.InitError(op, err, ""))
	}
	if cfg.OutputPath == "" {
		return s.failEarly(media.InitError(op, nil, "missing output path"))
	}

	muxer, err := container.Create(cfg.OutputPath, container.Options{
		Format:         s.opts.Container,
		ExpectedTracks: 2,
		Logger:         logging.GetLogger("container"),
	})
	if err != nil {
		return s.failEarly(err)
	}
	encoders, err := s.allocate(cfg.VideoMIME, cfg.AudioMIME)
	if err != nil {
		muxer.Abort()
		return s.failEarly(err)
	}

	stage := newMuxStage(muxer, []media.Kind{media.KindVideo, media.KindAudio}, s.logger, s.onFailure)
	s.mu.Lock()
	s.path = muxer.Path()
	s.minRun = cfg.MinDuration
	s.stage = stage
	for slot, in := range []media.TrackFormat{video, audio} {
		q := exchange.NewQueue[media.RawUnit](cfg.QueueDepth)
		s.queues[slot] = q
		s.workers[slot] = &encodeWorker{
			slot:    slot,
			encoder: encoders[slot],
			input:   in,
			units:   q.C(),
			clock:   s.clock,
			stage:   stage,
			logger:  s.logger,
		}
	}
	s.mu.Unlock()

	go s.stage.run()
	for _, w := range s.workers {
		go w.run(ctx)
	}
	go s.complete()

	select {
	case err = <-s.stage.ready:
	case <-ctx.Done():
		err = media.InitError(op, ctx.Err(), "format negotiation interrupted")
	}
	if err != nil {
		return s.abortInit(err)
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()
	if !s.machine.transition(StateConfiguring, StateRunning) {
		return s.abortInit(media.InitError(op, nil, "session failed during start"))
	}

	s.logger.Info("Recording started",
		"id", s.id,
		"path", s.path,
		"video", s.workers[slotVideo].input.String(),
		"audio", s.workers[slotAudio].input.String(),
		"video_codec", cfg.VideoMIME,
		"audio_codec", cfg.AudioMIME)
	return nil
}

func (s *RecordingSession) resolve(cfg RecordingConfig) RecordingConfig {
	if cfg.VideoMIME == "" {
		cfg.VideoMIME = s.opts.VideoMIME
	}
	if cfg.AudioMIME == "" {
		cfg.AudioMIME = s.opts.AudioMIME
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = s.opts.QueueDepth
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = s.opts.MinDuration
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	return cfg
}

func (s *RecordingSession) allocate(videoMIME, audioMIME string) ([2]codec.Encoder, error) {
	var out [2]codec.Encoder
	v, err := s.opts.Codecs.NewEncoder(videoMIME)
	if err != nil {
		return out, err
	}
	a, err := s.opts.Codecs.NewEncoder(audioMIME)
	if err != nil {
		v.Release()
		return out, err
	}
	out[slotVideo], out[slotAudio] = v, a
	return out, nil
}

// failEarly handles failures before any goroutine was started.
func (s *RecordingSession) failEarly(err error) error {
	s.machine.fail(err)
	s.logger.Warn("Recording init failed", "id", s.id, "error", err)
	s.finish(err)
	return err
}

// abortInit tears down a negotiation that did not reach Running and waits
// until the partial file is gone.
func (s *RecordingSession) abortInit(err error) error {
	s.mu.Lock()
	s.abortErr = err
	s.mu.Unlock()
	s.stage.abandon()
	s.machine.fail(err)
	s.closeQueues()
	<-s.done
	s.logger.Warn("Recording init failed", "id", s.id, "error", err)
	return err
}

// onFailure runs on the mux stage goroutine when a worker or the muxer
// fails.
func (s *RecordingSession) onFailure(err error) {
	s.machine.fail(err)
	s.closeQueues()
}

func (s *RecordingSession) closeQueues() {
	for _, q := range s.queues {
		if q != nil {
			q.Close()
		}
	}
}

func (s *RecordingSession) complete() {
	err := s.stage.result()
	if err == nil {
		s.mu.Lock()
		err = s.abortErr
		s.mu.Unlock()
	}
	if err == nil && !s.machine.transition(StateDraining, StateClosed) {
		err = media.MuxError("recording.complete", nil, "pipeline ended in state %s", s.machine.load())
	}
	if err != nil {
		s.machine.fail(err)
	}

	stats := s.Stats()
	if err != nil {
		s.logger.Warn("Recording failed", "id", s.id, "path", s.path, "error", err,
			"video_samples", stats.Video.Written, "audio_samples", stats.Audio.Written)
	} else {
		s.logger.Info("Recording closed", "id", s.id, "path", s.path, "duration", stats.Duration,
			"video_samples", stats.Video.Written, "audio_samples", stats.Audio.Written,
			"video_dropped", stats.Video.DroppedFull, "audio_dropped", stats.Audio.DroppedFull)
	}
	s.finish(err)
}

func (s *RecordingSession) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.ended = true
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
	close(s.done)
}

// FeedFrame queues a raw video frame. It never blocks; frames are dropped
// unless the session is Running or when the queue is full.
func (s *RecordingSession) FeedFrame(unit media.RawUnit) {
	s.feed(slotVideo, media.KindVideo, unit)
}

// FeedAudio queues a PCM buffer with the same drop rules as FeedFrame.
func (s *RecordingSession) FeedAudio(unit media.RawUnit) {
	s.feed(slotAudio, media.KindAudio, unit)
}

func (s *RecordingSession) feed(slot int, kind media.Kind, unit media.RawUnit) {
	if s.machine.load() != StateRunning {
		s.idle[slot].Add(1)
		observeFeed(kind, "not_running")
		return
	}
	unit.Kind = kind
	unit.EndOfStream = false
	s.clock.observe(unit.Timestamp)

	switch res := s.queues[slot].Offer(unit); res {
	case exchange.Accepted:
		observeFeed(kind, "")
	default:
		observeFeed(kind, res.String())
	}
}

// Stop requests a drain and returns immediately. The session moves to
// Draining, or at the end of the minimum duration if one is configured.
// Calling Stop again is a no-op.
func (s *RecordingSession) Stop() error {
	if s.stopRequested.Load() {
		return nil
	}
	if st := s.machine.load(); st != StateRunning {
		return media.NotRunning("recording.stop", "session is %s", st)
	}
	if !s.stopRequested.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	wait := s.minRun - time.Since(s.startedAt)
	s.mu.Unlock()
	if wait > 0 {
		s.logger.Info("Stop deferred until minimum duration", "id", s.id, "remaining", wait)
		time.AfterFunc(wait, s.drain)
		return nil
	}
	s.drain()
	return nil
}

func (s *RecordingSession) drain() {
	if !s.machine.transition(StateRunning, StateDraining) {
		return
	}
	s.mu.Lock()
	s.stoppedAt = time.Now()
	s.mu.Unlock()
	s.logger.Debug("Recording draining", "id", s.id)
	s.closeQueues()
}

// Done is closed when the session reaches Closed or Failed, after the
// OnComplete callbacks have run.
func (s *RecordingSession) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends or ctx is done.
func (s *RecordingSession) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the terminal error, nil while running or after a clean close.
func (s *RecordingSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnComplete registers fn to run once with the terminal error. If the
// session already ended fn runs immediately.
func (s *RecordingSession) OnComplete(fn func(error)) {
	s.mu.Lock()
	if s.ended {
		err := s.err
		s.mu.Unlock()
		fn(err)
		return
	}
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Stats returns a snapshot of the session counters.
func (s *RecordingSession) Stats() RecordingStats {
	st := s.machine.load()
	s.mu.Lock()
	out := RecordingStats{
		ID:          s.id,
		State:       st,
		Path:        s.path,
		StartedAt:   s.startedAt,
		StopPending: s.stopRequested.Load() && st == StateRunning,
	}
	switch {
	case s.startedAt.IsZero():
	case !s.stoppedAt.IsZero():
		out.Duration = s.stoppedAt.Sub(s.startedAt)
	case st == StateRunning:
		out.Duration = time.Since(s.startedAt)
	}
	out.Video = s.trackStats(slotVideo)
	out.Audio = s.trackStats(slotAudio)
	s.mu.Unlock()
	return out
}

// trackStats needs mu held.
func (s *RecordingSession) trackStats(slot int) TrackStats {
	ts := TrackStats{DroppedIdle: s.idle[slot].Load()}
	q, w := s.queues[slot], s.workers[slot]
	if q == nil || w == nil || s.stage == nil {
		return ts
	}
	qs := q.Stats()
	ts.Accepted, ts.DroppedFull, ts.DroppedClosed = qs.Accepted, qs.Full, qs.Closed
	ts.Encoded = w.encoded.Load()
	ms := &s.stage.stats[slot]
	ts.Written, ts.Bytes, ts.LastPTS = ms.samples.Load(), ms.bytes.Load(), ms.lastPTS.Load()
	return ts
}
