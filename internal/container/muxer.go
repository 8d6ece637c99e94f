// Package container owns output and input container files. TrackMuxer
// enforces track registration before start and per-track timestamp order;
// TrackDemuxer exposes per-track sample iteration. The byte format is a
// pluggable backend selected by name.
package container

import (
	"errors"
	"os"
	"sync"

	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

// Options configures a TrackMuxer.
type Options struct {
	// Format names the backend. Empty selects DefaultFormat.
	Format string
	// ExpectedTracks must register before Start. Zero means two.
	ExpectedTracks int
	Logger         logging.Logger
}

type muxState int

const (
	muxConfiguring muxState = iota
	muxStarted
	muxStopped
)

// TrackStats summarises what was written to one track.
type TrackStats struct {
	Format   media.TrackFormat `json:"format"`
	Samples  int64             `json:"samples"`
	Bytes    int64             `json:"bytes"`
	FirstPTS int64             `json:"first_pts"`
	LastPTS  int64             `json:"last_pts"`
}

// TrackMuxer writes compressed samples into one container file.
type TrackMuxer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	release  func()
	format   Format
	writer   Writer
	expected int
	logger   logging.Logger

	state  muxState
	tracks []TrackStats
	wrote  []bool
}

// Create claims path and creates the file. It fails with an IOError when
// the path is held by another muxer or cannot be created.
func Create(path string, opts Options) (*TrackMuxer, error) {
	const op = "container.create"

	name := opts.Format
	if name == "" {
		name = DefaultFormat
	}
	format, ok := LookupFormat(name)
	if !ok {
		return nil, media.InitError(op, nil, "unknown container format %q", name)
	}
	expected := opts.ExpectedTracks
	if expected <= 0 {
		expected = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("container")
	}

	abs, release, err := claim(op, claimOutput, path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		release()
		return nil, media.IOError(op, err, "")
	}

	logger.Debug("Container created", "path", abs, "format", format.Name, "expected_tracks", expected)
	return &TrackMuxer{
		path:     abs,
		file:     file,
		release:  release,
		format:   format,
		writer:   format.NewWriter(file),
		expected: expected,
		logger:   logger,
	}, nil
}

// Path is the absolute output path.
func (m *TrackMuxer) Path() string {
	return m.path
}

// RegisterTrack adds a track and returns its index. Only valid before Start.
func (m *TrackMuxer) RegisterTrack(f media.TrackFormat) (int, error) {
	const op = "container.register_track"
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxConfiguring {
		return 0, media.MuxError(op, nil, "muxer already started")
	}
	if len(m.tracks) >= m.expected {
		return 0, media.MuxError(op, nil, "all %d tracks already registered", m.expected)
	}
	if err := f.Validate(); err != nil {
		return 0, media.MuxError(op, err, "")
	}

	m.tracks = append(m.tracks, TrackStats{Format: f})
	m.wrote = append(m.wrote, false)
	idx := len(m.tracks) - 1
	m.logger.Debug("Track registered", "path", m.path, "track", idx, "format", f.String())
	return idx, nil
}

// Start writes the container header. Every expected track must be
// registered.
func (m *TrackMuxer) Start() error {
	const op = "container.start"
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxConfiguring {
		return media.MuxError(op, nil, "muxer not configuring")
	}
	if len(m.tracks) != m.expected {
		return media.MuxError(op, nil, "%d of %d tracks registered", len(m.tracks), m.expected)
	}

	formats := make([]media.TrackFormat, len(m.tracks))
	for i, t := range m.tracks {
		formats[i] = t.Format
	}
	if err := m.writer.Begin(formats); err != nil {
		return media.MuxError(op, err, "")
	}
	m.state = muxStarted
	m.logger.Info("Container started", "path", m.path, "tracks", len(formats))
	return nil
}

// WriteSample appends s to track. PTS must not go backwards within a track;
// other tracks are not considered. An empty end-of-stream marker is ignored.
func (m *TrackMuxer) WriteSample(track int, s media.Sample) error {
	const op = "container.write_sample"
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case muxConfiguring:
		return media.MuxError(op, nil, "muxer not started")
	case muxStopped:
		return media.MuxError(op, nil, "muxer stopped")
	}
	if track < 0 || track >= len(m.tracks) {
		return media.MuxError(op, nil, "unknown track %d", track)
	}
	if s.EndOfStream && len(s.Payload) == 0 {
		return nil
	}

	t := &m.tracks[track]
	if m.wrote[track] && s.PTS < t.LastPTS {
		return media.MuxError(op, nil, "track %d PTS went from %d to %d", track, t.LastPTS, s.PTS)
	}

	s.Track = track
	if err := m.writer.WriteSample(track, s); err != nil {
		return media.IOError(op, err, "")
	}

	if !m.wrote[track] {
		t.FirstPTS = s.PTS
		m.wrote[track] = true
	}
	t.LastPTS = s.PTS
	t.Samples++
	t.Bytes += int64(len(s.Payload))
	return nil
}

// Stop finalises the container metadata and closes the file. Calling Stop
// again is a no-op. A muxer that never started is closed with no content.
func (m *TrackMuxer) Stop() error {
	const op = "container.stop"
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == muxStopped {
		return nil
	}
	started := m.state == muxStarted
	m.state = muxStopped
	defer m.release()

	var errs []error
	if started {
		if err := m.writer.Finish(); err != nil {
			errs = append(errs, media.MuxError(op, err, "finalize"))
		}
	}
	if err := m.file.Sync(); err != nil {
		errs = append(errs, media.IOError(op, err, "sync"))
	}
	if err := m.file.Close(); err != nil {
		errs = append(errs, media.IOError(op, err, "close"))
	}

	m.logger.Info("Container stopped", "path", m.path, "tracks", len(m.tracks), "error", errors.Join(errs...))
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Abort closes and deletes the file. Used when the session never got far
// enough to produce a usable container.
func (m *TrackMuxer) Abort() error {
	const op = "container.abort"
	m.mu.Lock()
	defer m.mu.Unlock()

	wasStopped := m.state == muxStopped
	m.state = muxStopped
	defer m.release()

	if !wasStopped {
		_ = m.file.Close()
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return media.IOError(op, err, "")
	}
	m.logger.Debug("Container aborted", "path", m.path)
	return nil
}

// Stats returns a snapshot of the per-track counters.
func (m *TrackMuxer) Stats() []TrackStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackStats, len(m.tracks))
	copy(out, m.tracks)
	return out
}
