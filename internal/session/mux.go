package session

import (
	"sync/atomic"

	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
)

type msgKind int

const (
	msgFormat msgKind = iota
	msgSample
	msgDone
)

// muxMsg is what workers send to the mux stage. slot is the worker's
// position, not the container track index.
type muxMsg struct {
	kind   msgKind
	slot   int
	format media.TrackFormat
	sample media.Sample
	err    error
}

type slotStats struct {
	samples atomic.Int64
	bytes   atomic.Int64
	lastPTS atomic.Int64
}

// muxStage is the single goroutine allowed to call the TrackMuxer. It
// collects one format per slot, starts the muxer once every slot has
// reported, and stops it after every slot is done.
type muxStage struct {
	muxer  *container.TrackMuxer
	kinds  []media.Kind
	in     chan muxMsg
	logger logging.Logger
	onFail func(error)

	formats []media.TrackFormat
	known   []bool
	tracks  []int
	pending [][]media.Sample
	done    []bool
	started bool
	err     error

	ready     chan error
	readySent bool
	finished  chan struct{}
	discard   atomic.Bool
	stats     []slotStats
}

func newMuxStage(muxer *container.TrackMuxer, kinds []media.Kind, logger logging.Logger, onFail func(error)) *muxStage {
	n := len(kinds)
	return &muxStage{
		muxer:    muxer,
		kinds:    kinds,
		in:       make(chan muxMsg, 16*n),
		logger:   logger,
		onFail:   onFail,
		formats:  make([]media.TrackFormat, n),
		known:    make([]bool, n),
		tracks:   make([]int, n),
		pending:  make([][]media.Sample, n),
		done:     make([]bool, n),
		ready:    make(chan error, 1),
		finished: make(chan struct{}),
		stats:    make([]slotStats, n),
	}
}

// abandon makes the stage delete the file instead of finalizing it.
func (m *muxStage) abandon() {
	m.discard.Store(true)
}

// result blocks until the stage exits.
func (m *muxStage) result() error {
	<-m.finished
	return m.err
}

func (m *muxStage) run() {
	defer close(m.finished)

	remaining := len(m.kinds)
	for remaining > 0 {
		msg := <-m.in
		switch msg.kind {
		case msgFormat:
			m.register(msg.slot, msg.format)
		case msgSample:
			m.sample(msg.slot, msg.sample)
		case msgDone:
			if !m.done[msg.slot] {
				m.done[msg.slot] = true
				remaining--
			}
			if msg.err != nil {
				m.fail(msg.err)
			}
		}
	}
	m.finish()
}

func (m *muxStage) register(slot int, f media.TrackFormat) {
	if m.err != nil || m.known[slot] {
		return
	}
	if f.Kind != m.kinds[slot] {
		m.fail(media.InitError("session.register", nil, "%s encoder reported a %s format", m.kinds[slot], f.Kind))
		return
	}
	m.formats[slot] = f
	m.known[slot] = true
	m.logger.Debug("Track format reported", "track", f.Kind.String(), "format", f.String())

	for _, ok := range m.known {
		if !ok {
			return
		}
	}
	m.start()
}

func (m *muxStage) start() {
	for slot, f := range m.formats {
		idx, err := m.muxer.RegisterTrack(f)
		if err != nil {
			m.fail(err)
			return
		}
		m.tracks[slot] = idx
	}
	if err := m.muxer.Start(); err != nil {
		m.fail(err)
		return
	}
	m.started = true
	m.signal(nil)
	m.flush()
}

// flush writes the samples held before start, merged by timestamp.
func (m *muxStage) flush() {
	for m.err == nil {
		best := -1
		for slot, q := range m.pending {
			if len(q) > 0 && (best < 0 || q[0].PTS < m.pending[best][0].PTS) {
				best = slot
			}
		}
		if best < 0 {
			break
		}
		s := m.pending[best][0]
		m.pending[best] = m.pending[best][1:]
		m.write(best, s)
	}
	for slot := range m.pending {
		m.pending[slot] = nil
	}
}

func (m *muxStage) sample(slot int, s media.Sample) {
	if m.err != nil {
		return
	}
	if s.EndOfStream && len(s.Payload) == 0 {
		return
	}
	if !m.started {
		m.pending[slot] = append(m.pending[slot], s)
		return
	}
	m.write(slot, s)
}

func (m *muxStage) write(slot int, s media.Sample) {
	s.Track = m.tracks[slot]
	if err := m.muxer.WriteSample(s.Track, s); err != nil {
		m.fail(err)
		return
	}
	st := &m.stats[slot]
	st.samples.Add(1)
	st.bytes.Add(int64(len(s.Payload)))
	st.lastPTS.Store(s.PTS)
	observeSample(m.kinds[slot], len(s.Payload))
}

func (m *muxStage) fail(err error) {
	if m.err != nil {
		return
	}
	m.err = err
	m.signal(err)
	m.logger.Warn("Mux stage failed", "path", m.muxer.Path(), "error", err)
	if m.onFail != nil {
		m.onFail(err)
	}
}

func (m *muxStage) signal(err error) {
	if m.readySent {
		return
	}
	m.readySent = true
	m.ready <- err
}

func (m *muxStage) finish() {
	if m.started && !m.discard.Load() {
		if err := m.muxer.Stop(); err != nil && m.err == nil {
			m.err = err
		}
		return
	}
	if err := m.muxer.Abort(); err != nil {
		m.logger.Warn("Failed to remove output", "path", m.muxer.Path(), "error", err)
	}
	if m.err == nil && m.started {
		m.err = media.InitError("session.mux", nil, "output abandoned")
	} else if m.err == nil {
		m.err = media.InitError("session.mux", nil, "ended before every track reported a format")
	}
	m.signal(m.err)
}
