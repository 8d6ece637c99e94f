package session

import (
	"fmt"
	"sync"
)

// State is the lifecycle position shared by every session kind.
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateRunning
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// Kind names the session type in events and logs.
type Kind string

const (
	KindRecording Kind = "recording"
	KindDecode    Kind = "decode"
	KindTranscode Kind = "transcode"
)

// StateChange describes one transition.
type StateChange struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	From State  `json:"from"`
	To   State  `json:"to"`
	// Err is set on transitions into StateFailed.
	Err error `json:"-"`
}

// machine is the state holder. Transitions are compare-and-swap so racing
// callers agree on a single winner.
type machine struct {
	kind    Kind
	id      string
	mu      sync.Mutex
	state   State
	onState func(StateChange)
}

func newMachine(kind Kind, id string, onState func(StateChange)) *machine {
	return &machine{kind: kind, id: id, onState: onState}
}

func (m *machine) load() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves from to to and reports whether it happened. Terminal
// states never move.
func (m *machine) transition(from, to State) bool {
	m.mu.Lock()
	if m.state != from || from.Terminal() {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.mu.Unlock()
	m.notify(from, to, nil)
	return true
}

// fail moves any non-terminal state to Failed. It returns false if the
// machine had already terminated.
func (m *machine) fail(err error) bool {
	m.mu.Lock()
	from := m.state
	if from.Terminal() {
		m.mu.Unlock()
		return false
	}
	m.state = StateFailed
	m.mu.Unlock()
	m.notify(from, StateFailed, err)
	return true
}

func (m *machine) notify(from, to State, err error) {
	observeTransition(m.kind, from, to)
	if m.onState != nil {
		m.onState(StateChange{Kind: m.kind, ID: m.id, From: from, To: to, Err: err})
	}
}
