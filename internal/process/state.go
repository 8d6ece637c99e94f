package process

import "time"

// State represents the current state of a subprocess.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not started
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Stop requested
	StateExited   State = "exited"   // Exited cleanly
	StateError    State = "error"    // Failed to start or exited non-zero
)

// Info is a snapshot of a subprocess.
type Info struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
}
