package events

// Event type constants for kelindar/event.
const (
	TypeSessionState uint32 = iota + 1
	TypeRecordingStats
	TypeJobCompleted
	TypeLogEntry
	TypeEncoderProgress
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateEvent is published on every session state transition.
type SessionStateEvent struct {
	Kind      string `json:"kind" example:"recording" doc:"Session kind: recording, decode or transcode"`
	SessionID string `json:"session_id" example:"recording-1736500000-1" doc:"Session identifier"`
	From      string `json:"from" example:"running" doc:"Previous state"`
	To        string `json:"to" example:"draining" doc:"New state"`
	Error     string `json:"error,omitempty" doc:"Failure reason when entering failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition time"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// RecordingStatsEvent is a periodic snapshot of the current recording.
type RecordingStatsEvent struct {
	SessionID    string  `json:"session_id" doc:"Session identifier"`
	State        string  `json:"state" example:"running" doc:"Recording state"`
	Path         string  `json:"path" doc:"Output file"`
	Seconds      float64 `json:"seconds" example:"12.5" doc:"Recorded duration in seconds"`
	VideoWritten int64   `json:"video_written" doc:"Video samples written"`
	AudioWritten int64   `json:"audio_written" doc:"Audio samples written"`
	VideoDropped uint64  `json:"video_dropped" doc:"Video frames dropped on a full queue"`
	AudioDropped uint64  `json:"audio_dropped" doc:"Audio buffers dropped on a full queue"`
	Bytes        int64   `json:"bytes" doc:"Compressed payload bytes written"`
	StopPending  bool    `json:"stop_pending" doc:"Stop requested before the minimum duration"`
}

// Type returns the event type identifier for RecordingStatsEvent.
func (e RecordingStatsEvent) Type() uint32 { return TypeRecordingStats }

// JobCompletedEvent is published when a background job ends.
type JobCompletedEvent struct {
	JobID     string  `json:"job_id" example:"job-3" doc:"Job identifier"`
	Kind      string  `json:"kind" example:"transcode" doc:"Job kind"`
	State     string  `json:"state" example:"succeeded" doc:"Final job state"`
	Error     string  `json:"error,omitempty" doc:"Failure reason"`
	Code      string  `json:"code,omitempty" example:"IO_ERROR" doc:"Error code"`
	Seconds   float64 `json:"seconds" doc:"Run time in seconds"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Completion time"`
}

// Type returns the event type identifier for JobCompletedEvent.
func (e JobCompletedEvent) Type() uint32 { return TypeJobCompleted }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// EncoderProgressEvent carries the last ffmpeg progress block of a codec
// process.
type EncoderProgressEvent struct {
	Process         string `json:"process" example:"avc-encode-1" doc:"Codec process identifier"`
	Frames          string `json:"frames" example:"300" doc:"Frames processed"`
	FPS             string `json:"fps" example:"30.00" doc:"Current frames per second"`
	BitrateKbps     string `json:"bitrate_kbps" example:"2048.0" doc:"Current output bitrate"`
	DroppedFrames   string `json:"dropped_frames" example:"0" doc:"Frames dropped by ffmpeg"`
	DuplicateFrames string `json:"duplicate_frames" example:"0" doc:"Frames duplicated by ffmpeg"`
	Speed           string `json:"speed" example:"1.00" doc:"Processing speed relative to real time"`
}

// Type returns the event type identifier for EncoderProgressEvent.
func (e EncoderProgressEvent) Type() uint32 { return TypeEncoderProgress }
