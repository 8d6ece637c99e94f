package models

import (
	"time"
)

// Health check models
type HealthData struct {
	Status    string `json:"status" example:"ok" doc:"Service status"`
	Message   string `json:"message" example:"API is healthy" doc:"Status message"`
	Recording bool   `json:"recording" example:"false" doc:"Whether a recording is in progress"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Recording models
type SourceType string

const (
	SourceTest   SourceType = "test"
	SourceDevice SourceType = "device"
)

type RecordingRequestData struct {
	Source          SourceType `json:"source,omitempty" enum:"test,device" example:"test" doc:"Frame source: synthetic test pattern or capture devices"`
	OutputPath      string     `json:"output_path,omitempty" example:"/var/lib/avgraphics/take1.mkv" doc:"Container file to write (defaults to a timestamped file in the output directory)"`
	Width           int        `json:"width,omitempty" minimum:"0" example:"640" doc:"Frame width"`
	Height          int        `json:"height,omitempty" minimum:"0" example:"480" doc:"Frame height"`
	PixelFormat     string     `json:"pixel_format,omitempty" example:"nv21" doc:"Raw pixel layout (nv21, nv12, yuv420p, yuyv422)"`
	FrameRate       int        `json:"frame_rate,omitempty" minimum:"0" example:"30" doc:"Frames per second"`
	VideoBitrate    int        `json:"video_bitrate,omitempty" minimum:"0" example:"2000000" doc:"Video bitrate in bits per second"`
	SampleRate      int        `json:"sample_rate,omitempty" minimum:"0" example:"44100" doc:"Audio sample rate"`
	Channels        int        `json:"channels,omitempty" minimum:"0" maximum:"8" example:"1" doc:"Audio channel count"`
	VideoDevice     string     `json:"video_device,omitempty" example:"/dev/video0" doc:"V4L2 device for the device source"`
	AudioDevice     string     `json:"audio_device,omitempty" example:"hw:0,0" doc:"ALSA device for the device source"`
	InputFormat     string     `json:"input_format,omitempty" example:"nv12" doc:"V4L2 input format requested from the device"`
	DurationSeconds float64    `json:"duration_seconds,omitempty" minimum:"0" example:"10" doc:"Stop automatically after this many seconds (0 records until stopped)"`
}

type RecordingRequest struct {
	Body RecordingRequestData
}

type TrackData struct {
	Accepted      uint64  `json:"accepted" doc:"Units accepted into the queue"`
	DroppedFull   uint64  `json:"dropped_full" doc:"Units dropped because the queue was full"`
	DroppedClosed uint64  `json:"dropped_closed" doc:"Units dropped after the queue closed"`
	DroppedIdle   uint64  `json:"dropped_idle" doc:"Units dropped before the session was running"`
	Encoded       int64   `json:"encoded" doc:"Compressed units produced"`
	Written       int64   `json:"written" doc:"Samples written to the container"`
	Bytes         int64   `json:"bytes" doc:"Compressed payload bytes written"`
	LastPTS       float64 `json:"last_pts" doc:"Presentation time of the last written sample in seconds"`
}

type RecordingData struct {
	ID          string    `json:"id" example:"recording-1736500000-1" doc:"Session identifier"`
	State       string    `json:"state" example:"running" doc:"Session state"`
	Path        string    `json:"path" doc:"Output container file"`
	StartedAt   time.Time `json:"started_at,omitzero" doc:"When the session started running"`
	Seconds     float64   `json:"seconds" example:"12.5" doc:"Recorded duration in seconds"`
	StopPending bool      `json:"stop_pending" doc:"Stop requested before the minimum duration elapsed"`
	Video       TrackData `json:"video" doc:"Video track counters"`
	Audio       TrackData `json:"audio" doc:"Audio track counters"`
}

type RecordingResponse struct {
	Body RecordingData
}

// Job models
type DecodeRequestData struct {
	Input       string `json:"input" minLength:"1" example:"/recordings/take1.mkv" doc:"Container file to decode"`
	VideoOutput string `json:"video_output,omitempty" example:"/tmp/take1.yuv" doc:"Raw video destination"`
	AudioOutput string `json:"audio_output,omitempty" example:"/tmp/take1.pcm" doc:"Raw audio destination"`
}

type DecodeRequest struct {
	Body DecodeRequestData
}

type TranscodeRequestData struct {
	Input        string `json:"input" minLength:"1" example:"/recordings/take1.mkv" doc:"Container file to read"`
	Output       string `json:"output" minLength:"1" example:"/recordings/take1-small.mkv" doc:"Container file to write"`
	VideoMIME    string `json:"video_mime,omitempty" example:"video/avc" doc:"Target video codec (defaults to the configured transcode codec)"`
	AudioMIME    string `json:"audio_mime,omitempty" example:"audio/x-raw" doc:"Target audio codec"`
	VideoBitrate int    `json:"video_bitrate,omitempty" minimum:"0" example:"1000000" doc:"Target video bitrate in bits per second"`
}

type TranscodeRequest struct {
	Body TranscodeRequestData
}

type JobData struct {
	ID         string    `json:"id" example:"job-3" doc:"Job identifier"`
	Kind       string    `json:"kind" example:"transcode" doc:"Job kind"`
	State      string    `json:"state" example:"running" doc:"queued, running, succeeded or failed"`
	Request    any       `json:"request,omitempty" doc:"Submitted request"`
	Result     any       `json:"result,omitempty" doc:"Per-track results on success"`
	Error      string    `json:"error,omitempty" doc:"Failure reason"`
	Code       string    `json:"code,omitempty" example:"IO_ERROR" doc:"Error code"`
	CreatedAt  time.Time `json:"created_at" doc:"Submission time"`
	StartedAt  time.Time `json:"started_at,omitzero" doc:"Start time"`
	FinishedAt time.Time `json:"finished_at,omitzero" doc:"Completion time"`
	Seconds    float64   `json:"seconds" doc:"Run time in seconds"`
}

type JobResponse struct {
	Body JobData
}

type JobListData struct {
	Jobs  []JobData `json:"jobs" doc:"Jobs, newest first"`
	Count int       `json:"count" example:"2" doc:"Number of jobs"`
}

type JobListResponse struct {
	Body JobListData
}

type JobRequest struct {
	ID string `path:"id" example:"job-3" doc:"Job identifier"`
}

// Encoder models
type EncoderInfo struct {
	Name        string `json:"name" example:"h264_vaapi" doc:"Encoder name"`
	Description string `json:"description,omitempty" example:"H.264/AVC (VAAPI)" doc:"Human-readable description"`
	HWAccel     bool   `json:"hwaccel" example:"true" doc:"Whether this is a hardware-accelerated encoder"`
}

type SelectionData struct {
	Encoder      string            `json:"encoder" example:"h264_vaapi" doc:"Encoder used for new recordings"`
	Hardware     bool              `json:"hardware" doc:"Whether the encoder is hardware accelerated"`
	GlobalArgs   []string          `json:"global_args,omitempty" doc:"Global ffmpeg arguments"`
	OutputParams map[string]string `json:"output_params,omitempty" doc:"Encoder output parameters"`
	VideoFilters string            `json:"video_filters,omitempty" doc:"Video filter chain"`
}

type EncoderData struct {
	Probed         bool           `json:"probed" doc:"Whether probe results are loaded"`
	Timestamp      string         `json:"timestamp,omitempty" doc:"When the probe ran"`
	FFmpegVersion  string         `json:"ffmpeg_version,omitempty" example:"6.1.1" doc:"ffmpeg version at probe time"`
	TestResolution string         `json:"test_resolution,omitempty" example:"320x240" doc:"Resolution used for the probe"`
	Working        []EncoderInfo  `json:"working" doc:"H.264 encoders that passed the probe"`
	Failed         []string       `json:"failed" doc:"H.264 encoders that failed the probe"`
	Available      []EncoderInfo  `json:"available,omitempty" doc:"Video encoders reported by ffmpeg (with all=true)"`
	Selected       *SelectionData `json:"selected,omitempty" doc:"Encoder selected for the configured pixel format"`
}

type EncodersRequest struct {
	All bool `query:"all" doc:"Also list every video encoder ffmpeg reports"`
}

type EncodersResponse struct {
	Body EncoderData
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"200" doc:"Maximum number of entries"`
	Level  string `query:"level" doc:"Minimum level: debug, info, warn or error"`
	Module string `query:"module" doc:"Only entries from this module"`
}

type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number"`
	Timestamp  time.Time      `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Log entries, oldest first"`
	Count   int            `json:"count" doc:"Number of entries returned"`
	Total   int            `json:"total" doc:"Number of entries held in the buffer"`
}

type LogsResponse struct {
	Body LogsData
}

// VideoDeviceData is a video4linux node.
type VideoDeviceData struct {
	Path  string `json:"path" example:"/dev/video0" doc:"Device node"`
	Name  string `json:"name" example:"HD Webcam" doc:"Driver-reported name"`
	ID    string `json:"id,omitempty" example:"usb-Cam_HD_Webcam-video-index0" doc:"Stable udev identifier, usable as video_device"`
	Index int    `json:"index" example:"0" doc:"Node index within the driver (capture nodes are 0)"`
}

// AudioDeviceData is an ALSA capture PCM.
type AudioDeviceData struct {
	ALSA     string `json:"alsa" example:"hw:1,0" doc:"ALSA device name, usable as audio_device"`
	CardID   string `json:"card_id" example:"Webcam" doc:"Card identifier"`
	CardName string `json:"card_name" example:"HD Webcam" doc:"Card name"`
	Name     string `json:"name" example:"USB Audio" doc:"PCM name"`
}

// DevicesData lists capture devices for the device source.
type DevicesData struct {
	Video []VideoDeviceData `json:"video" doc:"Video capture devices"`
	Audio []AudioDeviceData `json:"audio" doc:"Audio capture devices"`
}

// DevicesResponse represents the device listing response
type DevicesResponse struct {
	Body DevicesData
}
