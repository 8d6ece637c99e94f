package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/devices"
	"github.com/wasd845/AVGraphics/internal/encoders"
	"github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/recorder"
	"github.com/wasd845/AVGraphics/internal/session"
)

// Options for the CLI - flat structure with toml mapping. Shared by the
// server and every subcommand.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Recording settings
	RecordingOutputDir    string `help:"Directory for recordings without an explicit path" default:"recordings" toml:"recording.output_dir" env:"RECORDING_OUTPUT_DIR"`
	RecordingWidth        int    `help:"Frame width" default:"640" toml:"recording.width" env:"RECORDING_WIDTH"`
	RecordingHeight       int    `help:"Frame height" default:"480" toml:"recording.height" env:"RECORDING_HEIGHT"`
	RecordingPixelFormat  string `help:"Raw pixel format (nv21, nv12, yuv420p, yuyv422)" default:"nv21" toml:"recording.pixel_format" env:"RECORDING_PIXEL_FORMAT"`
	RecordingFrameRate    int    `help:"Frames per second" default:"30" toml:"recording.frame_rate" env:"RECORDING_FRAME_RATE"`
	RecordingVideoBitrate int    `help:"Video bitrate in bits per second" default:"2000000" toml:"recording.video_bitrate" env:"RECORDING_VIDEO_BITRATE"`
	RecordingSampleRate   int    `help:"Audio sample rate" default:"44100" toml:"recording.sample_rate" env:"RECORDING_SAMPLE_RATE"`
	RecordingChannels     int    `help:"Audio channels" default:"1" toml:"recording.channels" env:"RECORDING_CHANNELS"`
	RecordingVideoCodec   string `help:"Video codec (h264, raw)" default:"h264" toml:"recording.video_codec" env:"RECORDING_VIDEO_CODEC"`
	RecordingAudioCodec   string `help:"Audio codec (raw, pcmu, pcma)" default:"raw" toml:"recording.audio_codec" env:"RECORDING_AUDIO_CODEC"`
	RecordingQueueDepth   int    `help:"Per-track queue depth" default:"32" toml:"recording.queue_depth" env:"RECORDING_QUEUE_DEPTH"`
	RecordingMinDuration  string `help:"Stop requests earlier than this are deferred" default:"0s" toml:"recording.min_duration" env:"RECORDING_MIN_DURATION"`
	RecordingVideoDevice  string `help:"V4L2 capture device" default:"/dev/video0" toml:"recording.video_device" env:"RECORDING_VIDEO_DEVICE"`
	RecordingAudioDevice  string `help:"ALSA capture device" default:"default" toml:"recording.audio_device" env:"RECORDING_AUDIO_DEVICE"`
	RecordingInputFormat  string `help:"V4L2 input format" default:"" toml:"recording.input_format" env:"RECORDING_INPUT_FORMAT"`
	RecordingCaptureFlags string `help:"Comma separated ffmpeg input options for devices (e.g. thread_queue_1024,low_latency)" default:"" toml:"recording.capture_options" env:"RECORDING_CAPTURE_OPTIONS"`

	// Transcode settings
	TranscodeVideoCodec   string `help:"Target video codec (empty keeps the input codec)" default:"h264" toml:"transcode.video_codec" env:"TRANSCODE_VIDEO_CODEC"`
	TranscodeAudioCodec   string `help:"Target audio codec (empty keeps the input codec)" default:"" toml:"transcode.audio_codec" env:"TRANSCODE_AUDIO_CODEC"`
	TranscodeVideoBitrate int    `help:"Target video bitrate (0 derives it from the input)" default:"0" toml:"transcode.video_bitrate" env:"TRANSCODE_VIDEO_BITRATE"`

	// Container and codec settings
	ContainerFormat  string `help:"Container format" default:"mkv" toml:"container.format" env:"CONTAINER_FORMAT"`
	CodecFFmpegPath  string `help:"ffmpeg executable" default:"ffmpeg" toml:"codec.ffmpeg_path" env:"CODEC_FFMPEG_PATH"`
	CodecH264Encoder string `help:"Force an H.264 encoder (empty picks the best probed one)" default:"" toml:"codec.h264_encoder" env:"CODEC_H264_ENCODER"`
	CodecProgressDir string `help:"Directory for ffmpeg progress sockets (empty disables encoder metrics)" default:"" toml:"codec.progress_dir" env:"CODEC_PROGRESS_DIR"`
	CodecProbeFile   string `help:"Encoder probe results written by probe-encoders" default:"encoders.toml" toml:"codec.probe_file" env:"CODEC_PROBE_FILE"`

	// Jobs settings
	JobsMaxConcurrent int `help:"Decode and transcode jobs run at once" default:"1" toml:"jobs.max_concurrent" env:"JOBS_MAX_CONCURRENT"`
	JobsHistory       int `help:"Finished jobs kept for queries" default:"100" toml:"jobs.history" env:"JOBS_HISTORY"`

	// LED settings
	LEDEnabled bool   `help:"Show recording state on a board LED" default:"true" toml:"led.enabled" env:"LED_ENABLED"`
	LEDName    string `help:"Sysfs LED name (empty picks the board default)" default:"" toml:"led.name" env:"LED_NAME"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession   string `help:"Session logging level" default:"" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingCodec     string `help:"Codec logging level" default:"" toml:"logging.codec" env:"LOGGING_CODEC"`
	LoggingContainer string `help:"Container logging level" default:"" toml:"logging.container" env:"LOGGING_CONTAINER"`
	LoggingRecorder  string `help:"Recorder logging level" default:"" toml:"logging.recorder" env:"LOGGING_RECORDER"`
	LoggingCapture   string `help:"Capture logging level" default:"" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingEncoders  string `help:"Encoders logging level" default:"" toml:"logging.encoders" env:"LOGGING_ENCODERS"`
	LoggingFFmpeg    string `help:"ffmpeg subprocess logging level" default:"" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingJobs      string `help:"Jobs logging level" default:"" toml:"logging.jobs" env:"LOGGING_JOBS"`
	LoggingAPI       string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP      string `help:"HTTP request logging level" default:"" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingDevices   string `help:"Device discovery logging level" default:"" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingLED       string `help:"LED indicator logging level" default:"" toml:"logging.led" env:"LOGGING_LED"`
}

// LoggingConfig builds the logging configuration. Empty module levels
// inherit the global level.
func (o *Options) LoggingConfig() logging.Config {
	modules := map[string]string{
		"session":   o.LoggingSession,
		"codec":     o.LoggingCodec,
		"container": o.LoggingContainer,
		"recorder":  o.LoggingRecorder,
		"capture":   o.LoggingCapture,
		"encoders":  o.LoggingEncoders,
		"ffmpeg":    o.LoggingFFmpeg,
		"jobs":      o.LoggingJobs,
		"api":       o.LoggingAPI,
		"http":      o.LoggingHTTP,
		"devices":   o.LoggingDevices,
		"led":       o.LoggingLED,
	}
	for module, level := range modules {
		if level == "" {
			delete(modules, module)
		}
	}
	return logging.Config{Level: o.LoggingLevel, Format: o.LoggingFormat, Modules: modules}
}

// Selector loads the probe results, if any, and returns the encoder
// selector.
func (o *Options) Selector(logger logging.Logger) *encoders.Selector {
	results, err := encoders.LoadResults(o.CodecProbeFile)
	switch {
	case err != nil:
		logger.Warn("Failed to load encoder probe results", "file", o.CodecProbeFile, "error", err)
	case results == nil:
		logger.Debug("No encoder probe results, using fallback", "file", o.CodecProbeFile)
	default:
		logger.Info("Loaded encoder probe results", "file", o.CodecProbeFile, "working", len(results.H264.Working))
	}
	return encoders.NewSelector(results, o.CodecH264Encoder, logging.GetLogger("encoders"))
}

// SessionOptions builds the options shared by every session.
func (o *Options) SessionOptions(selector *encoders.Selector) (session.Options, error) {
	if _, ok := container.LookupFormat(o.ContainerFormat); !ok {
		return session.Options{}, fmt.Errorf("unknown container format %q", o.ContainerFormat)
	}

	minDuration, err := time.ParseDuration(o.RecordingMinDuration)
	if err != nil {
		return session.Options{}, fmt.Errorf("recording.min_duration: %w", err)
	}

	mimes := make([]string, 4)
	for i, c := range []struct {
		key  string
		kind media.Kind
		name string
	}{
		{"recording.video_codec", media.KindVideo, o.RecordingVideoCodec},
		{"recording.audio_codec", media.KindAudio, o.RecordingAudioCodec},
		{"transcode.video_codec", media.KindVideo, o.TranscodeVideoCodec},
		{"transcode.audio_codec", media.KindAudio, o.TranscodeAudioCodec},
	} {
		mime, err := media.CodecMIME(c.kind, c.name)
		if err != nil {
			return session.Options{}, fmt.Errorf("%s: %w", c.key, err)
		}
		mimes[i] = mime
	}

	return session.Options{
		Codecs: codec.Default(codec.Options{
			FFmpegPath:  o.CodecFFmpegPath,
			Selector:    selector,
			ProgressDir: o.CodecProgressDir,
		}),
		Container:             o.ContainerFormat,
		VideoMIME:             mimes[0],
		AudioMIME:             mimes[1],
		QueueDepth:            o.RecordingQueueDepth,
		MinDuration:           minDuration,
		TranscodeVideoMIME:    mimes[2],
		TranscodeAudioMIME:    mimes[3],
		TranscodeVideoBitrate: o.TranscodeVideoBitrate,
	}, nil
}

// RecorderOptions builds the recorder configuration on top of sess.
func (o *Options) RecorderOptions(sess session.Options) (recorder.Options, error) {
	pix, err := media.ParsePixelFormat(o.RecordingPixelFormat)
	if err != nil {
		return recorder.Options{}, fmt.Errorf("recording.pixel_format: %w", err)
	}

	var flags []ffmpeg.OptionType
	if o.RecordingCaptureFlags != "" {
		flags, err = ffmpeg.ParseOptions(strings.Split(o.RecordingCaptureFlags, ","))
		if err != nil {
			return recorder.Options{}, fmt.Errorf("recording.capture_options: %w", err)
		}
	}

	return recorder.Options{
		Session: sess,
		Defaults: recorder.Request{
			Source:       recorder.SourceTest,
			Width:        o.RecordingWidth,
			Height:       o.RecordingHeight,
			PixelFormat:  pix,
			FrameRate:    o.RecordingFrameRate,
			VideoBitrate: o.RecordingVideoBitrate,
			SampleRate:   o.RecordingSampleRate,
			Channels:     o.RecordingChannels,
			VideoDevice:  o.RecordingVideoDevice,
			AudioDevice:  o.RecordingAudioDevice,
			InputFormat:  o.RecordingInputFormat,
		},
		OutputDir:     o.RecordingOutputDir,
		FFmpegPath:    o.CodecFFmpegPath,
		CaptureFlags:  flags,
		ResolveDevice: devices.NewDetector().ResolveVideo,
	}, nil
}
