package ffmpeg

// EncodeParams describes a raw-video-in, H.264-out filter process.
type EncodeParams struct {
	Binary string // ffmpeg executable, may include a wrapper ("nice ffmpeg")

	// Input
	Width       int
	Height      int
	PixelFormat string // nv21, nv12, yuv420p, yuyv422
	FrameRate   int

	// Encoder
	Encoder      string            // h264_vaapi, libx264, etc.
	GlobalArgs   []string          // -vaapi_device, etc.
	VideoFilters string            // format=nv12,hwupload
	OutputParams map[string]string // encoder-specific flags without the leading dash
	Bitrate      int               // bits per second, 0 = encoder default
	GOP          int               // keyframe interval, 0 = one second of frames

	Progress string // -progress target such as unix:///run/x.sock, empty disables
}

// DecodeParams describes an H.264-in, raw-video-out filter process.
type DecodeParams struct {
	Binary      string
	Width       int
	Height      int
	PixelFormat string
	HWAccel     string // optional -hwaccel value
}

// VideoCaptureParams describes a device-to-stdout raw video reader.
type VideoCaptureParams struct {
	Binary      string
	Device      string // /dev/video0; empty selects the lavfi test source
	InputFormat string // v4l2 input_format (yuyv422, mjpeg...)
	Width       int
	Height      int
	FrameRate   int
	PixelFormat string // raw output pixel format
	Options     []OptionType
}

// AudioCaptureParams describes a device-to-stdout S16LE PCM reader.
type AudioCaptureParams struct {
	Binary     string
	Device     string // ALSA device (hw:0,0); empty selects a sine test tone
	SampleRate int
	Channels   int
	Options    []OptionType
}
