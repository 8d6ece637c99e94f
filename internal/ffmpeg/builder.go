package ffmpeg

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/wasd845/AVGraphics/internal/process"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

// Base returns the ffmpeg argv prefix with standard flags. -loglevel
// level+info prefixes every stderr line with its level for ParseLogLine.
func Base(binary string) []string {
	args, err := process.ParseCommand(binary)
	if err != nil || len(args) == 0 {
		args = []string{DefaultBinary}
	}
	return append(args, "-hide_banner", "-nostats", "-nostdin", "-loglevel", "level+info")
}

// EncodeArgs builds the encoder argv. Raw frames are read from stdin and an
// Annex B elementary stream with access unit delimiters is written to stdout.
func EncodeArgs(p *EncodeParams) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", p.Width, p.Height)
	}
	if p.PixelFormat == "" {
		return nil, fmt.Errorf("pixel format is required")
	}
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	rate := p.FrameRate
	if rate <= 0 {
		rate = 30
	}

	args := Base(p.Binary)
	if p.Progress != "" {
		args = append(args, "-progress", p.Progress, "-stats_period", "1")
	}
	args = append(args, p.GlobalArgs...)
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", p.PixelFormat,
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", strconv.Itoa(rate),
		"-i", "pipe:0",
	)

	if p.VideoFilters != "" {
		args = append(args, "-vf", p.VideoFilters)
	}

	args = append(args, "-c:v", encoder)

	if p.Bitrate > 0 {
		args = append(args, "-b:v", strconv.Itoa(p.Bitrate))
	}

	keys := make([]string, 0, len(p.OutputParams))
	for k := range p.OutputParams {
		switch k {
		case "b:v":
			if p.Bitrate > 0 {
				continue
			}
		case "bf", "g":
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "-"+k, p.OutputParams[k])
	}

	gop := p.GOP
	if gop <= 0 {
		gop = rate
	}
	args = append(args, "-g", strconv.Itoa(gop), "-bf", "0")

	if !IsHardwareEncoder(encoder) {
		args = append(args, "-tune", "zerolatency")
	}

	// One output access unit per input frame; AUDs mark the boundaries.
	args = append(args,
		"-fps_mode", "passthrough",
		"-bsf:v", "h264_metadata=aud=insert",
		"-flush_packets", "1",
		"-f", "h264", "pipe:1",
	)
	return args, nil
}

// DecodeArgs builds the decoder argv. Annex B is read from stdin and
// fixed-size raw frames are written to stdout.
func DecodeArgs(p *DecodeParams) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", p.Width, p.Height)
	}
	if p.PixelFormat == "" {
		return nil, fmt.Errorf("pixel format is required")
	}

	args := Base(p.Binary)
	if p.HWAccel != "" {
		args = append(args, "-hwaccel", p.HWAccel)
	}
	args = append(args,
		"-flags", "low_delay",
		"-f", "h264",
		"-i", "pipe:0",
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", p.PixelFormat,
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"pipe:1",
	)
	return args, nil
}

// VideoCaptureArgs builds a reader that writes raw frames to stdout.
func VideoCaptureArgs(p *VideoCaptureParams) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", p.Width, p.Height)
	}
	rate := p.FrameRate
	if rate <= 0 {
		rate = 30
	}
	size := fmt.Sprintf("%dx%d", p.Width, p.Height)

	args := Base(p.Binary)
	if p.Device == "" {
		// Read at native frame rate so the test source behaves like a camera.
		args = append(args, "-re", "-f", "lavfi", "-i", fmt.Sprintf("testsrc2=size=%s:rate=%d", size, rate))
	} else {
		args = append(args, "-f", "v4l2")
		args = append(args, InputArgs(p.Options)...)
		if p.InputFormat != "" {
			args = append(args, "-input_format", p.InputFormat)
		}
		args = append(args, "-video_size", size, "-framerate", strconv.Itoa(rate), "-i", p.Device)
	}

	pix := p.PixelFormat
	if pix == "" {
		pix = "nv21"
	}
	args = append(args,
		"-an",
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", pix,
		"-video_size", size,
		"pipe:1",
	)
	return args, nil
}

// AudioCaptureArgs builds a reader that writes S16LE PCM to stdout.
func AudioCaptureArgs(p *AudioCaptureParams) ([]string, error) {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio format %d Hz x %d", p.SampleRate, p.Channels)
	}
	rate := strconv.Itoa(p.SampleRate)
	channels := strconv.Itoa(p.Channels)

	args := Base(p.Binary)
	if p.Device == "" {
		args = append(args, "-re", "-f", "lavfi", "-i", "sine=frequency=1000:sample_rate="+rate)
	} else {
		args = append(args, InputArgs(p.Options)...)
		args = append(args, "-f", "alsa", "-sample_fmt", "s16", "-ar", rate, "-ac", channels, "-i", p.Device)
	}
	args = append(args,
		"-vn",
		"-ar", rate,
		"-ac", channels,
		"-f", "s16le",
		"pipe:1",
	)
	return args, nil
}

// EncodersListArgs lists the encoders compiled into ffmpeg.
func EncodersListArgs(binary string) []string {
	return append(Base(binary), "-encoders")
}

// VersionArgs prints the ffmpeg version banner.
func VersionArgs(binary string) []string {
	args, err := process.ParseCommand(binary)
	if err != nil || len(args) == 0 {
		args = []string{DefaultBinary}
	}
	return append(args, "-version")
}
