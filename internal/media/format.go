package media

import (
	"fmt"
	"strings"
)

// MIME kinds understood by the built-in codecs.
const (
	MIMERawVideo = "video/raw"
	MIMEAVC      = "video/avc"
	MIMERawAudio = "audio/raw"
	MIMEPCMU     = "audio/pcmu"
	MIMEPCMA     = "audio/pcma"
)

// CodecMIME resolves a codec name from configuration to a MIME type. Full
// MIME types pass through; empty stays empty.
func CodecMIME(kind Kind, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.Contains(name, "/") {
		return name, nil
	}
	switch {
	case name == "raw" && kind == KindVideo:
		return MIMERawVideo, nil
	case name == "raw" && kind == KindAudio:
		return MIMERawAudio, nil
	case (name == "h264" || name == "avc") && kind == KindVideo:
		return MIMEAVC, nil
	case (name == "pcmu" || name == "ulaw" || name == "g711u") && kind == KindAudio:
		return MIMEPCMU, nil
	case (name == "pcma" || name == "alaw" || name == "g711a") && kind == KindAudio:
		return MIMEPCMA, nil
	}
	return "", fmt.Errorf("unknown %s codec %q", kind, name)
}

// PixelFormat is a raw video layout.
type PixelFormat string

const (
	PixelNV21    PixelFormat = "nv21"
	PixelNV12    PixelFormat = "nv12"
	PixelI420    PixelFormat = "yuv420p"
	PixelYUYV422 PixelFormat = "yuyv422"
)

// ParsePixelFormat accepts the ffmpeg names plus a few common aliases.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(s) {
	case "nv21":
		return PixelNV21, nil
	case "nv12":
		return PixelNV12, nil
	case "yuv420p", "i420", "yv12":
		return PixelI420, nil
	case "yuyv422", "yuyv", "yuy2":
		return PixelYUYV422, nil
	}
	return "", fmt.Errorf("unsupported pixel format %q", s)
}

// FrameSize returns the byte size of one frame, or 0 for an unknown format.
func (p PixelFormat) FrameSize(width, height int) int {
	switch p {
	case PixelNV21, PixelNV12, PixelI420:
		return width*height + 2*((width+1)/2)*((height+1)/2)
	case PixelYUYV422:
		return width * height * 2
	}
	return 0
}

func (p PixelFormat) subsampled() bool {
	return p == PixelNV21 || p == PixelNV12 || p == PixelI420
}

// BytesPerSample is the size of one S16LE PCM sample.
const BytesPerSample = 2

// TrackFormat describes one track. Once an encoder has emitted it the value
// is never modified; copies are passed around.
type TrackFormat struct {
	Kind        Kind        `json:"kind"`
	MIME        string      `json:"mime"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	PixelFormat PixelFormat `json:"pixel_format,omitempty"`
	FrameRate   int         `json:"frame_rate,omitempty"`
	SampleRate  int         `json:"sample_rate,omitempty"`
	Channels    int         `json:"channels,omitempty"`
	Bitrate     int         `json:"bitrate,omitempty"`
}

// Validate checks that the fields required for the track kind are sane.
func (f TrackFormat) Validate() error {
	if f.MIME == "" {
		return fmt.Errorf("track format: missing mime")
	}
	if f.Bitrate < 0 {
		return fmt.Errorf("track format: negative bitrate %d", f.Bitrate)
	}

	switch f.Kind {
	case KindVideo:
		if !strings.HasPrefix(f.MIME, "video/") {
			return fmt.Errorf("track format: mime %q is not a video type", f.MIME)
		}
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("track format: invalid geometry %dx%d", f.Width, f.Height)
		}
		if f.Width > 8192 || f.Height > 8192 {
			return fmt.Errorf("track format: geometry %dx%d too large", f.Width, f.Height)
		}
		if f.PixelFormat != "" {
			if f.PixelFormat.FrameSize(1, 1) == 0 {
				return fmt.Errorf("track format: unsupported pixel format %q", f.PixelFormat)
			}
			if f.PixelFormat.subsampled() && (f.Width%2 != 0 || f.Height%2 != 0) {
				return fmt.Errorf("track format: %s needs even dimensions, got %dx%d", f.PixelFormat, f.Width, f.Height)
			}
		}
	case KindAudio:
		if !strings.HasPrefix(f.MIME, "audio/") {
			return fmt.Errorf("track format: mime %q is not an audio type", f.MIME)
		}
		if f.SampleRate <= 0 || f.SampleRate > 384000 {
			return fmt.Errorf("track format: invalid sample rate %d", f.SampleRate)
		}
		if f.Channels <= 0 || f.Channels > 8 {
			return fmt.Errorf("track format: invalid channel count %d", f.Channels)
		}
	default:
		return fmt.Errorf("track format: unknown kind %v", f.Kind)
	}
	return nil
}

// FrameSize is the raw frame size of a video format.
func (f TrackFormat) FrameSize() int {
	return f.PixelFormat.FrameSize(f.Width, f.Height)
}

// String is a short human readable description.
func (f TrackFormat) String() string {
	if f.Kind == KindVideo {
		return fmt.Sprintf("%s %dx%d %s", f.MIME, f.Width, f.Height, f.PixelFormat)
	}
	return fmt.Sprintf("%s %dHz %dch", f.MIME, f.SampleRate, f.Channels)
}
