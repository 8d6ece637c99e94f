// Package encoders discovers the H.264 encoders usable on this machine and
// picks one for recording and transcoding.
package encoders

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/process"
)

// EncoderType represents the type of encoder (video, audio, subtitle).
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder represents an FFmpeg encoder.
type Encoder struct {
	Type        EncoderType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	HWAccel     bool        `json:"hwaccel"`
}

var (
	encoderRegex = regexp.MustCompile(`^\s*([VASFXBD\.]{6})\s+(\S+)\s+(.+)$`)
	hwaccelRegex = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|v4l2m2m|rkmpp|vulkan|cuda)`)
)

// ListEncoders runs ffmpeg -encoders and returns the video encoders.
func ListEncoders(ctx context.Context, binary string) ([]Encoder, error) {
	out, err := process.Output(ctx, 10*time.Second, ffmpeg.EncodersListArgs(binary)...)
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return ParseEncoderOutput(string(out))
}

// ParseEncoderOutput parses the output of ffmpeg -encoders, keeping video
// encoders only.
func ParseEncoderOutput(output string) ([]Encoder, error) {
	var result []Encoder
	scanner := bufio.NewScanner(strings.NewReader(output))

	// Skip header lines until the legend separator
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.TrimSpace(line) == "------" {
				started = true
			}
			continue
		}

		matches := encoderRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		flags, name, description := matches[1], matches[2], strings.TrimSpace(matches[3])

		typ := Unknown
		switch flags[0] {
		case 'V':
			typ = VideoEncoder
		case 'A':
			typ = AudioEncoder
		case 'S':
			typ = SubtitleEncoder
		}
		if typ != VideoEncoder {
			continue
		}

		result = append(result, Encoder{
			Type:        typ,
			Name:        name,
			Description: description,
			HWAccel:     hwaccelRegex.MatchString(name) || hwaccelRegex.MatchString(description),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading output: %w", err)
	}
	return result, nil
}
