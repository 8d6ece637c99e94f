// Package media holds the values that flow through the pipelines: raw units
// from capture or decoders, compressed samples from encoders or demuxers,
// and the track formats that describe them.
package media

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the track a unit or sample belongs to.
type Kind int

const (
	KindVideo Kind = iota + 1
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "video" or "audio".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "video":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	}
	return 0, fmt.Errorf("unknown track kind %q", s)
}

// RawUnit is one uncompressed video frame or PCM buffer. Capture units carry
// the capture time on a monotonic clock; decoder output carries the
// presentation time. The payload is owned by whoever holds the unit.
type RawUnit struct {
	Kind        Kind
	Payload     []byte
	Timestamp   time.Duration
	EndOfStream bool
}

// Sample is one compressed access unit or audio frame. PTS is in
// microseconds on the shared presentation clock.
type Sample struct {
	Track       int
	Payload     []byte
	PTS         int64
	KeyFrame    bool
	EndOfStream bool
}

// PTSDuration returns PTS as a time.Duration.
func (s Sample) PTSDuration() time.Duration {
	return time.Duration(s.PTS) * time.Microsecond
}

// Micros converts a duration to the microsecond clock used by samples.
func Micros(d time.Duration) int64 {
	return d.Microseconds()
}
