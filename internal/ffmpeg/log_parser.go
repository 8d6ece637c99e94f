package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLine turns one stderr line of an ffmpeg started through Base into
// a slog level, a message and attributes.
//
// With -loglevel level+info ffmpeg writes "[level] message", or
// "[component @ 0x55d...] [level] message" for codec and muxer contexts. The
// component name becomes a "component" attribute and the context address is
// dropped. ffmpeg's info output is chatty and maps to debug.
func ParseLogLine(line string) (slog.Level, string, []any) {
	rest := line
	var attrs []any

	if tag, after, ok := bracket(rest); ok && !isLogLevel(tag) {
		name, _, _ := strings.Cut(tag, " @ ")
		attrs = append(attrs, "component", name)
		rest = after
	}

	tag, after, ok := bracket(rest)
	if !ok || !isLogLevel(tag) {
		// Lines without a level prefix are continuations or banners.
		if attrs == nil {
			return slog.LevelDebug, line, nil
		}
		return slog.LevelDebug, rest, attrs
	}
	return levelOf(tag), after, attrs
}

// bracket splits "[tag] rest".
func bracket(s string) (tag, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return "", s, false
	}
	end := strings.Index(s, "] ")
	if end == -1 {
		return "", s, false
	}
	return s[1:end], s[end+2:], true
}

func levelOf(s string) slog.Level {
	switch s {
	case "panic", "fatal", "error":
		return slog.LevelError
	case "warning":
		return slog.LevelWarn
	}
	return slog.LevelDebug
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
