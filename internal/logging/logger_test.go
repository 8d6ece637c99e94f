package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	loggers = make(map[string]*slog.Logger)
	levelVars = make(map[string]*slog.LevelVar)
	initialized = false
	current = Config{}
	logCallback = nil
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"session": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"session", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitializeFollowsLevel(t *testing.T) {
	resetState()

	before := GetLogger("ffmpeg").Handler()
	if before.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"ffmpeg": "debug"}})

	if !before.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("level change should reach a handler created before Initialize")
	}
	if !GetLogger("ffmpeg").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("rebuilt logger should have debug enabled")
	}
}

func TestApplyAndSetModuleLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})
	h := GetLogger("codec").Handler()
	ctx := context.Background()

	Apply(Config{Level: "error"})
	if h.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn should be disabled after Apply with level=error")
	}

	if !SetModuleLevel("codec", "debug") {
		t.Fatal("SetModuleLevel rejected a valid level")
	}
	if !h.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be enabled after SetModuleLevel")
	}
	if SetModuleLevel("codec", "loud") {
		t.Error("SetModuleLevel accepted an invalid level")
	}
}

func TestMultiHandlerWritesOncePerEnabledHandler(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debug, info))
	logger.Debug("debug only")
	logger.Info("both")

	out := buf.String()
	if n := strings.Count(out, "debug only"); n != 1 {
		t.Errorf("debug message written %d times, want 1", n)
	}
	if n := strings.Count(out, "both"); n != 2 {
		t.Errorf("info message written %d times, want 2", n)
	}
}

func TestBufferHandlerCapturesModuleAndAttrs(t *testing.T) {
	buf := NewRingBuffer(4)
	var seen []LogEntry
	cb := func() LogCallback { return func(e LogEntry) { seen = append(seen, e) } }

	logger := slog.New(NewBufferHandler(buf, slog.LevelInfo, cb)).With("module", "session")
	logger.WithGroup("track").Info("sample written", "index", 1, "took", 2*time.Millisecond)
	logger.Debug("filtered")

	entries := buf.Tail(0)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "session" || e.Level != "info" || e.Seq != 1 {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attributes["track.index"] != int64(1) {
		t.Errorf("track.index = %v", e.Attributes["track.index"])
	}
	if e.Attributes["track.took"] != "2ms" {
		t.Errorf("track.took = %v", e.Attributes["track.took"])
	}
	if len(seen) != 1 {
		t.Errorf("callback fired %d times, want 1", len(seen))
	}
}

func TestRingBufferTail(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	got := rb.Tail(0)
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i].Message, want[i])
		}
	}
	if last := rb.Tail(1); len(last) != 1 || last[0].Message != "e" || last[0].Seq != 5 {
		t.Errorf("Tail(1) = %+v", last)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"TRACE", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatLogLine(t *testing.T) {
	e := LogEntry{
		Timestamp:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "warn",
		Module:     "mux",
		Message:    "late sample",
		Attributes: map[string]any{"track": 1, "pts": 40},
	}
	got := FormatLogLine(e)
	want := "2025-01-02T03:04:05Z [WARN] [mux] late sample pts=40 track=1"
	if got != want {
		t.Errorf("FormatLogLine = %q, want %q", got, want)
	}
}
