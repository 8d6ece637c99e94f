package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := New(Options{
		Session: session.Options{
			Codecs:     codec.Default(codec.Options{Logger: discardLogger()}),
			VideoMIME:  media.MIMERawVideo,
			AudioMIME:  media.MIMEPCMU,
			QueueDepth: 64,
			Logger:     discardLogger(),
		},
		Defaults: Request{
			Width:      32,
			Height:     24,
			FrameRate:  50,
			SampleRate: 8000,
			Channels:   1,
		},
		OutputDir: t.TempDir(),
		Logger:    discardLogger(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Close(ctx)
	})
	return m
}

func waitSession(t *testing.T, sess *session.RecordingSession) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Wait(ctx); err != nil && ctx.Err() != nil {
		t.Fatalf("recording did not finish: %v", err)
	}
	return sess.Err()
}

func countSamples(t *testing.T, path string) []int {
	t.Helper()
	d, err := container.Open(path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	defer d.Close()
	counts := make([]int, len(d.Tracks()))
	for i := range counts {
		for _, err := range d.Samples(i) {
			if err != nil {
				t.Fatalf("Samples(%d): %v", i, err)
			}
			counts[i]++
		}
	}
	return counts
}

func TestStartWithDurationWritesBothTracks(t *testing.T) {
	m := testManager(t)
	sess, err := m.Start(context.Background(), Request{Duration: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if filepath.Ext(sess.Path()) != ".mkv" {
		t.Errorf("default path %q is not a Matroska file", sess.Path())
	}
	if err := waitSession(t, sess); err != nil {
		t.Fatalf("recording error = %v", err)
	}
	if sess.State() != session.StateClosed {
		t.Fatalf("state = %s, want closed", sess.State())
	}

	counts := countSamples(t, sess.Path())
	if len(counts) != 2 || counts[0] == 0 || counts[1] == 0 {
		t.Errorf("samples per track = %v, want two non-empty tracks", counts)
	}
	if _, ok := m.Current(); ok {
		t.Error("finished recording still current")
	}
	if last, ok := m.Last(); !ok || last != sess {
		t.Error("Last() does not return the finished recording")
	}
}

func TestStartWhileBusy(t *testing.T) {
	m := testManager(t)
	sess, err := m.Start(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := m.Start(context.Background(), Request{}); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start() error = %v, want ErrBusy", err)
	}

	stats, ok := m.CurrentStats()
	if !ok || stats.SessionID != sess.ID() || stats.State != "running" {
		t.Errorf("CurrentStats() = %+v, %v", stats, ok)
	}

	stopped, err := m.Stop()
	if err != nil || stopped != sess {
		t.Fatalf("Stop() = %v, %v", stopped, err)
	}
	if err := waitSession(t, sess); err != nil {
		t.Fatalf("recording error = %v", err)
	}

	// The slot frees up once the session completes.
	next, err := m.Start(context.Background(), Request{OutputPath: filepath.Join(t.TempDir(), "next.mkv")})
	if err != nil {
		t.Fatalf("Start() after completion error = %v", err)
	}
	m.Stop()
	waitSession(t, next)
}

func TestStopWithoutRecording(t *testing.T) {
	m := testManager(t)
	if _, err := m.Stop(); !errors.Is(err, ErrNoRecording) {
		t.Errorf("Stop() error = %v, want ErrNoRecording", err)
	}
	if _, ok := m.CurrentStats(); ok {
		t.Error("CurrentStats() reported a recording")
	}
}

func TestStartRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown source", Request{Source: "screen"}},
		{"device without devices", Request{Source: SourceDevice}},
		{"odd geometry", Request{Width: 33, Height: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManager(t)
			if _, err := m.Start(context.Background(), tt.req); !media.IsCode(err, media.ErrCodeInit) {
				t.Errorf("Start() error = %v, want INIT_ERROR", err)
			}
			if _, ok := m.Current(); ok {
				t.Error("failed Start left a current recording")
			}
		})
	}
}

func TestCloseStopsActiveRecording(t *testing.T) {
	m := testManager(t)
	sess, err := m.Start(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sess.State().Terminal() {
		t.Errorf("state after Close = %s", sess.State())
	}
}

func TestResolveDefaults(t *testing.T) {
	m := New(Options{Defaults: Request{Width: 640, Height: 480, SampleRate: 48000, Channels: 2}, OutputDir: "/rec"})
	req := m.resolve(Request{Width: 320, Height: 240})
	if req.Width != 320 || req.Height != 240 {
		t.Errorf("explicit geometry overridden: %dx%d", req.Width, req.Height)
	}
	if req.SampleRate != 48000 || req.Channels != 2 || req.Source != SourceTest || req.PixelFormat != media.PixelNV21 {
		t.Errorf("defaults not applied: %+v", req)
	}
	if filepath.Dir(req.OutputPath) != "/rec" {
		t.Errorf("output path = %q, want under /rec", req.OutputPath)
	}
}

func TestDeviceSourceResolvesStableID(t *testing.T) {
	var asked string
	m := New(Options{
		Defaults: Request{Source: SourceDevice, AudioDevice: "hw:1,0"},
		ResolveDevice: func(id string) (string, error) {
			asked = id
			return "", errors.New("no video device with id " + id)
		},
		OutputDir: t.TempDir(),
		Logger:    discardLogger(),
	})

	_, err := m.Start(context.Background(), Request{VideoDevice: "usb-Cam-video-index0"})
	if !media.IsCode(err, media.ErrCodeInit) {
		t.Fatalf("Start() error = %v, want INIT_ERROR", err)
	}
	if asked != "usb-Cam-video-index0" {
		t.Errorf("resolver asked for %q", asked)
	}
}
