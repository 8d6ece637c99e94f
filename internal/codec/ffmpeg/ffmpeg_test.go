package ffmpeg

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/encoders"
	"github.com/wasd845/AVGraphics/internal/media"
)

var (
	aud   = []byte{0, 0, 0, 1, 9, 0xF0}
	idr   = []byte{0, 0, 1, 0x65, 0x88, 0x84}
	slice = []byte{0, 0, 1, 0x41, 0x9A, 0x02}
)

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func TestSplitterCutsAtDelimiters(t *testing.T) {
	stream := join(aud, idr, aud, slice, aud, slice)

	var s auSplitter
	var aus [][]byte
	// Feed one byte at a time so start codes straddle reads.
	for i := range stream {
		aus = append(aus, s.push(stream[i:i+1])...)
	}
	if tail := s.flush(); tail != nil {
		aus = append(aus, tail)
	}

	want := [][]byte{join(aud, idr), join(aud, slice), join(aud, slice)}
	if len(aus) != len(want) {
		t.Fatalf("got %d access units, want %d", len(aus), len(want))
	}
	for i := range want {
		if !bytes.Equal(aus[i], want[i]) {
			t.Errorf("au %d = % x, want % x", i, aus[i], want[i])
		}
	}
}

func TestSplitterThreeByteStartCode(t *testing.T) {
	short := []byte{0, 0, 1, 9, 0xF0}
	var s auSplitter
	aus := s.push(join(short, idr, short, slice))
	if len(aus) != 1 || !bytes.Equal(aus[0], join(short, idr)) {
		t.Fatalf("aus = % x", aus)
	}
	if tail := s.flush(); !bytes.Equal(tail, join(short, slice)) {
		t.Errorf("tail = % x", tail)
	}
	if s.flush() != nil {
		t.Error("second flush returned data")
	}
}

func TestIsKeyFrame(t *testing.T) {
	if !isKeyFrame(join(aud, idr)) {
		t.Error("IDR access unit not detected")
	}
	if isKeyFrame(join(aud, slice)) {
		t.Error("non-IDR access unit reported as key frame")
	}
	if isKeyFrame([]byte{1, 2, 3}) {
		t.Error("garbage reported as key frame")
	}
}

func TestPTSQueue(t *testing.T) {
	var q ptsQueue
	q.push(10)
	q.push(20)
	if got := q.pop(); got != 10 {
		t.Errorf("pop = %d, want 10", got)
	}
	if got := q.pop(); got != 20 {
		t.Errorf("pop = %d, want 20", got)
	}
	if got := q.pop(); got != 20 {
		t.Errorf("pop on empty = %d, want last value 20", got)
	}
}

func TestReadFramesTruncated(t *testing.T) {
	q := newOutputQueue()
	readFrames(bytes.NewReader(make([]byte, 10)), 4, q)
	<-q.done
	if got := len(q.take()); got != 2 {
		t.Errorf("got %d frames, want 2", got)
	}
	if q.readErr() == nil {
		t.Error("expected truncated frame error")
	}
}

func TestConfigureRejectsCompressedInput(t *testing.T) {
	enc := NewEncoder(Config{Logger: discard()})
	_, err := enc.Configure(context.Background(), media.TrackFormat{
		Kind: media.KindVideo, MIME: media.MIMEAVC, Width: 64, Height: 48,
	})
	if !media.IsCode(err, media.ErrCodeInit) {
		t.Errorf("error = %v, want INIT_ERROR", err)
	}
	if err := enc.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}

func TestEncodeDecodeWithFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg round trip in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found")
	}
	list, err := encoders.ListEncoders(context.Background(), "ffmpeg")
	if err != nil {
		t.Skipf("cannot list encoders: %v", err)
	}
	found := false
	for _, e := range list {
		found = found || e.Name == encoders.FallbackEncoder
	}
	if !found {
		t.Skip("libx264 not available")
	}

	ctx := context.Background()
	cfg := Config{
		Selector:     encoders.NewSelector(nil, encoders.FallbackEncoder, discard()),
		DrainTimeout: 20 * time.Second,
		Logger:       discard(),
	}
	in := media.TrackFormat{
		Kind: media.KindVideo, MIME: media.MIMERawVideo,
		Width: 64, Height: 48, PixelFormat: media.PixelNV21, FrameRate: 10, Bitrate: 200_000,
	}

	enc := NewEncoder(cfg)
	defer enc.Release()
	out, err := enc.Configure(ctx, in)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if out.MIME != media.MIMEAVC {
		t.Fatalf("output mime = %s", out.MIME)
	}

	const frames = 10
	var samples []media.Sample
	for i := range frames {
		frame := make([]byte, in.FrameSize())
		for j := range frame {
			frame[j] = byte(i*8 + j)
		}
		for s, err := range enc.Encode(media.RawUnit{Kind: media.KindVideo, Payload: frame, Timestamp: time.Duration(i) * 100 * time.Millisecond}) {
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			samples = append(samples, s)
		}
	}
	for s, err := range enc.SignalEndOfStream() {
		if err != nil {
			t.Fatalf("SignalEndOfStream: %v", err)
		}
		samples = append(samples, s)
	}

	if n := len(samples); n != frames+1 || !samples[n-1].EndOfStream {
		t.Fatalf("got %d samples, want %d frames + EOS", n, frames)
	}
	if !samples[0].KeyFrame {
		t.Error("first access unit is not a key frame")
	}
	if w, h, ok := spsGeometry(samples[0].Payload); !ok || w != 64 || h != 48 {
		t.Errorf("SPS geometry = %dx%d (ok=%v)", w, h, ok)
	}
	for i := 1; i < frames; i++ {
		if samples[i].PTS < samples[i-1].PTS {
			t.Errorf("PTS regressed at %d: %d < %d", i, samples[i].PTS, samples[i-1].PTS)
		}
	}

	dec := NewDecoder(cfg)
	defer dec.Release()
	if _, err := dec.Configure(ctx, out); err != nil {
		t.Fatalf("decoder Configure: %v", err)
	}
	var units []media.RawUnit
	for _, s := range samples {
		for u, err := range dec.Decode(s) {
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			units = append(units, u)
		}
	}
	for u, err := range dec.SignalEndOfStream() {
		if err != nil {
			t.Fatalf("decoder SignalEndOfStream: %v", err)
		}
		units = append(units, u)
	}
	if n := len(units); n != frames+1 || !units[n-1].EndOfStream {
		t.Fatalf("got %d units, want %d frames + EOS", n, frames)
	}
	if got, want := len(units[0].Payload), media.PixelI420.FrameSize(64, 48); got != want {
		t.Errorf("frame size = %d, want %d", got, want)
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
