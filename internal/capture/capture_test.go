package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/media"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []media.RawUnit
	audio  []media.RawUnit
}

func (s *recordingSink) FeedFrame(u media.RawUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, u)
}

func (s *recordingSink) FeedAudio(u media.RawUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, u)
}

func counter(step time.Duration) Clock {
	var mu sync.Mutex
	var now time.Duration
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		now += step
		return now
	}
}

func TestTestPatternFrames(t *testing.T) {
	for _, pix := range []media.PixelFormat{media.PixelNV21, media.PixelNV12, media.PixelI420} {
		t.Run(string(pix), func(t *testing.T) {
			p := &TestPattern{Width: 64, Height: 48, PixelFormat: pix, FrameRate: 200, Frames: 4}
			var units []media.RawUnit
			if err := p.Run(context.Background(), func(u media.RawUnit) { units = append(units, u) }); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(units) != 4 {
				t.Fatalf("frames = %d, want 4", len(units))
			}
			want := pix.FrameSize(64, 48)
			for i, u := range units {
				if u.Kind != media.KindVideo || len(u.Payload) != want {
					t.Errorf("frame %d: kind %s size %d, want video %d", i, u.Kind, len(u.Payload), want)
				}
				if i > 0 && u.Timestamp < units[i-1].Timestamp {
					t.Errorf("frame %d timestamp went backwards", i)
				}
			}
		})
	}
}

func TestTestPatternScrolls(t *testing.T) {
	p := &TestPattern{Width: 16, Height: 2}
	a, b := p.Frame(0), p.Frame(1)
	if string(a) == string(b) {
		t.Error("consecutive frames are identical")
	}
	if a[0] != bars[0][0] {
		t.Errorf("first luma = %d, want %d", a[0], bars[0][0])
	}
}

func TestTestPatternInvalid(t *testing.T) {
	tests := []struct {
		name string
		p    TestPattern
	}{
		{"zero size", TestPattern{}},
		{"packed format", TestPattern{Width: 8, Height: 8, PixelFormat: media.PixelYUYV422}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Run(context.Background(), func(media.RawUnit) {}); err == nil {
				t.Error("Run() succeeded")
			}
		})
	}
}

func TestToneBuffer(t *testing.T) {
	tone := &Tone{SampleRate: 8000, Channels: 2, Frequency: 1000, Amplitude: 1}
	if n := tone.FramesPerChunk(); n != 160 {
		t.Fatalf("FramesPerChunk() = %d, want 160", n)
	}
	buf := tone.Buffer(0)
	if len(buf) != 160*2*media.BytesPerSample {
		t.Fatalf("len = %d", len(buf))
	}

	sample := func(b []byte, frame, ch int) int16 {
		return int16(binary.LittleEndian.Uint16(b[(frame*2+ch)*2:]))
	}
	if s := sample(buf, 0, 0); s != 0 {
		t.Errorf("first sample = %d, want 0", s)
	}
	// 1 kHz at 8 kHz peaks two frames in.
	if s := sample(buf, 2, 0); s != 32767 {
		t.Errorf("peak = %d, want 32767", s)
	}
	if sample(buf, 2, 0) != sample(buf, 2, 1) {
		t.Error("channels differ")
	}

	// Phase carries over: 160 frames is a whole number of periods.
	next := tone.Buffer(1)
	if sample(next, 2, 0) != sample(buf, 2, 0) {
		t.Error("phase discontinuity between chunks")
	}
}

func TestToneStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tone := &Tone{SampleRate: 8000, Channels: 1, Chunk: 5 * time.Millisecond}

	var n int
	err := tone.Run(ctx, func(media.RawUnit) {
		n++
		if n == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if n != 3 {
		t.Errorf("chunks = %d, want 3", n)
	}
}

func TestRunRoutesByKind(t *testing.T) {
	clock := counter(time.Millisecond)
	sink := &recordingSink{}
	err := Run(context.Background(), sink,
		&TestPattern{Width: 16, Height: 16, FrameRate: 200, Frames: 3, Clock: clock},
		&Tone{SampleRate: 8000, Channels: 1, Chunk: 5 * time.Millisecond, Chunks: 5, Clock: clock},
	)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.frames) != 3 || len(sink.audio) != 5 {
		t.Fatalf("got %d frames, %d audio buffers; want 3, 5", len(sink.frames), len(sink.audio))
	}
	for _, u := range sink.audio {
		if u.Kind != media.KindAudio {
			t.Errorf("audio sink got %s unit", u.Kind)
		}
	}
}

func TestRunReportsSourceError(t *testing.T) {
	err := Run(context.Background(), &recordingSink{},
		&TestPattern{Width: 0, Height: 0},
		&Tone{SampleRate: 8000, Channels: 1, Chunk: 5 * time.Millisecond},
	)
	if err == nil {
		t.Fatal("Run() succeeded with an invalid source")
	}
}

func TestRunNoSources(t *testing.T) {
	if err := Run(context.Background(), &recordingSink{}); err == nil {
		t.Error("Run() with no sources succeeded")
	}
}

func TestPipeSourceChunks(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}
	src := &pipeSource{
		kind:   media.KindAudio,
		args:   []string{"head", "-c", "350", "/dev/zero"},
		chunk:  100,
		clock:  counter(time.Millisecond),
		logger: loggerOr(nil),
	}
	var units []media.RawUnit
	if err := src.Run(context.Background(), func(u media.RawUnit) { units = append(units, u) }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// The trailing partial chunk is dropped.
	if len(units) != 3 {
		t.Fatalf("units = %d, want 3", len(units))
	}
	for i, u := range units {
		if len(u.Payload) != 100 || u.Timestamp != time.Duration(i+1)*time.Millisecond {
			t.Errorf("unit %d: %d bytes at %v", i, len(u.Payload), u.Timestamp)
		}
	}
}

func TestPipeSourceExitError(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	src := &pipeSource{
		kind:   media.KindVideo,
		args:   []string{"false"},
		chunk:  16,
		clock:  Monotonic,
		logger: loggerOr(nil),
	}
	if err := src.Run(context.Background(), func(media.RawUnit) {}); err == nil {
		t.Error("Run() of a failing process succeeded")
	}
}
