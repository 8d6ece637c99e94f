package session

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/media"
)

const (
	testWidth      = 64
	testHeight     = 48
	testSampleRate = 8000
	bufferSamples  = 160
	frameInterval  = 40 * time.Millisecond
	bufferInterval = 20 * time.Millisecond
	captureEpoch   = 3 * time.Second
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		Codecs:     codec.Default(codec.Options{RawDelay: 2, Logger: discardLogger()}),
		VideoMIME:  media.MIMERawVideo,
		AudioMIME:  media.MIMEPCMU,
		QueueDepth: 64,
		Logger:     discardLogger(),
	}
}

func testConfig(path string) RecordingConfig {
	return RecordingConfig{
		Width:        testWidth,
		Height:       testHeight,
		PixelFormat:  media.PixelNV21,
		FrameRate:    25,
		VideoBitrate: 1_000_000,
		SampleRate:   testSampleRate,
		Channels:     1,
		OutputPath:   path,
	}
}

func frame(i int) []byte {
	b := make([]byte, media.PixelNV21.FrameSize(testWidth, testHeight))
	for j := range b {
		b[j] = byte(i + j)
	}
	return b
}

func pcm(i int) []byte {
	b := make([]byte, bufferSamples*media.BytesPerSample)
	for j := range bufferSamples {
		v := int16(8000 * math.Sin(float64(i*bufferSamples+j)*2*math.Pi*440/testSampleRate))
		binary.LittleEndian.PutUint16(b[j*2:], uint16(v))
	}
	return b
}

// feedInterleaved feeds frames and buffers alternately on the capture clock.
func feedInterleaved(s *RecordingSession, frames, buffers int) {
	for i := range max(frames, buffers) {
		if i < frames {
			s.FeedFrame(media.RawUnit{Payload: frame(i), Timestamp: captureEpoch + time.Duration(i)*frameInterval})
		}
		if i < buffers {
			s.FeedAudio(media.RawUnit{Payload: pcm(i), Timestamp: captureEpoch + time.Duration(i)*bufferInterval})
		}
	}
}

// record produces a finished recording at path.
func record(t *testing.T, opts Options, path string, frames, buffers int) *RecordingSession {
	t.Helper()
	s := NewRecordingSession(opts)
	if err := s.Init(context.Background(), testConfig(path)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	feedInterleaved(s, frames, buffers)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := waitDone(t, s); err != nil {
		t.Fatalf("recording failed: %v", err)
	}
	return s
}

func waitDone(t *testing.T, s *RecordingSession) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("session did not finish, state %s", s.State())
	}
	return err
}

func readContainer(t *testing.T, path string) ([]media.TrackFormat, [][]media.Sample) {
	t.Helper()
	d, err := container.Open(path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	defer d.Close()

	tracks := d.Tracks()
	samples := make([][]media.Sample, len(tracks))
	for i := range tracks {
		for s, err := range d.Samples(i) {
			if err != nil {
				t.Fatalf("Samples(%d): %v", i, err)
			}
			samples[i] = append(samples[i], s)
		}
	}
	return tracks, samples
}

func assertNotExist(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s exists (stat err %v)", p, err)
		}
	}
}

func assertOnlyFiles(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, w := range want {
		if !names[w] {
			t.Errorf("%s missing from %s", w, dir)
		}
		delete(names, w)
	}
	for n := range names {
		t.Errorf("unexpected file %s in %s", n, dir)
	}
}

type transitions struct {
	mu   sync.Mutex
	list []StateChange
}

func (tr *transitions) record(c StateChange) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.list = append(tr.list, c)
}

func (tr *transitions) count(to State) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for _, c := range tr.list {
		if c.To == to {
			n++
		}
	}
	return n
}

// stubEncoder passes units through one sample each, with hooks for
// failures and stalls.
type stubEncoder struct {
	onConfigure func(ctx context.Context) error
	onEncode    func(n int) error

	format   media.TrackFormat
	n        int
	last     int64
	released atomic.Bool
}

func (e *stubEncoder) Configure(ctx context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	if e.onConfigure != nil {
		if err := e.onConfigure(ctx); err != nil {
			return media.TrackFormat{}, err
		}
	}
	e.format = in
	return in, nil
}

func (e *stubEncoder) Encode(u media.RawUnit) iter.Seq2[media.Sample, error] {
	e.n++
	if e.onEncode != nil {
		if err := e.onEncode(e.n); err != nil {
			return codec.Fail[media.Sample](err)
		}
	}
	e.last = media.Micros(u.Timestamp)
	return func(yield func(media.Sample, error) bool) {
		yield(media.Sample{Payload: u.Payload, PTS: e.last, KeyFrame: true}, nil)
	}
}

func (e *stubEncoder) SignalEndOfStream() iter.Seq2[media.Sample, error] {
	return func(yield func(media.Sample, error) bool) {
		yield(media.Sample{PTS: e.last, EndOfStream: true}, nil)
	}
}

func (e *stubEncoder) Release() error {
	e.released.Store(true)
	return nil
}

// failingDecoder passes samples through and fails on sample number failAt.
// With skipEOS it never reports end of stream.
type failingDecoder struct {
	failAt  int
	skipEOS bool
	n       int
}

func (d *failingDecoder) Configure(_ context.Context, in media.TrackFormat) (media.TrackFormat, error) {
	return in, nil
}

func (d *failingDecoder) Decode(s media.Sample) iter.Seq2[media.RawUnit, error] {
	d.n++
	if d.n == d.failAt {
		return codec.Fail[media.RawUnit](media.CodecError("test.decode", nil, "corrupt sample %d", d.n))
	}
	return func(yield func(media.RawUnit, error) bool) {
		yield(media.RawUnit{Payload: s.Payload, Timestamp: s.PTSDuration()}, nil)
	}
}

func (d *failingDecoder) SignalEndOfStream() iter.Seq2[media.RawUnit, error] {
	return func(yield func(media.RawUnit, error) bool) {
		if !d.skipEOS {
			yield(media.RawUnit{EndOfStream: true}, nil)
		}
	}
}

func (d *failingDecoder) Release() error { return nil }
