package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/container"
	"github.com/wasd845/AVGraphics/internal/media"
)

// traceWriter records the calls the mux stage makes.
type traceWriter struct {
	mu       sync.Mutex
	formats  []media.TrackFormat
	written  []media.Sample
	finished bool
}

func (w *traceWriter) Begin(formats []media.TrackFormat) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.formats = formats
	return nil
}

func (w *traceWriter) WriteSample(track int, s media.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s.Track = track
	w.written = append(w.written, s)
	return nil
}

func (w *traceWriter) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finished = true
	return nil
}

func traceFormat(t *testing.T) (string, *traceWriter) {
	t.Helper()
	w := &traceWriter{}
	name := "trace-" + strings.ToLower(t.Name())
	container.RegisterFormat(container.Format{
		Name:      name,
		NewWriter: func(container.Output) container.Writer { return w },
	})
	return name, w
}

var (
	videoFormat = media.TrackFormat{Kind: media.KindVideo, MIME: media.MIMERawVideo, Width: 4, Height: 4, PixelFormat: media.PixelI420}
	audioFormat = media.TrackFormat{Kind: media.KindAudio, MIME: media.MIMEPCMU, SampleRate: 8000, Channels: 1}
)

func startStage(t *testing.T, kinds ...media.Kind) (*muxStage, *traceWriter, string) {
	t.Helper()
	name, w := traceFormat(t)
	path := filepath.Join(t.TempDir(), "out")
	muxer, err := container.Create(path, container.Options{Format: name, ExpectedTracks: len(kinds)})
	if err != nil {
		t.Fatal(err)
	}
	stage := newMuxStage(muxer, kinds, discardLogger(), nil)
	go stage.run()
	return stage, w, path
}

func sampleAt(slot int, pts int64) muxMsg {
	return muxMsg{kind: msgSample, slot: slot, sample: media.Sample{Payload: []byte{byte(pts)}, PTS: pts}}
}

func awaitReady(t *testing.T, stage *muxStage) error {
	t.Helper()
	select {
	case err := <-stage.ready:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("mux stage never became ready")
		return nil
	}
}

func TestMuxStageFlushesPendingMergedByTimestamp(t *testing.T) {
	stage, w, _ := startStage(t, media.KindVideo, media.KindAudio, media.KindAudio)

	stage.in <- muxMsg{kind: msgFormat, slot: 0, format: videoFormat}
	stage.in <- muxMsg{kind: msgFormat, slot: 1, format: audioFormat}
	stage.in <- sampleAt(0, 0)
	stage.in <- sampleAt(0, 40)
	stage.in <- sampleAt(1, 20)
	stage.in <- sampleAt(0, 80)
	stage.in <- sampleAt(1, 60)
	stage.in <- muxMsg{kind: msgFormat, slot: 2, format: audioFormat}
	if err := awaitReady(t, stage); err != nil {
		t.Fatal(err)
	}
	stage.in <- sampleAt(2, 10)
	for slot := range 3 {
		stage.in <- muxMsg{kind: msgDone, slot: slot}
	}
	if err := stage.result(); err != nil {
		t.Fatal(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	want := []struct {
		track int
		pts   int64
	}{{0, 0}, {1, 20}, {0, 40}, {1, 60}, {0, 80}, {2, 10}}
	if len(w.written) != len(want) {
		t.Fatalf("wrote %d samples, want %d", len(w.written), len(want))
	}
	for i, s := range w.written {
		if s.Track != want[i].track || s.PTS != want[i].pts {
			t.Errorf("write %d = track %d pts %d, want track %d pts %d", i, s.Track, s.PTS, want[i].track, want[i].pts)
		}
	}
	if !w.finished {
		t.Error("muxer not finished")
	}
	if len(w.formats) != 3 || w.formats[0].Kind != media.KindVideo {
		t.Errorf("registered formats = %v", w.formats)
	}
}

func TestMuxStageIgnoresEmptyEndOfStream(t *testing.T) {
	stage, w, _ := startStage(t, media.KindVideo, media.KindAudio)
	stage.in <- muxMsg{kind: msgFormat, slot: 0, format: videoFormat}
	stage.in <- muxMsg{kind: msgFormat, slot: 1, format: audioFormat}
	stage.in <- muxMsg{kind: msgSample, slot: 0, sample: media.Sample{PTS: 5, EndOfStream: true}}
	stage.in <- muxMsg{kind: msgDone, slot: 0}
	stage.in <- muxMsg{kind: msgDone, slot: 1}
	if err := stage.result(); err != nil {
		t.Fatal(err)
	}
	if len(w.written) != 0 {
		t.Errorf("wrote %d samples", len(w.written))
	}
}

func TestMuxStageFailureBeforeStartRemovesFile(t *testing.T) {
	stage, w, path := startStage(t, media.KindVideo, media.KindAudio)
	fault := media.InitError("test.configure", nil, "no encoder")

	stage.in <- muxMsg{kind: msgFormat, slot: 0, format: videoFormat}
	stage.in <- sampleAt(0, 0)
	stage.in <- muxMsg{kind: msgDone, slot: 1, err: fault}
	if err := awaitReady(t, stage); !errors.Is(err, fault) {
		t.Fatalf("ready = %v", err)
	}
	stage.in <- muxMsg{kind: msgDone, slot: 0}
	if err := stage.result(); !errors.Is(err, fault) {
		t.Fatalf("result = %v", err)
	}
	if len(w.written) != 0 || w.formats != nil {
		t.Error("pending samples reached the writer")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output not removed: %v", err)
	}
}

func TestMuxStageRejectsWrongKind(t *testing.T) {
	stage, _, _ := startStage(t, media.KindVideo, media.KindAudio)
	stage.in <- muxMsg{kind: msgFormat, slot: 0, format: audioFormat}
	if err := awaitReady(t, stage); !media.IsCode(err, media.ErrCodeInit) {
		t.Fatalf("ready = %v", err)
	}
	stage.in <- muxMsg{kind: msgDone, slot: 0}
	stage.in <- muxMsg{kind: msgDone, slot: 1}
	stage.result()
}

func TestMuxStageReportsRegression(t *testing.T) {
	var failed error
	name, _ := traceFormat(t)
	muxer, err := container.Create(filepath.Join(t.TempDir(), "out"), container.Options{Format: name, ExpectedTracks: 1})
	if err != nil {
		t.Fatal(err)
	}
	stage := newMuxStage(muxer, []media.Kind{media.KindVideo}, discardLogger(), func(err error) { failed = err })
	go stage.run()

	stage.in <- muxMsg{kind: msgFormat, slot: 0, format: videoFormat}
	stage.in <- sampleAt(0, 100)
	stage.in <- sampleAt(0, 50)
	stage.in <- muxMsg{kind: msgDone, slot: 0}
	err = stage.result()
	if !media.IsCode(err, media.ErrCodeMux) {
		t.Fatalf("result = %v, want MUX_ERROR", err)
	}
	if failed != err {
		t.Errorf("onFail got %v", failed)
	}
	if got := stage.stats[0].samples.Load(); got != 1 {
		t.Errorf("samples = %d", got)
	}
}
