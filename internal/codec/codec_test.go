package codec

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"slices"
	"testing"

	"github.com/wasd845/AVGraphics/internal/media"
)

func TestDefaultRegistersBuiltins(t *testing.T) {
	r := Default(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	want := []string{media.MIMEPCMA, media.MIMEPCMU, media.MIMERawAudio, media.MIMEAVC, media.MIMERawVideo}
	if got := r.EncoderMIMEs(); !slices.Equal(got, want) {
		t.Errorf("EncoderMIMEs = %v, want %v", got, want)
	}
	if got := r.DecoderMIMEs(); !slices.Equal(got, want) {
		t.Errorf("DecoderMIMEs = %v, want %v", got, want)
	}
	if !r.HasDecoder(media.MIMEAVC) || r.HasDecoder("video/vp9") {
		t.Error("HasDecoder mismatch")
	}
}

func TestUnknownMIMEIsInitError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewEncoder("video/vp9"); !media.IsCode(err, media.ErrCodeInit) {
		t.Errorf("NewEncoder error = %v, want INIT_ERROR", err)
	}
	if _, err := r.NewDecoder("video/vp9"); !media.IsCode(err, media.ErrCodeInit) {
		t.Errorf("NewDecoder error = %v, want INIT_ERROR", err)
	}
}

func TestFactoryErrorIsCoerced(t *testing.T) {
	r := NewRegistry()
	r.RegisterEncoder(media.MIMERawAudio, func() (Encoder, error) {
		return nil, errors.New("no hardware")
	})
	_, err := r.NewEncoder(media.MIMERawAudio)
	if !media.IsCode(err, media.ErrCodeInit) {
		t.Errorf("error = %v, want INIT_ERROR", err)
	}
}

func TestRawRoundTripThroughRegistry(t *testing.T) {
	ctx := context.Background()
	r := Default(Options{RawDelay: 1})

	enc, err := r.NewEncoder(media.MIMERawAudio)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Release()
	format, err := enc.Configure(ctx, media.TrackFormat{Kind: media.KindAudio, MIME: media.MIMERawAudio, SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}

	var samples []media.Sample
	for range 3 {
		err := Drain(enc.Encode(media.RawUnit{Kind: media.KindAudio, Payload: make([]byte, 8)}), func(s media.Sample) error {
			samples = append(samples, s)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(samples) != 2 {
		t.Errorf("got %d samples before EOS, want 2", len(samples))
	}
	if err := Drain(enc.SignalEndOfStream(), func(s media.Sample) error {
		samples = append(samples, s)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if last := samples[len(samples)-1]; !last.EndOfStream {
		t.Error("last sample is not EOS")
	}
	if format.Bitrate != 48000*16 {
		t.Errorf("bitrate = %d", format.Bitrate)
	}
}

func TestDrainStopsOnCallbackError(t *testing.T) {
	var seq iter.Seq2[int, error] = func(yield func(int, error) bool) {
		for i := range 5 {
			if !yield(i, nil) {
				return
			}
		}
	}
	stop := errors.New("stop")
	var seen int
	err := Drain(seq, func(int) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || seen != 2 {
		t.Errorf("Drain = %v after %d items", err, seen)
	}
}

func TestFailYieldsError(t *testing.T) {
	want := errors.New("boom")
	var got error
	for _, err := range Fail[int](want) {
		got = err
	}
	if !errors.Is(got, want) {
		t.Errorf("got %v", got)
	}
}
