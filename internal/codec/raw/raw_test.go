package raw

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/media"
)

func videoFormat() media.TrackFormat {
	return media.TrackFormat{
		Kind:        media.KindVideo,
		MIME:        media.MIMERawVideo,
		Width:       4,
		Height:      2,
		PixelFormat: media.PixelNV21,
		FrameRate:   30,
	}
}

func audioFormat() media.TrackFormat {
	return media.TrackFormat{
		Kind:       media.KindAudio,
		MIME:       media.MIMERawAudio,
		SampleRate: 8000,
		Channels:   2,
	}
}

func collect[T any](t *testing.T, seq iter.Seq2[T, error]) []T {
	t.Helper()
	var out []T
	for v, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, v)
	}
	return out
}

func TestEncoderPassthrough(t *testing.T) {
	enc := NewEncoder()
	out, err := enc.Configure(context.Background(), videoFormat())
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if out.Bitrate != 12*8*30 {
		t.Errorf("Bitrate = %d, want %d", out.Bitrate, 12*8*30)
	}

	frame := make([]byte, 12)
	samples := collect(t, enc.Encode(media.RawUnit{Kind: media.KindVideo, Payload: frame, Timestamp: 40 * time.Millisecond}))
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0].PTS != 40000 || !samples[0].KeyFrame {
		t.Errorf("sample = %+v", samples[0])
	}

	tail := collect(t, enc.SignalEndOfStream())
	if len(tail) != 1 || !tail[0].EndOfStream || tail[0].PTS != 40000 {
		t.Errorf("tail = %+v", tail)
	}
}

func TestEncoderDelayLine(t *testing.T) {
	enc := NewEncoder(WithDelay(2))
	if _, err := enc.Configure(context.Background(), audioFormat()); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	buf := make([]byte, 16)
	var early int
	for i := range 5 {
		early += len(collect(t, enc.Encode(media.RawUnit{Kind: media.KindAudio, Payload: buf, Timestamp: time.Duration(i) * time.Millisecond})))
	}
	if early != 3 {
		t.Errorf("released %d samples before EOS, want 3", early)
	}

	tail := collect(t, enc.SignalEndOfStream())
	if len(tail) != 3 {
		t.Fatalf("tail has %d items, want 2 held + EOS", len(tail))
	}
	if tail[0].PTS != 3000 || tail[1].PTS != 4000 {
		t.Errorf("held samples out of order: %d, %d", tail[0].PTS, tail[1].PTS)
	}
	if !tail[2].EndOfStream {
		t.Error("last item is not EOS")
	}
}

func TestEncoderRejects(t *testing.T) {
	tests := []struct {
		name   string
		format media.TrackFormat
		unit   media.RawUnit
		code   string
	}{
		{
			name:   "short frame",
			format: videoFormat(),
			unit:   media.RawUnit{Kind: media.KindVideo, Payload: make([]byte, 5)},
			code:   media.ErrCodeCodec,
		},
		{
			name:   "odd pcm",
			format: audioFormat(),
			unit:   media.RawUnit{Kind: media.KindAudio, Payload: make([]byte, 6)},
			code:   media.ErrCodeCodec,
		},
		{
			name:   "wrong kind",
			format: audioFormat(),
			unit:   media.RawUnit{Kind: media.KindVideo, Payload: make([]byte, 4)},
			code:   media.ErrCodeCodec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder()
			if _, err := enc.Configure(context.Background(), tt.format); err != nil {
				t.Fatalf("Configure: %v", err)
			}
			var got error
			for _, err := range enc.Encode(tt.unit) {
				got = err
			}
			if !media.IsCode(got, tt.code) {
				t.Errorf("error = %v, want code %s", got, tt.code)
			}
		})
	}
}

func TestConfigureRejects(t *testing.T) {
	nopix := videoFormat()
	nopix.PixelFormat = ""
	avc := videoFormat()
	avc.MIME = media.MIMEAVC
	odd := videoFormat()
	odd.Width = 5

	for name, f := range map[string]media.TrackFormat{
		"no pixel format": nopix,
		"compressed mime": avc,
		"odd width":       odd,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewEncoder().Configure(context.Background(), f); !media.IsCode(err, media.ErrCodeInit) {
				t.Errorf("error = %v, want INIT_ERROR", err)
			}
		})
	}
}

func TestEncodeAfterEndOfStream(t *testing.T) {
	enc := NewEncoder()
	if _, err := enc.Configure(context.Background(), audioFormat()); err != nil {
		t.Fatal(err)
	}
	collect(t, enc.SignalEndOfStream())

	var got error
	for _, err := range enc.Encode(media.RawUnit{Kind: media.KindAudio, Payload: make([]byte, 4)}) {
		got = err
	}
	if !media.IsCode(got, media.ErrCodeCodec) {
		t.Errorf("error = %v, want CODEC_ERROR", got)
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	ctx := context.Background()
	enc := NewEncoder(WithDelay(1))
	dec := NewDecoder(WithDelay(1))
	defer enc.Release()
	defer dec.Release()

	format, err := enc.Configure(ctx, videoFormat())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Configure(ctx, format); err != nil {
		t.Fatal(err)
	}

	var samples []media.Sample
	for i := range 4 {
		frame := make([]byte, 12)
		frame[0] = byte(i)
		samples = append(samples, collect(t, enc.Encode(media.RawUnit{Kind: media.KindVideo, Payload: frame, Timestamp: time.Duration(i) * 33 * time.Millisecond}))...)
	}
	samples = append(samples, collect(t, enc.SignalEndOfStream())...)

	var units []media.RawUnit
	for _, s := range samples {
		units = append(units, collect(t, dec.Decode(s))...)
	}
	units = append(units, collect(t, dec.SignalEndOfStream())...)

	if len(units) != 5 {
		t.Fatalf("got %d units, want 4 frames + EOS", len(units))
	}
	for i, u := range units[:4] {
		if u.Payload[0] != byte(i) {
			t.Errorf("unit %d carries frame %d", i, u.Payload[0])
		}
		if u.Kind != media.KindVideo {
			t.Errorf("unit %d kind = %v", i, u.Kind)
		}
	}
	if !units[4].EndOfStream || units[4].Timestamp != 99*time.Millisecond {
		t.Errorf("EOS unit = %+v", units[4])
	}
}
