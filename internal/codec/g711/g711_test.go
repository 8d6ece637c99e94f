package g711

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/wasd845/AVGraphics/internal/media"
)

func pcmFormat(channels int) media.TrackFormat {
	return media.TrackFormat{Kind: media.KindAudio, MIME: media.MIMERawAudio, SampleRate: 8000, Channels: channels}
}

func tone(n int) []byte {
	buf := make([]byte, n*2)
	for i := range n {
		v := int16((i%16 - 8) * 1024)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	for _, law := range []Law{ULaw, ALaw} {
		t.Run(law.String(), func(t *testing.T) {
			ctx := context.Background()
			enc := NewEncoder(law)
			defer enc.Release()

			out, err := enc.Configure(ctx, pcmFormat(1))
			if err != nil {
				t.Fatalf("Configure: %v", err)
			}
			if out.MIME != law.MIME() || out.Bitrate != 64000 {
				t.Errorf("output format = %+v", out)
			}

			pcm := tone(160)
			var samples []media.Sample
			for s, err := range enc.Encode(media.RawUnit{Kind: media.KindAudio, Payload: pcm, Timestamp: 20 * time.Millisecond}) {
				if err != nil {
					t.Fatal(err)
				}
				samples = append(samples, s)
			}
			if len(samples) != 1 {
				t.Fatalf("got %d samples, want 1", len(samples))
			}
			if len(samples[0].Payload) != 160 || samples[0].PTS != 20000 {
				t.Fatalf("sample has %d bytes at %d", len(samples[0].Payload), samples[0].PTS)
			}

			dec := NewDecoder(law)
			defer dec.Release()
			raw, err := dec.Configure(ctx, out)
			if err != nil {
				t.Fatalf("decoder Configure: %v", err)
			}
			if raw.MIME != media.MIMERawAudio || raw.Bitrate != 128000 {
				t.Errorf("raw format = %+v", raw)
			}

			for u, err := range dec.Decode(samples[0]) {
				if err != nil {
					t.Fatal(err)
				}
				if len(u.Payload) != len(pcm) {
					t.Fatalf("decoded %d bytes, want %d", len(u.Payload), len(pcm))
				}
				for i := 0; i < len(pcm); i += 2 {
					want := int16(binary.LittleEndian.Uint16(pcm[i:]))
					got := int16(binary.LittleEndian.Uint16(u.Payload[i:]))
					if diff := int(want) - int(got); diff > 512 || diff < -512 {
						t.Fatalf("sample %d: got %d, want about %d", i/2, got, want)
					}
				}
			}

			var eos media.RawUnit
			for u, err := range dec.SignalEndOfStream() {
				if err != nil {
					t.Fatal(err)
				}
				eos = u
			}
			if !eos.EndOfStream || eos.Timestamp != 20*time.Millisecond {
				t.Errorf("EOS unit = %+v", eos)
			}
		})
	}
}

func TestEncoderRejectsPartialFrame(t *testing.T) {
	enc := NewEncoder(ULaw)
	if _, err := enc.Configure(context.Background(), pcmFormat(2)); err != nil {
		t.Fatal(err)
	}
	var got error
	for _, err := range enc.Encode(media.RawUnit{Kind: media.KindAudio, Payload: make([]byte, 6)}) {
		got = err
	}
	if !media.IsCode(got, media.ErrCodeCodec) {
		t.Errorf("error = %v, want CODEC_ERROR", got)
	}
}

func TestConfigureRejectsWrongInput(t *testing.T) {
	f := pcmFormat(1)
	f.MIME = media.MIMEPCMA
	if _, err := NewEncoder(ULaw).Configure(context.Background(), f); !media.IsCode(err, media.ErrCodeInit) {
		t.Errorf("error = %v, want INIT_ERROR", err)
	}
	if _, err := NewDecoder(ULaw).Configure(context.Background(), f); !media.IsCode(err, media.ErrCodeInit) {
		t.Errorf("decoder error = %v, want INIT_ERROR", err)
	}
}

func TestLawFor(t *testing.T) {
	if law, ok := LawFor(media.MIMEPCMA); !ok || law != ALaw {
		t.Errorf("LawFor(pcma) = %v, %v", law, ok)
	}
	if _, ok := LawFor(media.MIMERawAudio); ok {
		t.Error("LawFor(raw) should fail")
	}
}
