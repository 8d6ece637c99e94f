package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wasd845/AVGraphics/internal/codec"
	"github.com/wasd845/AVGraphics/internal/media"
)

func TestTranscodeChangesAudioCodec(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.mkv"), filepath.Join(dir, "out.mkv")
	record(t, testOptions(), in, 12, 24)

	s := NewTranscodeSession(TranscodeRequest{Input: in, Output: out, AudioMIME: media.MIMEPCMA}, testOptions())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s", s.State())
	}

	inTracks, inSamples := readContainer(t, in)
	outTracks, outSamples := readContainer(t, out)
	if len(outTracks) != 2 {
		t.Fatalf("output has %d tracks", len(outTracks))
	}
	if outTracks[0].MIME != media.MIMERawVideo || outTracks[1].MIME != media.MIMEPCMA {
		t.Errorf("output mimes = %s, %s", outTracks[0].MIME, outTracks[1].MIME)
	}
	if outTracks[0].Width != inTracks[0].Width || outTracks[1].SampleRate != inTracks[1].SampleRate {
		t.Errorf("geometry not carried over: %v -> %v", inTracks, outTracks)
	}
	for i := range outSamples {
		if len(outSamples[i]) > len(inSamples[i]) {
			t.Errorf("track %d: %d samples out of %d in", i, len(outSamples[i]), len(inSamples[i]))
		}
		if len(outSamples[i]) == 0 {
			t.Errorf("track %d empty", i)
		}
		for j := 1; j < len(outSamples[i]); j++ {
			if outSamples[i][j].PTS < outSamples[i][j-1].PTS {
				t.Fatalf("track %d: PTS regression at %d", i, j)
			}
		}
	}
	if outSamples[1][0].PTS != inSamples[1][0].PTS {
		t.Errorf("first audio PTS %d, input %d", outSamples[1][0].PTS, inSamples[1][0].PTS)
	}

	tracks := s.Tracks()
	if len(tracks) != 2 || tracks[1].Output.MIME != media.MIMEPCMA || tracks[1].Written != int64(len(outSamples[1])) {
		t.Errorf("tracks = %+v", tracks)
	}
	assertOnlyFiles(t, dir, "in.mkv", "out.mkv")
}

func TestTranscodeTargetFromOptions(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.mkv"), filepath.Join(dir, "out.mkv")
	record(t, testOptions(), in, 2, 4)

	opts := testOptions()
	opts.TranscodeAudioMIME = media.MIMERawAudio
	if err := Transcode(context.Background(), TranscodeRequest{Input: in, Output: out}, opts); err != nil {
		t.Fatal(err)
	}
	tracks, _ := readContainer(t, out)
	if tracks[1].MIME != media.MIMERawAudio {
		t.Errorf("audio mime = %s", tracks[1].MIME)
	}
}

func TestTranscodeUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mkv")
	record(t, testOptions(), in, 2, 2)

	out := filepath.Join(dir, "readonly", "out.mp4")
	err := Transcode(context.Background(), TranscodeRequest{Input: in, Output: out}, testOptions())
	if !media.IsCode(err, media.ErrCodeIO) {
		t.Fatalf("Transcode = %v, want IO_ERROR", err)
	}
	assertNotExist(t, out)
	assertOnlyFiles(t, dir, "in.mkv")
}

func TestTranscodeFailuresRemoveOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mkv")
	record(t, testOptions(), in, 10, 10)

	tests := []struct {
		name  string
		setup func(*Options, *TranscodeRequest)
		code  string
	}{
		{"decoder fault", func(o *Options, _ *TranscodeRequest) {
			o.Codecs.RegisterDecoder(media.MIMERawVideo, func() (codec.Decoder, error) {
				return &failingDecoder{failAt: 6}, nil
			})
		}, media.ErrCodeCodec},
		{"decoder without end of stream", func(o *Options, _ *TranscodeRequest) {
			o.Codecs.RegisterDecoder(media.MIMERawVideo, func() (codec.Decoder, error) {
				return &failingDecoder{skipEOS: true}, nil
			})
		}, media.ErrCodeCodec},
		{"encoder fault", func(o *Options, r *TranscodeRequest) {
			o.Codecs.RegisterEncoder("video/flaky", func() (codec.Encoder, error) {
				return &stubEncoder{onEncode: func(n int) error {
					if n == 3 {
						return media.CodecError("test.encode", nil, "fault")
					}
					return nil
				}}, nil
			})
			r.VideoMIME = "video/flaky"
		}, media.ErrCodeCodec},
		{"unknown target", func(_ *Options, r *TranscodeRequest) { r.AudioMIME = "audio/opus" }, media.ErrCodeInit},
		{"missing input", func(_ *Options, r *TranscodeRequest) { r.Input = filepath.Join(dir, "missing.mkv") }, media.ErrCodeIO},
		{"same file", func(_ *Options, r *TranscodeRequest) { r.Output = in }, media.ErrCodeInit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			req := TranscodeRequest{Input: in, Output: filepath.Join(dir, "out.mkv")}
			tt.setup(&opts, &req)

			s := NewTranscodeSession(req, opts)
			err := s.Run(context.Background())
			if !media.IsCode(err, tt.code) {
				t.Fatalf("Run = %v, want %s", err, tt.code)
			}
			if s.State() != StateFailed {
				t.Errorf("state = %s", s.State())
			}
			assertOnlyFiles(t, dir, "in.mkv")
		})
	}
}
