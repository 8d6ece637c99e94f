package encoders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"github.com/wasd845/AVGraphics/internal/encoders/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... srt                  SubRip subtitle
`

func TestParseEncoderOutput(t *testing.T) {
	got, err := ParseEncoderOutput(sampleEncoders)
	if err != nil {
		t.Fatalf("ParseEncoderOutput() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d encoders, want 3: %+v", len(got), got)
	}
	if got[0].Name != "libx264" || got[0].HWAccel {
		t.Errorf("first = %+v", got[0])
	}
	if !got[1].HWAccel || !got[2].HWAccel {
		t.Error("nvenc and vaapi should be hardware accelerated")
	}
}

func TestParseEncoderFlagColumns(t *testing.T) {
	output := ` ------
 VFS..D libx265              libx265 H.265 / HEVC (codec hevc)
 V..X.D h264_vulkan          H.264/AVC (Vulkan) (codec h264)
 V...B. h264_v4l2m2m         V4L2 mem2mem H.264 encoder wrapper (codec h264)
 A..X.. opus                 Opus (codec opus)
`
	got, err := ParseEncoderOutput(output)
	if err != nil {
		t.Fatalf("ParseEncoderOutput() error = %v", err)
	}
	var names []string
	for _, e := range got {
		names = append(names, e.Name)
	}
	want := []string{"libx265", "h264_vulkan", "h264_v4l2m2m"}
	if !slices.Equal(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	if got[0].HWAccel || !got[1].HWAccel || !got[2].HWAccel {
		t.Errorf("hwaccel flags = %+v", got)
	}
}

func TestSelectorOrder(t *testing.T) {
	tests := []struct {
		name     string
		results  *ProbeResults
		override string
		want     string
		hardware bool
	}{
		{"no results", nil, "", FallbackEncoder, false},
		{"empty results", &ProbeResults{}, "", FallbackEncoder, false},
		{
			"priority wins over probe order",
			&ProbeResults{H264: CodecResults{Working: []string{"libx264", "h264_rkmpp", "h264_vaapi"}}},
			"", "h264_vaapi", true,
		},
		{
			"override",
			&ProbeResults{H264: CodecResults{Working: []string{"h264_vaapi"}}},
			"h264_nvenc", "h264_nvenc", true,
		},
		{
			"unknown working encoder",
			&ProbeResults{H264: CodecResults{Working: []string{"h264_custom"}}},
			"", "h264_custom", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(tt.results, tt.override, testLogger())
			sel, err := s.Select("nv21")
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if sel.Encoder != tt.want {
				t.Errorf("Encoder = %s, want %s", sel.Encoder, tt.want)
			}
			if sel.Hardware != tt.hardware {
				t.Errorf("Hardware = %v, want %v", sel.Hardware, tt.hardware)
			}
			if sel.Settings == nil {
				t.Error("Settings is nil")
			}
		})
	}
}

func TestResultsRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "encoders.toml")

	if r, err := LoadResults(path); err != nil || r != nil {
		t.Fatalf("LoadResults(missing) = %v, %v", r, err)
	}

	want := &ProbeResults{
		Timestamp:      "2026-01-01T00:00:00Z",
		FFmpegVersion:  "7.1",
		TestResolution: "640x480",
		H264:           CodecResults{Working: []string{"h264_vaapi"}, Failed: []string{"h264_nvenc"}},
	}
	if err := SaveResults(path, want); err != nil {
		t.Fatalf("SaveResults() error = %v", err)
	}
	got, err := LoadResults(path)
	if err != nil {
		t.Fatalf("LoadResults() error = %v", err)
	}
	if !got.IsWorking("h264_vaapi") || got.IsWorking("h264_nvenc") || got.FFmpegVersion != "7.1" {
		t.Errorf("LoadResults() = %+v", got)
	}
}

func TestProberRun(t *testing.T) {
	p := NewProber("ffmpeg-that-does-not-exist", testLogger())
	p.List = func(context.Context, string) ([]Encoder, error) {
		return []Encoder{{Name: "libx264"}, {Name: "h264_vaapi"}, {Name: "h264_nvenc"}}, nil
	}
	var probed []string
	p.Probe = func(_ context.Context, _ string, _ validation.EncoderValidator, name string) error {
		probed = append(probed, name)
		if name == "h264_nvenc" {
			return errors.New("no device")
		}
		return nil
	}

	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(results.H264.Working, []string{"h264_vaapi", "libx264"}) {
		t.Errorf("Working = %v", results.H264.Working)
	}
	if !slices.Equal(results.H264.Failed, []string{"h264_nvenc"}) {
		t.Errorf("Failed = %v", results.H264.Failed)
	}
	if slices.Contains(probed, "h264_qsv") {
		t.Error("encoders that are not compiled in should not be probed")
	}
	if results.FFmpegVersion != "unknown" {
		t.Errorf("FFmpegVersion = %q", results.FFmpegVersion)
	}
}

func TestProberListFailure(t *testing.T) {
	p := NewProber("ffmpeg", testLogger())
	p.List = func(context.Context, string) ([]Encoder, error) { return nil, errors.New("boom") }
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
