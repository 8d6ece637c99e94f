package encoders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/wasd845/AVGraphics/internal/encoders/validation"
	"github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/logging"
	"github.com/wasd845/AVGraphics/internal/process"
)

// ProbeResults records which H.264 encoders worked on this machine.
type ProbeResults struct {
	Timestamp      string       `toml:"timestamp" json:"timestamp"`
	FFmpegVersion  string       `toml:"ffmpeg_version" json:"ffmpeg_version"`
	TestResolution string       `toml:"test_resolution" json:"test_resolution"`
	H264           CodecResults `toml:"h264" json:"h264"`
}

// CodecResults holds working and failed encoder names for one codec.
type CodecResults struct {
	Working []string `toml:"working" json:"working"`
	Failed  []string `toml:"failed" json:"failed"`
}

// IsWorking reports whether encoder passed the probe.
func (r *ProbeResults) IsWorking(encoder string) bool {
	return r != nil && slices.Contains(r.H264.Working, encoder)
}

// LoadResults reads probe results written by SaveResults. A missing file
// returns nil results and no error.
func LoadResults(path string) (*ProbeResults, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read probe results: %w", err)
	}
	var results ProbeResults
	if err := toml.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse probe results %s: %w", path, err)
	}
	return &results, nil
}

// SaveResults writes results as TOML, replacing path atomically.
func SaveResults(path string, results *ProbeResults) error {
	data, err := toml.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal probe results: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".probe-*.toml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write probe results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ProbeFunc checks a single encoder.
type ProbeFunc func(ctx context.Context, binary string, v validation.EncoderValidator, encoder string) error

// Prober tests every compiled H.264 encoder the registry knows.
type Prober struct {
	Binary   string
	Registry *validation.Registry
	Logger   logging.Logger

	// List and Probe default to running ffmpeg.
	List  func(ctx context.Context, binary string) ([]Encoder, error)
	Probe ProbeFunc
}

// NewProber creates a prober with the default registry.
func NewProber(binary string, logger logging.Logger) *Prober {
	return &Prober{
		Binary:   binary,
		Registry: validation.DefaultRegistry(),
		Logger:   logger,
		List:     ListEncoders,
		Probe:    validation.Probe,
	}
}

// Run probes every candidate encoder and returns the results.
func (p *Prober) Run(ctx context.Context) (*ProbeResults, error) {
	compiled, err := p.List(ctx, p.Binary)
	if err != nil {
		return nil, err
	}
	available := make(map[string]bool, len(compiled))
	for _, e := range compiled {
		available[e.Name] = true
	}

	results := &ProbeResults{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		FFmpegVersion:  ffmpegVersion(ctx, p.Binary),
		TestResolution: "640x480",
		H264:           CodecResults{Working: []string{}, Failed: []string{}},
	}

	for _, name := range p.Registry.EncoderNames() {
		if !available[name] {
			continue
		}
		validator := p.Registry.Find(name)
		if err := p.Probe(ctx, p.Binary, validator, name); err != nil {
			p.Logger.Info("Encoder failed probe", "encoder", name, "error", err)
			results.H264.Failed = append(results.H264.Failed, name)
			continue
		}
		p.Logger.Info("Encoder works", "encoder", name)
		results.H264.Working = append(results.H264.Working, name)
	}

	return results, nil
}

func ffmpegVersion(ctx context.Context, binary string) string {
	out, err := process.Output(ctx, 5*time.Second, ffmpeg.VersionArgs(binary)...)
	if err != nil {
		return "unknown"
	}
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
		return fields[2]
	}
	return strings.TrimSpace(line)
}
