// Package validation knows how each family of H.264 encoders must be fed raw
// frames and how to check that an encoder actually works on this machine.
package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/wasd845/AVGraphics/internal/ffmpeg"
	"github.com/wasd845/AVGraphics/internal/process"
)

// Settings contains the FFmpeg arguments an encoder needs.
type Settings struct {
	GlobalArgs   []string          `json:"global_args" toml:"global_args"`     // Global FFmpeg arguments (e.g., -vaapi_device)
	OutputParams map[string]string `json:"output_params" toml:"output_params"` // Output parameters (e.g., qp, preset, cq)
	VideoFilters string            `json:"video_filters" toml:"video_filters"` // Video filter chain (e.g., format=nv12,hwupload)
}

// EncoderValidator describes one family of encoders.
type EncoderValidator interface {
	// CanValidate returns true if this validator can handle the given encoder name.
	CanValidate(encoderName string) bool

	// EncoderNames returns the H.264 encoder names this validator handles, best first.
	EncoderNames() []string

	// Description returns a human-readable description of this validator.
	Description() string

	// Settings returns the FFmpeg settings for feeding raw frames in
	// pixelFormat to the encoder.
	Settings(encoderName, pixelFormat string) (*Settings, error)
}

// Registry holds validators in priority order.
type Registry struct {
	validators []EncoderValidator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns the built-in validators, hardware families first
// and the software fallback last.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewVaapiValidator())
	r.Register(NewQsvValidator())
	r.Register(NewNvencValidator())
	r.Register(NewRkmppValidator())
	r.Register(NewV4l2m2mValidator())
	r.Register(NewVulkanValidator())
	r.Register(NewVideoToolboxValidator())
	r.Register(NewGenericValidator())
	return r
}

// Register adds a validator to the registry.
func (r *Registry) Register(validator EncoderValidator) {
	r.validators = append(r.validators, validator)
}

// Find finds the first validator that handles encoderName.
func (r *Registry) Find(encoderName string) EncoderValidator {
	for _, validator := range r.validators {
		if validator.CanValidate(encoderName) {
			return validator
		}
	}
	return nil
}

// All returns the validators in priority order.
func (r *Registry) All() []EncoderValidator {
	return r.validators
}

// EncoderNames returns every known encoder name in priority order.
func (r *Registry) EncoderNames() []string {
	var names []string
	for _, v := range r.validators {
		for _, name := range v.EncoderNames() {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names
}

// Priority returns the position of encoderName in EncoderNames, or -1.
func (r *Registry) Priority(encoderName string) int {
	return slices.Index(r.EncoderNames(), encoderName)
}

// convertFilter prefixes chain with a format conversion unless pixelFormat
// is one of accepted.
func convertFilter(pixelFormat, target, chain string, accepted ...string) string {
	if pixelFormat == "" || slices.Contains(accepted, pixelFormat) {
		return chain
	}
	if chain == "" {
		return "format=" + target
	}
	return "format=" + target + "," + chain
}

// Probe checks that encoderName can encode a short synthetic clip with its
// production settings.
func Probe(ctx context.Context, binary string, validator EncoderValidator, encoderName string) error {
	tempDir, err := os.MkdirTemp("", "encoder_probe")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	settings, err := validator.Settings(encoderName, "nv21")
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	testFile := filepath.Join(tempDir, "probe_"+encoderName+".h264")

	args := ffmpeg.Base(binary)
	args = append(args, settings.GlobalArgs...)
	args = append(args,
		"-f", "lavfi",
		"-i", "testsrc2=size=640x480:rate=30,format=nv21",
		"-frames:v", "30",
	)
	if settings.VideoFilters != "" {
		args = append(args, "-vf", settings.VideoFilters)
	}
	args = append(args, "-c:v", encoderName)
	keys := make([]string, 0, len(settings.OutputParams))
	for k := range settings.OutputParams {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "-"+k, settings.OutputParams[k])
	}
	args = append(args, "-f", "h264", "-y", testFile)

	if _, err := process.Output(ctx, 10*time.Second, args...); err != nil {
		return err
	}

	info, err := os.Stat(testFile)
	if err != nil || info.Size() < 1000 {
		return fmt.Errorf("output file missing or too small")
	}
	return nil
}
