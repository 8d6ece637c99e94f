package encoders

import (
	"fmt"

	"github.com/wasd845/AVGraphics/internal/encoders/validation"
	"github.com/wasd845/AVGraphics/internal/logging"
)

// FallbackEncoder is used when nothing better has been probed.
const FallbackEncoder = "libx264"

// Selection is a chosen encoder with its ffmpeg settings.
type Selection struct {
	Encoder  string               `json:"encoder"`
	Settings *validation.Settings `json:"settings"`
	Hardware bool                 `json:"hardware"`
}

// Selector chooses the H.264 encoder for a raw pixel format.
type Selector struct {
	registry *validation.Registry
	results  *ProbeResults
	override string
	logger   logging.Logger
}

// NewSelector creates a selector. override forces a specific encoder; results
// may be nil when no probe has been run.
func NewSelector(results *ProbeResults, override string, logger logging.Logger) *Selector {
	return &Selector{
		registry: validation.DefaultRegistry(),
		results:  results,
		override: override,
		logger:   logger,
	}
}

// Results returns the probe results the selector uses.
func (s *Selector) Results() *ProbeResults {
	return s.results
}

// Select returns the encoder to use for frames in pixelFormat.
//
// Order: the configured override, then the highest priority encoder that
// passed the probe, then the software fallback.
func (s *Selector) Select(pixelFormat string) (*Selection, error) {
	if s.override != "" {
		if s.results != nil && len(s.results.H264.Working) > 0 && !s.results.IsWorking(s.override) {
			s.logger.Warn("Configured encoder did not pass the probe, using it anyway", "encoder", s.override)
		}
		return s.selection(s.override, pixelFormat)
	}

	if s.results != nil {
		for _, name := range s.registry.EncoderNames() {
			if s.results.IsWorking(name) {
				s.logger.Debug("Selected probed encoder", "encoder", name)
				return s.selection(name, pixelFormat)
			}
		}
		if len(s.results.H264.Working) > 0 {
			// Working but unknown to the registry: settings come from the fallback validator.
			return s.selection(s.results.H264.Working[0], pixelFormat)
		}
	}

	s.logger.Debug("No probed encoders, using fallback", "encoder", FallbackEncoder)
	return s.selection(FallbackEncoder, pixelFormat)
}

func (s *Selector) selection(name, pixelFormat string) (*Selection, error) {
	validator := s.registry.Find(name)
	if validator == nil {
		return nil, fmt.Errorf("no validator for encoder %s", name)
	}
	settings, err := validator.Settings(name, pixelFormat)
	if err != nil {
		return nil, err
	}
	_, generic := validator.(*validation.GenericValidator)
	return &Selection{Encoder: name, Settings: settings, Hardware: !generic}, nil
}
