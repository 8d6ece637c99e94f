package validation

// GenericValidator is the software fallback. It accepts any encoder name.
type GenericValidator struct{}

// NewGenericValidator creates a new generic validator.
func NewGenericValidator() *GenericValidator {
	return &GenericValidator{}
}

// CanValidate returns true for any encoder (this is the fallback validator).
func (v *GenericValidator) CanValidate(string) bool {
	return true
}

// EncoderNames returns the software H.264 encoders.
func (v *GenericValidator) EncoderNames() []string {
	return []string{"libx264", "libopenh264"}
}

// Description returns a description of this validator.
func (v *GenericValidator) Description() string {
	return "Generic validator - Software encoder fallback"
}

// Settings returns settings for software encoders. x264 only takes planar
// or NV12 input, so NV21 and packed formats are converted to yuv420p.
func (v *GenericValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	filters := convertFilter(pixelFormat, "yuv420p", "", "yuv420p", "nv12")

	switch encoderName {
	case "libx264":
		return &Settings{
			OutputParams: map[string]string{
				"preset":  "ultrafast",
				"profile": "baseline",
			},
			VideoFilters: filters,
		}, nil
	case "libopenh264":
		return &Settings{
			OutputParams: map[string]string{"allow_skip_frames": "0"},
			VideoFilters: convertFilter(pixelFormat, "yuv420p", "", "yuv420p"),
		}, nil
	default:
		return &Settings{
			OutputParams: map[string]string{"b:v": "1M"},
			VideoFilters: filters,
		}, nil
	}
}
