package validation

import (
	"fmt"
	"strings"
)

// VideoToolboxValidator validates Apple VideoToolbox encoders.
type VideoToolboxValidator struct{}

// NewVideoToolboxValidator creates a new VideoToolbox validator.
func NewVideoToolboxValidator() *VideoToolboxValidator {
	return &VideoToolboxValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *VideoToolboxValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "videotoolbox")
}

// EncoderNames returns the VideoToolbox H.264 encoder names.
func (v *VideoToolboxValidator) EncoderNames() []string {
	return []string{"h264_videotoolbox"}
}

// Description returns a description of this validator.
func (v *VideoToolboxValidator) Description() string {
	return "Apple VideoToolbox - Hardware acceleration on macOS"
}

// Settings returns the VideoToolbox settings.
func (v *VideoToolboxValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by VideoToolbox validator", encoderName)
	}

	return &Settings{
		OutputParams: map[string]string{
			"allow_sw": "1",
			"realtime": "1",
			"q:v":      "50",
		},
		VideoFilters: convertFilter(pixelFormat, "nv12", "", "nv12", "yuv420p"),
	}, nil
}
