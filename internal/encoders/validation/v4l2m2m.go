package validation

import (
	"fmt"
	"strings"
)

// V4l2m2mValidator validates V4L2 memory-to-memory encoders.
type V4l2m2mValidator struct{}

// NewV4l2m2mValidator creates a new V4L2 M2M validator.
func NewV4l2m2mValidator() *V4l2m2mValidator {
	return &V4l2m2mValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *V4l2m2mValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "v4l2m2m")
}

// EncoderNames returns the V4L2 M2M H.264 encoder names.
func (v *V4l2m2mValidator) EncoderNames() []string {
	return []string{"h264_v4l2m2m"}
}

// Description returns a description of this validator.
func (v *V4l2m2mValidator) Description() string {
	return "V4L2 Memory-to-Memory - Hardware acceleration on ARM/embedded devices"
}

// Settings returns the V4L2 M2M settings.
func (v *V4l2m2mValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by V4L2 M2M validator", encoderName)
	}

	return &Settings{
		OutputParams: map[string]string{
			"num_output_buffers":  "32",
			"num_capture_buffers": "16",
			"b:v":                 "4M",
		},
		VideoFilters: convertFilter(pixelFormat, "yuv420p", "", "yuv420p", "nv12"),
	}, nil
}
