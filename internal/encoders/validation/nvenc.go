package validation

import (
	"fmt"
	"strings"
)

// NvencValidator validates NVIDIA NVENC encoders.
type NvencValidator struct{}

// NewNvencValidator creates a new NVENC validator.
func NewNvencValidator() *NvencValidator {
	return &NvencValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *NvencValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "nvenc")
}

// EncoderNames returns the NVENC H.264 encoder names.
func (v *NvencValidator) EncoderNames() []string {
	return []string{"h264_nvenc"}
}

// Description returns a description of this validator.
func (v *NvencValidator) Description() string {
	return "NVIDIA NVENC - Hardware acceleration on NVIDIA GPUs"
}

// Settings returns the NVENC settings. NV21 is not an NVENC input format.
func (v *NvencValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by NVENC validator", encoderName)
	}

	return &Settings{
		OutputParams: map[string]string{
			"preset": "p1",
			"tune":   "ll",
			"cq":     "20",
		},
		VideoFilters: convertFilter(pixelFormat, "nv12", "", "nv12", "yuv420p"),
	}, nil
}
