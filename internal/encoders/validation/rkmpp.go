package validation

import (
	"fmt"
	"strings"
)

// RkmppValidator validates Rockchip MPP encoders.
type RkmppValidator struct{}

// NewRkmppValidator creates a new RKMPP validator.
func NewRkmppValidator() *RkmppValidator {
	return &RkmppValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *RkmppValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "rkmpp")
}

// EncoderNames returns the RKMPP H.264 encoder names.
func (v *RkmppValidator) EncoderNames() []string {
	return []string{"h264_rkmpp"}
}

// Description returns a description of this validator.
func (v *RkmppValidator) Description() string {
	return "Rockchip MPP - Hardware acceleration on Rockchip SoCs"
}

// Settings returns the RKMPP settings. MPP takes NV12 and YUV420P directly.
func (v *RkmppValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by RKMPP validator", encoderName)
	}

	return &Settings{
		OutputParams: map[string]string{
			"rc_mode":     "CQP",
			"qp_init":     "20",
			"quality_min": "10",
			"quality_max": "51",
		},
		VideoFilters: convertFilter(pixelFormat, "nv12", "", "nv12", "yuv420p", "yuyv422"),
	}, nil
}
