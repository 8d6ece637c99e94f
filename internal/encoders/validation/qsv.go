package validation

import (
	"fmt"
	"strings"
)

// QsvValidator validates Intel Quick Sync encoders.
type QsvValidator struct{}

// NewQsvValidator creates a new QSV validator.
func NewQsvValidator() *QsvValidator {
	return &QsvValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *QsvValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "qsv")
}

// EncoderNames returns the QSV H.264 encoder names.
func (v *QsvValidator) EncoderNames() []string {
	return []string{"h264_qsv"}
}

// Description returns a description of this validator.
func (v *QsvValidator) Description() string {
	return "Intel Quick Sync Video (QSV) - Hardware acceleration on Intel CPUs/GPUs"
}

// Settings returns the QSV settings.
func (v *QsvValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by QSV validator", encoderName)
	}

	return &Settings{
		GlobalArgs: []string{"-init_hw_device", "qsv=hw", "-filter_hw_device", "hw"},
		OutputParams: map[string]string{
			"preset":         "medium",
			"global_quality": "20",
		},
		VideoFilters: "format=nv12,hwupload=extra_hw_frames=64,format=qsv",
	}, nil
}
