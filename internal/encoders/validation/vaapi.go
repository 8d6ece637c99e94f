package validation

import (
	"fmt"
	"strings"
)

// VaapiValidator validates VAAPI encoders.
type VaapiValidator struct {
	Device string
}

// NewVaapiValidator creates a VAAPI validator using the first render node.
func NewVaapiValidator() *VaapiValidator {
	return &VaapiValidator{Device: "/dev/dri/renderD128"}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *VaapiValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "vaapi")
}

// EncoderNames returns the VAAPI H.264 encoder names.
func (v *VaapiValidator) EncoderNames() []string {
	return []string{"h264_vaapi"}
}

// Description returns a description of this validator.
func (v *VaapiValidator) Description() string {
	return "VAAPI (Video Acceleration API) - Intel/AMD hardware acceleration on Linux"
}

// Settings uploads frames as NV12 surfaces.
func (v *VaapiValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by VAAPI validator", encoderName)
	}

	return &Settings{
		GlobalArgs:   []string{"-vaapi_device", v.Device},
		OutputParams: map[string]string{"qp": "20"},
		VideoFilters: "format=nv12,hwupload",
	}, nil
}
