package validation

import (
	"fmt"
	"strings"
)

// VulkanValidator validates Vulkan Video encoders.
type VulkanValidator struct{}

// NewVulkanValidator creates a new Vulkan validator.
func NewVulkanValidator() *VulkanValidator {
	return &VulkanValidator{}
}

// CanValidate returns true if this validator can handle the given encoder name.
func (v *VulkanValidator) CanValidate(encoderName string) bool {
	return strings.Contains(encoderName, "vulkan")
}

// EncoderNames returns the Vulkan H.264 encoder names.
func (v *VulkanValidator) EncoderNames() []string {
	return []string{"h264_vulkan"}
}

// Description returns a description of this validator.
func (v *VulkanValidator) Description() string {
	return "Vulkan Video - Cross-platform GPU acceleration via Vulkan API"
}

// Settings returns the Vulkan settings. Driver support varies; probing
// decides whether it is used.
func (v *VulkanValidator) Settings(encoderName, pixelFormat string) (*Settings, error) {
	if !v.CanValidate(encoderName) {
		return nil, fmt.Errorf("encoder %s is not supported by Vulkan validator", encoderName)
	}

	return &Settings{
		GlobalArgs:   []string{"-init_hw_device", "vulkan"},
		OutputParams: map[string]string{"qp": "18"},
		VideoFilters: "format=nv12,hwupload",
	}, nil
}
