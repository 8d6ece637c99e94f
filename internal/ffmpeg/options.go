package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType represents a strongly typed FFmpeg input option.
type OptionType string

// FFmpeg option constants.
const (
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
)

// OptionCategory represents option categories.
type OptionCategory string

const (
	CategoryTiming      OptionCategory = "Timing"
	CategoryErrorHandle OptionCategory = "Error Handling"
	CategoryPerformance OptionCategory = "Performance"
)

// ExclusiveGroup represents a group of mutually exclusive options.
type ExclusiveGroup string

const (
	GroupThreadQueue ExclusiveGroup = "thread_queue"
)

// Option describes a capture input flag.
type Option struct {
	Key            OptionType     `json:"key"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Category       OptionCategory `json:"category"`
	AppDefault     bool           `json:"app_default"`
	ExclusiveGroup ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType   `json:"conflicts_with,omitempty"`
}

// AllOptions lists the supported capture input flags.
var AllOptions = []Option{
	{
		Key:           OptionGeneratePTS,
		Name:          "Generate PTS",
		Description:   "Generate presentation timestamps for sources that lack them",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:         OptionIgnoreErrors,
		Name:        "Ignore Errors",
		Description: "Continue reading despite corrupt device frames",
		Category:    CategoryErrorHandle,
	},
	{
		Key:           OptionWallclockTimestamp,
		Name:          "Wallclock Timestamps",
		Description:   "Stamp device frames with the wallclock",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Use 1024 thread queue size (helps with bursty devices)",
		Category:       CategoryPerformance,
		AppDefault:     true,
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Use 4096 thread queue size (for problematic devices)",
		Category:       CategoryPerformance,
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Flush packets immediately and disable demuxer buffering",
		Category:    CategoryPerformance,
	},
}

// GetOptionByKey returns an option by its key.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled by default.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ParseOptions converts option names from configuration. Unknown names are
// an error.
func ParseOptions(names []string) ([]OptionType, error) {
	out := make([]OptionType, 0, len(names))
	for _, name := range names {
		key := OptionType(strings.TrimSpace(name))
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		out = append(out, key)
	}
	return out, ValidateOptions(out)
}

// ValidateOptions checks for conflicts and exclusive group violations.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	selectedSet := make(map[OptionType]bool, len(selected))

	for _, key := range selected {
		selectedSet[key] = true
		option := GetOptionByKey(key)
		if option != nil && option.ExclusiveGroup != "" {
			groups[option.ExclusiveGroup] = append(groups[option.ExclusiveGroup], option.Name)
		}
	}

	for group, names := range groups {
		if len(names) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", group, strings.Join(names, ", "))
		}
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		for _, conflict := range option.ConflictsWith {
			if selectedSet[conflict] {
				name := string(conflict)
				if other := GetOptionByKey(conflict); other != nil {
					name = other.Name
				}
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, name)
			}
		}
	}
	return nil
}

// InputArgs renders options as arguments placed before -i.
func InputArgs(options []OptionType) []string {
	var args []string
	var fflags []string

	for _, option := range options {
		switch option {
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionIgnoreErrors:
			args = append(args, "-err_detect", "ignore_err")
		case OptionWallclockTimestamp:
			args = append(args, "-use_wallclock_as_timestamps", "1")
		case OptionThreadQueue1024:
			args = append(args, "-thread_queue_size", "1024")
		case OptionThreadQueue4096:
			args = append(args, "-thread_queue_size", "4096")
		case OptionLowLatency:
			fflags = append(fflags, "+nobuffer")
			args = append(args, "-flags", "+low_delay")
		}
	}

	if len(fflags) > 0 {
		args = append(args, "-fflags", strings.Join(fflags, ""))
	}
	return args
}

// IsHardwareEncoder reports whether codec names a hardware encoder.
func IsHardwareEncoder(codec string) bool {
	for _, hw := range []string{"nvenc", "amf", "vaapi", "qsv", "videotoolbox", "rkmpp", "v4l2m2m", "vulkan"} {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}
