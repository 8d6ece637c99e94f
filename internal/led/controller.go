// Package led drives a board LED as a recording indicator.
package led

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wasd845/AVGraphics/internal/logging"
)

// Pattern is how a lit LED behaves.
type Pattern string

const (
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller switches one LED.
type Controller interface {
	Set(on bool, pattern Pattern) error
	Name() string
}

// boardLEDs maps device tree models to the LED used for recording.
var boardLEDs = map[string]string{
	"NanoPC-T6":    "usr_led",
	"Orange Pi":    "green_led",
	"Raspberry Pi": "ACT",
}

// Sysfs controls /sys/class/leds/<LED>.
type Sysfs struct {
	// Root prefixes /sys. Empty means "/".
	Root string
	LED  string
}

func (s *Sysfs) dir() string {
	root := s.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, "sys", "class", "leds", s.LED)
}

// Name returns the sysfs LED name.
func (s *Sysfs) Name() string { return s.LED }

// Set writes the trigger and brightness. Solid uses the "none" trigger so
// brightness holds; blink uses "heartbeat".
func (s *Sysfs) Set(on bool, pattern Pattern) error {
	dir := s.dir()
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("led %s: %w", s.LED, err)
	}

	trigger := "none"
	if on && pattern == PatternBlink {
		trigger = "heartbeat"
	}
	if err := os.WriteFile(filepath.Join(dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("led %s trigger: %w", s.LED, err)
	}
	if trigger == "heartbeat" {
		return nil
	}

	brightness := "0"
	if on {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("led %s brightness: %w", s.LED, err)
	}
	return nil
}

type noop struct {
	logger logging.Logger
}

func (n noop) Name() string { return "" }

func (n noop) Set(on bool, pattern Pattern) error {
	n.logger.Debug("LED control not available", "on", on, "pattern", pattern)
	return nil
}

// New returns a controller for name, or for the board's default LED when
// name is empty. Boards without a known LED get a no-op controller.
func New(name string, logger logging.Logger) Controller {
	if logger == nil {
		logger = logging.GetLogger("led")
	}
	if name != "" {
		return &Sysfs{LED: name}
	}

	model := detectBoard("/")
	for board, led := range boardLEDs {
		if strings.Contains(model, board) {
			logger.Info("Using board LED for recording indicator", "board_model", model, "led", led)
			return &Sysfs{LED: led}
		}
	}
	logger.Debug("No LED support detected", "board_model", model)
	return noop{logger: logger}
}

// detectBoard reads the device tree model below root.
func detectBoard(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "proc", "device-tree", "model"))
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
