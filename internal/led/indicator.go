package led

import (
	"sync"

	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/logging"
)

// Indicator follows recording sessions on the bus: solid while running,
// blinking while draining and after a failure, off once closed.
type Indicator struct {
	controller Controller
	bus        *events.Bus
	logger     logging.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// NewIndicator wires controller to bus. Call Start to subscribe.
func NewIndicator(controller Controller, bus *events.Bus, logger logging.Logger) *Indicator {
	if logger == nil {
		logger = logging.GetLogger("led")
	}
	return &Indicator{controller: controller, bus: bus, logger: logger}
}

// Start subscribes to session state events and switches the LED off.
func (i *Indicator) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.unsubscribe != nil {
		return
	}
	i.set(false, "")
	i.unsubscribe = i.bus.Subscribe(i.handle)
	i.logger.Info("LED indicator started", "led", i.controller.Name())
}

// Stop unsubscribes and switches the LED off.
func (i *Indicator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.unsubscribe == nil {
		return
	}
	i.unsubscribe()
	i.unsubscribe = nil
	i.set(false, "")
}

func (i *Indicator) handle(e events.SessionStateEvent) {
	if e.Kind != "recording" {
		return
	}
	switch e.To {
	case "running":
		i.set(true, PatternSolid)
	case "draining", "failed":
		i.set(true, PatternBlink)
	case "closed":
		i.set(false, "")
	}
}

func (i *Indicator) set(on bool, pattern Pattern) {
	if err := i.controller.Set(on, pattern); err != nil {
		i.logger.Warn("Failed to set LED", "led", i.controller.Name(), "error", err)
	}
}
