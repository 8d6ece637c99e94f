package session

import (
	"github.com/wasd845/AVGraphics/internal/media"
	"github.com/wasd845/AVGraphics/internal/metrics"
)

func observeTransition(kind Kind, from, to State) {
	metrics.ObserveTransition(string(kind), from.String(), to.String(), to.Terminal())
}

func observeFeed(kind media.Kind, reason string) {
	if reason == "" {
		metrics.ObserveAccepted(kind.String())
		return
	}
	metrics.ObserveDrop(kind.String(), reason)
}

func observeSample(kind media.Kind, size int) {
	metrics.ObserveSample(kind.String(), size)
}
