package session

import (
	"math"
	"sync/atomic"
	"time"
)

const unset = math.MinInt64

// timeline maps capture timestamps onto the shared presentation clock. The
// first unit observed from either source becomes zero.
type timeline struct {
	origin atomic.Int64
}

func newTimeline() *timeline {
	t := &timeline{}
	t.origin.Store(unset)
	return t
}

// observe sets the origin if this is the first unit.
func (t *timeline) observe(ts time.Duration) {
	t.origin.CompareAndSwap(unset, int64(ts))
}

// normalize returns ts relative to the origin, clamped at zero.
func (t *timeline) normalize(ts time.Duration) time.Duration {
	origin := t.origin.Load()
	if origin == unset {
		return 0
	}
	return max(ts-time.Duration(origin), 0)
}
