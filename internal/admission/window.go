package admission

import (
	"sync"
	"sync/atomic"
	"time"
)

// window is one provider's fixed-window counter. The window opens on the
// first admission after the previous one elapsed.
type window struct {
	mu sync.Mutex

	limit       int
	size        time.Duration
	start       time.Time
	count       int
	unavailable bool

	inFlight atomic.Int64
}

// roll resets the counter when the current window has elapsed. Must be called
// with mu held.
func (w *window) roll(now time.Time) {
	if w.limit == 0 {
		return
	}
	if w.start.IsZero() || now.Sub(w.start) >= w.size {
		w.start = now
		w.count = 0
	}
}

// retryAfter must be called with mu held.
func (w *window) retryAfter(now time.Time) time.Duration {
	if w.limit == 0 || w.start.IsZero() {
		return 0
	}
	d := w.start.Add(w.size).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (w *window) exhausted() bool {
	return w.limit > 0 && w.count >= w.limit
}
