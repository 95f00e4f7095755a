package admission

import (
	"strconv"
	"sync"
)

// Ticket is an admitted slot. Release returns it; extra calls are no-ops so a
// deferred Release is always safe.
type Ticket struct {
	controller *Controller
	providerID string
	window     *window
	once       sync.Once
}

// ProviderID is the provider the slot was reserved on.
func (t *Ticket) ProviderID() string {
	if t == nil {
		return ""
	}
	return t.providerID
}

// Release frees the slot. It is safe on a nil ticket.
func (t *Ticket) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.controller.release(t.window)
	})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
