// Package memory keeps audit events in process so operators can inspect
// recent activity without an external sink.
package memory

import (
	"context"
	"sync"

	audit "verigate/pkg/platform/audit"
)

// DefaultCapacity bounds how many events the sink retains.
const DefaultCapacity = 10_000

// Sink is an audit.Sink retaining the most recent events.
type Sink struct {
	mu       sync.RWMutex
	events   []audit.Event
	capacity int
}

func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{capacity: capacity}
}

func (s *Sink) Name() string { return "memory" }

func (s *Sink) Write(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = append([]audit.Event(nil), s.events[over:]...)
	}
	return nil
}

func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// ListByProvider returns events for one provider, oldest first.
func (s *Sink) ListByProvider(_ context.Context, providerID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.ProviderID == providerID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListRecent returns up to limit events, newest first.
func (s *Sink) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]audit.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
