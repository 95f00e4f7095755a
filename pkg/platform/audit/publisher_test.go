package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/pkg/platform/clock"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	writes int
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestPublisher_EmitStampsEvent(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(WithSink(sink))

	require.NoError(t, pub.Emit(context.Background(), Event{Action: string(EventHealthTransition), ProviderID: "a"}))
	pub.Flush(context.Background())

	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, CategoryAvailability, events[0].Category)
}

func TestPublisher_FlushDeliversInBatches(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(WithSink(sink), WithBatchSize(2))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: string(EventSessionBound)}))
	}
	pub.Flush(context.Background())

	assert.Len(t, sink.snapshot(), 5)
	assert.Equal(t, 3, sink.writes)
	assert.Equal(t, 0, pub.Pending())
}

func TestPublisher_FullBufferDropsOldest(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(WithSink(sink), WithBufferSize(2), WithBatchSize(10))

	for _, reason := range []string{"first", "second", "third"} {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: string(EventManualQueued), Reason: reason}))
	}
	pub.Flush(context.Background())

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].Reason)
	assert.Equal(t, "third", events[1].Reason)
}

func TestPublisher_FailingSinkOpensCircuit(t *testing.T) {
	failing := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}
	pub := NewPublisher(WithSink(failing), WithSink(healthy), WithBatchSize(1))

	for range 8 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: string(EventAdmissionRefused)}))
	}
	pub.Flush(context.Background())

	assert.Equal(t, 5, failing.writes, "breaker opens after five consecutive failures")
	assert.Len(t, healthy.snapshot(), 8, "healthy sinks are unaffected")
}

func TestPublisher_SinkRecoversAfterCooldown(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &recordingSink{err: errors.New("broker down")}
	pub := NewPublisher(WithSink(sink), WithBatchSize(1), WithClock(fake.Clock()))
	emit := func() {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: string(EventAdmissionRefused)}))
		pub.Flush(context.Background())
	}

	for range defaultBreakerThreshold + 2 {
		emit()
	}
	assert.Equal(t, defaultBreakerThreshold, sink.writes)

	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	emit()
	assert.Empty(t, sink.snapshot(), "still open before the cooldown")

	fake.Advance(defaultBreakerCooldown)
	emit()
	emit()
	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, fake.Now(), events[0].Timestamp)
}

func TestPublisher_RunFlushesOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(WithSink(sink), WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	require.NoError(t, pub.Emit(context.Background(), Event{Action: string(EventSessionClosed)}))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop")
	}
	assert.Len(t, sink.snapshot(), 1)
}

func TestAuditEvent_Category(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventManualQueued.Category())
	assert.Equal(t, CategoryAvailability, EventHealthTransition.Category())
	assert.Equal(t, CategoryOperations, EventSessionBound.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("unknown").Category())
	assert.True(t, EventSessionExpired.IsSessionEvent())
	assert.False(t, EventManualQueued.IsSessionEvent())
}
