package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"verigate/pkg/platform/clock"
)

// Emitter accepts audit events. Implementations must not block the caller on
// network I/O.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Sink receives batches of events from the Publisher's worker.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []Event) error
}

type sinkEntry struct {
	sink    Sink
	breaker *sinkBreaker
}

// Publisher buffers events in memory and fans them out to sinks from a single
// background worker, so emitting from routing paths never waits on a sink.
type Publisher struct {
	buffer        *RingBuffer
	sinks         []sinkEntry
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
	notify        chan struct{}
	clock         clock.Clock
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithBufferSize bounds the number of undelivered events kept in memory.
func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

// WithBatchSize sets how many events are handed to a sink per write.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum delay before buffered events are delivered.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithSink registers a sink guarded by its own circuit breaker.
func WithSink(s Sink) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sinks = append(p.sinks, sinkEntry{sink: s})
		}
	}
}

// WithClock sets the time source for event stamps and sink breakers.
func WithClock(c clock.Clock) Option {
	return func(p *Publisher) {
		p.clock = c
	}
}

// NewPublisher creates a publisher. Call Run to start delivery.
func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		buffer:        NewRingBuffer(10000),
		batchSize:     100,
		flushInterval: time.Second,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.clock = clock.OrReal(p.clock)
	for i := range p.sinks {
		p.sinks[i].breaker = newSinkBreaker(defaultBreakerThreshold, defaultBreakerCooldown, p.clock)
	}
	return p
}

// Emit stamps the event and enqueues it. It never blocks; when the buffer is
// full the oldest event is dropped.
func (p *Publisher) Emit(_ context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if p.buffer.Enqueue(event) && p.logger != nil {
		p.logger.Warn("audit buffer full, dropped oldest event", "dropped_total", p.buffer.Dropped())
	}
	if p.buffer.Len() >= p.batchSize {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of undelivered events.
func (p *Publisher) Pending() int {
	return p.buffer.Len()
}

// Run delivers buffered events until ctx is cancelled, then makes a final
// best-effort flush.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			p.Flush(ctx)
		case <-p.notify:
			p.Flush(ctx)
		}
	}
}

// Flush drains the buffer into every sink.
func (p *Publisher) Flush(ctx context.Context) {
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		p.deliver(ctx, batch)
	}
}

func (p *Publisher) deliver(ctx context.Context, batch []Event) {
	for _, entry := range p.sinks {
		if !entry.breaker.allow() {
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit sink circuit open, dropping batch",
					"sink", entry.sink.Name(),
					"events", len(batch),
				)
			}
			continue
		}
		if err := entry.sink.Write(ctx, batch); err != nil {
			entry.breaker.failure()
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "audit sink write failed",
					"sink", entry.sink.Name(),
					"events", len(batch),
					"error", err,
				)
			}
			continue
		}
		entry.breaker.success()
	}
}
