package storage

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const (
	defaultWriterFlushInterval = 500 * time.Millisecond
	shutdownFlushTimeout       = 5 * time.Second
)

type writeOp struct {
	value  []byte
	delete bool
}

// Writer is a write-behind front for a Store. Set and Delete only record the
// latest operation per key and return immediately; Run flushes in the
// background. Reads see pending writes before they reach the store.
type Writer struct {
	store         Store
	logger        *slog.Logger
	flushInterval time.Duration

	mu      sync.Mutex
	pending map[string]writeOp
	order   []string

	flushMu sync.Mutex
	notify  chan struct{}
}

// WriterOption configures a Writer instance.
type WriterOption func(*Writer)

func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithFlushInterval sets the periodic flush interval for Run.
func WithFlushInterval(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:         store,
		flushInterval: defaultWriterFlushInterval,
		pending:       make(map[string]writeOp),
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Set queues value for key, replacing any queued operation on the same key.
func (w *Writer) Set(key string, value []byte) {
	w.enqueue(key, writeOp{value: slices.Clone(value)})
}

// Delete queues removal of key.
func (w *Writer) Delete(key string) {
	w.enqueue(key, writeOp{delete: true})
}

func (w *Writer) enqueue(key string, op writeOp) {
	w.mu.Lock()
	if _, ok := w.pending[key]; !ok {
		w.order = append(w.order, key)
	}
	w.pending[key] = op
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Get returns the queued value for key if one exists, otherwise the stored one.
func (w *Writer) Get(ctx context.Context, key string) ([]byte, error) {
	w.mu.Lock()
	op, ok := w.pending[key]
	w.mu.Unlock()
	if ok {
		if op.delete {
			return nil, ErrNotFound
		}
		return slices.Clone(op.value), nil
	}
	return w.store.Get(ctx, key)
}

// Pending returns the number of keys waiting to be flushed.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run flushes on every interval tick and on new writes until ctx is
// cancelled, then performs a final flush.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			w.logFlushError(flushCtx, w.Flush(flushCtx))
			cancel()
			return ctx.Err()
		case <-ticker.C:
			w.logFlushError(ctx, w.Flush(ctx))
		case <-w.notify:
			w.logFlushError(ctx, w.Flush(ctx))
		}
	}
}

// Flush writes every queued operation. Operations that fail are re-queued
// unless a newer operation for the same key arrived meanwhile.
func (w *Writer) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := w.pending
	order := w.order
	w.pending = make(map[string]writeOp)
	w.order = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var errs []error
	var deletes []string
	for _, key := range order {
		op := batch[key]
		if op.delete {
			deletes = append(deletes, key)
			continue
		}
		if err := w.store.Set(ctx, key, op.value); err != nil {
			errs = append(errs, err)
			w.requeue(key, op)
		}
	}
	if len(deletes) > 0 {
		if err := w.deleteAll(ctx, deletes); err != nil {
			errs = append(errs, err)
			for _, key := range deletes {
				w.requeue(key, batch[key])
			}
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) deleteAll(ctx context.Context, keys []string) error {
	if bd, ok := w.store.(BatchDeleter); ok {
		return bd.DeleteMany(ctx, keys)
	}
	var errs []error
	for _, key := range keys {
		if err := w.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) requeue(key string, op writeOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, newer := w.pending[key]; newer {
		return
	}
	w.pending[key] = op
	w.order = append(w.order, key)
}

func (w *Writer) logFlushError(ctx context.Context, err error) {
	if err != nil && w.logger != nil {
		w.logger.WarnContext(ctx, "storage flush failed, will retry", "error", err, "pending", w.Pending())
	}
}
