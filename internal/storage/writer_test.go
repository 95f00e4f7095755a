package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// flakyStore fails every call while failing is set and counts calls.
type flakyStore struct {
	*MemoryStore
	mu      sync.Mutex
	failing bool
	sets    int
	deletes int
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.sets++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("backend down")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deletes++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("backend down")
	}
	return f.MemoryStore.Delete(ctx, key)
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

type WriterSuite struct {
	suite.Suite
	ctx    context.Context
	store  *flakyStore
	writer *Writer
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterSuite))
}

func (s *WriterSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &flakyStore{MemoryStore: NewMemoryStore()}
	s.writer = NewWriter(s.store)
}

func (s *WriterSuite) TestWritesCoalescePerKey() {
	s.writer.Set("k", []byte("1"))
	s.writer.Set("k", []byte("2"))
	s.writer.Set("k", []byte("3"))
	s.Equal(1, s.writer.Pending())

	s.Require().NoError(s.writer.Flush(s.ctx))
	s.Equal(1, s.store.sets)

	v, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("3", string(v))
}

func (s *WriterSuite) TestReadsSeePendingWrites() {
	s.Require().NoError(s.store.MemoryStore.Set(s.ctx, "k", []byte("old")))

	s.writer.Set("k", []byte("new"))
	v, err := s.writer.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("new", string(v))

	s.writer.Delete("k")
	_, err = s.writer.Get(s.ctx, "k")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.writer.Get(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *WriterSuite) TestDeletesUseBatchDeleter() {
	s.Require().NoError(s.store.MemoryStore.Set(s.ctx, "a", []byte("1")))
	s.Require().NoError(s.store.MemoryStore.Set(s.ctx, "b", []byte("1")))

	s.writer.Delete("a")
	s.writer.Delete("b")
	s.Require().NoError(s.writer.Flush(s.ctx))

	s.Equal(0, s.store.deletes, "MemoryStore.DeleteMany is promoted through the embed")
	s.Equal(0, s.store.Len())
}

func (s *WriterSuite) TestFailedWritesAreRetried() {
	s.store.setFailing(true)
	s.writer.Set("k", []byte("1"))

	s.Error(s.writer.Flush(s.ctx))
	s.Equal(1, s.writer.Pending())

	s.store.setFailing(false)
	s.Require().NoError(s.writer.Flush(s.ctx))
	s.Equal(0, s.writer.Pending())
	v, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("1", string(v))
}

func (s *WriterSuite) TestRequeueKeepsNewerWrite() {
	s.writer.Set("k", []byte("old"))
	s.writer.mu.Lock()
	batch := s.writer.pending
	s.writer.pending = map[string]writeOp{"k": {value: []byte("new")}}
	s.writer.order = []string{"k"}
	s.writer.mu.Unlock()

	s.writer.requeue("k", batch["k"])

	v, err := s.writer.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("new", string(v))
}

func (s *WriterSuite) TestSetCopiesValue() {
	buf := []byte("abc")
	s.writer.Set("k", buf)
	buf[0] = 'x'

	v, err := s.writer.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("abc", string(v))
}

func (s *WriterSuite) TestRunFlushesAndDrainsOnShutdown() {
	w := NewWriter(s.store, WithFlushInterval(time.Hour))
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.Set("a", []byte("1"))
	s.Eventually(func() bool {
		_, err := s.store.Get(s.ctx, "a")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)

	w.Set("b", []byte("2"))
	s.Require().NoError(w.Flush(s.ctx))
	_, err := s.store.Get(s.ctx, "b")
	s.NoError(err)
}
