package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type fakeProber struct {
	mu      sync.Mutex
	calls   []string
	outcome func(ctx context.Context, id string) Outcome
}

func (f *fakeProber) Probe(ctx context.Context, id string) Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	fn := f.outcome
	f.mu.Unlock()
	if fn == nil {
		return Succeeded(time.Millisecond)
	}
	return fn(ctx, id)
}

func (f *fakeProber) probed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type ProbeRunnerSuite struct {
	suite.Suite
	ctx     context.Context
	monitor *Monitor
	prober  *fakeProber
	emitter *recordingEmitter
	runner  *ProbeRunner
}

func TestProbeRunnerSuite(t *testing.T) {
	suite.Run(t, new(ProbeRunnerSuite))
}

func (s *ProbeRunnerSuite) SetupTest() {
	s.ctx = context.Background()
	cfg := Config{
		FailureThreshold:         1,
		DegradedFailureThreshold: 1,
		RecoveryThreshold:        1,
		ProbeInterval:            10 * time.Millisecond,
		ProbeTimeout:             50 * time.Millisecond,
		ProbeConcurrency:         2,
	}
	var err error
	s.monitor, err = NewMonitor(cfg)
	s.Require().NoError(err)
	for _, id := range []string{"healthy", "degraded", "down"} {
		s.monitor.Track(id)
	}
	s.demote("degraded", 1)
	s.demote("down", 2)

	s.prober = &fakeProber{}
	s.emitter = &recordingEmitter{}
	s.runner = NewProbeRunner(s.monitor, s.prober, WithProbeAuditPublisher(s.emitter))
}

func (s *ProbeRunnerSuite) demote(id string, failures int) {
	for range failures {
		_, err := s.monitor.Record(s.ctx, id, Failed(ErrorServer, 0))
		s.Require().NoError(err)
	}
}

func (s *ProbeRunnerSuite) state(id string) State {
	st, err := s.monitor.State(id)
	s.Require().NoError(err)
	return st
}

func (s *ProbeRunnerSuite) TestProbesOnlyUnhealthyProviders() {
	n := s.runner.RunOnce(s.ctx)

	s.Equal(2, n)
	s.ElementsMatch([]string{"degraded", "down"}, s.prober.probed())
	s.Equal(Healthy, s.state("degraded"))
	s.Equal(Degraded, s.state("down"))

	snap, err := s.monitor.Snapshot("down")
	s.Require().NoError(err)
	s.False(snap.LastProbeAt.IsZero())
}

func (s *ProbeRunnerSuite) TestNothingToProbeWhenAllHealthy() {
	s.runner.RunOnce(s.ctx)
	s.runner.RunOnce(s.ctx)
	s.prober.calls = nil

	s.Equal(0, s.runner.RunOnce(s.ctx))
	s.Empty(s.prober.probed())
}

func (s *ProbeRunnerSuite) TestFailedProbeIsRecordedAndAudited() {
	s.prober.outcome = func(context.Context, string) Outcome {
		return Failed(ErrorTransport, 0)
	}

	s.runner.RunOnce(s.ctx)

	s.Equal(Unavailable, s.state("degraded"))
	s.Equal(Unavailable, s.state("down"))
	s.Len(s.emitter.actions(), 2)
	for _, a := range s.emitter.actions() {
		s.Equal("provider_probe_failed", a)
	}
}

func (s *ProbeRunnerSuite) TestProbeRunsWithoutHoldingProviderLock() {
	s.prober.outcome = func(_ context.Context, id string) Outcome {
		// Reading state would deadlock if the entry lock were held.
		_, err := s.monitor.State(id)
		s.NoError(err)
		return Succeeded(0)
	}

	done := make(chan int, 1)
	go func() { done <- s.runner.RunOnce(s.ctx) }()

	select {
	case n := <-done:
		s.Equal(2, n)
	case <-time.After(time.Second):
		s.Fail("probe cycle deadlocked")
	}
}

func (s *ProbeRunnerSuite) TestProbeTimeoutIsApplied() {
	s.prober.outcome = func(ctx context.Context, _ string) Outcome {
		<-ctx.Done()
		return Failed(ErrorTimeout, 0)
	}

	start := time.Now()
	s.Equal(2, s.runner.RunOnce(s.ctx))
	s.Less(time.Since(start), time.Second)
	s.Equal(Unavailable, s.state("degraded"))
}

func (s *ProbeRunnerSuite) TestShutdownDiscardsInFlightProbes() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.prober.outcome = func(context.Context, string) Outcome {
		cancel()
		return Failed(ErrorTransport, 0)
	}

	s.Equal(0, s.runner.RunOnce(ctx))
	s.Equal(Degraded, s.state("degraded"))
	s.Equal(Unavailable, s.state("down"))
}

func (s *ProbeRunnerSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- s.runner.Run(ctx) }()

	s.Eventually(func() bool {
		return s.state("degraded") == Healthy
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("runner did not stop")
	}
}
