package router_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"verigate/internal/admission"
	"verigate/internal/health"
	"verigate/internal/pending"
	"verigate/internal/platform/metrics"
	"verigate/internal/providers"
	"verigate/internal/router"
	"verigate/internal/router/mocks"
	"verigate/internal/session"
	"verigate/internal/storage"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/clock"
)

type RouterSuite struct {
	suite.Suite
	ctx        context.Context
	clock      *clock.Fake
	metrics    *metrics.Metrics
	registry   *providers.Registry
	monitor    *health.Monitor
	sessions   *session.Table
	admission  *admission.Controller
	queue      *pending.Queue
	router     *router.Router
	dispatcher *mocks.MockDispatcher
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.build(router.DefaultConfig())
	s.register("a", providers.Limits{}, "text")
	s.register("b", providers.Limits{}, "text")
	s.register("c", providers.Limits{}, "lookup")

	ctrl := gomock.NewController(s.T())
	s.dispatcher = mocks.NewMockDispatcher(ctrl)
}

func (s *RouterSuite) build(cfg router.Config) {
	var err error
	s.registry = providers.NewRegistry()
	s.monitor, err = health.NewMonitor(health.Config{FailureThreshold: 2, DegradedFailureThreshold: 1, RecoveryThreshold: 2},
		health.WithClock(s.clock.Clock()))
	s.Require().NoError(err)
	s.admission, err = admission.NewController(admission.Config{MinNodes: 1, MaxNodes: 2, SlotsPerNode: 100},
		admission.WithClock(s.clock.Clock()))
	s.Require().NoError(err)
	s.sessions = session.NewTable(session.Config{IdleTimeout: 30 * time.Minute}, s.registry, s.monitor,
		session.WithClock(s.clock.Clock()))
	s.queue, err = pending.NewQueue(pending.Config{TTL: time.Hour}, storage.NewWriter(storage.NewMemoryStore()),
		pending.WithClock(s.clock.Clock()))
	s.Require().NoError(err)
	s.router, err = router.New(cfg, s.registry, s.monitor, s.sessions, s.admission,
		router.WithPendingQueue(s.queue),
		router.WithClock(s.clock.Clock()),
		router.WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *RouterSuite) register(id string, limits providers.Limits, caps ...providers.Capability) {
	_, err := s.router.RegisterProvider(s.ctx, providers.Provider{ID: id, Capabilities: caps, Limits: limits})
	s.Require().NoError(err)
}

func (s *RouterSuite) fail(id string, n int) {
	for range n {
		_, err := s.router.Report(s.ctx, id, health.Failed(health.ErrorTimeout, time.Second))
		s.Require().NoError(err)
	}
}

func (s *RouterSuite) route(req router.Request) *router.Decision {
	d, err := s.router.Route(s.ctx, req)
	s.Require().NoError(err)
	return d
}

func (s *RouterSuite) state(id string) health.State {
	snap, err := s.router.ProviderHealth(id)
	s.Require().NoError(err)
	return snap.State
}

func (s *RouterSuite) TestConfigValidation() {
	_, err := router.New(router.Config{MaxAttempts: 0}, s.registry, s.monitor, s.sessions, s.admission)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))

	_, err = router.New(router.Config{MaxAttempts: 1, StickySession: true}, s.registry, s.monitor, s.sessions, s.admission)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func (s *RouterSuite) TestStickySessionHoldsFor100Routes() {
	first := s.route(router.Request{Capability: "text", SessionID: "sess"})
	s.Equal("a", first.ProviderID)
	first.Release()

	// Load on a would otherwise push ranking to b.
	held := s.route(router.Request{Capability: "text"})
	s.Require().Equal("a", held.ProviderID)
	defer held.Release()

	for i := range 100 {
		d := s.route(router.Request{Capability: "text", SessionID: "sess"})
		s.Equal("a", d.ProviderID, "route %d", i)
		s.Equal(router.ReasonSticky, d.Reason)
		d.Release()
	}
}

func (s *RouterSuite) TestAllUnavailableGoesToManualQueue() {
	s.fail("a", 3)
	s.fail("b", 3)
	s.Require().Equal(health.Unavailable, s.state("a"))

	d := s.route(router.Request{ID: "req-1", Capability: "text", SessionID: "sess"})
	s.True(d.ManualQueue)
	s.Empty(d.ProviderID)
	s.Equal(router.ReasonAllUnavailable, d.Reason)
	s.Equal("req-1", d.PendingID)
	s.NotPanics(d.Release)

	rec, err := s.queue.Get("req-1")
	s.Require().NoError(err)
	s.Equal(pending.StatusPending, rec.Status)
	s.Equal("text", rec.Capability)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RouteDecisions.WithLabelValues("text", "all_unavailable")))
}

func (s *RouterSuite) TestRateLimitedProviderFallsThrough() {
	s.build(router.DefaultConfig())
	s.register("a", providers.Limits{RateLimitPerWindow: 2, Window: time.Minute}, "text")
	s.register("b", providers.Limits{}, "text")

	var got []string
	for range 3 {
		d := s.route(router.Request{Capability: "text"})
		got = append(got, d.ProviderID)
		d.Release()
	}
	s.Equal([]string{"a", "a", "b"}, got)

	d := s.route(router.Request{Capability: "text"})
	s.Equal([]string{"a", "b"}, d.Consulted)
	s.Equal(router.ReasonFallback, d.Reason)
	d.Release()
}

func (s *RouterSuite) TestAdmissionExhaustedGoesToManualQueue() {
	s.build(router.DefaultConfig())
	s.register("a", providers.Limits{RateLimitPerWindow: 1, Window: time.Minute}, "text")

	s.route(router.Request{Capability: "text"}).Release()
	d := s.route(router.Request{Capability: "text"})
	s.True(d.ManualQueue)
	s.Equal(router.ReasonAdmissionExhausted, d.Reason)
	s.Equal([]string{"a"}, d.Consulted)
}

func (s *RouterSuite) TestUnknownCapabilityIsAnError() {
	_, err := s.router.Route(s.ctx, router.Request{Capability: "video"})
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	s.Empty(s.queue.List(""))
}

func (s *RouterSuite) TestInvalidRequest() {
	_, err := s.router.Route(s.ctx, router.Request{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RouterSuite) TestStickyBindingMovesWhenProviderUnavailable() {
	s.route(router.Request{Capability: "text", SessionID: "sess"}).Release()
	s.fail("a", 3)

	d := s.route(router.Request{Capability: "text", SessionID: "sess"})
	s.Equal("b", d.ProviderID)
	s.Equal(router.ReasonRanked, d.Reason)
	d.Release()

	sess, err := s.router.Session("sess")
	s.Require().NoError(err)
	s.Equal("b", sess.ProviderID)
}

func (s *RouterSuite) TestIdleSessionLosesBindingOnNextRoute() {
	s.route(router.Request{Capability: "text", SessionID: "sess"}).Release()
	before, err := s.router.Session("sess")
	s.Require().NoError(err)
	s.Require().Equal("a", before.ProviderID)

	s.clock.Advance(31 * time.Minute)

	d := s.route(router.Request{Capability: "text", SessionID: "sess"})
	s.NotEqual(router.ReasonSticky, d.Reason)
	d.Release()

	after, err := s.router.Session("sess")
	s.Require().NoError(err)
	s.NotEqual(before.CreatedAt, after.CreatedAt, "a fresh session replaces the expired one")
}

func (s *RouterSuite) TestDegradedBindingIsNotPreferred() {
	_, err := s.router.BindSession(s.ctx, "sess", "b")
	s.Require().NoError(err)
	s.fail("b", 2)
	s.Require().Equal(health.Degraded, s.state("b"))

	d := s.route(router.Request{Capability: "text", SessionID: "sess"})
	s.Equal("a", d.ProviderID)
	d.Release()
}

func (s *RouterSuite) TestNeverRoutesToUnavailable() {
	s.fail("a", 3)
	for range 20 {
		d := s.route(router.Request{Capability: "text"})
		s.Equal("b", d.ProviderID)
		s.NotContains(d.Consulted, "a")
		d.Release()
	}
}

func (s *RouterSuite) TestCancelledRouteChangesNothing() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.router.Route(ctx, router.Request{Capability: "text", SessionID: "sess"})
	s.ErrorIs(err, context.Canceled)
	s.Zero(s.admission.InFlight())
	_, err = s.router.Session("sess")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RouterSuite) TestReleaseFreesAdmissionSlot() {
	d := s.route(router.Request{Capability: "text"})
	s.Equal(int64(1), s.admission.Load(d.ProviderID))
	d.Release()
	d.Release()
	s.Zero(s.admission.Load(d.ProviderID))
}

func (s *RouterSuite) TestSessionAffinityDisabledIgnoresSessions() {
	s.build(router.Config{MaxAttempts: 1})
	s.register("a", providers.Limits{}, "text")

	s.route(router.Request{Capability: "text", SessionID: "sess"}).Release()
	_, err := s.router.Session("sess")
	s.Error(err)

	_, err = s.router.BindSession(s.ctx, "sess", "a")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *RouterSuite) TestBindSessionValidation() {
	_, err := s.router.BindSession(s.ctx, "sess", "ghost")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.fail("a", 3)
	_, err = s.router.BindSession(s.ctx, "sess", "a")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.router.BindSession(s.ctx, "", "b")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RouterSuite) TestBindAndReleaseSessionRoundTrip() {
	sess, err := s.router.BindSession(s.ctx, "sess", "b")
	s.Require().NoError(err)
	s.Equal("b", sess.ProviderID)

	s.True(s.router.ReleaseSession(s.ctx, "sess"))
	_, err = s.router.Session("sess")
	s.Error(err)
	s.False(s.router.ReleaseSession(s.ctx, "sess"))
}

func (s *RouterSuite) TestRegisterProviderPreservesHealth() {
	s.fail("a", 2)
	created, err := s.router.RegisterProvider(s.ctx, providers.Provider{
		ID:           "a",
		Capabilities: []providers.Capability{"text"},
		Limits:       providers.Limits{MaxUnitsPerRequest: 10},
	})
	s.Require().NoError(err)
	s.False(created)
	s.Equal(health.Degraded, s.state("a"))

	limits, err := s.registry.GetLimits("a")
	s.Require().NoError(err)
	s.Equal(10, limits.MaxUnitsPerRequest)
}

func (s *RouterSuite) TestUnavailableTransitionRemovesAdmissionCapacity() {
	s.fail("a", 3)
	_, err := s.admission.Admit(s.ctx, "a")
	refused, ok := admission.AsRefused(err)
	s.Require().True(ok)
	s.Equal(admission.ReasonUnavailable, refused.Reason)
}

func (s *RouterSuite) TestReportUnknownProvider() {
	_, err := s.router.Report(s.ctx, "ghost", health.Succeeded(0))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RouterSuite) TestProvidersListing() {
	s.fail("b", 2)
	list := s.router.Providers()
	s.Require().Len(list, 3)
	s.Equal("a", list[0].Provider.ID)
	s.Equal(health.Degraded, list[1].Health.State)
	s.Equal("b", list[1].Admission.ProviderID)
}

func (s *RouterSuite) TestPreviewHasNoSideEffects() {
	s.route(router.Request{Capability: "text", SessionID: "sess"}).Release()
	s.fail("b", 2)

	p, err := s.router.Preview(s.ctx, router.Request{Capability: "text", SessionID: "sess"})
	s.Require().NoError(err)
	s.Equal("a", p.StickyProvider)
	s.Require().Len(p.Chain, 2)
	s.Equal("a", p.Chain[0].Provider.ID)
	s.Equal(health.Degraded, p.Chain[1].State)
	s.False(p.ManualQueue)
	s.Zero(s.admission.InFlight())

	s.fail("a", 3)
	p, err = s.router.Preview(s.ctx, router.Request{Capability: "text", SessionID: "sess"})
	s.Require().NoError(err)
	s.Empty(p.StickyProvider)
	sess, err := s.router.Session("sess")
	s.Require().NoError(err)
	s.Equal("a", sess.ProviderID, "preview leaves the binding for routing to drop")

	s.fail("b", 1)
	p, err = s.router.Preview(s.ctx, router.Request{Capability: "text"})
	s.Require().NoError(err)
	s.True(p.ManualQueue)
	s.Empty(p.Chain)
	s.Empty(s.queue.List(""))
}

func (s *RouterSuite) TestExecuteSucceedsFirstTry() {
	s.dispatcher.EXPECT().Call(gomock.Any(), "a", gomock.Any()).
		Return(router.Result{Success: true, Latency: 20 * time.Millisecond, Body: json.RawMessage(`{"ok":true}`)})

	exec, err := s.router.Execute(s.ctx, router.Request{Capability: "text", SessionID: "sess"}, s.dispatcher)
	s.Require().NoError(err)
	s.Equal("a", exec.ProviderID)
	s.JSONEq(`{"ok":true}`, string(exec.Response))
	s.Len(exec.Attempts, 1)
	s.NotEmpty(exec.RequestID)
}

func (s *RouterSuite) TestExecuteAdvancesChainOnFailure() {
	gomock.InOrder(
		s.dispatcher.EXPECT().Call(gomock.Any(), "a", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, req router.Request) router.Result {
				sess, err := s.router.Session("sess")
				s.Require().NoError(err)
				s.Equal(1, sess.CurrentVerifications)
				return router.Result{ErrorKind: health.ErrorServer}
			}),
		s.dispatcher.EXPECT().Call(gomock.Any(), "b", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, req router.Request) router.Result {
				s.Equal([]string{"a"}, req.Exclude)
				return router.Result{Success: true}
			}),
	)

	exec, err := s.router.Execute(s.ctx, router.Request{Capability: "text", SessionID: "sess"}, s.dispatcher)
	s.Require().NoError(err)
	s.Equal("b", exec.ProviderID)
	s.Equal(router.ReasonRanked, exec.Reason)
	s.Require().Len(exec.Attempts, 2)
	s.Equal(health.ErrorServer, exec.Attempts[0].ErrorKind)

	snap, err := s.router.ProviderHealth("a")
	s.Require().NoError(err)
	s.Equal(1, snap.ConsecutiveFailures)

	sess, err := s.router.Session("sess")
	s.Require().NoError(err)
	s.Equal(0, sess.CurrentVerifications)
	s.Equal("b", sess.ProviderID)
	s.Zero(s.admission.InFlight())
}

func (s *RouterSuite) TestExecuteEndsInManualQueueWhenAttemptsRunOut() {
	s.build(router.Config{SessionAffinity: true, StickySession: true, MaxAttempts: 1})
	s.register("a", providers.Limits{}, "text")
	s.register("b", providers.Limits{}, "text")
	s.dispatcher.EXPECT().Call(gomock.Any(), "a", gomock.Any()).Return(router.Result{ErrorKind: health.ErrorTimeout})

	exec, err := s.router.Execute(s.ctx, router.Request{ID: "req-9", Capability: "text"}, s.dispatcher)
	s.Require().NoError(err)
	s.True(exec.ManualQueue)
	s.Equal(router.ReasonAttemptsExhausted, exec.Reason)
	s.Equal("req-9", exec.PendingID)

	rec, err := s.queue.Get("req-9")
	s.Require().NoError(err)
	s.Equal([]string{"a"}, rec.Consulted)
}

func (s *RouterSuite) TestExecuteEndsInManualQueueWhenChainRunsOut() {
	s.dispatcher.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(router.Result{ErrorKind: health.ErrorTransport}).Times(2)

	exec, err := s.router.Execute(s.ctx, router.Request{Capability: "text"}, s.dispatcher)
	s.Require().NoError(err)
	s.True(exec.ManualQueue)
	s.Len(exec.Attempts, 2)
	s.NotEmpty(exec.PendingID)
}

func (s *RouterSuite) TestExecuteReleasesEverythingWhenDispatcherPanics() {
	s.dispatcher.EXPECT().Call(gomock.Any(), "a", gomock.Any()).
		DoAndReturn(func(context.Context, string, router.Request) router.Result {
			panic("provider client blew up")
		})

	s.Panics(func() {
		_, _ = s.router.Execute(s.ctx, router.Request{Capability: "text", SessionID: "sess"}, s.dispatcher)
	})

	sess, err := s.router.Session("sess")
	s.Require().NoError(err)
	s.Equal(0, sess.CurrentVerifications)
	s.Zero(s.admission.InFlight())
}

func (s *RouterSuite) TestExecuteCancelledDuringDispatchDoesNotReport() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.dispatcher.EXPECT().Call(gomock.Any(), "a", gomock.Any()).
		DoAndReturn(func(context.Context, string, router.Request) router.Result {
			cancel()
			return router.Result{ErrorKind: health.ErrorTimeout}
		})

	_, err := s.router.Execute(ctx, router.Request{Capability: "text"}, s.dispatcher)
	s.ErrorIs(err, context.Canceled)

	snap, err := s.router.ProviderHealth("a")
	s.Require().NoError(err)
	s.Zero(snap.ConsecutiveFailures)
	s.Zero(s.admission.InFlight())
}
