package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the routing core. All methods
// are nil-safe so components can run without metrics in tests.
type Metrics struct {
	// Router
	RouteDecisions *prometheus.CounterVec
	RouteLatency   prometheus.Histogram
	DispatchTotal  *prometheus.CounterVec

	// Health monitor
	HealthTransitions *prometheus.CounterVec
	ProviderState     *prometheus.GaugeVec
	ProbesTotal       *prometheus.CounterVec

	// Admission controller
	AdmissionRefusals *prometheus.CounterVec
	InFlight          prometheus.Gauge
	Nodes             prometheus.Gauge
	ScaleRequests     prometheus.Counter

	// Sessions and degraded service
	ActiveSessions  prometheus.Gauge
	SessionsEvicted prometheus.Counter
	PendingRecords  *prometheus.GaugeVec
}

// New creates and registers all routing metrics on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RouteDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_route_decisions_total",
			Help: "Routing decisions by capability and reason",
		}, []string{"capability", "reason"}),
		RouteLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_route_duration_seconds",
			Help:    "Time spent choosing a provider, excluding dispatch",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
		DispatchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_dispatch_total",
			Help: "Dispatch outcomes by provider and result",
		}, []string{"provider", "result"}),

		HealthTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_provider_health_transitions_total",
			Help: "Provider health state transitions",
		}, []string{"provider", "from", "to"}),
		ProviderState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verigate_provider_health_state",
			Help: "Current provider health state (0 healthy, 1 degraded, 2 unavailable)",
		}, []string{"provider"}),
		ProbesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_provider_probes_total",
			Help: "Synthetic health probes by provider and result",
		}, []string{"provider", "result"}),

		AdmissionRefusals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_admission_refusals_total",
			Help: "Admission refusals by provider and reason",
		}, []string{"provider", "reason"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "verigate_in_flight",
			Help: "Admitted dispatches not yet released",
		}),
		Nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "verigate_capacity_nodes",
			Help: "Current node count backing the global in-flight cap",
		}),
		ScaleRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "verigate_scale_requests_total",
			Help: "Scale-up requests raised on global saturation",
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "verigate_sessions_active",
			Help: "Sessions currently held by the affinity table",
		}),
		SessionsEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "verigate_sessions_evicted_total",
			Help: "Sessions evicted for inactivity",
		}),
		PendingRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verigate_pending_records",
			Help: "Manual-queue records by status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncrementRouteDecision(capability, reason string) {
	if m != nil {
		m.RouteDecisions.WithLabelValues(capability, reason).Inc()
	}
}

func (m *Metrics) ObserveRouteLatency(d time.Duration) {
	if m != nil {
		m.RouteLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementDispatch(provider, result string) {
	if m != nil {
		m.DispatchTotal.WithLabelValues(provider, result).Inc()
	}
}

func (m *Metrics) RecordTransition(provider, from, to string, state int) {
	if m != nil {
		m.HealthTransitions.WithLabelValues(provider, from, to).Inc()
		m.ProviderState.WithLabelValues(provider).Set(float64(state))
	}
}

func (m *Metrics) SetProviderState(provider string, state int) {
	if m != nil {
		m.ProviderState.WithLabelValues(provider).Set(float64(state))
	}
}

func (m *Metrics) IncrementProbe(provider, result string) {
	if m != nil {
		m.ProbesTotal.WithLabelValues(provider, result).Inc()
	}
}

func (m *Metrics) IncrementAdmissionRefusal(provider, reason string) {
	if m != nil {
		m.AdmissionRefusals.WithLabelValues(provider, reason).Inc()
	}
}

func (m *Metrics) SetInFlight(n int64) {
	if m != nil {
		m.InFlight.Set(float64(n))
	}
}

func (m *Metrics) SetNodes(n int) {
	if m != nil {
		m.Nodes.Set(float64(n))
	}
}

func (m *Metrics) IncrementScaleRequests() {
	if m != nil {
		m.ScaleRequests.Inc()
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}

func (m *Metrics) IncrementSessionsEvicted(n int) {
	if m != nil {
		m.SessionsEvicted.Add(float64(n))
	}
}

func (m *Metrics) SetPending(status string, n int) {
	if m != nil {
		m.PendingRecords.WithLabelValues(status).Set(float64(n))
	}
}
