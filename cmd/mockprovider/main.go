// Command mockprovider is a stand-in verification provider for local runs.
// It answers dispatches and probes with configurable latency and failure
// rate so failover can be watched end to end.
package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/logger"
	"verigate/pkg/platform/httputil"
)

type config struct {
	Addr        string
	Name        string
	Latency     time.Duration
	FailureRate float64
	StatusCode  int
	Unhealthy   bool
	LogLevel    string
}

func configFromEnv() config {
	v := viper.New()
	v.SetDefault("MOCK_ADDR", ":9101")
	v.SetDefault("MOCK_NAME", "mock-provider")
	v.SetDefault("MOCK_LATENCY", 50*time.Millisecond)
	v.SetDefault("MOCK_FAILURE_RATE", 0.0)
	v.SetDefault("MOCK_FAILURE_STATUS", http.StatusServiceUnavailable)
	v.SetDefault("MOCK_UNHEALTHY", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()
	return config{
		Addr:        v.GetString("MOCK_ADDR"),
		Name:        v.GetString("MOCK_NAME"),
		Latency:     v.GetDuration("MOCK_LATENCY"),
		FailureRate: v.GetFloat64("MOCK_FAILURE_RATE"),
		StatusCode:  v.GetInt("MOCK_FAILURE_STATUS"),
		Unhealthy:   v.GetBool("MOCK_UNHEALTHY"),
		LogLevel:    v.GetString("LOG_LEVEL"),
	}
}

// provider serves the mock endpoints. The failure switch can be flipped at
// runtime through PUT /admin/failing.
type provider struct {
	cfg     config
	log     *slog.Logger
	failing atomic.Bool
	roll    func() float64
	served  atomic.Int64
}

func newProvider(cfg config, log *slog.Logger) *provider {
	p := &provider{cfg: cfg, log: log, roll: rand.Float64}
	p.failing.Store(cfg.Unhealthy)
	return p
}

func (p *provider) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/verify", p.verify)
	r.Get("/health", p.health)
	r.Put("/admin/failing", p.setFailing(true))
	r.Delete("/admin/failing", p.setFailing(false))
	return r
}

func (p *provider) verify(w http.ResponseWriter, r *http.Request) {
	if p.cfg.Latency > 0 {
		select {
		case <-time.After(p.cfg.Latency):
		case <-r.Context().Done():
			return
		}
	}
	n := p.served.Add(1)
	if p.failing.Load() || p.roll() < p.cfg.FailureRate {
		p.log.InfoContext(r.Context(), "failing verification",
			"request_id", r.Header.Get("X-Request-ID"),
			"status", p.cfg.StatusCode,
		)
		httputil.WriteJSON(w, p.cfg.StatusCode, map[string]string{"error": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"provider":   p.cfg.Name,
		"request_id": r.Header.Get("X-Request-ID"),
		"capability": r.Header.Get("X-Capability"),
		"verified":   true,
		"sequence":   n,
	})
}

func (p *provider) health(w http.ResponseWriter, _ *http.Request) {
	if p.failing.Load() {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "failing"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (p *provider) setFailing(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.failing.Store(on)
		p.log.InfoContext(r.Context(), "failure switch changed", "failing", on)
		w.WriteHeader(http.StatusNoContent)
	}
}

func main() {
	cfg := configFromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(cfg.Addr, newProvider(cfg, log).routes())
	log.Info("starting mock provider", "name", cfg.Name, "addr", cfg.Addr, "failure_rate", cfg.FailureRate)
	if err := httpserver.Serve(ctx, srv); err != nil {
		log.Error("mock provider stopped", "error", err)
		os.Exit(1)
	}
}
