package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"verigate/internal/admission"
	"verigate/internal/dispatch"
	"verigate/internal/health"
	jwttoken "verigate/internal/jwt_token"
	"verigate/internal/pending"
	"verigate/internal/platform/config"
	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/logger"
	"verigate/internal/platform/metrics"
	"verigate/internal/platform/postgres"
	redisclient "verigate/internal/platform/redis"
	"verigate/internal/providers"
	"verigate/internal/router"
	"verigate/internal/session"
	"verigate/internal/storage"
	httptransport "verigate/internal/transport/http"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/kafka"
	auditmemory "verigate/pkg/platform/audit/store/memory"
)

// sweepInterval drives session eviction and pending-record expiry.
const sweepInterval = 30 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Routing logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("verigate exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel)
	if cfg.UsesDevSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mx := metrics.New(prometheus.DefaultRegisterer)

	deps, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close(log)

	auditRecent := auditmemory.NewSink(auditmemory.DefaultCapacity)
	sinks, auditReader, err := auditSinks(ctx, cfg, deps, auditRecent, log)
	if err != nil {
		return err
	}
	pubOpts := []audit.Option{audit.WithLogger(log)}
	for _, s := range sinks {
		pubOpts = append(pubOpts, audit.WithSink(s))
	}
	publisher := audit.NewPublisher(pubOpts...)

	store, err := openStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	writer := storage.NewWriter(store, storage.WithWriterLogger(log))

	registry := providers.NewRegistry()
	monitor, err := health.NewMonitor(cfg.Routing.Health,
		health.WithLogger(log),
		health.WithMetrics(mx),
		health.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	var controller *admission.Controller
	admissionOpts := []admission.Option{
		admission.WithLogger(log),
		admission.WithMetrics(mx),
		admission.WithAuditPublisher(publisher),
	}
	if cfg.Routing.AutoScale {
		admissionOpts = append(admissionOpts, admission.WithScaleListener(admission.ScaleListenerFunc(func(req admission.ScaleRequest) {
			if err := controller.Scale(ctx, req.Desired); err != nil {
				log.Error("auto scale failed", "desired", req.Desired, "error", err)
			}
		})))
	}
	controller, err = admission.NewController(cfg.Routing.Admission, admissionOpts...)
	if err != nil {
		return err
	}

	trails := session.NewStoreTrail(writer, log)
	sessions := session.NewTable(cfg.Routing.Session, registry, monitor,
		session.WithLogger(log),
		session.WithMetrics(mx),
		session.WithAuditPublisher(publisher),
		session.WithTrailSink(trails),
	)

	queue, err := pending.NewQueue(cfg.Routing.Pending, writer,
		pending.WithLogger(log),
		pending.WithMetrics(mx),
		pending.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}
	restored, err := queue.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore pending queue: %w", err)
	}

	rt, err := router.New(cfg.Routing.Router, registry, monitor, sessions, controller,
		router.WithPendingQueue(queue),
		router.WithLogger(log),
		router.WithMetrics(mx),
		router.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	table, err := providers.LoadFile(cfg.Server.ProvidersFile)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	for _, p := range table.Providers {
		if _, err := rt.RegisterProvider(ctx, p); err != nil {
			return fmt.Errorf("register provider %s: %w", p.ID, err)
		}
	}

	dispatcher := dispatch.New(registry, dispatch.WithLogger(log))
	probes := health.NewProbeRunner(monitor, dispatcher,
		health.WithProbeLogger(log),
		health.WithProbeMetrics(mx),
		health.WithProbeAuditPublisher(publisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	handler := httptransport.New(rt, dispatcher, queue, controller, log,
		httptransport.WithTrailReader(trails),
		httptransport.WithAuditReader(auditReader),
	)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:         log,
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		Gatherer:       prometheus.DefaultGatherer,
		AllowedOrigins: cfg.Server.CORSOrigins,
		HealthChecks:   deps.healthChecks(),
	}))

	log.Info("starting verigate",
		"addr", cfg.Server.Addr,
		"providers", len(table.Providers),
		"store", cfg.StoreBackend,
		"pending_restored", restored,
	)

	// Background workers outlive the HTTP server so the final flush of
	// writes and audit events still happens after shutdown starts.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	workers, workCtx := errgroup.WithContext(workCtx)
	workers.Go(func() error { return ignoreCanceled(writer.Run(workCtx)) })
	workers.Go(func() error { return ignoreCanceled(publisher.Run(workCtx)) })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(probes.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(sessions.Run(gctx, sweepInterval)) })
	g.Go(func() error { return ignoreCanceled(queue.Run(gctx, sweepInterval)) })
	g.Go(func() error { return httpserver.Serve(gctx, srv) })

	serveErr := g.Wait()
	cancelWork()
	if err := workers.Wait(); err != nil && serveErr == nil {
		serveErr = err
	}
	log.Info("verigate stopped")
	return serveErr
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// infra holds the optional external connections.
type infra struct {
	redis *redisclient.Client
	db    *sql.DB
	kafka *kafka.Sink
}

func openInfra(ctx context.Context, cfg config.Config) (*infra, error) {
	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return nil, err
	}
	return &infra{redis: rc, db: db}, nil
}

func (i *infra) healthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	return checks
}

func (i *infra) Close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("closing redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("closing postgres", "error", err)
		}
	}
}

func openStore(ctx context.Context, cfg config.Config, in *infra) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return storage.NewRedisStore(in.redis.Client), nil
	case config.BackendPostgres:
		s := storage.NewPostgresStore(in.db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure state schema: %w", err)
		}
		return s, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}
