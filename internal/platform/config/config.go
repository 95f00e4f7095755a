// Package config builds the process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"verigate/internal/admission"
	"verigate/internal/health"
	"verigate/internal/pending"
	"verigate/internal/router"
	"verigate/internal/session"
	dErrors "verigate/pkg/domain-errors"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	LogLevel      string
	ProvidersFile string
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string
}

// Routing groups the routing core settings.
type Routing struct {
	Health    health.Config
	Admission admission.Config
	Session   session.Config
	Router    router.Config
	Pending   pending.Config
	// AutoScale applies scale requests immediately instead of only
	// reporting them.
	AutoScale bool
}

// Redis configures the redis store backend.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres configures the postgres store backend and audit sink.
type Postgres struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Kafka configures audit shipping. Empty brokers disable it.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// Config is the full process configuration.
type Config struct {
	Server       Server
	Routing      Routing
	StoreBackend string
	Redis        Redis
	Postgres     Postgres
	Kafka        Kafka
}

func defaults(v *viper.Viper) {
	hc := health.DefaultConfig()
	ac := admission.DefaultConfig()
	rc := router.DefaultConfig()
	pc := pending.DefaultConfig()

	v.SetDefault("VERIGATE_ADDR", ":8080")
	v.SetDefault("JWT_SIGNING_KEY", devSigningKey)
	v.SetDefault("JWT_ISSUER", "verigate")
	v.SetDefault("JWT_AUDIENCE", "verigate-operators")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PROVIDERS_FILE", "providers.yaml")

	v.SetDefault("HEALTH_CHECK_INTERVAL", hc.ProbeInterval)
	v.SetDefault("PROBE_TIMEOUT", hc.ProbeTimeout)
	v.SetDefault("PROBE_CONCURRENCY", hc.ProbeConcurrency)
	v.SetDefault("FAILURE_THRESHOLD", hc.FailureThreshold)
	v.SetDefault("DEGRADED_FAILURE_THRESHOLD", hc.DegradedFailureThreshold)
	v.SetDefault("RECOVERY_THRESHOLD", hc.RecoveryThreshold)
	v.SetDefault("FAST_FAILOVER", hc.FastFailover)

	v.SetDefault("SESSION_AFFINITY", rc.SessionAffinity)
	v.SetDefault("STICKY_SESSION", rc.StickySession)
	v.SetDefault("MAX_ATTEMPTS", rc.MaxAttempts)
	v.SetDefault("SESSION_IDLE_TIMEOUT", session.DefaultConfig().IdleTimeout)

	v.SetDefault("MIN_NODES", ac.MinNodes)
	v.SetDefault("MAX_NODES", ac.MaxNodes)
	v.SetDefault("SLOTS_PER_NODE", ac.SlotsPerNode)
	v.SetDefault("AUTO_SCALE", false)

	v.SetDefault("PENDING_TTL", pc.TTL)
	v.SetDefault("PENDING_RETENTION", pc.Retention)

	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "verigate.audit")
}

// FromEnv builds the config from environment variables so main stays lean.
// Malformed numbers read as zero, so call Validate before use.
func FromEnv() Config {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	return Config{
		Server: Server{
			Addr:          v.GetString("VERIGATE_ADDR"),
			JWTSigningKey: v.GetString("JWT_SIGNING_KEY"),
			JWTIssuer:     v.GetString("JWT_ISSUER"),
			JWTAudience:   v.GetString("JWT_AUDIENCE"),
			LogLevel:      v.GetString("LOG_LEVEL"),
			ProvidersFile: v.GetString("PROVIDERS_FILE"),
			CORSOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Routing: Routing{
			Health: health.Config{
				FailureThreshold:         v.GetInt("FAILURE_THRESHOLD"),
				DegradedFailureThreshold: v.GetInt("DEGRADED_FAILURE_THRESHOLD"),
				RecoveryThreshold:        v.GetInt("RECOVERY_THRESHOLD"),
				FastFailover:             v.GetBool("FAST_FAILOVER"),
				ProbeInterval:            v.GetDuration("HEALTH_CHECK_INTERVAL"),
				ProbeTimeout:             v.GetDuration("PROBE_TIMEOUT"),
				ProbeConcurrency:         v.GetInt("PROBE_CONCURRENCY"),
			},
			Admission: admission.Config{
				MinNodes:     v.GetInt("MIN_NODES"),
				MaxNodes:     v.GetInt("MAX_NODES"),
				SlotsPerNode: v.GetInt("SLOTS_PER_NODE"),
			},
			Session: session.Config{IdleTimeout: v.GetDuration("SESSION_IDLE_TIMEOUT")},
			Router: router.Config{
				SessionAffinity: v.GetBool("SESSION_AFFINITY"),
				StickySession:   v.GetBool("STICKY_SESSION"),
				MaxAttempts:     v.GetInt("MAX_ATTEMPTS"),
			},
			Pending: pending.Config{
				TTL:       v.GetDuration("PENDING_TTL"),
				Retention: v.GetDuration("PENDING_RETENTION"),
			},
			AutoScale: v.GetBool("AUTO_SCALE"),
		},
		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		Redis: Redis{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Postgres: Postgres{
			URL:          v.GetString("DATABASE_URL"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DATABASE_MAX_IDLE_CONNS"),
		},
		Kafka: Kafka{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			AuditTopic: v.GetString("KAFKA_AUDIT_TOPIC"),
		},
	}
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c Config) UsesDevSigningKey() bool {
	return c.Server.JWTSigningKey == devSigningKey
}

// Validate checks every section and returns all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, dErrors.New(dErrors.CodeConfiguration, "VERIGATE_ADDR is required"))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, dErrors.New(dErrors.CodeConfiguration, "JWT_SIGNING_KEY is required"))
	}
	for name, err := range map[string]error{
		"health":    c.Routing.Health.Validate(),
		"admission": c.Routing.Admission.Validate(),
		"router":    c.Routing.Router.Validate(),
		"pending":   c.Routing.Pending.Validate(),
	} {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Routing.Session.IdleTimeout <= 0 {
		errs = append(errs, dErrors.New(dErrors.CodeConfiguration, "SESSION_IDLE_TIMEOUT must be positive"))
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, dErrors.New(dErrors.CodeConfiguration, "REDIS_URL is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, dErrors.New(dErrors.CodeConfiguration, "DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, dErrors.Newf(dErrors.CodeConfiguration, "unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, dErrors.New(dErrors.CodeConfiguration, "KAFKA_AUDIT_TOPIC is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
