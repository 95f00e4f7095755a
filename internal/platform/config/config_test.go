package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verigate/pkg/domain-errors"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.UsesDevSigningKey())
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.Routing.Health.FailureThreshold)
	assert.Equal(t, 1, cfg.Routing.Health.DegradedFailureThreshold)
	assert.Equal(t, 15*time.Second, cfg.Routing.Health.ProbeInterval)
	assert.True(t, cfg.Routing.Router.SessionAffinity)
	assert.True(t, cfg.Routing.Router.StickySession)
	assert.Equal(t, 64, cfg.Routing.Admission.SlotsPerNode)
	assert.Equal(t, 72*time.Hour, cfg.Routing.Pending.TTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Server.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VERIGATE_ADDR", ":9090")
	t.Setenv("JWT_SIGNING_KEY", "prod-key")
	t.Setenv("HEALTH_CHECK_INTERVAL", "2s")
	t.Setenv("FAILURE_THRESHOLD", "5")
	t.Setenv("FAST_FAILOVER", "true")
	t.Setenv("STICKY_SESSION", "false")
	t.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("MIN_NODES", "2")
	t.Setenv("MAX_NODES", "6")
	t.Setenv("AUTO_SCALE", "true")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example.org")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.False(t, cfg.UsesDevSigningKey())
	assert.Equal(t, 2*time.Second, cfg.Routing.Health.ProbeInterval)
	assert.Equal(t, 5, cfg.Routing.Health.FailureThreshold)
	assert.True(t, cfg.Routing.Health.FastFailover)
	assert.False(t, cfg.Routing.Router.StickySession)
	assert.Equal(t, 10*time.Minute, cfg.Routing.Session.IdleTimeout)
	assert.Equal(t, 2, cfg.Routing.Admission.MinNodes)
	assert.Equal(t, 6, cfg.Routing.Admission.MaxNodes)
	assert.True(t, cfg.Routing.AutoScale)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://ops.example.org"}, cfg.Server.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("backend requires url", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		err := FromEnv().Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "etcd")
		assert.ErrorContains(t, FromEnv().Validate(), `unknown STORE_BACKEND "etcd"`)
	})

	t.Run("malformed threshold", func(t *testing.T) {
		t.Setenv("FAILURE_THRESHOLD", "many")
		assert.ErrorContains(t, FromEnv().Validate(), "failure threshold")
	})

	t.Run("sticky without affinity", func(t *testing.T) {
		t.Setenv("SESSION_AFFINITY", "false")
		assert.ErrorContains(t, FromEnv().Validate(), "router")
	})

	t.Run("node bounds", func(t *testing.T) {
		t.Setenv("MIN_NODES", "5")
		t.Setenv("MAX_NODES", "2")
		assert.ErrorContains(t, FromEnv().Validate(), "admission")
	})
}
