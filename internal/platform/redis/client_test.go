package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOptions(t *testing.T) {
	t.Run("pool settings override the URL defaults", func(t *testing.T) {
		opts, err := options(config.Redis{
			URL:          "redis://localhost:6379/2",
			PoolSize:     20,
			MinIdleConns: 4,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 4, opts.MinIdleConns)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
		assert.Equal(t, time.Second, opts.ReadTimeout)
	})

	t.Run("malformed URL", func(t *testing.T) {
		_, err := options(config.Redis{URL: "mysql://nope"})
		require.Error(t, err)
	})
}
