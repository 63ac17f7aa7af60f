//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/cache"
	"github.com/GIL794/algorand-ai-contract-creator/internal/config"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
)

func TestCompileCache(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "docker.io/redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := cache.Connect(ctx, config.RedisConfig{Addr: endpoint}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	c := cache.NewCompileCache(client, time.Minute, zap.NewNop())

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := ledger.CompileResult{Hash: "HASH", Bytecode: []byte{8, 0x81, 1, 0x43}}
	require.NoError(t, c.Set(ctx, "k", want))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, "contractor:compile:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Set(ctx, "contractor:compile:bad", "{", 0).Err())
	_, ok, err = c.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)
}
