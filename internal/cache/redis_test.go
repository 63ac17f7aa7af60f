package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/cache"
)

func TestCompileCache_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	c := cache.NewCompileCache(client, time.Minute, zap.NewNop())
	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}
