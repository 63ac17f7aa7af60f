// Package cache keeps node compile results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/config"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
)

const keyPrefix = "contractor:compile:"

// Connect builds a client and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Connected to Redis", zap.String("address", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}

// CompileCache implements compiler.Cache.
type CompileCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCompileCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CompileCache {
	return &CompileCache{client: client, ttl: ttl, logger: logger.Named("compile_cache")}
}

func (c *CompileCache) Get(ctx context.Context, key string) (ledger.CompileResult, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger.CompileResult{}, false, nil
	}
	if err != nil {
		return ledger.CompileResult{}, false, fmt.Errorf("failed to read compile cache: %w", err)
	}

	var res ledger.CompileResult
	if err := json.Unmarshal(data, &res); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		return ledger.CompileResult{}, false, nil
	}
	return res, true, nil
}

func (c *CompileCache) Set(ctx context.Context, key string, res ledger.CompileResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode compile result: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write compile cache: %w", err)
	}
	return nil
}
