package db

import (
	"context"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/config"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/logger"
	"github.com/redis/go-redis/v9"
)

var pingRedisFn = func(ctx context.Context, c *redis.Client) error { return c.Ping(ctx).Err() }

// ConnectRedis returns nil when no address is configured. An unreachable
// server is logged and the client kept; go-redis redials on demand.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DialTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pingRedisFn(ctx, client); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, event fan-out degraded")
	}
	return client
}
