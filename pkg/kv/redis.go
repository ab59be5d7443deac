package kv

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("kv",
	fx.Provide(NewRedisClient),
)

// NewRedisClient returns nil when REDIS_ADDR is unset; callers fall back to in-process implementations.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("redis disabled, using in-process queue and limiter")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
			}
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
