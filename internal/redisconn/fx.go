package redisconn

import (
	"context"

	"github.com/devmarvs/backoffice/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New returns a redis client, or nil when no address is configured. Callers
// treat a nil client as "locking disabled".
func New(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unreachable, continuing without it", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return client
}

var Module = fx.Module("redisconn",
	fx.Provide(New),
)
