package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subtrack/pkg/config"
)

// NewRedisClient connects to redis and verifies the connection before the app
// starts serving.
func NewRedisClient(cfg *config.Config, log *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Infof("connected to redis at %s db=%d", cfg.Redis.Addr, cfg.Redis.DB)
	return client, nil
}

func registerRedisClose(lc fx.Lifecycle, client *redis.Client, log *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing redis connection")
			return client.Close()
		},
	})
}
