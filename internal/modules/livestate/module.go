package livestate

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/livestate"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/runner"
)

// NewChannel: Redis, если включён, иначе память процесса.
func NewChannel(lc fx.Lifecycle, ctx context.Context, cfg *config.Config, log *zap.Logger) (livestate.Channel, error) {
	if !cfg.Redis.Enabled {
		log.Info("live state kept in memory", zap.Duration("ttl", cfg.Redis.TTL))
		return livestate.NewMemory(cfg.Redis.TTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ch := livestate.NewRedis(client, cfg.Redis.TTL)
	if err := ch.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.Redis.Addr)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("live state in redis", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	return ch, nil
}

func Module() fx.Option {
	return fx.Module("livestate",
		fx.Provide(
			NewChannel,
			func(ch livestate.Channel) runner.StatusPublisher { return ch },
		),
	)
}
