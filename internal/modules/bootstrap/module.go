package bootstrap

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/bootstrap/service"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/runner"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(cfg *config.Config, m runner.MarketProvider, bots runner.BotStore, n runner.Notifier, log *zap.Logger) *service.Warmuper {
				return service.NewWarmuper(m, bots, n, log, cfg.Market.WarmupWorkers)
			},
		),
	)
}
