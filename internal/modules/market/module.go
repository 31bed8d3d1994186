package market

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/market"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/runner"
)

func NewProvider(cfg *config.Config, log *zap.Logger) *market.Provider {
	client := market.NewClient(cfg.Market.RESTURL, cfg.Market.RPS, cfg.Market.HTTPTimeout)
	return market.NewProvider(client, nil, market.ProviderConfig{
		Timeframe:  cfg.Market.Timeframe,
		WindowSize: cfg.Market.WindowSize,
	}, log)
}

// RunStream подключает WebSocket-стример свечей к провайдеру.
func RunStream(lc fx.Lifecycle, cfg *config.Config, p *market.Provider, log *zap.Logger) error {
	if !cfg.Market.Stream {
		log.Info("market stream disabled, REST only")
		return nil
	}
	s, err := market.NewStream(cfg.Market.WSURL, cfg.Market.Timeframe, p.Append, log)
	if err != nil {
		return err
	}
	p.SetStream(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return nil
}

// Module поднимает провайдер окон свечей OKX (REST + стрим).
func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			NewProvider,
			func(p *market.Provider) runner.MarketProvider { return p },
		),
		fx.Invoke(RunStream),
	)
}
