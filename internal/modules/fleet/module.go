package fleet

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/bootstrap/service"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/runner"
	"algo_fleet/internal/strategy"
)

type DepsIn struct {
	fx.In

	Market   runner.MarketProvider
	Exec     runner.Executor
	Status   runner.StatusPublisher
	Journal  runner.Journal
	Notifier runner.Notifier
	Log      *zap.Logger
}

func NewDeps(in DepsIn) runner.Deps {
	return runner.Deps{
		Market:   in.Market,
		Exec:     in.Exec,
		Status:   in.Status,
		Journal:  in.Journal,
		Notifier: in.Notifier,
		Log:      in.Log,
	}
}

func NewBuilder(cfg *config.Config, bots runner.BotStore, deps runner.Deps) *runner.Builder {
	return runner.NewBuilder(bots, strategy.DefaultRegistry(), deps, runner.Config{
		CycleInterval:  cfg.Fleet.CycleInterval,
		FetchTimeout:   cfg.Fleet.FetchTimeout,
		PublishTimeout: cfg.Fleet.PublishTimeout,
	})
}

func NewSupervisor(cfg *config.Config, b *runner.Builder, bots runner.BotStore, log *zap.Logger, n runner.Notifier) *runner.Supervisor {
	return runner.NewSupervisor(b, bots, runner.SupervisorConfig{
		SyncInterval:   cfg.Fleet.SyncInterval,
		RestartBackoff: cfg.Fleet.RestartBackoff,
		MaxBackoff:     cfg.Fleet.MaxBackoff,
	}, log, n)
}

// RunFleet: прогрев окон, потом супервизор до остановки приложения.
func RunFleet(lc fx.Lifecycle, cfg *config.Config, sup *runner.Supervisor, wu *service.Warmuper, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := wu.Warmup(ctx); err != nil {
					log.Warn("warmup finished with error", zap.Error(err))
				}
				sup.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				log.Info("fleet stopped")
			case <-stopCtx.Done():
				log.Warn("fleet stop timed out")
			}
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("fleet",
		fx.Provide(
			NewDeps,
			NewBuilder,
			NewSupervisor,
		),
		fx.Invoke(RunFleet),
	)
}
