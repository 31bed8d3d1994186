package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/bootstrap"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/modules/execution"
	"algo_fleet/internal/modules/fleet"
	"algo_fleet/internal/modules/health"
	"algo_fleet/internal/modules/livestate"
	"algo_fleet/internal/modules/market"
	"algo_fleet/internal/modules/notify"
	"algo_fleet/internal/modules/storage"
	"algo_fleet/internal/modules/telemetry"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.StopTimeout(cfg.Fleet.StopTimeout),
		config.Module(cfg),
		telemetry.Module(),
		storage.Module(),
		livestate.Module(),
		market.Module(),
		execution.Module(),
		notify.Module(),
		bootstrap.Module(),
		fleet.Module(),
		health.Module(),
	)
	app.Run()
}
