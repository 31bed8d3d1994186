package telemetry

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/config"
	"algo_fleet/pkg/logger"
	"algo_fleet/pkg/tracing"
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
}

func NewTracer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (opentracing.Tracer, error) {
	tracer, closeFn, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return nil, err
	}
	log.Info("tracer ready", zap.Bool("jaeger", cfg.Tracing.Enabled))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closeFn()
			return nil
		},
	})
	return tracer, nil
}

// Module поднимает zap-логгер и глобальный трейсер.
func Module() fx.Option {
	return fx.Module("telemetry",
		fx.Provide(
			NewLogger,
			NewTracer,
		),
		fx.Invoke(func(l *zap.Logger, _ opentracing.Tracer) {
			l.Info("telemetry initialized")
		}),
		fx.Invoke(func(lc fx.Lifecycle, l *zap.Logger) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					_ = l.Sync()
					return nil
				},
			})
		}),
	)
}
