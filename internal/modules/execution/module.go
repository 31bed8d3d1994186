package execution

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/execution"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/runner"
)

// NewExecutor отказывает в старте для PRODUCTION: живого роутинга нет.
func NewExecutor(cfg *config.Config, log *zap.Logger) (runner.Executor, error) {
	if err := execution.CheckMode(cfg.Execution.Mode); err != nil {
		return nil, err
	}
	log.Info("paper trading executor", zap.String("mode", cfg.Execution.Mode))
	return execution.NewPaper(log), nil
}

func Module() fx.Option {
	return fx.Module("execution",
		fx.Provide(NewExecutor),
	)
}
