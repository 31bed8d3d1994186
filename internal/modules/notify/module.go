package notify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/config"
	inotify "algo_fleet/internal/notify"
	"algo_fleet/internal/runner"
	"algo_fleet/internal/store"
)

// NewNotifier: Telegram, если заданы токен и чат, иначе лог.
func NewNotifier(cfg *config.Config, log *zap.Logger) (inotify.Notifier, *inotify.Telegram, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Info("telegram not configured, notifications go to the log")
		return inotify.NewLog(log), nil, nil
	}
	tg, err := inotify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if err != nil {
		return nil, nil, err
	}
	return tg, tg, nil
}

// RunTelegram регистрирует команды и запускает отправку/long-polling.
func RunTelegram(lc fx.Lifecycle, tg *inotify.Telegram, sup *runner.Supervisor, st store.Store) {
	if tg == nil {
		return
	}
	tg.Handle("status", StatusCommand(sup))
	tg.Handle("toggle", ToggleCommand(st, sup))
	tg.Handle("trades", TradesCommand(st))

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			tg.Start(ctx)
			tg.Send("🚀 algo_fleet запущен")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			NewNotifier,
			func(n inotify.Notifier) runner.Notifier { return n },
		),
		fx.Invoke(RunTelegram),
	)
}
