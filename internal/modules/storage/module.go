package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/runner"
	"algo_fleet/internal/store"
	"algo_fleet/internal/store/pg"
	"algo_fleet/internal/store/sqlite"
	"algo_fleet/pkg/db"
)

// Open выбирает драйвер, применяет схему и сид.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Storage.Driver {
	case "postgres":
		st, err = openPostgres(ctx, cfg)
	case "sqlite":
		st, err = sqlite.Open(cfg.Storage.Path)
	default:
		err = errors.Wrapf(store.ErrBadDriver, "%q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	if cfg.Storage.SeedFile != "" {
		bots, err := store.LoadSeed(cfg.Storage.SeedFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		added, err := store.Seed(ctx, st, bots)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		log.Info("seed applied", zap.String("file", cfg.Storage.SeedFile), zap.Int("bots", len(bots)), zap.Int("added", added))
	}

	log.Info("storage ready", zap.String("driver", cfg.Storage.Driver))
	return st, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (store.Store, error) {
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN:      cfg.Storage.DSN,
		MaxConns: cfg.Storage.MaxConns,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create poolMaster")
	}

	if err := poolMaster.Ping(ctx); err != nil {
		poolMaster.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return pg.New(db.NewPgTxManager(poolMaster)), nil
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			func(lc fx.Lifecycle, ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
				st, err := Open(ctx, cfg, log)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						return st.Close()
					},
				})
				return st, nil
			},
			func(st store.Store) runner.BotStore { return st },
			func(st store.Store) runner.Journal { return st },
		),
	)
}
