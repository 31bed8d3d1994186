package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"algo_fleet/pkg/logger"
)

const dsnFormat = "postgres://%s:%s@%s:%d/%s?sslmode=disable"

type PoolConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int32
}

// ConnString returns DSN as is, or builds one from the separate fields.
func (c PoolConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(dsnFormat, c.User, c.Password, c.Host, c.Port, c.Database)
}

type PgTxManager struct {
	poolMaster *pgxpool.Pool
}

func NewPgTxManager(poolMaster *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{
		poolMaster: poolMaster,
	}
}

func (m *PgTxManager) Close() {
	m.poolMaster.Close()
}

func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(conf.ConnString())
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}
	if conf.MaxConns > 0 {
		pgCfg.MaxConns = conf.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pg pool")
	}
	return pool, nil
}

func (m *PgTxManager) RunMaster(ctx context.Context, fn TxFunc) error {
	options := pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted,
	}
	// то что запрос нужно выполнить на мастере еще не означает что это нужно выполнить в транзакции, может требоваться
	// просто согласованное чтение, например.
	return m.inTx(ctx, m.poolMaster, options, fn)
}

// RunReplica: реплики нет, читаем с мастера.
func (m *PgTxManager) RunReplica(ctx context.Context, fn TxFunc) error {
	return fn(ctx, m.poolMaster)
}

func (m *PgTxManager) RunRepeatableRead(ctx context.Context, fn TxFunc) error {
	options := pgx.TxOptions{
		IsoLevel: pgx.RepeatableRead,
	}
	return m.inTx(ctx, m.poolMaster, options, fn)
}

func (m *PgTxManager) Conn() Transaction {
	return m.poolMaster
}

func (m *PgTxManager) Ping(ctx context.Context) error {
	return m.poolMaster.Ping(ctx)
}

func (m *PgTxManager) inTx(
	ctx context.Context,
	pool *pgxpool.Pool,
	options pgx.TxOptions,
	f TxFunc,
) (err error) {
	tx, err := pool.BeginTx(ctx, options)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic in tx: %v", p)
			_ = tx.Rollback(ctx)
			panic(p) // fallthrough panic after rollback on caught panic
		} else if err != nil {
			_ = tx.Rollback(ctx) // if error during computations
		} else {
			err = errors.Wrap(tx.Commit(ctx), "failed to commit tx") // all good
		}
	}()

	if err = f(ctx, tx); err != nil {
		return errors.Wrap(err, "failed to run fn")
	}

	return nil
}

var _ TxManager = (*PgTxManager)(nil)
