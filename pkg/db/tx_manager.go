package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFunc получает транзакцию (или пул для реплики) и контекст с ней.
type TxFunc func(ctxTx context.Context, tx Transaction) error

type TxManager interface {
	RunMaster(ctx context.Context, fn TxFunc) error
	RunReplica(ctx context.Context, fn TxFunc) error
	RunRepeatableRead(ctx context.Context, fn TxFunc) error
}

// Transaction: общее у pgx.Tx и *pgxpool.Pool, чтобы запросы стора
// не знали, идут они в транзакции или напрямую в пул.
type Transaction interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Transaction = (pgx.Tx)(nil)
	_ Transaction = (*pgxpool.Pool)(nil)
)
