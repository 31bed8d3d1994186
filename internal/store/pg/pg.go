package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"algo_fleet/internal/models"
	"algo_fleet/internal/store"
	"algo_fleet/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS bot_config (
    id BIGSERIAL PRIMARY KEY,
    symbol TEXT NOT NULL,
    leverage INTEGER NOT NULL DEFAULT 1,
    strategy_name TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS trades (
    id BIGSERIAL PRIMARY KEY,
    bot_id BIGINT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    entry_price DOUBLE PRECISION NOT NULL,
    exit_price DOUBLE PRECISION,
    pnl DOUBLE PRECISION,
    pnl_pct DOUBLE PRECISION,
    reason TEXT,
    timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_bot_ts ON trades(bot_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS logs (
    id BIGSERIAL PRIMARY KEY,
    bot_id BIGINT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    cycle_id TEXT
);
`

type Manager interface {
	db.TxManager
	Conn() db.Transaction
	Close()
}

// Store: Postgres-реализация store.Store поверх менеджера транзакций.
type Store struct {
	tx Manager
}

func New(tx Manager) *Store {
	return &Store{tx: tx}
}

func (s *Store) Close() error {
	s.tx.Close()
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, schema)
		return errors.Wrap(err, "apply pg schema")
	})
}

const botColumns = `id, symbol, leverage, strategy_name, is_active`

func scanBot(row pgx.Row) (models.BotConfig, error) {
	var b models.BotConfig
	err := row.Scan(&b.ID, &b.Symbol, &b.Leverage, &b.StrategyName, &b.IsActive)
	return b, err
}

func (s *Store) GetBot(ctx context.Context, id int64) (*models.BotConfig, error) {
	b, err := scanBot(s.tx.Conn().QueryRow(ctx, `SELECT `+botColumns+` FROM bot_config WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
		}
		return nil, errors.Wrapf(err, "get bot %d", id)
	}
	return &b, nil
}

func (s *Store) ListBots(ctx context.Context) ([]models.BotConfig, error) {
	rows, err := s.tx.Conn().Query(ctx, `SELECT `+botColumns+` FROM bot_config ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list bots")
	}
	defer rows.Close()

	var out []models.BotConfig
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan bot")
		}
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "iterate bots")
}

func (s *Store) UpsertBot(ctx context.Context, b *models.BotConfig) error {
	lev := b.EffectiveLeverage()
	conn := s.tx.Conn()
	if b.ID == 0 {
		err := conn.QueryRow(ctx,
			`INSERT INTO bot_config (symbol, leverage, strategy_name, is_active) VALUES ($1, $2, $3, $4) RETURNING id`,
			b.Symbol, lev, b.StrategyName, b.IsActive).Scan(&b.ID)
		return errors.Wrap(err, "insert bot")
	}

	return s.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, `
INSERT INTO bot_config (id, symbol, leverage, strategy_name, is_active) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    symbol = EXCLUDED.symbol,
    leverage = EXCLUDED.leverage,
    strategy_name = EXCLUDED.strategy_name,
    is_active = EXCLUDED.is_active`,
			b.ID, b.Symbol, lev, b.StrategyName, b.IsActive)
		if err != nil {
			return errors.Wrapf(err, "upsert bot %d", b.ID)
		}
		// явные id из сида не двигают последовательность
		_, err = tx.Exec(ctx,
			`SELECT setval(pg_get_serial_sequence('bot_config', 'id'), GREATEST((SELECT MAX(id) FROM bot_config), 1))`)
		return errors.Wrap(err, "bump bot id sequence")
	})
}

func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.tx.Conn().Exec(ctx, `UPDATE bot_config SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return errors.Wrapf(err, "set active bot %d", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
	}
	return nil
}

func (s *Store) ToggleActive(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := s.tx.Conn().QueryRow(ctx,
		`UPDATE bot_config SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
	}
	if err != nil {
		return false, errors.Wrapf(err, "toggle bot %d", id)
	}
	return active, nil
}

func (s *Store) SaveTrade(ctx context.Context, t *models.Trade) error {
	err := s.tx.Conn().QueryRow(ctx, `
INSERT INTO trades (bot_id, symbol, side, entry_price, exit_price, pnl, pnl_pct, reason, timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		t.BotID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPct, t.Reason, t.ClosedAt.UTC(),
	).Scan(&t.ID)
	return errors.Wrapf(err, "save trade for bot %d", t.BotID)
}

func (s *Store) AppendLog(ctx context.Context, e *models.LogEntry) error {
	err := s.tx.Conn().QueryRow(ctx,
		`INSERT INTO logs (bot_id, timestamp, level, message, cycle_id) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.BotID, e.Timestamp.UTC(), string(e.Level), e.Message, e.CycleID,
	).Scan(&e.ID)
	return errors.Wrapf(err, "append log for bot %d", e.BotID)
}

func (s *Store) ListTrades(ctx context.Context, botID int64, limit int) ([]models.Trade, error) {
	rows, err := s.tx.Conn().Query(ctx, `
SELECT id, bot_id, symbol, side, entry_price, COALESCE(exit_price, 0), COALESCE(pnl, 0),
       COALESCE(pnl_pct, 0), COALESCE(reason, ''), timestamp
FROM trades
WHERE $1::bigint = 0 OR bot_id = $1
ORDER BY timestamp DESC, id DESC
LIMIT $2`, botID, store.ClampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list trades")
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t    models.Trade
			side string
		)
		if err := rows.Scan(&t.ID, &t.BotID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice,
			&t.PnL, &t.PnLPct, &t.Reason, &t.ClosedAt); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}
		t.Side = models.Direction(side)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate trades")
}

var _ store.Store = (*Store)(nil)
