package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // SQLite driver

	"algo_fleet/internal/models"
	"algo_fleet/internal/store"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS bot_config (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    leverage INTEGER NOT NULL DEFAULT 1,
    strategy_name TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_id INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL,
    pnl REAL,
    pnl_pct REAL,
    reason TEXT,
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_bot_ts ON trades(bot_id, timestamp);

CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_id INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    cycle_id TEXT
);
`

// Store: SQLite-реализация store.Store, по умолчанию data/db/trading.db.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // один писатель
	db.SetConnMaxLifetime(time.Hour)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "apply sqlite schema")
	}
	return nil
}

func (s *Store) GetBot(ctx context.Context, id int64) (*models.BotConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, leverage, strategy_name, is_active FROM bot_config WHERE id = ?`, id)

	var b models.BotConfig
	if err := row.Scan(&b.ID, &b.Symbol, &b.Leverage, &b.StrategyName, &b.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
		}
		return nil, errors.Wrapf(err, "get bot %d", id)
	}
	return &b, nil
}

func (s *Store) ListBots(ctx context.Context) ([]models.BotConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, leverage, strategy_name, is_active FROM bot_config ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list bots")
	}
	defer rows.Close()

	var out []models.BotConfig
	for rows.Next() {
		var b models.BotConfig
		if err := rows.Scan(&b.ID, &b.Symbol, &b.Leverage, &b.StrategyName, &b.IsActive); err != nil {
			return nil, errors.Wrap(err, "scan bot")
		}
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "iterate bots")
}

func (s *Store) UpsertBot(ctx context.Context, b *models.BotConfig) error {
	lev := b.EffectiveLeverage()
	if b.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO bot_config (symbol, leverage, strategy_name, is_active) VALUES (?, ?, ?, ?)`,
			b.Symbol, lev, b.StrategyName, b.IsActive)
		if err != nil {
			return errors.Wrap(err, "insert bot")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "bot id")
		}
		b.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO bot_config (id, symbol, leverage, strategy_name, is_active) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol = excluded.symbol,
    leverage = excluded.leverage,
    strategy_name = excluded.strategy_name,
    is_active = excluded.is_active`,
		b.ID, b.Symbol, lev, b.StrategyName, b.IsActive)
	return errors.Wrapf(err, "upsert bot %d", b.ID)
}

func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bot_config SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return errors.Wrapf(err, "set active bot %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
	}
	return nil
}

func (s *Store) ToggleActive(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin toggle")
	}
	defer func() { _ = tx.Rollback() }()

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM bot_config WHERE id = ?`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
	}
	if err != nil {
		return false, errors.Wrapf(err, "read bot %d", id)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE bot_config SET is_active = ? WHERE id = ?`, !active, id); err != nil {
		return false, errors.Wrapf(err, "toggle bot %d", id)
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit toggle")
	}
	return !active, nil
}

func (s *Store) SaveTrade(ctx context.Context, t *models.Trade) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO trades (bot_id, symbol, side, entry_price, exit_price, pnl, pnl_pct, reason, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.BotID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPct, t.Reason, formatTime(t.ClosedAt))
	if err != nil {
		return errors.Wrapf(err, "save trade for bot %d", t.BotID)
	}
	if id, err := res.LastInsertId(); err == nil {
		t.ID = id
	}
	return nil
}

func (s *Store) AppendLog(ctx context.Context, e *models.LogEntry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (bot_id, timestamp, level, message, cycle_id) VALUES (?, ?, ?, ?, ?)`,
		e.BotID, formatTime(e.Timestamp), string(e.Level), e.Message, e.CycleID)
	if err != nil {
		return errors.Wrapf(err, "append log for bot %d", e.BotID)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (s *Store) ListTrades(ctx context.Context, botID int64, limit int) ([]models.Trade, error) {
	q := `SELECT id, bot_id, symbol, side, entry_price, COALESCE(exit_price, 0), COALESCE(pnl, 0),
       COALESCE(pnl_pct, 0), COALESCE(reason, ''), timestamp
FROM trades`
	args := []any{}
	if botID != 0 {
		q += ` WHERE bot_id = ?`
		args = append(args, botID)
	}
	q += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, store.ClampLimit(limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list trades")
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t    models.Trade
			side string
			ts   string
		)
		if err := rows.Scan(&t.ID, &t.BotID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice,
			&t.PnL, &t.PnLPct, &t.Reason, &ts); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}
		t.Side = models.Direction(side)
		t.ClosedAt = parseTime(ts)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate trades")
}

// ListLogs returns the newest log records of a bot first.
func (s *Store) ListLogs(ctx context.Context, botID int64, limit int) ([]models.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, bot_id, timestamp, level, message, COALESCE(cycle_id, '')
FROM logs WHERE bot_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, botID, store.ClampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list logs")
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		var (
			e     models.LogEntry
			ts    string
			level string
		)
		if err := rows.Scan(&e.ID, &e.BotID, &ts, &level, &e.Message, &e.CycleID); err != nil {
			return nil, errors.Wrap(err, "scan log")
		}
		e.Level = models.LogLevel(level)
		e.Timestamp = parseTime(ts)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate logs")
}

// время храним текстом UTC RFC3339Nano: сортируется лексикографически
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ store.Store = (*Store)(nil)
