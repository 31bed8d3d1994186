// Package store: хранилище определений ботов и журнал сделок/логов.
// Реализации: store/sqlite (локально) и store/pg (Postgres).
package store

import (
	"context"

	"algo_fleet/internal/models"
)

type Store interface {
	Migrate(ctx context.Context) error

	GetBot(ctx context.Context, id int64) (*models.BotConfig, error)
	ListBots(ctx context.Context) ([]models.BotConfig, error)
	// UpsertBot creates the bot, or replaces its definition when b.ID exists.
	// A zero ID lets the store assign one; the assigned ID is written back.
	UpsertBot(ctx context.Context, b *models.BotConfig) error
	SetActive(ctx context.Context, id int64, active bool) error
	ToggleActive(ctx context.Context, id int64) (bool, error)

	SaveTrade(ctx context.Context, t *models.Trade) error
	AppendLog(ctx context.Context, e *models.LogEntry) error
	// ListTrades returns the newest trades first. botID 0 means all bots.
	ListTrades(ctx context.Context, botID int64, limit int) ([]models.Trade, error)

	Close() error
}

const DefaultTradesLimit = 50

// ClampLimit normalises a page size for ListTrades.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultTradesLimit
	}
	return limit
}
