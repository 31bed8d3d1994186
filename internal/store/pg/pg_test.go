package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"

	"algo_fleet/internal/models"
	"algo_fleet/internal/store"
	"algo_fleet/pkg/db"
)

// Интеграционный тест: нужен живой Postgres в FLEET_TEST_PG_DSN.
func openTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FLEET_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("FLEET_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	s := New(db.NewPgTxManager(pool))
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE bot_config, trades, logs RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestPgBots(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, &models.BotConfig{ID: 10, Symbol: "BTC-USDT", StrategyName: "hybrid_trend", IsActive: true}); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	b := &models.BotConfig{Symbol: "ETH-USDT", Leverage: 3, StrategyName: "donchian"}
	if err := s.UpsertBot(ctx, b); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	if b.ID != 11 {
		t.Fatalf("id=%d, expected the sequence to continue after 10", b.ID)
	}

	active, err := s.ToggleActive(ctx, 10)
	if err != nil || active {
		t.Fatalf("ToggleActive: active=%v err=%v", active, err)
	}
	if _, err := s.GetBot(ctx, 99); !errors.Is(err, store.ErrBotNotFound) {
		t.Fatalf("GetBot missing: err=%v", err)
	}
	bots, err := s.ListBots(ctx)
	if err != nil || len(bots) != 2 || bots[0].IsActive {
		t.Fatalf("ListBots: %+v err=%v", bots, err)
	}
}

func TestPgTrades(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tr := &models.Trade{BotID: 1, Symbol: "BTC-USDT", Side: models.DirectionShort, EntryPrice: 100,
			ExitPrice: 99, PnL: 1, PnLPct: 0.01, Reason: "TP", ClosedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveTrade(ctx, tr); err != nil {
			t.Fatalf("SaveTrade: %v", err)
		}
	}
	got, err := s.ListTrades(ctx, 1, 2)
	if err != nil || len(got) != 2 || !got[0].ClosedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("ListTrades: %+v err=%v", got, err)
	}
	if err := s.AppendLog(ctx, &models.LogEntry{BotID: 1, Level: models.LevelError, Message: "boom", Timestamp: base}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
}
