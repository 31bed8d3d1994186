package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/store"
)

func TestOpenSQLiteWithSeed(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "bots.yaml")
	if err := os.WriteFile(seed, []byte("bots:\n  - {id: 4, symbol: btc-usdt-swap, strategy_name: hybrid_trend}\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = filepath.Join(dir, "data", "trading.db")
	cfg.Storage.SeedFile = seed

	st, err := Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	b, err := st.GetBot(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if b.Symbol != "BTC-USDT-SWAP" || !b.IsActive || b.Leverage != 1 {
		t.Fatalf("bot=%+v", b)
	}
}

func TestOpenErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = "mongo"
	if _, err := Open(context.Background(), cfg, zap.NewNop()); !errors.Is(err, store.ErrBadDriver) {
		t.Fatalf("err=%v", err)
	}

	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "x.db")
	cfg.Storage.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Open(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("missing seed accepted")
	}
}
