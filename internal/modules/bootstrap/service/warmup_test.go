package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"algo_fleet/internal/models"
)

type fakeBots struct {
	bots []models.BotConfig
	err  error
}

func (f *fakeBots) GetBot(ctx context.Context, id int64) (*models.BotConfig, error) {
	return nil, errors.New("not used")
}

func (f *fakeBots) ListBots(ctx context.Context) ([]models.BotConfig, error) {
	return f.bots, f.err
}

type fakeMarket struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]bool
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeMarket) Window(ctx context.Context, symbol string) (models.MarketWindow, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if f.fail[symbol] {
		return models.MarketWindow{}, errors.New("okx down")
	}
	return models.MarketWindow{Symbol: symbol, Bars: make([]models.Bar, 3)}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Sendf(format string, args ...any) {
	f.mu.Lock()
	f.msgs = append(f.msgs, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func TestWarmupActiveSymbolsOnce(t *testing.T) {
	bots := &fakeBots{}
	for i := 0; i < 10; i++ {
		bots.bots = append(bots.bots, models.BotConfig{ID: int64(i + 1), Symbol: fmt.Sprintf("S%d", i%5), IsActive: true})
	}
	bots.bots = append(bots.bots, models.BotConfig{ID: 99, Symbol: "IDLE", IsActive: false})

	m := &fakeMarket{calls: map[string]int{}, fail: map[string]bool{}}
	n := &fakeNotifier{}
	w := NewWarmuper(m, bots, n, nil, 2)

	if err := w.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if len(m.calls) != 5 || m.calls["IDLE"] != 0 {
		t.Fatalf("calls=%v", m.calls)
	}
	for sym, c := range m.calls {
		if c != 1 {
			t.Fatalf("%s fetched %d times", sym, c)
		}
	}
	if m.maxSeen.Load() > 2 {
		t.Fatalf("concurrency=%d, limit 2", m.maxSeen.Load())
	}
	if len(n.msgs) != 1 || n.msgs[0] != "✅ REST warmup: 5 символов" {
		t.Fatalf("msgs=%v", n.msgs)
	}
}

func TestWarmupReportsFailure(t *testing.T) {
	bots := &fakeBots{bots: []models.BotConfig{
		{ID: 1, Symbol: "A", IsActive: true},
		{ID: 2, Symbol: "B", IsActive: true},
	}}
	m := &fakeMarket{calls: map[string]int{}, fail: map[string]bool{"B": true}}
	n := &fakeNotifier{}

	err := NewWarmuper(m, bots, n, nil, 4).Warmup(context.Background())
	if err == nil || m.calls["A"] != 1 {
		t.Fatalf("err=%v calls=%v", err, m.calls)
	}
	if len(n.msgs) != 1 || !strings.HasPrefix(n.msgs[0], "⚠️ REST warmup: 1/2") {
		t.Fatalf("msgs=%v", n.msgs)
	}

	bots.err = errors.New("db down")
	if err := NewWarmuper(m, bots, nil, nil, 1).Warmup(context.Background()); err == nil {
		t.Fatalf("list error swallowed")
	}
}
