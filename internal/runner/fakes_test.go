package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"algo_fleet/internal/models"
	"algo_fleet/internal/store"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func barsWindow(symbol string, closes ...float64) models.MarketWindow {
	w := models.MarketWindow{Symbol: symbol, Timeframe: "1m"}
	for i, c := range closes {
		w.Bars = append(w.Bars, models.Bar{
			Start: t0.Add(time.Duration(i) * time.Minute),
			Open:  c, High: c, Low: c, Close: c, Volume: 1,
		})
	}
	return w
}

type fakeMarket struct {
	mu    sync.Mutex
	w     models.MarketWindow
	err   error
	calls int
}

func (f *fakeMarket) Window(ctx context.Context, symbol string) (models.MarketWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.MarketWindow{}, f.err
	}
	return f.w, nil
}

func (f *fakeMarket) set(w models.MarketWindow) {
	f.mu.Lock()
	f.w = w
	f.mu.Unlock()
}

type fakeExec struct {
	mu        sync.Mutex
	openErr   error
	closeErr  error
	unfilled  bool
	opened    []models.OrderIntent
	closed    []models.OrderIntent
	stops     []float64
	stopErr   error
	fillPrice float64 // 0: по цене интента
}

func (f *fakeExec) fill(in models.OrderIntent, kind string, n int) models.Fill {
	price := in.Price
	if f.fillPrice > 0 {
		price = f.fillPrice
	}
	return models.Fill{
		OrderID: fmt.Sprintf("%s-%d", kind, n),
		Filled:  !f.unfilled,
		Price:   price,
		At:      t0,
	}
}

func (f *fakeExec) Open(ctx context.Context, in models.OrderIntent) (models.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return models.Fill{}, f.openErr
	}
	f.opened = append(f.opened, in)
	return f.fill(in, "open", len(f.opened)), nil
}

func (f *fakeExec) Close(ctx context.Context, in models.OrderIntent) (models.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return models.Fill{}, f.closeErr
	}
	f.closed = append(f.closed, in)
	return f.fill(in, "close", len(f.closed)), nil
}

func (f *fakeExec) UpdateStop(ctx context.Context, botID int64, symbol string, stop float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops = append(f.stops, stop)
	return nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses []models.BotStatus
	err      error
	panics   int // сколько первых вызовов паникуют
}

func (f *fakeStatus) Publish(ctx context.Context, botID int64, status models.BotStatus, at time.Time) error {
	f.mu.Lock()
	if f.panics > 0 {
		f.panics--
		f.mu.Unlock()
		panic("status channel exploded")
	}
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return f.err
}

func (f *fakeStatus) all() []models.BotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BotStatus(nil), f.statuses...)
}

func (f *fakeStatus) last() models.BotStatus {
	all := f.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

type fakeJournal struct {
	mu       sync.Mutex
	trades   []models.Trade
	logs     []models.LogEntry
	tradeErr error
	logErr   error
}

func (f *fakeJournal) SaveTrade(ctx context.Context, t *models.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tradeErr != nil {
		return f.tradeErr
	}
	f.trades = append(f.trades, *t)
	return nil
}

func (f *fakeJournal) AppendLog(ctx context.Context, e *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, *e)
	return nil
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

// stubStrategy отвечает заранее заданными решениями.
type stubStrategy struct {
	mu      sync.Mutex
	signal  models.Signal
	exit    func(pos *models.PositionState, price float64) models.ExitDecision
	stop    float64
	panicky bool
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Analyze(w models.MarketWindow) models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicky {
		panic("analyze blew up")
	}
	return s.signal
}

func (s *stubStrategy) CheckExit(pos *models.PositionState, price float64, w models.MarketWindow) models.ExitDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exit == nil {
		return models.Hold("no exit rule")
	}
	return s.exit(pos, price)
}

func (s *stubStrategy) InitialStop(dir models.Direction, entry float64, w models.MarketWindow) float64 {
	return s.stop
}

type fakeBots struct {
	mu       sync.Mutex
	bots     map[int64]models.BotConfig
	getCalls map[int64]int
	listErr  error
}

func newFakeBots(bots ...models.BotConfig) *fakeBots {
	f := &fakeBots{bots: make(map[int64]models.BotConfig), getCalls: make(map[int64]int)}
	for _, b := range bots {
		f.bots[b.ID] = b
	}
	return f
}

func (f *fakeBots) GetBot(ctx context.Context, id int64) (*models.BotConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls[id]++
	b, ok := f.bots[id]
	if !ok {
		return nil, errors.Wrapf(store.ErrBotNotFound, "id=%d", id)
	}
	return &b, nil
}

func (f *fakeBots) ListBots(ctx context.Context) ([]models.BotConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.BotConfig, 0, len(f.bots))
	for _, b := range f.bots {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBots) put(b models.BotConfig) {
	f.mu.Lock()
	f.bots[b.ID] = b
	f.mu.Unlock()
}

func (f *fakeBots) remove(id int64) {
	f.mu.Lock()
	delete(f.bots, id)
	f.mu.Unlock()
}

func (f *fakeBots) gets(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[id]
}
