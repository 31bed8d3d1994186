package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"algo_fleet/internal/models"
)

type fakeSource struct {
	mu    sync.Mutex
	bars  []models.Bar
	err   error
	calls int
}

func (f *fakeSource) Candles(ctx context.Context, instID, timeframe string, n int) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.bars
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return append([]models.Bar(nil), out...), nil
}

type fakeSubscriber struct {
	mu   sync.Mutex
	syms []string
}

func (f *fakeSubscriber) Subscribe(symbols ...string) error {
	f.mu.Lock()
	f.syms = append(f.syms, symbols...)
	f.mu.Unlock()
	return nil
}

func minuteBars(from, n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := 100 + float64(from+i)
		out[i] = models.Bar{Start: t0.Add(time.Duration(from+i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func newTestProvider(src CandleSource, sub Subscriber, size int, now time.Time) *Provider {
	p := NewProvider(src, sub, ProviderConfig{Timeframe: "1m", WindowSize: size}, nil)
	p.now = func() time.Time { return now }
	return p
}

func TestProviderSeedsFromRESTThenServesCache(t *testing.T) {
	src := &fakeSource{bars: minuteBars(0, 10)}
	sub := &fakeSubscriber{}
	p := newTestProvider(src, sub, 5, t0.Add(10*time.Minute))
	ctx := context.Background()

	w, err := p.Window(ctx, "BTC-USDT-SWAP")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if w.Len() != 5 || w.Bars[0].Close != 105 || w.Timeframe != "1m" || w.Symbol != "BTC-USDT-SWAP" {
		t.Fatalf("window=%+v", w)
	}
	if len(sub.syms) != 1 || sub.syms[0] != "BTC-USDT-SWAP" {
		t.Fatalf("subscribed=%v", sub.syms)
	}

	// стрим докидывает свечу: окно сдвигается без REST
	p.Append("BTC-USDT-SWAP", minuteBars(10, 1)[0])
	w, err = p.Window(ctx, "BTC-USDT-SWAP")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("REST calls=%d, expected cache hit", src.calls)
	}
	if w.Len() != 5 || w.Bars[0].Close != 106 || w.Bars[4].Close != 110 {
		t.Fatalf("window after append: first=%v last=%v", w.Bars[0].Close, w.Bars[4].Close)
	}

	// копия: мутация результата не портит кэш
	w.Bars[4].Close = -1
	w2, _ := p.Window(ctx, "BTC-USDT-SWAP")
	if w2.Bars[4].Close != 110 {
		t.Fatalf("cache mutated through returned window")
	}
}

func TestProviderStaleCacheFallsBackToREST(t *testing.T) {
	src := &fakeSource{bars: minuteBars(0, 10)}
	p := newTestProvider(src, nil, 5, t0.Add(10*time.Minute))
	ctx := context.Background()

	if _, err := p.Window(ctx, "ETH-USDT-SWAP"); err != nil {
		t.Fatalf("Window: %v", err)
	}
	// стрим молчит 5 минут
	src.bars = minuteBars(0, 15)
	p.now = func() time.Time { return t0.Add(15 * time.Minute) }
	w, err := p.Window(ctx, "ETH-USDT-SWAP")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if src.calls != 2 || w.Bars[4].Close != 114 {
		t.Fatalf("calls=%d last=%v", src.calls, w.Bars[4].Close)
	}
}

func TestProviderPropagatesErrors(t *testing.T) {
	p := newTestProvider(&fakeSource{err: errors.New("connection reset")}, nil, 5, t0)
	if _, err := p.Window(context.Background(), "BTC-USDT-SWAP"); err == nil {
		t.Fatalf("expected error")
	}

	p = newTestProvider(&fakeSource{}, nil, 5, t0)
	if _, err := p.Window(context.Background(), "BTC-USDT-SWAP"); !errors.Is(err, ErrNoData) {
		t.Fatalf("err=%v, expected ErrNoData", err)
	}
}

func TestProviderMerge(t *testing.T) {
	p := newTestProvider(&fakeSource{}, nil, 4, t0)
	cur := minuteBars(0, 3) // 0,1,2

	// дубликат последней свечи заменяется
	upd := minuteBars(2, 1)
	upd[0].Close = 999
	got := p.merge(append([]models.Bar(nil), cur...), upd)
	if len(got) != 3 || got[2].Close != 999 {
		t.Fatalf("replace last: %+v", got)
	}

	// пропущенная свеча встаёт на место
	got = p.merge(append([]models.Bar(nil), minuteBars(0, 1)[0], minuteBars(2, 1)[0]), minuteBars(1, 1))
	if len(got) != 3 || !got[1].Start.Equal(t0.Add(time.Minute)) {
		t.Fatalf("insert: %+v", got)
	}

	// хвост обрезается до размера окна
	got = p.merge(append([]models.Bar(nil), cur...), minuteBars(3, 3))
	if len(got) != 4 || !got[0].Start.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("trim: first=%v len=%d", got[0].Start, len(got))
	}
}

func TestProviderIgnoresStreamBeforeSeed(t *testing.T) {
	src := &fakeSource{bars: minuteBars(0, 5)}
	p := newTestProvider(src, nil, 5, t0.Add(5*time.Minute))
	p.Append("SOL-USDT-SWAP", minuteBars(5, 1)[0])
	if _, err := p.Window(context.Background(), "SOL-USDT-SWAP"); err != nil {
		t.Fatalf("Window: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected REST seed, calls=%d", src.calls)
	}
}

func TestProviderReseedsAfterMissedCandle(t *testing.T) {
	src := &fakeSource{bars: minuteBars(0, 10)}
	p := newTestProvider(src, nil, 5, t0.Add(11*time.Minute))
	ctx := context.Background()

	if _, err := p.Window(ctx, "BTC-USDT-SWAP"); err != nil {
		t.Fatalf("Window: %v", err)
	}

	// свеча минуты 10 потерялась, стрим присылает сразу минуту 11
	src.bars = minuteBars(0, 12)
	p.Append("BTC-USDT-SWAP", minuteBars(11, 1)[0])

	w, err := p.Window(ctx, "BTC-USDT-SWAP")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("REST calls=%d, expected reseed after gap", src.calls)
	}
	for i := 1; i < w.Len(); i++ {
		if gap := w.Bars[i].Start.Sub(w.Bars[i-1].Start); gap != time.Minute {
			t.Fatalf("bars %d and %d are %v apart", i-1, i, gap)
		}
	}
	if last, _ := w.Last(); !last.Start.Equal(t0.Add(11 * time.Minute)) {
		t.Fatalf("last=%v", last.Start)
	}

	// после пересева стрим снова пополняет кэш
	p.now = func() time.Time { return t0.Add(12 * time.Minute) }
	p.Append("BTC-USDT-SWAP", minuteBars(12, 1)[0])
	if _, err := p.Window(ctx, "BTC-USDT-SWAP"); err != nil {
		t.Fatalf("Window: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("REST calls=%d, expected cache hit", src.calls)
	}
}
