package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/models"
)

// CandleSource: REST источник свечей (oldest first).
type CandleSource interface {
	Candles(ctx context.Context, instID, timeframe string, n int) ([]models.Bar, error)
}

type Subscriber interface {
	Subscribe(symbols ...string) error
}

type ProviderConfig struct {
	Timeframe  string
	WindowSize int
}

// Provider держит скользящее окно свечей на символ. Окно пополняется
// стримом; если в кэше нет полного свежего окна, идём в REST.
type Provider struct {
	src    CandleSource
	stream Subscriber
	cfg    ProviderConfig
	tf     time.Duration
	now    func() time.Time
	log    *zap.Logger

	mu      sync.RWMutex
	windows map[string][]models.Bar
}

func NewProvider(src CandleSource, stream Subscriber, cfg ProviderConfig, log *zap.Logger) *Provider {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1m"
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 300
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		src:     src,
		stream:  stream,
		cfg:     cfg,
		tf:      timeframeDuration(cfg.Timeframe),
		now:     time.Now,
		log:     log.Named("market"),
		windows: make(map[string][]models.Bar),
	}
}

// SetStream подключает стрим после создания (стрим сам пишет в провайдер).
func (p *Provider) SetStream(s Subscriber) {
	p.mu.Lock()
	p.stream = s
	p.mu.Unlock()
}

// Window returns the latest WindowSize closed bars of symbol, oldest first.
func (p *Provider) Window(ctx context.Context, symbol string) (models.MarketWindow, error) {
	if bars, ok := p.cached(symbol); ok {
		return p.window(symbol, bars), nil
	}

	bars, err := p.src.Candles(ctx, symbol, p.cfg.Timeframe, p.cfg.WindowSize)
	if err != nil {
		return models.MarketWindow{}, errors.Wrapf(err, "fetch candles %s", symbol)
	}
	if len(bars) == 0 {
		return models.MarketWindow{}, errors.Wrapf(ErrNoData, "%s", symbol)
	}

	p.mu.Lock()
	p.windows[symbol] = p.merge(p.windows[symbol], bars)
	bars = append([]models.Bar(nil), p.windows[symbol]...)
	stream := p.stream
	p.mu.Unlock()

	if stream != nil {
		if err := stream.Subscribe(symbol); err != nil {
			p.log.Warn("stream subscribe failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return p.window(symbol, bars), nil
}

func (p *Provider) window(symbol string, bars []models.Bar) models.MarketWindow {
	return models.MarketWindow{Symbol: symbol, Timeframe: p.cfg.Timeframe, Bars: bars}
}

// cached отдаёт копию окна, если оно полное и последняя свеча не устарела.
func (p *Provider) cached(symbol string) ([]models.Bar, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bars := p.windows[symbol]
	if len(bars) < p.cfg.WindowSize {
		return nil, false
	}
	if p.tf > 0 {
		// закрытая свеча [start, start+tf) должна быть последней или предпоследней
		last := bars[len(bars)-1].Start
		if p.now().Sub(last) >= 3*p.tf {
			return nil, false
		}
	}
	return append([]models.Bar(nil), bars...), true
}

// Append кладёт закрытую свечу из стрима в окно символа.
func (p *Provider) Append(symbol string, bar models.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.windows[symbol]
	if !ok {
		// окно ещё не засеяно REST-ом, одиночная свеча не поможет
		return
	}
	if n := len(cur); n > 0 && p.tf > 0 && bar.Start.Sub(cur[n-1].Start) > p.tf {
		// стрим пропустил свечу (например, на реконнекте): окно с дырой
		// выбрасываем, следующий Window пересеет его из REST
		p.log.Warn("candle gap in stream, dropping cached window",
			zap.String("symbol", symbol),
			zap.Time("last", cur[n-1].Start),
			zap.Time("got", bar.Start),
		)
		delete(p.windows, symbol)
		return
	}
	p.windows[symbol] = p.merge(cur, []models.Bar{bar})
}

// merge сливает свечи по времени начала: дубликаты заменяются, хвост
// обрезается до WindowSize.
func (p *Provider) merge(cur, add []models.Bar) []models.Bar {
	out := cur
	for _, b := range add {
		n := len(out)
		switch {
		case n == 0 || b.Start.After(out[n-1].Start):
			out = append(out, b)
		case b.Start.Equal(out[n-1].Start):
			out[n-1] = b
		default:
			i := sort.Search(n, func(i int) bool { return !out[i].Start.Before(b.Start) })
			if i < n && out[i].Start.Equal(b.Start) {
				out[i] = b
				continue
			}
			out = append(out, models.Bar{})
			copy(out[i+1:], out[i:])
			out[i] = b
		}
	}
	if extra := len(out) - p.cfg.WindowSize; extra > 0 {
		out = append([]models.Bar(nil), out[extra:]...)
	}
	return out
}
