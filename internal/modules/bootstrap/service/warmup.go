package service

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/runner"
)

// Warmuper заранее тянет окна свечей для активных ботов, чтобы первые
// циклы не упирались в REST разом.
type Warmuper struct {
	market runner.MarketProvider
	bots   runner.BotStore
	n      runner.Notifier
	log    *zap.Logger

	// ограничитель параллелизма, чтобы не словить rate limit
	sem chan struct{}
}

func NewWarmuper(market runner.MarketProvider, bots runner.BotStore, n runner.Notifier, log *zap.Logger, workers int) *Warmuper {
	if workers <= 0 {
		workers = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Warmuper{
		market: market,
		bots:   bots,
		n:      n,
		log:    log.Named("warmup"),
		sem:    make(chan struct{}, workers),
	}
}

// Warmup загружает окна по всем символам активных ботов. Возвращает первую
// ошибку; остальные символы догружаются независимо.
func (w *Warmuper) Warmup(ctx context.Context) error {
	bots, err := w.bots.ListBots(ctx)
	if err != nil {
		return errors.Wrap(err, "warmup: list bots")
	}

	set := make(map[string]struct{})
	for _, b := range bots {
		if b.IsActive {
			set[b.Symbol] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		loaded   int
	)
	for _, sym := range symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-w.sem }()

			win, err := w.market.Window(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.log.Warn("warmup failed", zap.String("symbol", sym), zap.Error(err))
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "warmup %s", sym)
				}
				return
			}
			loaded++
			w.log.Debug("warmup window", zap.String("symbol", sym), zap.Int("bars", win.Len()))
		}()
	}
	wg.Wait()

	w.log.Info("warmup done", zap.Int("symbols", len(symbols)), zap.Int("loaded", loaded))
	if firstErr != nil {
		w.notify("⚠️ REST warmup: %d/%d символов, ошибка: %v", loaded, len(symbols), firstErr)
		return firstErr
	}
	w.notify("✅ REST warmup: %d символов", loaded)
	return nil
}

func (w *Warmuper) notify(format string, args ...any) {
	if w.n != nil {
		w.n.Sendf(format, args...)
	}
}
