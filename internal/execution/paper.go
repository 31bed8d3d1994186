// Package execution: исполнение торговых намерений. Живой роутинг ордеров
// не реализован, есть только бумажный исполнитель.
package execution

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/models"
)

const (
	ModePaper      = "PAPER_TRADING"
	ModeProduction = "PRODUCTION"
)

var ErrLiveTradingUnsupported = errors.New("live order routing is not available")

// CheckMode fails for any mode other than paper trading.
func CheckMode(mode string) error {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "", ModePaper:
		return nil
	case ModeProduction:
		return errors.Wrapf(ErrLiveTradingUnsupported, "mode %s", ModeProduction)
	default:
		return errors.Errorf("unknown execution mode %q", mode)
	}
}

type paperPosition struct {
	Side       models.Direction
	EntryPrice float64
	Stop       float64
	OrderID    string
	OpenedAt   time.Time
}

// Paper fills every intent immediately at the intent price.
type Paper struct {
	log *zap.Logger
	now func() time.Time

	mu        sync.Mutex
	positions map[int64]*paperPosition
}

func NewPaper(log *zap.Logger) *Paper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Paper{
		log:       log.Named("paper"),
		now:       time.Now,
		positions: make(map[int64]*paperPosition),
	}
}

func (p *Paper) Open(ctx context.Context, in models.OrderIntent) (models.Fill, error) {
	if err := validIntent(in); err != nil {
		return models.Fill{}, err
	}
	if in.Side != models.DirectionLong && in.Side != models.DirectionShort {
		return models.Fill{}, errors.Errorf("open: unsupported side %q", in.Side)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// источник истины: позиция раннера; остаток от прошлого раннера того же бота заменяем
	if cur, ok := p.positions[in.BotID]; ok {
		p.log.Warn("paper position replaced",
			zap.Int64("bot_id", in.BotID),
			zap.String("old_side", string(cur.Side)),
			zap.String("old_order_id", cur.OrderID),
		)
	}

	fill := models.Fill{OrderID: uuid.NewString(), Filled: true, Price: in.Price, At: p.now()}
	p.positions[in.BotID] = &paperPosition{Side: in.Side, EntryPrice: in.Price, OrderID: fill.OrderID, OpenedAt: fill.At}

	p.log.Info("paper open",
		zap.Int64("bot_id", in.BotID),
		zap.String("symbol", in.Symbol),
		zap.String("side", string(in.Side)),
		zap.Float64("price", in.Price),
		zap.Int("leverage", in.Leverage),
		zap.String("order_id", fill.OrderID),
	)
	return fill, nil
}

func (p *Paper) Close(ctx context.Context, in models.OrderIntent) (models.Fill, error) {
	if err := validIntent(in); err != nil {
		return models.Fill{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.positions[in.BotID]; !ok {
		return models.Fill{}, errors.Errorf("bot %d has no open position", in.BotID)
	}
	delete(p.positions, in.BotID)

	fill := models.Fill{OrderID: uuid.NewString(), Filled: true, Price: in.Price, At: p.now()}
	p.log.Info("paper close",
		zap.Int64("bot_id", in.BotID),
		zap.String("symbol", in.Symbol),
		zap.Float64("price", in.Price),
		zap.String("reason", in.Reason),
		zap.String("order_id", fill.OrderID),
	)
	return fill, nil
}

func (p *Paper) UpdateStop(ctx context.Context, botID int64, symbol string, stop float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[botID]
	if !ok {
		return errors.Errorf("bot %d has no open position", botID)
	}
	pos.Stop = stop
	p.log.Debug("paper stop", zap.Int64("bot_id", botID), zap.String("symbol", symbol), zap.Float64("stop", stop))
	return nil
}

// Stop returns the last stop registered for the bot's paper position.
func (p *Paper) Stop(botID int64) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[botID]
	if !ok {
		return 0, false
	}
	return pos.Stop, true
}

func validIntent(in models.OrderIntent) error {
	if in.Symbol == "" {
		return errors.New("order intent without symbol")
	}
	if in.Price <= 0 {
		return errors.Errorf("order intent for %s: price must be positive, got %v", in.Symbol, in.Price)
	}
	return nil
}
