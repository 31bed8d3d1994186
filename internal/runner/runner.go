package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/models"
	"algo_fleet/internal/strategy"
)

var errEmptyWindow = errors.New("empty market window")

// MarketProvider отдаёт окно свечей по символу, последняя свеча в конце.
type MarketProvider interface {
	Window(ctx context.Context, symbol string) (models.MarketWindow, error)
}

// Executor: внешний исполнитель ордеров.
type Executor interface {
	Open(ctx context.Context, in models.OrderIntent) (models.Fill, error)
	Close(ctx context.Context, in models.OrderIntent) (models.Fill, error)
	UpdateStop(ctx context.Context, botID int64, symbol string, stop float64) error
}

// StatusPublisher is the live-state channel. Records expire after its TTL.
type StatusPublisher interface {
	Publish(ctx context.Context, botID int64, status models.BotStatus, at time.Time) error
}

// Journal: append-only сделки и логи.
type Journal interface {
	SaveTrade(ctx context.Context, t *models.Trade) error
	AppendLog(ctx context.Context, e *models.LogEntry) error
}

type Notifier interface {
	Sendf(format string, args ...any)
}

type Config struct {
	CycleInterval  time.Duration
	FetchTimeout   time.Duration
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CycleInterval <= 0 {
		c.CycleInterval = time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

// Deps: коллабораторы, общие для всех раннеров флота.
type Deps struct {
	Market   MarketProvider
	Exec     Executor
	Status   StatusPublisher
	Journal  Journal
	Notifier Notifier
	Log      *zap.Logger
	Now      func() time.Time
}

// Snapshot: состояние раннера для статуса / health.
type Snapshot struct {
	BotID      int64                 `json:"bot_id"`
	Symbol     string                `json:"symbol"`
	Strategy   string                `json:"strategy"`
	Running    bool                  `json:"running"`
	Position   *models.PositionState `json:"position,omitempty"`
	LastCycle  time.Time             `json:"last_cycle"`
	LastAction string                `json:"last_action,omitempty"`
	LastError  string                `json:"last_error,omitempty"`
	Restarts   int                   `json:"restarts"`
}

// Runner drives a single bot. Cycles never overlap, PositionState is owned
// by the runner and replaced as a whole after each decision.
type Runner struct {
	bot      models.BotConfig
	strategy strategy.Strategy
	deps     Deps
	cfg      Config
	log      *zap.Logger

	cycleMu sync.Mutex

	mu         sync.Mutex
	pos        *models.PositionState
	lastCycle  time.Time
	lastAction string
	lastErr    string
}

func New(bot models.BotConfig, s strategy.Strategy, deps Deps, cfg Config) *Runner {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		bot:      bot,
		strategy: s,
		deps:     deps,
		cfg:      cfg.withDefaults(),
		log: deps.Log.With(
			zap.Int64("bot_id", bot.ID),
			zap.String("symbol", bot.Symbol),
			zap.String("strategy", s.Name()),
		),
	}
}

func (r *Runner) Bot() models.BotConfig { return r.bot }

// Run крутит циклы до отмены ctx. Первый цикл сразу, дальше по тикеру.
// Отмена видна только между циклами: сам цикл идёт на контексте без отмены.
func (r *Runner) Run(ctx context.Context) {
	work := context.WithoutCancel(ctx)
	ticker := time.NewTicker(r.cfg.CycleInterval)
	defer ticker.Stop()

	r.log.Info("runner started", zap.Duration("interval", r.cfg.CycleInterval))
	for ctx.Err() == nil {
		r.RunCycle(work)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	r.publish(work, models.StatusStopped, r.deps.Now())
	if pos := r.Position(); pos != nil {
		r.log.Warn("runner stopped with open position",
			zap.String("direction", string(pos.Direction)),
			zap.Float64("entry", pos.EntryPrice),
			zap.Float64("stop", pos.StopLoss),
		)
	}
	r.log.Info("runner stopped")
}

// RunCycle выполняет один цикл. Никогда не паникует и не возвращает ошибку:
// сбой цикла пишется в журнал и публикуется как ERROR.
func (r *Runner) RunCycle(ctx context.Context) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	cycleID := uuid.NewString()
	span, ctx := opentracing.StartSpanFromContext(ctx, "bot.cycle")
	defer span.Finish()
	span.SetTag("bot_id", r.bot.ID)
	span.SetTag("symbol", r.bot.Symbol)
	span.SetTag("cycle_id", cycleID)

	log := r.log.With(zap.String("cycle_id", cycleID))

	action, err := r.safeStep(ctx, log)
	now := r.deps.Now()
	span.SetTag("action", action)

	r.mu.Lock()
	r.lastCycle = now
	r.lastAction = action
	if err != nil {
		r.lastErr = err.Error()
	} else {
		r.lastErr = ""
	}
	r.mu.Unlock()

	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
		log.Error("cycle failed", zap.Error(err))
		r.recordError(ctx, log, cycleID, err, now)
		r.publish(ctx, models.StatusError, now)
		return
	}
	r.publish(ctx, models.StatusRunning, now)
}

func (r *Runner) safeStep(ctx context.Context, log *zap.Logger) (action string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic in cycle: %v", rec)
		}
	}()
	return r.step(ctx, log)
}

func (r *Runner) step(ctx context.Context, log *zap.Logger) (string, error) {
	fctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	w, err := r.deps.Market.Window(fctx, r.bot.Symbol)
	cancel()
	if err != nil {
		return "", errors.Wrap(err, "fetch market window")
	}
	last, ok := w.Last()
	if !ok {
		return "", errEmptyWindow
	}

	if pos := r.Position(); pos != nil {
		return r.manage(ctx, log, pos, w, last)
	}
	return r.enter(ctx, log, w, last)
}

func (r *Runner) enter(ctx context.Context, log *zap.Logger, w models.MarketWindow, last models.Bar) (string, error) {
	sig := r.strategy.Analyze(w)
	log.Info("signal", zap.String("action", string(sig.Action)), zap.String("reason", sig.Reason))

	dir, ok := sig.Direction()
	if !ok {
		return string(sig.Action), nil
	}

	fill, err := r.deps.Exec.Open(ctx, models.OrderIntent{
		BotID:    r.bot.ID,
		Symbol:   r.bot.Symbol,
		Side:     dir,
		Price:    last.Close,
		Leverage: r.bot.EffectiveLeverage(),
		Reason:   sig.Reason,
	})
	if err != nil {
		return string(sig.Action), errors.Wrap(err, "open position")
	}
	if !fill.Filled {
		log.Warn("entry not filled", zap.String("order_id", fill.OrderID))
		return string(sig.Action), nil
	}

	stop := r.strategy.InitialStop(dir, fill.Price, w)
	pos := models.NewPositionState(dir, fill.Price, stop, fill.At)
	pos.EntryOrderID = fill.OrderID
	r.setPosition(pos)

	log.Info("position opened",
		zap.String("direction", string(dir)),
		zap.Float64("entry", fill.Price),
		zap.Float64("stop", stop),
		zap.String("order_id", fill.OrderID),
	)
	r.notify("🚀 [%s] bot #%d открыл %s @ %.6f SL=%.6f | %s",
		r.bot.Symbol, r.bot.ID, dir, fill.Price, stop, sig.Reason)

	if stop > 0 {
		if err := r.deps.Exec.UpdateStop(ctx, r.bot.ID, r.bot.Symbol, stop); err != nil {
			return string(sig.Action), errors.Wrap(err, "place initial stop")
		}
	}
	return string(sig.Action), nil
}

func (r *Runner) manage(ctx context.Context, log *zap.Logger, pos *models.PositionState, w models.MarketWindow, last models.Bar) (string, error) {
	// работаем с копией: Snapshot читает r.pos параллельно
	work := *pos
	prevSL := work.StopLoss
	dec := r.strategy.CheckExit(&work, last.Close, w)
	r.setPosition(&work)

	log.Info("exit decision",
		zap.String("action", string(dec.Action)),
		zap.String("reason", dec.Reason),
		zap.Float64("price", last.Close),
		zap.Float64("stop", work.StopLoss),
	)

	switch dec.Action {
	case models.ExitClose:
		fill, err := r.deps.Exec.Close(ctx, models.OrderIntent{
			BotID:    r.bot.ID,
			Symbol:   r.bot.Symbol,
			Side:     work.Direction,
			Price:    last.Close,
			Leverage: r.bot.EffectiveLeverage(),
			Reason:   dec.Reason,
		})
		if err != nil {
			return string(dec.Action), errors.Wrap(err, "close position")
		}
		if !fill.Filled {
			log.Warn("close not filled", zap.String("order_id", fill.OrderID))
			return string(dec.Action), nil
		}

		trade := models.NewTrade(r.bot.ID, r.bot.Symbol, &work, fill.Price, dec.Reason, fill.At)
		r.setPosition(nil)

		// сделка уже закрыта на бирже, сбой записи не должен ронять цикл
		if err := r.deps.Journal.SaveTrade(ctx, &trade); err != nil {
			log.Error("save trade failed", zap.Error(err))
		}
		log.Info("position closed",
			zap.Float64("exit", trade.ExitPrice),
			zap.Float64("pnl_pct", trade.PnLPct),
			zap.String("reason", trade.Reason),
		)
		r.notify("🏁 [%s] bot #%d закрыл %s @ %.6f PnL=%.2f%% | %s",
			r.bot.Symbol, r.bot.ID, trade.Side, trade.ExitPrice, trade.PnLPct*100, trade.Reason)

	case models.ExitUpdateSL:
		if dec.NewSL <= 0 {
			return string(dec.Action), nil
		}
		if err := r.deps.Exec.UpdateStop(ctx, r.bot.ID, r.bot.Symbol, dec.NewSL); err != nil {
			return string(dec.Action), errors.Wrap(err, "update stop")
		}
		if dec.Reason != "Trailing Update" || dec.NewSL != prevSL {
			r.notify("🛡 [%s] bot #%d SL -> %.6f | %s", r.bot.Symbol, r.bot.ID, dec.NewSL, dec.Reason)
		}

	case models.ExitHold:
	}
	return string(dec.Action), nil
}

func (r *Runner) recordError(ctx context.Context, log *zap.Logger, cycleID string, cause error, at time.Time) {
	entry := &models.LogEntry{
		BotID:     r.bot.ID,
		Level:     models.LevelError,
		Message:   cause.Error(),
		CycleID:   cycleID,
		Timestamp: at,
	}
	pctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()
	if err := r.deps.Journal.AppendLog(pctx, entry); err != nil {
		log.Error("persist error record failed", zap.Error(err), zap.String("record", entry.Message))
	}
}

func (r *Runner) publish(ctx context.Context, status models.BotStatus, at time.Time) {
	pctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()
	if err := r.deps.Status.Publish(pctx, r.bot.ID, status, at); err != nil {
		r.log.Error("publish status failed", zap.String("status", string(status)), zap.Error(err))
	}
}

func (r *Runner) notify(format string, args ...any) {
	if r.deps.Notifier == nil {
		return
	}
	r.deps.Notifier.Sendf(format, args...)
}

func (r *Runner) setPosition(p *models.PositionState) {
	r.mu.Lock()
	r.pos = p
	r.mu.Unlock()
}

// Position returns a copy of the open position, nil when flat.
func (r *Runner) Position() *models.PositionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos == nil {
		return nil
	}
	cp := *r.pos
	return &cp
}

// RestorePosition attaches a position carried over from a previous runner.
func (r *Runner) RestorePosition(p *models.PositionState) {
	if p == nil {
		return
	}
	cp := *p
	r.setPosition(&cp)
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		BotID:      r.bot.ID,
		Symbol:     r.bot.Symbol,
		Strategy:   r.strategy.Name(),
		LastCycle:  r.lastCycle,
		LastAction: r.lastAction,
		LastError:  r.lastErr,
	}
	if r.pos != nil {
		cp := *r.pos
		s.Position = &cp
	}
	return s
}

func (s Snapshot) String() string {
	pos := "flat"
	if s.Position != nil {
		pos = fmt.Sprintf("%s @ %.6f SL=%.6f", s.Position.Direction, s.Position.EntryPrice, s.Position.StopLoss)
	}
	state := "stopped"
	if s.Running {
		state = "running"
	}
	line := fmt.Sprintf("#%d %s [%s] %s | %s", s.BotID, s.Symbol, s.Strategy, state, pos)
	if s.LastError != "" {
		line += " | err: " + s.LastError
	}
	return line
}
