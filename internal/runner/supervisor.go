package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/models"
)

type SupervisorConfig struct {
	SyncInterval   time.Duration
	RestartBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c SupervisorConfig) withDefaults() SupervisorConfig {
	if c.SyncInterval <= 0 {
		c.SyncInterval = 15 * time.Second
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = 5 * time.Second
	}
	if c.MaxBackoff < c.RestartBackoff {
		c.MaxBackoff = c.RestartBackoff
	}
	return c
}

// Supervisor держит по раннеру на каждого активного бота.
type Supervisor struct {
	builder  *Builder
	bots     BotStore
	cfg      SupervisorConfig
	log      *zap.Logger
	notifier Notifier

	mu       sync.Mutex
	runners  map[int64]*managed
	stopping map[int64]*managed
	parked   map[int64]parkedPosition
	failed   map[int64]failure
	lastSync time.Time
}

// parkedPosition: открытая позиция остановленного раннера; подхватывается
// при следующем старте того же бота на том же символе.
type parkedPosition struct {
	bot models.BotConfig
	pos *models.PositionState
}

type managed struct {
	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	restarts int
}

// failure: ошибка конфигурации; повторяем только когда определение бота изменилось.
type failure struct {
	def models.BotConfig
	err string
	at  time.Time
}

func NewSupervisor(builder *Builder, bots BotStore, cfg SupervisorConfig, log *zap.Logger, n Notifier) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		builder:  builder,
		bots:     bots,
		cfg:      cfg.withDefaults(),
		log:      log.Named("supervisor"),
		notifier: n,
		runners:  make(map[int64]*managed),
		stopping: make(map[int64]*managed),
		parked:   make(map[int64]parkedPosition),
		failed:   make(map[int64]failure),
	}
}

// Run синхронизирует флот с хранилищем до отмены ctx, потом гасит все раннеры.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		if err := s.Sync(ctx); err != nil {
			s.log.Error("sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.StopAll(context.Background())
			return
		case <-ticker.C:
		}
	}
}

// Sync starts runners for active bots and stops runners for bots that were
// deactivated or removed.
func (s *Supervisor) Sync(ctx context.Context) error {
	bots, err := s.bots.ListBots(ctx)
	if err != nil {
		return errors.Wrap(err, "list bots")
	}

	seen := make(map[int64]bool, len(bots))
	for _, b := range bots {
		seen[b.ID] = true

		if !b.IsActive {
			s.mu.Lock()
			delete(s.failed, b.ID)
			s.mu.Unlock()
			if s.Running(b.ID) {
				s.Stop(b.ID)
			}
			continue
		}

		if s.Running(b.ID) {
			continue
		}
		if s.knownFailure(b) {
			continue
		}
		if err := s.Start(ctx, b.ID); err != nil {
			s.handleStartError(b, err)
		}
	}

	s.mu.Lock()
	var gone []int64
	for id := range s.runners {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	for id := range s.failed {
		if !seen[id] {
			delete(s.failed, id)
		}
	}
	for id, p := range s.parked {
		if !seen[id] {
			s.log.Warn("bot removed with an open position", zap.Int64("bot_id", id), zap.String("symbol", p.bot.Symbol))
			delete(s.parked, id)
		}
	}
	s.lastSync = time.Now()
	s.mu.Unlock()

	for _, id := range gone {
		s.log.Info("bot removed from store, stopping", zap.Int64("bot_id", id))
		s.Stop(id)
	}
	return nil
}

func (s *Supervisor) knownFailure(b models.BotConfig) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failed[b.ID]
	if !ok {
		return false
	}
	if f.def.SameDefinition(b) {
		return true
	}
	delete(s.failed, b.ID)
	return false
}

func (s *Supervisor) handleStartError(b models.BotConfig, err error) {
	if !IsConfigError(err) {
		// хранилище недоступно и т.п.: попробуем на следующем sync
		s.log.Error("start runner failed", zap.Int64("bot_id", b.ID), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.failed[b.ID] = failure{def: b, err: err.Error(), at: time.Now()}
	s.mu.Unlock()

	s.log.Error("bot configuration error", zap.Int64("bot_id", b.ID), zap.Error(err))
	if s.notifier != nil {
		s.notifier.Sendf("⚠️ bot #%d (%s) не запущен: %v", b.ID, b.Symbol, err)
	}
}

// Start builds and launches the runner for botID if it is not running yet.
func (s *Supervisor) Start(ctx context.Context, botID int64) error {
	if s.Running(botID) {
		return errors.Errorf("runner already running for bot %d", botID)
	}

	s.mu.Lock()
	_, stopping := s.stopping[botID]
	s.mu.Unlock()
	if stopping {
		// старый раннер ещё дорабатывает цикл
		return errors.Errorf("runner for bot %d is still stopping", botID)
	}

	r, err := s.builder.Build(ctx, botID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.runners[botID]; running {
		return errors.Errorf("runner already running for bot %d", botID)
	}
	if p, ok := s.parked[botID]; ok {
		delete(s.parked, botID)
		if p.bot.Symbol == r.Bot().Symbol {
			r.RestorePosition(p.pos)
			s.log.Info("open position restored",
				zap.Int64("bot_id", botID),
				zap.String("direction", string(p.pos.Direction)),
				zap.Float64("entry", p.pos.EntryPrice),
			)
		} else {
			s.log.Warn("parked position dropped, symbol changed",
				zap.Int64("bot_id", botID),
				zap.String("old_symbol", p.bot.Symbol),
				zap.String("new_symbol", r.Bot().Symbol),
			)
		}
	}

	// раннер живёт своим контекстом, отмена только через Stop
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m := &managed{runner: r, cancel: cancel, done: make(chan struct{})}
	s.runners[botID] = m
	delete(s.failed, botID)

	go s.supervise(rctx, m)

	s.log.Info("runner started",
		zap.Int64("bot_id", botID),
		zap.String("symbol", r.Bot().Symbol),
		zap.String("strategy", r.Bot().StrategyName),
	)
	return nil
}

// supervise перезапускает раннер после паники с экспоненциальным бэкоффом.
// Позиция остаётся в том же Runner, поэтому переживает рестарт.
func (s *Supervisor) supervise(ctx context.Context, m *managed) {
	defer s.retire(m)

	backoff := s.cfg.RestartBackoff
	for {
		if !runGuarded(ctx, m.runner, s.log) || ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		m.restarts++
		n := m.restarts
		m.mu.Unlock()

		s.log.Warn("runner crashed, restarting",
			zap.Int64("bot_id", m.runner.Bot().ID),
			zap.Int("restarts", n),
			zap.Duration("backoff", backoff),
		)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

// retire паркует открытую позицию и снимает раннер из stopping.
func (s *Supervisor) retire(m *managed) {
	bot := m.runner.Bot()
	pos := m.runner.Position()

	s.mu.Lock()
	if pos != nil {
		s.parked[bot.ID] = parkedPosition{bot: bot, pos: pos}
	}
	if s.stopping[bot.ID] == m {
		delete(s.stopping, bot.ID)
	}
	s.mu.Unlock()
	close(m.done)
}

func runGuarded(ctx context.Context, r *Runner, log *zap.Logger) (crashed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			crashed = true
			log.Error("runner panic", zap.Int64("bot_id", r.Bot().ID), zap.Any("panic", rec))
		}
	}()
	r.Run(ctx)
	return false
}

// Stop cancels the runner. The current cycle, if any, finishes first.
func (s *Supervisor) Stop(botID int64) bool {
	s.mu.Lock()
	m, ok := s.runners[botID]
	if ok {
		delete(s.runners, botID)
		s.stopping[botID] = m
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	// гасим вне мьютекса
	m.cancel()
	s.log.Info("runner stop requested", zap.Int64("bot_id", botID))
	return true
}

// StopAll cancels every runner and waits for them until ctx expires.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	all := make([]*managed, 0, len(s.runners))
	for id, m := range s.runners {
		all = append(all, m)
		delete(s.runners, id)
		s.stopping[id] = m
	}
	s.mu.Unlock()

	for _, m := range all {
		m.cancel()
	}
	for _, m := range all {
		select {
		case <-m.done:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) Running(botID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runners[botID]
	return ok
}

func (s *Supervisor) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Status: снимки раннеров, остановленных ботов с открытой позицией и ботов
// с ошибкой конфигурации, по id.
func (s *Supervisor) Status() []Snapshot {
	s.mu.Lock()
	byID := make(map[int64]Snapshot, len(s.runners)+len(s.parked)+len(s.failed))
	for id, m := range s.runners {
		snap := m.runner.Snapshot()
		snap.Running = true
		m.mu.Lock()
		snap.Restarts = m.restarts
		m.mu.Unlock()
		byID[id] = snap
	}
	for id, p := range s.parked {
		cp := *p.pos
		byID[id] = Snapshot{
			BotID:    id,
			Symbol:   p.bot.Symbol,
			Strategy: p.bot.StrategyName,
			Position: &cp,
		}
	}
	for id, f := range s.failed {
		snap, ok := byID[id]
		if !ok {
			snap = Snapshot{BotID: id, Symbol: f.def.Symbol, Strategy: f.def.StrategyName}
		}
		snap.LastCycle = f.at
		snap.LastError = f.err
		byID[id] = snap
	}
	s.mu.Unlock()

	out := make([]Snapshot, 0, len(byID))
	for _, snap := range byID {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })
	return out
}
