package runner

import (
	"context"

	"github.com/pkg/errors"

	"algo_fleet/internal/models"
	"algo_fleet/internal/store"
	"algo_fleet/internal/strategy"
)

// BotStore: чтение определений ботов.
type BotStore interface {
	GetBot(ctx context.Context, id int64) (*models.BotConfig, error)
	ListBots(ctx context.Context) ([]models.BotConfig, error)
}

// Builder собирает раннер: загрузка конфигурации + резолв стратегии.
type Builder struct {
	bots     BotStore
	registry *strategy.Registry
	deps     Deps
	cfg      Config
}

func NewBuilder(bots BotStore, registry *strategy.Registry, deps Deps, cfg Config) *Builder {
	return &Builder{bots: bots, registry: registry, deps: deps, cfg: cfg}
}

// Build loads the bot definition and resolves its strategy. Errors here are
// configuration errors unless IsConfigError says otherwise.
func (b *Builder) Build(ctx context.Context, botID int64) (*Runner, error) {
	bot, err := b.bots.GetBot(ctx, botID)
	if err != nil {
		return nil, errors.Wrapf(err, "load bot %d", botID)
	}
	return b.FromConfig(*bot)
}

func (b *Builder) FromConfig(bot models.BotConfig) (*Runner, error) {
	s, err := b.registry.Resolve(bot.StrategyName, strategy.Params{
		Symbol:   bot.Symbol,
		Leverage: bot.EffectiveLeverage(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bot %d", bot.ID)
	}
	return New(bot, s, b.deps, b.cfg), nil
}

// IsConfigError: ошибка, которую бессмысленно ретраить без изменения
// определения бота.
func IsConfigError(err error) bool {
	return errors.Is(err, store.ErrBotNotFound) || errors.Is(err, strategy.ErrUnknownStrategy)
}
