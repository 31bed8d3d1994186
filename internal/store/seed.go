package store

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"algo_fleet/internal/models"
)

type seedFile struct {
	Bots []seedBot `yaml:"bots"`
}

// seedBot: is_active указатель, чтобы отсутствие поля значило true.
type seedBot struct {
	ID           int64  `yaml:"id"`
	Symbol       string `yaml:"symbol"`
	Leverage     int    `yaml:"leverage"`
	StrategyName string `yaml:"strategy_name"`
	IsActive     *bool  `yaml:"is_active"`
}

// MarshalSeed renders bots in the seed file format.
func MarshalSeed(bots []models.BotConfig) ([]byte, error) {
	f := seedFile{Bots: make([]seedBot, 0, len(bots))}
	for _, b := range bots {
		active := b.IsActive
		f.Bots = append(f.Bots, seedBot{
			ID:           b.ID,
			Symbol:       b.Symbol,
			Leverage:     b.EffectiveLeverage(),
			StrategyName: b.StrategyName,
			IsActive:     &active,
		})
	}
	bs, err := yaml.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "marshal seed")
	}
	return bs, nil
}

// LoadSeed reads bot definitions from a YAML file.
func LoadSeed(path string) ([]models.BotConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read seed %s", path)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) ([]models.BotConfig, error) {
	var f seedFile
	if err := yaml.UnmarshalStrict(raw, &f); err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}

	out := make([]models.BotConfig, 0, len(f.Bots))
	seen := make(map[int64]bool, len(f.Bots))
	for i, b := range f.Bots {
		b.Symbol = strings.ToUpper(strings.TrimSpace(b.Symbol))
		b.StrategyName = strings.TrimSpace(b.StrategyName)
		// id обязателен: сид применяется на каждом старте и должен быть идемпотентным
		if b.ID <= 0 {
			return nil, errors.Errorf("seed bot #%d: id must be positive", i)
		}
		if seen[b.ID] {
			return nil, errors.Errorf("seed bot #%d: duplicate id %d", i, b.ID)
		}
		seen[b.ID] = true
		if b.Symbol == "" || b.StrategyName == "" {
			return nil, errors.Errorf("seed bot #%d: symbol and strategy_name are required", i)
		}
		cfg := models.BotConfig{
			ID:           b.ID,
			Symbol:       b.Symbol,
			Leverage:     b.Leverage,
			StrategyName: b.StrategyName,
			IsActive:     true,
		}
		if cfg.Leverage < 1 {
			cfg.Leverage = 1
		}
		if b.IsActive != nil {
			cfg.IsActive = *b.IsActive
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Seed inserts the definitions that s does not have yet. Existing rows are
// left alone so toggles made through the API survive a restart.
func Seed(ctx context.Context, s Store, bots []models.BotConfig) (int, error) {
	added := 0
	for i := range bots {
		_, err := s.GetBot(ctx, bots[i].ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrBotNotFound) {
			return added, errors.Wrapf(err, "seed bot %d", bots[i].ID)
		}
		if err := s.UpsertBot(ctx, &bots[i]); err != nil {
			return added, errors.Wrapf(err, "seed bot %d", bots[i].ID)
		}
		added++
	}
	return added, nil
}
