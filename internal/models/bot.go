package models

// BotConfig: определение бота из хранилища конфигурации.
// Раннер только читает её, меняет её внешний слой (dashboard / API).
type BotConfig struct {
	ID           int64  `json:"id" yaml:"id"`
	Symbol       string `json:"symbol" yaml:"symbol"`
	Leverage     int    `json:"leverage" yaml:"leverage"`
	StrategyName string `json:"strategy_name" yaml:"strategy_name"`
	IsActive     bool   `json:"is_active" yaml:"is_active"`
}

// EffectiveLeverage returns the configured leverage, 1 when unset.
func (b BotConfig) EffectiveLeverage() int {
	if b.Leverage < 1 {
		return 1
	}
	return b.Leverage
}

// SameDefinition reports whether two configs would build the same runner.
func (b BotConfig) SameDefinition(o BotConfig) bool {
	return b.ID == o.ID &&
		b.Symbol == o.Symbol &&
		b.EffectiveLeverage() == o.EffectiveLeverage() &&
		b.StrategyName == o.StrategyName
}
