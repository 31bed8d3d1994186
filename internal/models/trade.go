package models

import "time"

// Trade: закрытая сделка. Создаётся только при закрытии, дальше не меняется.
type Trade struct {
	ID         int64     `json:"id"`
	BotID      int64     `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Side       Direction `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"` // per unit of size
	PnLPct     float64   `json:"pnl_pct"`
	Reason     string    `json:"reason"`
	ClosedAt   time.Time `json:"timestamp"`
}

// NewTrade builds the closed-trade record for a position exited at exitPrice.
func NewTrade(botID int64, symbol string, pos *PositionState, exitPrice float64, reason string, at time.Time) Trade {
	pnl := exitPrice - pos.EntryPrice
	if pos.Direction == DirectionShort {
		pnl = pos.EntryPrice - exitPrice
	}
	return Trade{
		BotID:      botID,
		Symbol:     symbol,
		Side:       pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		PnLPct:     pos.PnLPct(exitPrice),
		Reason:     reason,
		ClosedAt:   at,
	}
}
