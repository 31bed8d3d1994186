package models

import "time"

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// PositionState живёт ровно пока у бота открыта позиция.
// Принадлежит одному раннеру, циклы которого строго последовательны.
type PositionState struct {
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	HighestPrice float64   `json:"highest_price"`
	LowestPrice  float64   `json:"lowest_price"`
	StopLoss     float64   `json:"stop_loss"`
	TP1Hit       bool      `json:"tp1_hit"`
	TP2Hit       bool      `json:"tp2_hit"`
	OpenedAt     time.Time `json:"opened_at"`
	EntryOrderID string    `json:"entry_order_id,omitempty"`
}

// NewPositionState creates the state for a freshly filled entry.
func NewPositionState(dir Direction, entry, stop float64, openedAt time.Time) *PositionState {
	return &PositionState{
		Direction:    dir,
		EntryPrice:   entry,
		HighestPrice: entry,
		LowestPrice:  entry,
		StopLoss:     stop,
		OpenedAt:     openedAt,
	}
}

// PnLPct: нереализованный pnl в долях от цены входа.
func (p *PositionState) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Direction == DirectionShort {
		return (p.EntryPrice - price) / p.EntryPrice
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// ExitAction: решение по открытой позиции.
type ExitAction string

const (
	ExitHold     ExitAction = "HOLD"
	ExitUpdateSL ExitAction = "UPDATE_SL"
	ExitClose    ExitAction = "CLOSE"
)

type ExitDecision struct {
	Action ExitAction
	NewSL  float64
	Reason string
}

func Hold(reason string) ExitDecision { return ExitDecision{Action: ExitHold, Reason: reason} }
