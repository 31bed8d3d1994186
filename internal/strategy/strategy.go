package strategy

import "algo_fleet/internal/models"

// Params: то, чем стратегия сидится при создании раннера.
type Params struct {
	Symbol   string
	Leverage int
}

func (p Params) normalized() Params {
	if p.Leverage < 1 {
		p.Leverage = 1
	}
	return p
}

// Strategy: пара "оценщик входа + машина состояний позиции".
//
// Analyze and CheckExit never panic and never return errors: a failed
// computation becomes WAIT / HOLD with the failure in Reason.
type Strategy interface {
	Name() string

	// Analyze решает, открывать ли позицию. Без побочных эффектов.
	Analyze(w models.MarketWindow) models.Signal

	// CheckExit обновляет pos (экстремум цены, стоп, флаги TP) и
	// возвращает решение по открытой позиции.
	CheckExit(pos *models.PositionState, price float64, w models.MarketWindow) models.ExitDecision

	// InitialStop returns the stop to attach to a fresh position, 0 if unknown.
	InitialStop(dir models.Direction, entry float64, w models.MarketWindow) float64
}
