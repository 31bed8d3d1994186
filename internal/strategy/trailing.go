package strategy

import (
	"algo_fleet/internal/indicator"
	"algo_fleet/internal/models"
)

const (
	atrPeriod    = 14
	trailATRMult = 2.2
)

// trail обновляет экстремум цены и подтягивает стоп за ним.
// Stop moves only in the profit-protecting direction.
func trail(pos *models.PositionState, price, atr float64) {
	if pos.Direction == models.DirectionShort {
		if pos.LowestPrice <= 0 || price < pos.LowestPrice {
			pos.LowestPrice = price
		}
		tightenStop(pos, pos.LowestPrice+trailATRMult*atr)
		return
	}
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}
	tightenStop(pos, pos.HighestPrice-trailATRMult*atr)
}

// tightenStop accepts the candidate only if it improves the stop.
// For SHORT a zero stop means "not set yet".
func tightenStop(pos *models.PositionState, candidate float64) {
	if !indicator.Defined(candidate) {
		return
	}
	if pos.Direction == models.DirectionShort {
		if pos.StopLoss <= 0 || candidate < pos.StopLoss {
			pos.StopLoss = candidate
		}
		return
	}
	if candidate > pos.StopLoss {
		pos.StopLoss = candidate
	}
}

func lastATR(w models.MarketWindow) (float64, error) {
	atr, err := indicator.ATR(w.Highs(), w.Lows(), w.Closes(), atrPeriod)
	if err != nil {
		return 0, err
	}
	return indicator.Last(atr), nil
}

// atrInitialStop: entry ∓ 2.2×ATR, 0 если ATR ещё не посчитан.
func atrInitialStop(dir models.Direction, entry float64, w models.MarketWindow) float64 {
	atr, err := lastATR(w)
	if err != nil || !indicator.Defined(atr) || entry <= 0 {
		return 0
	}
	if dir == models.DirectionShort {
		return entry + trailATRMult*atr
	}
	stop := entry - trailATRMult*atr
	if stop < 0 {
		return 0
	}
	return stop
}

func validPrice(p float64) bool {
	return indicator.Defined(p) && p > 0
}
