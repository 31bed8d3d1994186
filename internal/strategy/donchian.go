package strategy

import (
	"fmt"

	"algo_fleet/internal/indicator"
	"algo_fleet/internal/models"
)

const DonchianName = "donchian"

// DonchianConfig: параметры стратегии.
type DonchianConfig struct {
	Period   int // N свечей канала, например 20
	TrendEma int // EMA-фильтр, например 50
}

// Donchian: пробой канала Дончиана с EMA-фильтром тренда.
type Donchian struct {
	params Params
	cfg    DonchianConfig
}

func NewDonchian(p Params, cfg DonchianConfig) *Donchian {
	if cfg.Period <= 0 {
		cfg.Period = 20
	}
	if cfg.TrendEma <= 0 {
		cfg.TrendEma = 50
	}
	return &Donchian{params: p, cfg: cfg}
}

// NewDonchianStrategy is the registry factory with default periods.
func NewDonchianStrategy(p Params) (Strategy, error) {
	return NewDonchian(p, DonchianConfig{}), nil
}

func (s *Donchian) Name() string { return DonchianName }

func (s *Donchian) minBars() int {
	// канал строится по свечам до последней
	return max(s.cfg.Period, s.cfg.TrendEma) + 1
}

func (s *Donchian) Analyze(w models.MarketWindow) (sig models.Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = models.Wait(fmt.Sprintf("Error in analyze: %v", r))
		}
	}()

	if w.Len() < s.minBars() {
		return models.Wait("Not enough data")
	}

	ema, err := indicator.EMA(w.Closes(), s.cfg.TrendEma)
	if err != nil {
		return models.Wait("Error in analyze: " + err.Error())
	}
	trend := indicator.Last(ema)
	if !indicator.Defined(trend) {
		return models.Wait("Indicators warming up")
	}

	n := w.Len()
	channel := w.Bars[n-1-s.cfg.Period : n-1]
	highs := make([]float64, len(channel))
	lows := make([]float64, len(channel))
	for i, b := range channel {
		highs[i], lows[i] = b.High, b.Low
	}
	dh, dl := maxSlice(highs), minSlice(lows)
	last, _ := w.Last()

	// фильтр тренда: торгуем только в сторону EMA
	switch {
	case last.Close > dh && last.Close > trend:
		return models.Signal{
			Action: models.ActionGoLong,
			Reason: fmt.Sprintf("Donchian breakout UP: close=%.5f > dh=%.5f & ema=%.5f", last.Close, dh, trend),
		}
	case last.Close < dl && last.Close < trend:
		return models.Signal{
			Action: models.ActionGoShort,
			Reason: fmt.Sprintf("Donchian breakout DOWN: close=%.5f < dl=%.5f & ema=%.5f", last.Close, dl, trend),
		}
	}
	return models.Wait("No signal")
}

func (s *Donchian) CheckExit(pos *models.PositionState, price float64, w models.MarketWindow) (dec models.ExitDecision) {
	defer func() {
		if r := recover(); r != nil {
			dec = models.Hold(fmt.Sprintf("Error: %v", r))
		}
	}()

	if pos == nil {
		return models.Hold("No active trade")
	}
	ema, err := indicator.EMA(w.Closes(), s.cfg.TrendEma)
	if err != nil {
		return models.Hold("Error: " + err.Error())
	}
	atr, err := lastATR(w)
	if err != nil {
		return models.Hold("Error: " + err.Error())
	}
	trend := indicator.Last(ema)
	if !indicator.Defined(trend) || !indicator.Defined(atr) {
		return models.Hold("Error: indicators not ready")
	}
	if !validPrice(price) {
		return models.Hold(fmt.Sprintf("Error: bad price %v", price))
	}

	switch pos.Direction {
	case models.DirectionLong:
		trail(pos, price, atr)
		if price < trend {
			return models.ExitDecision{Action: models.ExitClose, NewSL: pos.StopLoss, Reason: "EMA Trend Exit"}
		}
	case models.DirectionShort:
		trail(pos, price, atr)
		if price > trend {
			return models.ExitDecision{Action: models.ExitClose, NewSL: pos.StopLoss, Reason: "EMA Trend Exit"}
		}
	default:
		return models.Hold(fmt.Sprintf("Error: unknown direction %q", pos.Direction))
	}
	return models.ExitDecision{Action: models.ExitUpdateSL, NewSL: pos.StopLoss, Reason: "Trailing Update"}
}

func (s *Donchian) InitialStop(dir models.Direction, entry float64, w models.MarketWindow) float64 {
	return atrInitialStop(dir, entry, w)
}

// вспомогательные
func maxSlice(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minSlice(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
