package strategy

import (
	"fmt"

	"algo_fleet/internal/indicator"
	"algo_fleet/internal/models"
)

const HybridTrendName = "hybrid_trend"

const (
	hybridWarmup = 200

	atrPctMin    = 0.002
	atrPctMax    = 0.025
	volumeFactor = 0.8
	adxMin       = 20.0
	rsiMid       = 50.0

	tp1Pct  = 0.01
	tp2Pct  = 0.018
	tp2Lock = 0.01 // стоп после TP2: entry ± 1%
)

// HybridTrend: трендовая стратегия: EMA-стек + ADX/RSI/MACD + пробой
// структуры на входе, ATR-трейлинг и две частичные фиксации на выходе.
type HybridTrend struct {
	params Params
}

func NewHybridTrend(p Params) (Strategy, error) {
	return &HybridTrend{params: p}, nil
}

func (h *HybridTrend) Name() string { return HybridTrendName }

// entrySnapshot: последние значения, по которым принимается решение о входе.
type entrySnapshot struct {
	Close     float64
	PrevHigh  float64
	PrevLow   float64
	Volume    float64
	EMA8      float64
	EMA21     float64
	EMA50     float64
	EMA200    float64
	ADX       float64
	RSI       float64
	MACDHist  float64
	ATR       float64
	VolumeSMA float64
}

type exitSnapshot struct {
	EMA20 float64
	EMA50 float64
	ATR   float64
}

func (h *HybridTrend) Analyze(w models.MarketWindow) (sig models.Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = models.Wait(fmt.Sprintf("Error in analyze: %v", r))
		}
	}()

	if w.Len() < hybridWarmup {
		return models.Wait("Not enough data")
	}
	snap, err := buildEntrySnapshot(w)
	if err != nil {
		return models.Wait("Error in analyze: " + err.Error())
	}
	return decideEntry(snap)
}

func buildEntrySnapshot(w models.MarketWindow) (entrySnapshot, error) {
	closes, highs, lows, vols := w.Closes(), w.Highs(), w.Lows(), w.Volumes()

	var s entrySnapshot
	last, _ := w.Last()
	prev, ok := w.Prev()
	if !ok {
		return s, indicator.ErrInsufficientData
	}
	s.Close, s.Volume = last.Close, last.Volume
	s.PrevHigh, s.PrevLow = prev.High, prev.Low

	emas := []struct {
		n   int
		dst *float64
	}{{8, &s.EMA8}, {21, &s.EMA21}, {50, &s.EMA50}, {200, &s.EMA200}}
	for _, e := range emas {
		series, err := indicator.EMA(closes, e.n)
		if err != nil {
			return s, err
		}
		*e.dst = indicator.Last(series)
	}

	adx, err := indicator.ADX(highs, lows, closes, 14)
	if err != nil {
		return s, err
	}
	s.ADX = indicator.Last(adx.ADX)

	rsi, err := indicator.RSI(closes, 14)
	if err != nil {
		return s, err
	}
	s.RSI = indicator.Last(rsi)

	macd, err := indicator.MACD(closes, 12, 26, 9)
	if err != nil {
		return s, err
	}
	s.MACDHist = indicator.Last(macd.Histogram)

	atr, err := indicator.ATR(highs, lows, closes, atrPeriod)
	if err != nil {
		return s, err
	}
	s.ATR = indicator.Last(atr)

	volSMA, err := indicator.SMA(vols, 20)
	if err != nil {
		return s, err
	}
	s.VolumeSMA = indicator.Last(volSMA)

	return s, nil
}

func decideEntry(s entrySnapshot) models.Signal {
	if !indicator.Defined(s.EMA200) {
		return models.Wait("Indicators warming up")
	}
	for _, v := range []float64{
		s.Close, s.PrevHigh, s.PrevLow, s.Volume,
		s.EMA8, s.EMA21, s.EMA50, s.ADX, s.RSI, s.MACDHist, s.ATR, s.VolumeSMA,
	} {
		if !indicator.Defined(v) {
			return models.Wait("Indicators warming up")
		}
	}

	atrPct := s.ATR / s.Close
	if !(atrPct >= atrPctMin && atrPct <= atrPctMax) {
		return models.Wait(fmt.Sprintf("ATR Filter: %.4f", atrPct))
	}

	if longTriggered(s) {
		return models.Signal{Action: models.ActionGoLong, Reason: "Long Trigger Met"}
	}
	if shortTriggered(s) {
		return models.Signal{Action: models.ActionGoShort, Reason: "Short Trigger Met"}
	}

	return models.Wait("No signal")
}

// longTriggered: все условия одновременно, без весов.
func longTriggered(s entrySnapshot) bool {
	return s.EMA8 > s.EMA21 &&
		s.Close > s.EMA50 &&
		s.EMA50 > s.EMA200 &&
		s.ADX >= adxMin &&
		s.RSI > rsiMid &&
		s.MACDHist > 0 &&
		volumeOK(s) &&
		s.Close > s.PrevHigh
}

func shortTriggered(s entrySnapshot) bool {
	return s.EMA8 < s.EMA21 &&
		s.Close < s.EMA50 &&
		s.EMA50 < s.EMA200 &&
		s.ADX >= adxMin &&
		s.RSI < rsiMid &&
		s.MACDHist < 0 &&
		volumeOK(s) &&
		s.Close < s.PrevLow
}

func volumeOK(s entrySnapshot) bool {
	return s.Volume > volumeFactor*s.VolumeSMA
}

func (h *HybridTrend) CheckExit(pos *models.PositionState, price float64, w models.MarketWindow) (dec models.ExitDecision) {
	defer func() {
		if r := recover(); r != nil {
			dec = models.Hold(fmt.Sprintf("Error: %v", r))
		}
	}()

	if pos == nil {
		return models.Hold("No active trade")
	}
	snap, err := buildExitSnapshot(w)
	if err != nil {
		return models.Hold("Error: " + err.Error())
	}
	return decideExit(pos, price, snap)
}

func buildExitSnapshot(w models.MarketWindow) (exitSnapshot, error) {
	var s exitSnapshot
	closes := w.Closes()

	ema20, err := indicator.EMA(closes, 20)
	if err != nil {
		return s, err
	}
	ema50, err := indicator.EMA(closes, 50)
	if err != nil {
		return s, err
	}
	atr, err := lastATR(w)
	if err != nil {
		return s, err
	}

	s.EMA20, s.EMA50, s.ATR = indicator.Last(ema20), indicator.Last(ema50), atr
	return s, nil
}

// decideExit: ядро машины состояний. Порядок проверок важен:
// трейлинг, потом разворот EMA20/EMA50, потом TP1, TP2.
// pos не трогается, пока входные данные не провалидированы.
func decideExit(pos *models.PositionState, price float64, s exitSnapshot) models.ExitDecision {
	if !indicator.Defined(s.EMA20) || !indicator.Defined(s.EMA50) || !indicator.Defined(s.ATR) {
		return models.Hold("Error: indicators not ready")
	}
	if !validPrice(price) {
		return models.Hold(fmt.Sprintf("Error: bad price %v", price))
	}

	switch pos.Direction {
	case models.DirectionLong:
		trail(pos, price, s.ATR)
		if s.EMA20 < s.EMA50 {
			return models.ExitDecision{Action: models.ExitClose, NewSL: pos.StopLoss, Reason: "EMA Cross Exit"}
		}
	case models.DirectionShort:
		trail(pos, price, s.ATR)
		if s.EMA20 > s.EMA50 {
			return models.ExitDecision{Action: models.ExitClose, NewSL: pos.StopLoss, Reason: "EMA Cross Exit"}
		}
	default:
		return models.Hold(fmt.Sprintf("Error: unknown direction %q", pos.Direction))
	}

	pnl := pos.PnLPct(price)

	if pnl >= tp1Pct && !pos.TP1Hit {
		pos.TP1Hit = true
		tightenStop(pos, pos.EntryPrice)
		return models.ExitDecision{Action: models.ExitUpdateSL, NewSL: pos.StopLoss, Reason: "TP1 Hit"}
	}

	if pnl >= tp2Pct && !pos.TP2Hit {
		pos.TP2Hit = true
		lock := pos.EntryPrice * (1 + tp2Lock)
		if pos.Direction == models.DirectionShort {
			lock = pos.EntryPrice * (1 - tp2Lock)
		}
		tightenStop(pos, lock)
		return models.ExitDecision{Action: models.ExitUpdateSL, NewSL: pos.StopLoss, Reason: "TP2 Hit"}
	}

	return models.ExitDecision{Action: models.ExitUpdateSL, NewSL: pos.StopLoss, Reason: "Trailing Update"}
}

func (h *HybridTrend) InitialStop(dir models.Direction, entry float64, w models.MarketWindow) float64 {
	return atrInitialStop(dir, entry, w)
}
