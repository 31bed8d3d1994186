package models

import "time"

// Bar: одна OHLCV свеча.
type Bar struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MarketWindow is an ordered bar window, most recent bar last.
type MarketWindow struct {
	Symbol    string
	Timeframe string
	Bars      []Bar
}

func (w MarketWindow) Len() int { return len(w.Bars) }

// Last returns the most recent bar. ok=false on an empty window.
func (w MarketWindow) Last() (Bar, bool) {
	if len(w.Bars) == 0 {
		return Bar{}, false
	}
	return w.Bars[len(w.Bars)-1], true
}

// Prev returns the second-to-last bar.
func (w MarketWindow) Prev() (Bar, bool) {
	if len(w.Bars) < 2 {
		return Bar{}, false
	}
	return w.Bars[len(w.Bars)-2], true
}

func (w MarketWindow) Closes() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Close
	}
	return out
}

func (w MarketWindow) Highs() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.High
	}
	return out
}

func (w MarketWindow) Lows() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Low
	}
	return out
}

func (w MarketWindow) Volumes() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Volume
	}
	return out
}
