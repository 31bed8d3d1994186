package indicator

import (
	"math"

	"github.com/pkg/errors"
)

// RSI: индекс относительной силы по Уайлдеру.
func RSI(closes []float64, n int) ([]float64, error) {
	if err := checkPeriod("rsi", n); err != nil {
		return nil, err
	}
	if len(closes) < n+1 {
		return nil, errors.Wrapf(ErrInsufficientData, "rsi(%d): %d values", n, len(closes))
	}

	gains := nanSeries(len(closes))
	losses := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gains[i], losses[i] = 0, 0
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain, err := RMA(gains, n)
	if err != nil {
		return nil, errors.Wrap(err, "rsi gains")
	}
	avgLoss, err := RMA(losses, n)
	if err != nil {
		return nil, errors.Wrap(err, "rsi losses")
	}

	out := nanSeries(len(closes))
	for i := range closes {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		switch {
		case l == 0 && g == 0:
			out[i] = 50
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out, nil
}

// MACDResult holds the three MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD считает линию fast-slow, сигнальную EMA от неё и гистограмму.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if fast >= slow {
		return MACDResult{}, errors.Errorf("macd: fast %d must be < slow %d", fast, slow)
	}
	fastEMA, err := EMA(closes, fast)
	if err != nil {
		return MACDResult{}, errors.Wrap(err, "macd fast")
	}
	slowEMA, err := EMA(closes, slow)
	if err != nil {
		return MACDResult{}, errors.Wrap(err, "macd slow")
	}

	line := nanSeries(len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	sig, err := EMA(line, signal)
	if err != nil {
		return MACDResult{}, errors.Wrap(err, "macd signal")
	}

	hist := nanSeries(len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}, nil
}
