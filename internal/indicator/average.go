package indicator

import "github.com/pkg/errors"

// SMA: простое скользящее среднее.
func SMA(src []float64, n int) ([]float64, error) {
	if err := checkPeriod("sma", n); err != nil {
		return nil, err
	}
	if len(src) < n {
		return nil, errors.Wrapf(ErrInsufficientData, "sma(%d): %d values", n, len(src))
	}

	out := nanSeries(len(src))
	sum := 0.0
	for i, v := range src {
		sum += v
		if i >= n {
			sum -= src[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out, nil
}

// EMA seeds with the SMA of the first n defined values, then applies
// alpha = 2/(n+1).
func EMA(src []float64, n int) ([]float64, error) {
	if err := checkPeriod("ema", n); err != nil {
		return nil, err
	}
	out, err := smoothed(src, n, 2.0/(float64(n)+1))
	if err != nil {
		return nil, errors.Wrapf(err, "ema(%d)", n)
	}
	return out, nil
}

// RMA: сглаживание Уайлдера (alpha = 1/n), на нём держатся RSI, ATR и ADX.
func RMA(src []float64, n int) ([]float64, error) {
	if err := checkPeriod("rma", n); err != nil {
		return nil, err
	}
	out, err := smoothed(src, n, 1.0/float64(n))
	if err != nil {
		return nil, errors.Wrapf(err, "rma(%d)", n)
	}
	return out, nil
}

// smoothed пропускает ведущие NaN (например у MACD-линии), поэтому
// сигнальную EMA можно считать прямо по производной серии.
func smoothed(src []float64, n int, alpha float64) ([]float64, error) {
	start := firstDefined(src)
	if start < 0 || len(src)-start < n {
		return nil, ErrInsufficientData
	}

	out := nanSeries(len(src))
	seed := 0.0
	for _, v := range src[start : start+n] {
		seed += v
	}
	prev := seed / float64(n)
	out[start+n-1] = prev

	for i := start + n; i < len(src); i++ {
		prev = alpha*src[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out, nil
}
