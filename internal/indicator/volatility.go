package indicator

import (
	"math"

	"github.com/pkg/errors"
)

// TrueRange: первый бар без предыдущего close берёт high-low.
func TrueRange(highs, lows, closes []float64) ([]float64, error) {
	if err := sameLen(highs, lows, closes); err != nil {
		return nil, errors.Wrap(err, "true range")
	}
	out := nanSeries(len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = highs[i] - lows[i]
			continue
		}
		prevClose := closes[i-1]
		out[i] = math.Max(
			highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)),
		)
	}
	return out, nil
}

// ATR: Wilder-сглаженный true range.
func ATR(highs, lows, closes []float64, n int) ([]float64, error) {
	if err := checkPeriod("atr", n); err != nil {
		return nil, err
	}
	if len(closes) < n+1 {
		return nil, errors.Wrapf(ErrInsufficientData, "atr(%d): %d values", n, len(closes))
	}
	tr, err := TrueRange(highs, lows, closes)
	if err != nil {
		return nil, err
	}
	return RMA(tr, n)
}

// ADXResult holds ADX with its directional indexes.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX: индекс направленного движения Уайлдера. Нужно минимум 2n баров.
func ADX(highs, lows, closes []float64, n int) (ADXResult, error) {
	if err := checkPeriod("adx", n); err != nil {
		return ADXResult{}, err
	}
	if err := sameLen(highs, lows, closes); err != nil {
		return ADXResult{}, errors.Wrap(err, "adx")
	}
	if len(closes) < 2*n {
		return ADXResult{}, errors.Wrapf(ErrInsufficientData, "adx(%d): %d values", n, len(closes))
	}

	size := len(closes)
	plusDM := nanSeries(size)
	minusDM := nanSeries(size)
	tr := nanSeries(size)
	for i := 1; i < size; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = math.Max(
			highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])),
		)
	}

	smTR, err := RMA(tr, n)
	if err != nil {
		return ADXResult{}, errors.Wrap(err, "adx tr")
	}
	smPlus, err := RMA(plusDM, n)
	if err != nil {
		return ADXResult{}, errors.Wrap(err, "adx +dm")
	}
	smMinus, err := RMA(minusDM, n)
	if err != nil {
		return ADXResult{}, errors.Wrap(err, "adx -dm")
	}

	plusDI := nanSeries(size)
	minusDI := nanSeries(size)
	dx := nanSeries(size)
	for i := range closes {
		if math.IsNaN(smTR[i]) {
			continue
		}
		if smTR[i] == 0 {
			plusDI[i], minusDI[i], dx[i] = 0, 0, 0
			continue
		}
		plusDI[i] = 100 * smPlus[i] / smTR[i]
		minusDI[i] = 100 * smMinus[i] / smTR[i]
		sum := plusDI[i] + minusDI[i]
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
	}

	adx, err := RMA(dx, n)
	if err != nil {
		return ADXResult{}, errors.Wrap(err, "adx dx")
	}
	return ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, nil
}
