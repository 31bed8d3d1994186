// Package indicator считает технические индикаторы по всему окну свечей.
// Каждая функция возвращает серию той же длины, что и вход; значения до
// прогрева: NaN.
package indicator

import (
	"math"

	"github.com/pkg/errors"
)

var ErrInsufficientData = errors.New("insufficient data")

// Defined reports whether v holds a computed value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Last returns the most recent value of a series, NaN for an empty one.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstDefined(xs []float64) int {
	for i, v := range xs {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func checkPeriod(name string, n int) error {
	if n <= 0 {
		return errors.Errorf("%s: bad period %d", name, n)
	}
	return nil
}

func sameLen(xs ...[]float64) error {
	for _, x := range xs[1:] {
		if len(x) != len(xs[0]) {
			return errors.Errorf("series length mismatch: %d != %d", len(x), len(xs[0]))
		}
	}
	return nil
}
