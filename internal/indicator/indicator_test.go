package indicator

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("SMA returned error: %v", err)
	}
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("warm-up values must be NaN, got %v", got[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !approx(got[i+2], w, 1e-12) {
			t.Fatalf("SMA[%d]=%v, expected %v", i+2, got[i+2], w)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	src := []float64{2, 4, 6, 8}
	got, err := EMA(src, 3)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}
	if !math.IsNaN(got[1]) {
		t.Fatalf("EMA[1] must be undefined, got %v", got[1])
	}
	if !approx(got[2], 4, 1e-12) {
		t.Fatalf("EMA seed=%v, expected 4", got[2])
	}
	// alpha = 0.5
	if !approx(got[3], 6, 1e-12) {
		t.Fatalf("EMA[3]=%v, expected 6", got[3])
	}
}

func TestEMAConstantSeries(t *testing.T) {
	got, err := EMA(constant(250, 42), 200)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}
	if !approx(Last(got), 42, 1e-9) {
		t.Fatalf("EMA of constant=%v, expected 42", Last(got))
	}
	if Defined(got[198]) || !Defined(got[199]) {
		t.Fatalf("EMA(200) must become defined exactly at index 199")
	}
}

func TestEMAPropagatesNaN(t *testing.T) {
	src := constant(200, 10)
	src[5] = math.NaN()
	got, err := EMA(src, 200)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}
	if Defined(Last(got)) {
		t.Fatalf("EMA over a gap in the seed must stay undefined, got %v", Last(got))
	}
}

func TestInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"sma", func() error { _, err := SMA(constant(5, 1), 6); return err }},
		{"ema", func() error { _, err := EMA(constant(199, 1), 200); return err }},
		{"rsi", func() error { _, err := RSI(constant(14, 1), 14); return err }},
		{"atr", func() error { _, err := ATR(constant(10, 2), constant(10, 1), constant(10, 1.5), 14); return err }},
		{"adx", func() error { _, err := ADX(constant(27, 2), constant(27, 1), constant(27, 1.5), 14); return err }},
		{"macd", func() error { _, err := MACD(constant(30, 1), 12, 26, 9); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"only gains", linear(50, 100, 1), 100},
		{"only losses", linear(50, 100, -1), 0},
		{"flat", constant(50, 100), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.closes, 14)
			if err != nil {
				t.Fatalf("RSI returned error: %v", err)
			}
			if !approx(Last(got), tt.want, 1e-9) {
				t.Fatalf("RSI=%v, expected %v", Last(got), tt.want)
			}
		})
	}
}

func TestRSIAlternating(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 101
		}
	}
	got, err := RSI(closes, 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}
	if v := Last(got); v <= 30 || v >= 70 {
		t.Fatalf("RSI of a choppy series should stay mid-range, got %v", v)
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 60
	closes := constant(n, 100)
	highs := constant(n, 101)
	lows := constant(n, 99)
	got, err := ATR(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("ATR returned error: %v", err)
	}
	if !approx(Last(got), 2, 1e-9) {
		t.Fatalf("ATR=%v, expected 2", Last(got))
	}
}

func TestADXStrongTrend(t *testing.T) {
	closes := linear(100, 100, 1)
	highs := linear(100, 100.5, 1)
	lows := linear(100, 99.5, 1)
	res, err := ADX(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("ADX returned error: %v", err)
	}
	if v := Last(res.ADX); !approx(v, 100, 1e-6) {
		t.Fatalf("ADX on a one-way trend=%v, expected 100", v)
	}
	if Last(res.MinusDI) != 0 {
		t.Fatalf("-DI on a one-way uptrend=%v, expected 0", Last(res.MinusDI))
	}
}

func TestADXLengthMismatch(t *testing.T) {
	_, err := ADX(constant(40, 1), constant(39, 1), constant(40, 1), 14)
	if err == nil {
		t.Fatal("expected an error for mismatched series")
	}
}

func TestMACD(t *testing.T) {
	t.Run("flat market has zero histogram", func(t *testing.T) {
		res, err := MACD(constant(100, 50), 12, 26, 9)
		if err != nil {
			t.Fatalf("MACD returned error: %v", err)
		}
		if !approx(Last(res.Histogram), 0, 1e-12) {
			t.Fatalf("histogram=%v, expected 0", Last(res.Histogram))
		}
		if Defined(res.Signal[32]) || !Defined(res.Signal[33]) {
			t.Fatal("signal line must become defined at index slow+signal-2")
		}
	})

	t.Run("accelerating rally has positive histogram", func(t *testing.T) {
		closes := make([]float64, 120)
		for i := range closes {
			closes[i] = 100 + 0.01*float64(i*i)
		}
		res, err := MACD(closes, 12, 26, 9)
		if err != nil {
			t.Fatalf("MACD returned error: %v", err)
		}
		if Last(res.Histogram) <= 0 {
			t.Fatalf("histogram=%v, expected > 0", Last(res.Histogram))
		}
	})

	t.Run("fast must be below slow", func(t *testing.T) {
		if _, err := MACD(constant(100, 1), 26, 12, 9); err == nil {
			t.Fatal("expected an error")
		}
	})
}
