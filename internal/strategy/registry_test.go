package strategy

import (
	"testing"

	"github.com/pkg/errors"
)

func TestRegistryResolve(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name     string
		strategy string
		want     string
	}{
		{"canonical", "hybrid_trend", HybridTrendName},
		{"legacy path", "strategies.active.hybrid_trend.HybridTrendStrategy", HybridTrendName},
		{"case and spaces", "  Hybrid_Trend ", HybridTrendName},
		{"donchian", "donchian", DonchianName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Resolve(tt.strategy, Params{Symbol: "BTC-USDT", Leverage: 3})
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.strategy, err)
			}
			if s.Name() != tt.want {
				t.Fatalf("Name()=%q, expected %q", s.Name(), tt.want)
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Resolve("martingale", Params{Symbol: "BTC-USDT"})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("err=%v, expected ErrUnknownStrategy", err)
	}
	if r.Has("martingale") {
		t.Fatalf("Has reported an unknown strategy")
	}
}

func TestRegistryFactoryError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register("broken", func(Params) (Strategy, error) { return nil, boom })

	if _, err := r.Resolve("broken", Params{}); !errors.Is(err, boom) {
		t.Fatalf("err=%v, expected wrapped boom", err)
	}
}

func TestRegistryNormalizesLeverage(t *testing.T) {
	r := NewRegistry()
	var got Params
	r.Register("probe", func(p Params) (Strategy, error) {
		got = p
		return NewHybridTrend(p)
	})
	if _, err := r.Resolve("probe", Params{Symbol: "BTC-USDT", Leverage: 0}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Leverage != 1 {
		t.Fatalf("leverage=%d, expected 1", got.Leverage)
	}

	names := DefaultRegistry().Names()
	if len(names) != 3 || names[0] != "donchian" {
		t.Fatalf("names=%v", names)
	}
}
