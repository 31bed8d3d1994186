package execution

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"algo_fleet/internal/models"
)

func TestPaperLifecycle(t *testing.T) {
	p := NewPaper(zaptest.NewLogger(t))
	ctx := context.Background()
	in := models.OrderIntent{BotID: 1, Symbol: "BTC-USDT-SWAP", Side: models.DirectionLong, Price: 100, Leverage: 5, Reason: "Long Trigger Met"}

	fill, err := p.Open(ctx, in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !fill.Filled || fill.Price != 100 {
		t.Fatalf("fill=%+v", fill)
	}
	if _, err := uuid.Parse(fill.OrderID); err != nil {
		t.Fatalf("order id %q: %v", fill.OrderID, err)
	}

	if err := p.UpdateStop(ctx, 1, in.Symbol, 95.5); err != nil {
		t.Fatalf("UpdateStop: %v", err)
	}
	if stop, ok := p.Stop(1); !ok || stop != 95.5 {
		t.Fatalf("stop=%v ok=%v", stop, ok)
	}

	// повторный open от нового раннера того же бота заменяет позицию
	again, err := p.Open(ctx, in)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if stop, _ := p.Stop(1); stop != 0 || again.OrderID == fill.OrderID {
		t.Fatalf("position not replaced: stop=%v", stop)
	}

	out, err := p.Close(ctx, models.OrderIntent{BotID: 1, Symbol: in.Symbol, Side: models.DirectionLong, Price: 103, Reason: "EMA Cross Exit"})
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if out.Price != 103 || out.OrderID == fill.OrderID {
		t.Fatalf("close fill=%+v", out)
	}
	if _, ok := p.Stop(1); ok {
		t.Fatalf("position still tracked after close")
	}
	if err := p.UpdateStop(ctx, 1, in.Symbol, 99); err == nil {
		t.Fatalf("stop update without position accepted")
	}
}

func TestPaperRejectsBadIntents(t *testing.T) {
	p := NewPaper(nil)
	ctx := context.Background()
	tests := []struct {
		name string
		in   models.OrderIntent
	}{
		{"no symbol", models.OrderIntent{BotID: 1, Side: models.DirectionLong, Price: 1}},
		{"zero price", models.OrderIntent{BotID: 1, Symbol: "X", Side: models.DirectionLong}},
		{"bad side", models.OrderIntent{BotID: 1, Symbol: "X", Side: "SIDEWAYS", Price: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Open(ctx, tt.in); err == nil {
				t.Fatalf("accepted %+v", tt.in)
			}
		})
	}
	if _, err := p.Close(ctx, models.OrderIntent{BotID: 2, Symbol: "X", Price: 1}); err == nil {
		t.Fatalf("close without position accepted")
	}
}

func TestCheckMode(t *testing.T) {
	if err := CheckMode(""); err != nil {
		t.Fatalf("empty mode: %v", err)
	}
	if err := CheckMode("paper_trading"); err != nil {
		t.Fatalf("paper: %v", err)
	}
	if err := CheckMode("PRODUCTION"); !errors.Is(err, ErrLiveTradingUnsupported) {
		t.Fatalf("production: %v", err)
	}
	if err := CheckMode("YOLO"); err == nil {
		t.Fatalf("unknown mode accepted")
	}
}
