package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"algo_fleet/internal/models"
	inotify "algo_fleet/internal/notify"
	"algo_fleet/internal/runner"
	"algo_fleet/internal/store"
)

type Fleet interface {
	Status() []runner.Snapshot
	Sync(ctx context.Context) error
}

type Bots interface {
	ToggleActive(ctx context.Context, id int64) (bool, error)
	ListTrades(ctx context.Context, botID int64, limit int) ([]models.Trade, error)
}

const tradesInReply = 10

// StatusCommand: /status: по строке на бота.
func StatusCommand(f Fleet) inotify.CommandFunc {
	return func(ctx context.Context, _ string) string {
		snaps := f.Status()
		if len(snaps) == 0 {
			return "📭 Нет запущенных ботов"
		}
		var b strings.Builder
		b.WriteString("📊 Флот:\n")
		for _, s := range snaps {
			b.WriteString("• ")
			b.WriteString(s.String())
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n")
	}
}

// ToggleCommand: /toggle <id>: переключает is_active и сразу синхронизирует флот.
func ToggleCommand(bots Bots, f Fleet) inotify.CommandFunc {
	return func(ctx context.Context, args string) string {
		id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
		if err != nil || id <= 0 {
			return "Использование: /toggle <bot_id>"
		}
		active, err := bots.ToggleActive(ctx, id)
		if err != nil {
			return fmt.Sprintf("❗️ bot #%d: %v", id, err)
		}
		if err := f.Sync(ctx); err != nil {
			return fmt.Sprintf("bot #%d is_active=%v, но синхронизация не удалась: %v", id, active, err)
		}
		if active {
			return fmt.Sprintf("▶️ bot #%d включён", id)
		}
		return fmt.Sprintf("⏸ bot #%d выключен", id)
	}
}

// TradesCommand: /trades [bot_id]: последние сделки.
func TradesCommand(bots Bots) inotify.CommandFunc {
	return func(ctx context.Context, args string) string {
		var botID int64
		if a := strings.TrimSpace(args); a != "" {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return "Использование: /trades [bot_id]"
			}
			botID = id
		}
		trades, err := bots.ListTrades(ctx, botID, tradesInReply)
		if err != nil {
			return fmt.Sprintf("❗️ Ошибка получения сделок: %v", err)
		}
		if len(trades) == 0 {
			return "📭 Сделок нет"
		}
		var b strings.Builder
		b.WriteString("🧾 Последние сделки:\n")
		for _, t := range trades {
			fmt.Fprintf(&b, "- #%d %s %s %.6f → %.6f pnl=%.2f%% (%s)\n",
				t.BotID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.PnLPct*100, t.Reason)
		}
		return strings.TrimRight(b.String(), "\n")
	}
}

var _ Bots = (store.Store)(nil)
