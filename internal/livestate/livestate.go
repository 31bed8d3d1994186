// Package livestate публикует живость ботов с TTL: ключи bot:{id}:status и
// bot:{id}:last_check. Отсутствие ключа означает, что бот не запущен.
package livestate

import (
	"context"
	"fmt"
	"time"

	"algo_fleet/internal/models"
)

const DefaultTTL = 60 * time.Second

// Channel: запись и чтение живости; реализации Redis и Memory.
type Channel interface {
	Publish(ctx context.Context, botID int64, status models.BotStatus, at time.Time) error
	Get(ctx context.Context, botID int64) (models.LiveStatus, error)
}

var (
	_ Channel = (*Redis)(nil)
	_ Channel = (*Memory)(nil)
)

func StatusKey(botID int64) string    { return fmt.Sprintf("bot:%d:status", botID) }
func LastCheckKey(botID int64) string { return fmt.Sprintf("bot:%d:last_check", botID) }

// absent: то, что видит наблюдатель после истечения TTL.
func absent(botID int64) models.LiveStatus {
	return models.LiveStatus{BotID: botID, Status: models.StatusStopped}
}

func parseStatus(s string) models.BotStatus {
	switch models.BotStatus(s) {
	case models.StatusRunning, models.StatusError, models.StatusStopped:
		return models.BotStatus(s)
	}
	return models.StatusStopped
}

func formatCheck(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseCheck(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
