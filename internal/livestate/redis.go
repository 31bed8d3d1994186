package livestate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"algo_fleet/internal/models"
)

// Redis: канал живости поверх SET key value EX ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Publish writes status and last_check in one pipeline with the same TTL.
func (r *Redis) Publish(ctx context.Context, botID int64, status models.BotStatus, at time.Time) error {
	pipe := r.client.Pipeline()
	pipe.Set(ctx, StatusKey(botID), string(status), r.ttl)
	pipe.Set(ctx, LastCheckKey(botID), formatCheck(at), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "publish status for bot %d", botID)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, botID int64) (models.LiveStatus, error) {
	vals, err := r.client.MGet(ctx, StatusKey(botID), LastCheckKey(botID)).Result()
	if err != nil {
		return absent(botID), errors.Wrapf(err, "get status for bot %d", botID)
	}

	st := absent(botID)
	if s, ok := vals[0].(string); ok {
		st.Status = parseStatus(s)
	}
	if s, ok := vals[1].(string); ok {
		st.LastCheck = parseCheck(s)
	}
	return st, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
