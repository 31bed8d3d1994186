package livestate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"algo_fleet/internal/models"
)

var at = time.Date(2025, 5, 10, 8, 30, 15, 0, time.UTC)

func TestRedisPublishAndExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ch := NewRedis(client, 60*time.Second)
	ctx := context.Background()

	if err := ch.Publish(ctx, 4, models.StatusRunning, at); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got, _ := mr.Get("bot:4:status"); got != "RUNNING" {
		t.Fatalf("status key=%q", got)
	}
	if got, _ := mr.Get("bot:4:last_check"); got != "2025-05-10T08:30:15Z" {
		t.Fatalf("last_check key=%q", got)
	}
	if ttl := mr.TTL("bot:4:status"); ttl != 60*time.Second {
		t.Fatalf("status ttl=%v", ttl)
	}
	if ttl := mr.TTL("bot:4:last_check"); ttl != 60*time.Second {
		t.Fatalf("last_check ttl=%v", ttl)
	}

	st, err := ch.Get(ctx, 4)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Status != models.StatusRunning || !st.LastCheck.Equal(at) {
		t.Fatalf("got %+v", st)
	}

	mr.FastForward(61 * time.Second)
	st, err = ch.Get(ctx, 4)
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if st.Status != models.StatusStopped || !st.LastCheck.IsZero() {
		t.Fatalf("expired record visible: %+v", st)
	}
}

func TestRedisErrorStatusOverwrites(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ch := NewRedis(client, 0)
	ctx := context.Background()

	_ = ch.Publish(ctx, 1, models.StatusRunning, at)
	_ = ch.Publish(ctx, 1, models.StatusError, at.Add(time.Minute))

	st, _ := ch.Get(ctx, 1)
	if st.Status != models.StatusError || !st.LastCheck.Equal(at.Add(time.Minute)) {
		t.Fatalf("got %+v", st)
	}
	if ttl := mr.TTL("bot:1:status"); ttl != DefaultTTL {
		t.Fatalf("ttl=%v, expected default", ttl)
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	ch := NewRedis(client, time.Minute)
	mr.Close()

	if err := ch.Publish(context.Background(), 1, models.StatusRunning, at); err == nil {
		t.Fatalf("Publish succeeded against a closed server")
	}
	st, err := ch.Get(context.Background(), 1)
	if err == nil || st.Status != models.StatusStopped {
		t.Fatalf("Get: st=%+v err=%v", st, err)
	}
}

func TestMemoryTTL(t *testing.T) {
	m := NewMemory(30 * time.Second)
	now := at
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if st, _ := m.Get(ctx, 2); st.Status != models.StatusStopped {
		t.Fatalf("unknown bot: %+v", st)
	}

	_ = m.Publish(ctx, 2, models.StatusError, at.Add(500*time.Millisecond))
	st, _ := m.Get(ctx, 2)
	if st.Status != models.StatusError || !st.LastCheck.Equal(at) {
		t.Fatalf("got %+v", st)
	}

	now = at.Add(29 * time.Second)
	if st, _ := m.Get(ctx, 2); st.Status != models.StatusError {
		t.Fatalf("expired too early: %+v", st)
	}
	now = at.Add(30 * time.Second)
	if st, _ := m.Get(ctx, 2); st.Status != models.StatusStopped {
		t.Fatalf("not expired: %+v", st)
	}
}

func TestParseStatusUnknown(t *testing.T) {
	if got := parseStatus("PAUSED"); got != models.StatusStopped {
		t.Fatalf("parseStatus=%s", got)
	}
}
