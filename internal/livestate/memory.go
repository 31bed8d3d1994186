package livestate

import (
	"context"
	"sync"
	"time"

	"algo_fleet/internal/models"
)

// Memory: тот же контракт в памяти процесса, когда redis выключен.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[int64]memRecord
}

type memRecord struct {
	status    models.BotStatus
	lastCheck time.Time
	expires   time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, records: make(map[int64]memRecord)}
}

func (m *Memory) Publish(_ context.Context, botID int64, status models.BotStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[botID] = memRecord{
		status:    status,
		lastCheck: at.UTC().Truncate(time.Second),
		expires:   m.now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Get(_ context.Context, botID int64) (models.LiveStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[botID]
	if !ok {
		return absent(botID), nil
	}
	if !m.now().Before(rec.expires) {
		delete(m.records, botID)
		return absent(botID), nil
	}
	return models.LiveStatus{BotID: botID, Status: rec.status, LastCheck: rec.lastCheck}, nil
}
