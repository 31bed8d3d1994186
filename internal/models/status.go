package models

import "time"

type BotStatus string

const (
	StatusRunning BotStatus = "RUNNING"
	StatusError   BotStatus = "ERROR"
	StatusStopped BotStatus = "STOPPED"
)

// LiveStatus: эфемерная запись о живости бота, живёт TTL.
type LiveStatus struct {
	BotID     int64     `json:"bot_id"`
	Status    BotStatus `json:"status"`
	LastCheck time.Time `json:"last_check"`
}

type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// LogEntry is an append-only structured log record persisted for reporting.
type LogEntry struct {
	ID        int64
	BotID     int64
	Level     LogLevel
	Message   string
	CycleID   string
	Timestamp time.Time
}
