package service

import (
	"context"
	"time"

	"algo_fleet/internal/runner"
)

// Fleet: то, что health и API видят у супервизора.
type Fleet interface {
	Status() []runner.Snapshot
	LastSync() time.Time
	Sync(ctx context.Context) error
}

type State struct {
	fleet     Fleet
	startedAt time.Time
}

func NewState(f Fleet) *State {
	return &State{fleet: f, startedAt: time.Now()}
}

// Ready: супервизор хотя бы раз сверился с хранилищем.
func (s *State) Ready() bool { return !s.fleet.LastSync().IsZero() }

func (s *State) LastSync() time.Time { return s.fleet.LastSync() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// Runners: число работающих раннеров.
func (s *State) Runners() int {
	n := 0
	for _, snap := range s.fleet.Status() {
		if snap.Running {
			n++
		}
	}
	return n
}

func (s *State) Fleet() Fleet { return s.fleet }
