package manager

import (
	"context"
	"time"
)

const defaultSweepInterval = 60 * time.Second

// Sweeper periodically evicts idle models. It runs apart from request
// handling and never blocks it.
type Sweeper struct {
	m        *Manager
	interval time.Duration
}

// NewSweeper returns a sweeper for m; interval <= 0 selects one minute.
func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{m: m, interval: interval}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			report := s.m.SweepExpired()
			for key, err := range report.Failed {
				s.m.log.Error().Err(err).Str("model", key.String()).Msg("sweeper event=kill_failed")
			}
		}
	}
}
