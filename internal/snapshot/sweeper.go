package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "agendacal/internal/log"
)

// Sweeper periodically evicts idle snapshots, stale memoized views and
// abandoned interlock claims on a cron schedule.
type Sweeper struct {
	c         *cron.Cron
	store     *Store
	views     *Views
	interlock *Interlock
	maxIdle   time.Duration
}

// NewSweeper validates schedule (standard five-field cron) without starting.
func NewSweeper(schedule string, maxIdle time.Duration, store *Store, views *Views, interlock *Interlock) (*Sweeper, error) {
	s := &Sweeper{
		c:         cron.New(),
		store:     store,
		views:     views,
		interlock: interlock,
		maxIdle:   maxIdle,
	}
	if _, err := s.c.AddFunc(schedule, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("snapshot: invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce sweeps immediately and reports what was dropped.
func (s *Sweeper) RunOnce() (tenants, views, claims int) {
	if s.store != nil {
		tenants = s.store.Sweep(s.maxIdle)
	}
	if s.views != nil {
		views = s.views.Sweep(s.maxIdle)
	}
	if s.interlock != nil {
		claims = s.interlock.Sweep(s.maxIdle)
	}
	if tenants+views+claims > 0 {
		appLog.Info("snapshot sweep",
			"tenants", tenants,
			"views", views,
			"claims", claims,
		)
	}
	return tenants, views, claims
}

func (s *Sweeper) Start() {
	s.c.Start()
}

// Stop halts the schedule and waits for a running sweep or ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
