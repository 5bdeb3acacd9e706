package jobs

import (
	"context"
	"time"

	"github.com/mroshb/couple_journal/pkg/logger"
	"github.com/mroshb/couple_journal/pkg/utils"
)

// Expirer flips overdue pending invitations to expired.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper periodically expires overdue invitations. Clients already
// treat an overdue invitation as expired, so the sweep only has to keep the
// stored status honest for queries and the pending-pair index.
type ExpirySweeper struct {
	expirer  Expirer
	clock    utils.Clock
	interval time.Duration
}

func NewExpirySweeper(expirer Expirer, clock utils.Clock, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		expirer:  expirer,
		clock:    clock,
		interval: interval,
	}
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (s *ExpirySweeper) Run(ctx context.Context) {
	logger.Info("Invitation expiry sweeper started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			logger.Info("Invitation expiry sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns how many invitations it expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) int64 {
	n, err := s.expirer.ExpireOverdue(ctx, s.clock.Now())
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Invitation expiry sweep failed", "error", err)
		}
		return 0
	}
	if n > 0 {
		logger.Info("Expired overdue invitations", "count", n)
	}
	return n
}
