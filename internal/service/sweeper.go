package service

import (
	"context"
	"time"
)

// RunSessionSweeper purges sessions idle for longer than the configured TTL
// until ctx is done. It returns immediately when no TTL is configured.
func (s *Service) RunSessionSweeper(ctx context.Context) {
	if s.config.Session.IdleTTL <= 0 || s.config.Session.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.Session.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdleSessions(ctx, time.Now())
		}
	}
}

func (s *Service) sweepIdleSessions(ctx context.Context, now time.Time) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	purged, err := s.store.PurgeIdleSessions(sweepCtx, now.Add(-s.config.Session.IdleTTL))
	if err != nil {
		s.logger.Warn("session sweep failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged idle sessions", "count", purged)
	}
}
