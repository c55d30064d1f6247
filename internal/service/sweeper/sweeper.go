package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/chatrooms/internal/logger"
)

const (
	defaultInterval  = time.Hour
	defaultRetention = 24 * time.Hour
)

type refreshRepo interface {
	DeleteStale(ctx context.Context, expiredBefore time.Time, usedBefore time.Time) (int64, error)
}

type Config struct {
	// How often stale tokens are deleted
	Interval time.Duration

	// How long used tokens are kept. Replay of recently used token is reported as 'used', not as 'not found'
	Retention time.Duration
}

// Sweeper periodically deletes expired and long ago used refresh tokens
type Sweeper struct {
	interval  time.Duration
	retention time.Duration
	repo      refreshRepo
	logger    logger.Logger

	now func() time.Time
}

func New(cfg Config, repo refreshRepo, l logger.Logger) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Retention == 0 {
		cfg.Retention = defaultRetention
	}

	return &Sweeper{
		interval:  cfg.Interval,
		retention: cfg.Retention,
		repo:      repo,
		logger:    l,
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is done. Returned channel is closed when sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval, "retention", s.retention)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Sweep once
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	deleted, err := s.repo.DeleteStale(ctx, now, now.Add(-s.retention))
	if err != nil {
		s.logger.Error("Failed to delete stale refresh tokens", "error", err)
		return
	}

	s.logger.Debug("Stale refresh tokens deleted", "count", deleted)
}
