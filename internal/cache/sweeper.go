package cache

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes rows older than the configured duration.
// Expiry is still enforced lazily on every read; the sweep only keeps the
// table from growing without bound.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

type SweeperConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

func NewSweeper(store Store, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultTTL
	}
	return &Sweeper{
		store:    store,
		logger:   logger.With("component", "cache_sweeper"),
		interval: cfg.Interval,
		maxAge:   cfg.MaxAge,
	}
}

// Start blocks until ctx is cancelled, sweeping on every tick.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("starting cache sweeper", "interval", s.interval, "max_age", s.maxAge)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Sweep immediately on start.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cache sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.store.DeleteExpired(ctx, s.maxAge)
	if err != nil {
		s.logger.Error("failed to sweep expired entries", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("swept expired cache entries", "deleted", deleted)
	}
}
