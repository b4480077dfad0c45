package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotRefresher rebuilds the cached snapshot for a target.
type SnapshotRefresher interface {
	Refresh(ctx context.Context, target int) error
}

// Refresher keeps the snapshot warm in the background so request traffic
// rarely pays for a cold aggregation.
type Refresher struct {
	target   SnapshotRefresher
	size     int
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a Refresher that rebuilds a snapshot of size listings
// every interval.
func NewRefresher(target SnapshotRefresher, size int, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		target:   target,
		size:     size,
		interval: interval,
		logger:   logger.With(slog.String("component", "refresher")),
	}
}

// Run performs a single refresh.
func (r *Refresher) Run(ctx context.Context) error {
	start := time.Now()
	if err := r.target.Refresh(ctx, r.size); err != nil {
		return err
	}
	r.logger.Debug("snapshot refreshed",
		slog.Int("target", r.size),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// RunLoop refreshes on a repeating interval until the context is cancelled.
func (r *Refresher) RunLoop(ctx context.Context) error {
	// Run immediately on start.
	if err := r.Run(ctx); err != nil {
		r.logger.Error("snapshot refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("snapshot refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
