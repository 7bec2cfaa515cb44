package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically flips ended=true on sessions past TTL. It is
// advisory only: every read path re-validates expiry, so a slow or stopped
// sweeper never lets a stale session through.
type Sweeper struct {
	repo     SessionRepository
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweeper(repo SessionRepository, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{repo: repo, interval: interval, logger: logger}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.repo.EndExpired(ctx, time.Now().Add(-TTL))
	if err != nil {
		w.logger.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		w.logger.Info().Int64("ended", n).Msg("expired sessions swept")
	}
}
