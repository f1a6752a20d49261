// Package sweeper owns the periodic deletion of expired conversation
// messages. It is wired into the application lifecycle and stopped through
// context cancellation; it has no client-visible API.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/store"
)

// Sweeper deletes messages older than the retention window on a fixed
// interval. A failed sweep is logged and the next scheduled sweep proceeds
// independently; there is no retry and no partial-completion tracking.
type Sweeper struct {
	store     store.ConversationStore
	interval  time.Duration
	retention time.Duration
	log       *zerolog.Logger
}

// New constructs a sweeper. Typical values are a one hour interval and a
// 24 hour retention window.
func New(st store.ConversationStore, interval, retention time.Duration, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:     st,
		interval:  interval,
		retention: retention,
		log:       logger,
	}
}

// Run blocks, sweeping once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().
		Dur("interval", s.interval).
		Dur("retention", s.retention).
		Msg("retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("retention sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes every message older than the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)

	deleted, err := s.store.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("retention sweep failed")
		return
	}
	if deleted > 0 {
		s.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("expired messages removed")
	}
}
