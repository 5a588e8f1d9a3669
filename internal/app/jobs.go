/**
 * @description
 * Scheduled job implementations. The only job reports payment sessions that stayed
 * pending past a threshold, which happens when a webhook was lost or its session write
 * failed. It does not modify any row.
 */
package app

import (
	"context"
	"time"

	"github.com/JojoDuke/papermind-ai-backend/internal/metrics"
	"github.com/rs/zerolog"
)

// StaleSessionCounter counts pending sessions older than a threshold.
type StaleSessionCounter interface {
	CountStalePendingSessions(ctx context.Context, olderThan time.Duration) (int, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	sessions   StaleSessionCounter
	staleAfter time.Duration
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(sessions StaleSessionCounter, staleAfter time.Duration, logger zerolog.Logger) *Jobs {
	return &Jobs{
		sessions:   sessions,
		staleAfter: staleAfter,
		timeout:    30 * time.Second,
		logger:     logger.With().Str("component", "jobs").Logger(),
	}
}

// SweepStaleSessions updates the stale-session gauge and warns when any are found.
func (j *Jobs) SweepStaleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.sweepStaleSessions(ctx); err != nil {
		j.logger.Error().Err(err).Msg("stale session sweep failed")
	}
}

func (j *Jobs) sweepStaleSessions(ctx context.Context) (int, error) {
	count, err := j.sessions.CountStalePendingSessions(ctx, j.staleAfter)
	if err != nil {
		return 0, err
	}

	metrics.StalePendingSessions.Set(float64(count))
	if count > 0 {
		j.logger.Warn().Int("count", count).Dur("older_than", j.staleAfter).Msg("payment sessions still pending")
	} else {
		j.logger.Debug().Msg("no stale payment sessions")
	}
	return count, nil
}
