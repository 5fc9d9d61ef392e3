package repository

import (
	"context"
	"sync/atomic"
	"time"

	"shelfsync/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLimiterRepository prefers the shared primary (redis) and falls
// back to the in-process repository while the primary is unreachable.
// It retries the primary after a minute.
type FailoverLimiterRepository struct {
	primary   domain.LimiterRepository
	fallback  domain.LimiterRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverLimiterRepository(primary, fallback domain.LimiterRepository, logger *zerolog.Logger) *FailoverLimiterRepository {
	return &FailoverLimiterRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLimiterRepository) Allow(ctx context.Context, target, caller string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.Allow(ctx, target, caller, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary limiter repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after 1 minute.
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		allowed, err := r.primary.Allow(ctx, target, caller, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Allow(ctx, target, caller, limit, window)
}
