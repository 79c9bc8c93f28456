package worker

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/logger"
	"MediaVault/internal/metrics"
	"MediaVault/internal/repo"
	"MediaVault/internal/service"
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// SweepStats counts what one sweep did.
type SweepStats struct {
	Scanned int
	Purged  int
	Skipped int
	Failed  int
}

// Sweeper purges trashed assets whose retention window has passed.
type Sweeper struct {
	Retention time.Duration
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
	Limiter   *rate.Limiter
	// Now is the clock; tests pin it.
	Now func() time.Time

	log *logger.Logger
}

// NewSweeper builds a sweeper from the retention policy.
func NewSweeper(policy config.RetentionPolicy) *Sweeper {
	def := config.DefaultRetentionPolicy()
	if policy.Window <= 0 {
		policy.Window = def.Window
	}
	if policy.SweepInterval <= 0 {
		policy.SweepInterval = def.SweepInterval
	}
	if policy.SweepBatchSize <= 0 {
		policy.SweepBatchSize = def.SweepBatchSize
	}
	if policy.LockTTL <= 0 {
		policy.LockTTL = def.LockTTL
	}
	return &Sweeper{
		Retention: policy.Window,
		Interval:  policy.SweepInterval,
		BatchSize: policy.SweepBatchSize,
		LockTTL:   policy.LockTTL,
		Limiter:   newLimiter(policy.SweepRate, 1),
		Now:       time.Now,
		log:       logger.L().With("component", "sweeper"),
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.log.Info("retention sweeper started", "retention", s.Retention, "interval", s.Interval)
	s.RunOnce(ctx, s.Now())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx, s.Now())
		}
	}
}

// RunOnce purges every asset trashed at or before now minus the retention window.
// Per-asset failures are logged and counted; they never stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) SweepStats {
	start := time.Now()
	cutoff := now.Add(-s.Retention)
	var (
		stats   SweepStats
		afterID uint64
	)
	for {
		batch, err := service.ListExpiredTrash(ctx, cutoff, afterID, s.BatchSize)
		if err != nil {
			s.log.Error("list expired trash failed", "error", err)
			break
		}
		if len(batch) == 0 {
			break
		}
		for _, a := range batch {
			afterID = a.ID
			if ctx.Err() != nil {
				break
			}
			if s.Limiter != nil {
				if err := s.Limiter.Wait(ctx); err != nil {
					break
				}
			}
			stats.Scanned++
			switch err := s.purgeOne(ctx, a.UserID, a.ID); {
			case err == nil:
				stats.Purged++
			case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrNotFound), errors.Is(err, repo.ErrLockBusy):
				stats.Skipped++
				s.log.Info("sweep skipped asset", "asset_id", a.ID, "reason", err)
			default:
				stats.Failed++
				s.log.Error("sweep purge failed", "asset_id", a.ID, "user_id", a.UserID, "error", err)
			}
		}
		if ctx.Err() != nil || len(batch) < s.BatchSize {
			break
		}
	}
	metrics.RecordSweep(stats.Purged, stats.Skipped, stats.Failed, time.Since(start).Seconds())
	s.log.Info("sweep finished",
		"cutoff", cutoff,
		"scanned", stats.Scanned,
		"purged", stats.Purged,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats
}

// purgeOne holds the asset's purge lock so replicas do not race on it.
func (s *Sweeper) purgeOne(ctx context.Context, userID, assetID uint64) error {
	return repo.WithLock(ctx, repo.PurgeLockKey(assetID), s.LockTTL, func(ctx context.Context) error {
		return service.PurgeAsset(ctx, userID, assetID)
	})
}
