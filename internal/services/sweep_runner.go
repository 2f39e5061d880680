package services

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const sweepLockTTL = 5 * time.Minute

type overdueSweeper interface {
	SweepOverdue(ctx context.Context) (*OverdueSweepReport, error)
}

type missedSweeper interface {
	SweepMissedContributions(ctx context.Context, day time.Time) (int, error)
	PreviousDay(now time.Time) time.Time
}

// SweepRunner triggers the periodic loan and missed-contribution sweeps. A
// Redis lock keeps instances from sweeping at the same time; without Redis
// the sweeps still run since both are idempotent.
type SweepRunner struct {
	loans         overdueSweeper
	contributions missedSweeper
	locker        *redislock.Client
	interval      time.Duration
	log           zerolog.Logger
	now           func() time.Time

	lastMissedDay time.Time
}

func NewSweepRunner(loans overdueSweeper, contributions missedSweeper, locker *redislock.Client, interval time.Duration, log zerolog.Logger) *SweepRunner {
	return &SweepRunner{
		loans:         loans,
		contributions: contributions,
		locker:        locker,
		interval:      interval,
		log:           log.With().Str("component", "sweeps").Logger(),
		now:           time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (r *SweepRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs the overdue sweep, and the missed-contribution sweep once per
// newly elapsed day.
func (r *SweepRunner) Tick(ctx context.Context) {
	r.withLock(ctx, "loans", func(ctx context.Context) error {
		_, err := r.loans.SweepOverdue(ctx)
		return err
	})

	day := r.contributions.PreviousDay(r.now())
	if day.Equal(r.lastMissedDay) {
		return
	}
	ok := r.withLock(ctx, "contributions", func(ctx context.Context) error {
		_, err := r.contributions.SweepMissedContributions(ctx, day)
		return err
	})
	if ok {
		r.lastMissedDay = day
	}
}

// withLock runs fn under the named sweep lock and reports whether fn ran
// without error. Lock errors other than contention fall through to running
// fn unlocked.
func (r *SweepRunner) withLock(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	log := r.log.With().Str("sweep", name).Str("run_id", uuid.NewString()).Logger()

	if r.locker != nil {
		lock, err := r.locker.Obtain(ctx, "sweep:"+name, sweepLockTTL, nil)
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			log.Debug().Msg("sweep already running elsewhere, skipping")
			return false
		case err != nil:
			log.Warn().Err(err).Msg("proceeding without redis lock")
		default:
			defer func() {
				if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					log.Warn().Err(err).Msg("failed to release sweep lock")
				}
			}()
		}
	}

	started := r.now()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return false
	}
	log.Debug().Dur("elapsed", r.now().Sub(started)).Msg("sweep complete")
	return true
}
