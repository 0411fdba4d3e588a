// Package scheduler runs the periodic background jobs of the service on
// robfig/cron: the negotiation deadline sweep (which also purges expired
// idempotency keys) and the benchmark cache refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/config"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

// Expirer expires sessions whose deadline has passed.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Refresher re-fetches stale benchmark cache entries.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and owns the job set.
type Scheduler struct {
	cron      *cron.Cron
	db        *gorm.DB
	expirer   Expirer
	refresher Refresher
	specs     config.SchedulerConfig
	now       func() time.Time
}

// New creates a Scheduler. A nil expirer or refresher, or an empty spec,
// disables the corresponding job.
func New(specs config.SchedulerConfig, db *gorm.DB, exp Expirer, ref Refresher) *Scheduler {
	logger := cronLogger{l: log.With().Str("component", "scheduler").Logger()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		db:        db,
		expirer:   exp,
		refresher: ref,
		specs:     specs,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the scheduler. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.specs.ExpirySweepSpec != "" && s.expirer != nil {
		if _, err := s.cron.AddFunc(s.specs.ExpirySweepSpec, func() { s.RunExpirySweep(ctx) }); err != nil {
			return fmt.Errorf("schedule expiry sweep: %w", err)
		}
	}
	if s.specs.BenchmarkRefreshSpec != "" && s.refresher != nil {
		if _, err := s.cron.AddFunc(s.specs.BenchmarkRefreshSpec, func() { s.RunBenchmarkRefresh(ctx) }); err != nil {
			return fmt.Errorf("schedule benchmark refresh: %w", err)
		}
	}
	s.cron.Start()
	log.Info().
		Str("expiry_sweep", s.specs.ExpirySweepSpec).
		Str("benchmark_refresh", s.specs.BenchmarkRefreshSpec).
		Int("jobs", len(s.cron.Entries())).
		Msg("scheduler started")
	return nil
}

// Stop halts the scheduler and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	log.Info().Msg("scheduler stopped")
	return ctx
}

// RunExpirySweep expires overdue sessions and purges expired idempotency
// keys. Failures are logged; the next tick retries.
func (s *Scheduler) RunExpirySweep(ctx context.Context) {
	start := s.now()
	n, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		log.Error().Err(err).Int("expired", n).Msg("expiry sweep failed")
	} else if n > 0 {
		log.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry sweep")
	}

	if s.db == nil {
		return
	}
	purged, err := repo.PurgeExpiredIdempotency(ctx, s.db, s.now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("idempotency purge failed")
		return
	}
	if purged > 0 {
		log.Debug().Int64("purged", purged).Msg("idempotency keys purged")
	}
}

// RunBenchmarkRefresh re-fetches stale benchmark entries.
func (s *Scheduler) RunBenchmarkRefresh(ctx context.Context) {
	n, err := s.refresher.Refresh(ctx)
	if err != nil {
		log.Warn().Err(err).Int("refreshed", n).Msg("benchmark refresh incomplete")
		return
	}
	log.Info().Int("refreshed", n).Msg("benchmark refresh")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
