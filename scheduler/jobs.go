package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"stock_alerts_backend/middleware"
	"stock_alerts_backend/services/alerts"
	"stock_alerts_backend/services/history"
	"stock_alerts_backend/services/indicators"
)

// Scheduler runs the periodic maintenance jobs: the trading-day
// rollover of previous-day closes, rate-limit record cleanup and the
// daily indicator buffer re-seed.
type Scheduler struct {
	cron    *gocron.Scheduler
	history *history.Store
	repo    alerts.Repository
	tracker *indicators.Tracker
	limiter *middleware.RateLimiter
	logger  *zap.Logger
}

// New creates the scheduler over its collaborators.
func New(hist *history.Store, repo alerts.Repository, tracker *indicators.Tracker, limiter *middleware.RateLimiter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		history: hist,
		repo:    repo,
		tracker: tracker,
		limiter: limiter,
		logger:  logger,
	}
}

// Start registers and launches the jobs.
func (s *Scheduler) Start() {
	// Trading-day rollover after market close: refresh previous-day
	// closes and rewrite the baseline on active percentage alerts.
	s.cron.Every(1).Day().At("16:15").Do(func() {
		s.RolloverPreviousCloses(context.Background())
	})

	// Indicator buffers re-warm from the refreshed history.
	s.cron.Every(1).Day().At("16:30").Do(func() {
		s.reseedIndicators(context.Background())
	})

	s.cron.Every(10).Minutes().Do(func() {
		s.limiter.Cleanup()
	})

	s.cron.StartAsync()
	s.logger.Info("scheduler started")
}

// Stop halts all jobs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// RolloverPreviousCloses is the explicit trading-day rollover policy:
// the cached closes refresh from the history table and active
// percentage alerts get their baseline rewritten in the repository.
func (s *Scheduler) RolloverPreviousCloses(ctx context.Context) {
	closes, err := s.history.RefreshPreviousCloses(ctx, time.Now())
	if err != nil {
		s.logger.Error("previous-close rollover failed", zap.Error(err))
		return
	}
	if len(closes) == 0 {
		return
	}
	if err := s.repo.UpdatePercentageBaselines(ctx, closes); err != nil {
		s.logger.Error("baseline rewrite failed", zap.Error(err))
		return
	}
	s.logger.Info("percentage baselines rolled over", zap.Int("symbols", len(closes)))
}

func (s *Scheduler) reseedIndicators(ctx context.Context) {
	symbols, err := s.history.Symbols(ctx)
	if err != nil {
		s.logger.Error("indicator re-seed failed", zap.Error(err))
		return
	}
	for _, sym := range symbols {
		snap := s.tracker.Snapshot(sym)
		if snap.Capacity == 0 {
			continue
		}
		// Fetch up to the full buffer capacity so a partially warm
		// window finishes warming from history.
		closes, err := s.history.RecentCloses(sym, snap.Capacity)
		if err != nil {
			s.logger.Warn("skipping re-seed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		s.tracker.Seed(sym, closes)
	}
	s.logger.Info("indicator buffers re-seeded", zap.Int("symbols", len(symbols)))
}
