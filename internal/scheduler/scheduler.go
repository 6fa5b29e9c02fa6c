// Package scheduler runs recurring backtests on cron schedules. Each job
// re-runs a configured strategy over a sliding lookback window, keeping a
// fresh performance baseline without manual submissions.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/config"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/service"
)

// Scheduler manages recurring backtest jobs
type Scheduler struct {
	cron       *cron.Cron
	backtester *service.BacktestService
	logger     *logrus.Logger
	mu         sync.RWMutex
	isRunning  bool
	jobIDs     []cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(backtester *service.BacktestService, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		backtester: backtester,
		logger:     logger,
		jobIDs:     make([]cron.EntryID, 0),
	}
}

// ScheduleJob registers one recurring backtest. The window slides: each
// firing backtests the configured lookback ending at the firing time.
func (s *Scheduler) ScheduleJob(job config.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	lookback, err := time.ParseDuration(job.Lookback)
	if err != nil {
		return fmt.Errorf("job %s: invalid lookback %q: %w", job.Name, job.Lookback, err)
	}
	if lookback <= 0 {
		return fmt.Errorf("job %s: lookback must be positive", job.Name)
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		end := time.Now().UTC()
		start := end.Add(-lookback)

		s.logger.WithFields(logrus.Fields{
			"job":      job.Name,
			"strategy": job.Strategy,
			"start":    start,
			"end":      end,
		}).Info("Starting scheduled backtest")

		result, err := s.backtester.RunBacktest(ctx, service.BacktestRequest{
			StrategyName: job.Strategy,
			Symbols:      job.Symbols,
			Timeframe:    models.Timeframe(job.Timeframe),
			StartDate:    start,
			EndDate:      end,
		})
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"job":   job.Name,
				"error": err,
			}).Error("Scheduled backtest failed")
			return
		}

		s.logger.WithFields(logrus.Fields{
			"job":          job.Name,
			"total_return": result.Metrics.TotalReturn,
			"sharpe_ratio": result.Metrics.SharpeRatio,
		}).Info("Scheduled backtest completed")
	}

	entryID, err := s.cron.AddFunc(job.Cron, jobFunc)
	if err != nil {
		return fmt.Errorf("job %s: failed to add cron entry: %w", job.Name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"job":  job.Name,
		"cron": job.Cron,
	}).Info("Scheduled recurring backtest")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}
