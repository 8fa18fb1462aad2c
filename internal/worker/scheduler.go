// Package worker runs background jobs next to the request path.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/observability"
	"github.com/spec-kit/ticket-relay/internal/service"
)

// SweepRunner is the part of the sweeper the scheduler drives.
type SweepRunner interface {
	Enabled() bool
	Sweep(ctx context.Context) (service.SweepReport, error)
}

// Scheduler runs the auto-close sweep on a fixed period. A sweep that is
// still running when the next tick fires makes that tick a no-op.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  SweepRunner
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewScheduler builds a scheduler in UTC.
func NewScheduler(sweeper SweepRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	cronLogger := observability.NewCronLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.Named("scheduler"),
	}
}

// Start registers the sweep and starts the cron engine. A disabled sweeper is never scheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.sweeper.Enabled() {
		s.logger.Info("auto-close disabled; sweeper not scheduled")
		return nil
	}
	if s.interval < time.Second {
		return fmt.Errorf("sweep interval %s is below one second", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.cancel = cancel
	s.started = true
	s.cron.Start()
	s.logger.Info("sweeper scheduled", zap.Duration("interval", s.interval))
	return nil
}

// RunOnce performs a single sweep and logs its report.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	report, err := s.sweeper.Sweep(ctx)
	fields := []zap.Field{
		zap.Int("candidates", report.Candidates),
		zap.Int("closed", report.Closed),
		zap.Int("failed", report.Failed),
		zap.Int("notice_failures", report.NoticeFailures),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.Error("sweep failed", append(fields, zap.Error(err))...)
		return
	}
	if report.Candidates > 0 {
		s.logger.Info("sweep finished", fields...)
	}
}

// Stop cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
