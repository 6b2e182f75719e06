// Package scheduler runs the daily summary precalculation on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"view-analytics-service/internal/analytics/core/usecase"
	"view-analytics-service/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

type PrecalculateRunner interface {
	Run(ctx context.Context, r usecase.DateRange) (usecase.PrecalculateReport, error)
}

// Scheduler recomputes the trailing window of days on every tick. A tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  PrecalculateRunner
	days    int
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time
}

type Option func(*Scheduler)

// WithTimeout bounds a single scheduled run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New validates schedule (standard five-field cron syntax, evaluated in UTC)
// and registers the job. Call Start to begin firing.
func New(runner PrecalculateRunner, schedule string, days int, log logger.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		days:   days,
		log:    log.With(logger.String("component", "precalc_scheduler")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("schedule precalculation %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Precalculation scheduler started", logger.Int("days", s.days))
}

// Stop stops firing and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunWindow precalculates today and the configured number of days before it.
func (s *Scheduler) RunWindow(ctx context.Context) (usecase.PrecalculateReport, error) {
	return s.runner.Run(ctx, usecase.LastDays(s.now(), s.days))
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.RunWindow(ctx)
	if err != nil {
		s.log.Error("Scheduled precalculation failed", logger.String("run_id", report.RunID), logger.Error(err))
		return
	}
	if len(report.Failed) > 0 {
		s.log.Warn("Scheduled precalculation left days stale",
			logger.String("run_id", report.RunID),
			logger.Int("failed", len(report.Failed)),
		)
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
