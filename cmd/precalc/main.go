package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	analyticsRepoPg "view-analytics-service/internal/analytics/adapters/postgres"
	"view-analytics-service/internal/analytics/adapters/scheduler"
	analyticsUsecase "view-analytics-service/internal/analytics/core/usecase"
	"view-analytics-service/internal/platform/config"
	"view-analytics-service/internal/platform/database"
	"view-analytics-service/internal/platform/logger"
)

var (
	configPath = flag.String("config", config.Path(), "Path to the YAML config file")
	runOnce    = flag.Bool("run-once", false, "Precalculate once and exit (for backfills)")
	days       = flag.Int("days", 0, "With --run-once: recompute today and the N days before it (default precalc.days)")
	fromDate   = flag.String("from", "", "With --run-once: first day to recompute (YYYY-MM-DD). Empty starts at the earliest view")
	toDate     = flag.String("to", "", "With --run-once: last day to recompute (YYYY-MM-DD). Empty means today")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	if cfg.Database.Driver != config.DriverPostgres {
		log.Printf("precalc needs database.driver=postgres, got %q", cfg.Database.Driver)
		return 1
	}

	appLog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Printf("failed to build logger: %v", err)
		return 1
	}
	defer func() { _ = appLog.Sync() }()
	appLog = appLog.With(logger.String("service", cfg.Service.Name+"-precalc"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		appLog.Error("Failed to connect to postgres", logger.Error(err))
		return 1
	}
	defer db.Close()

	source := analyticsRepoPg.NewViewRepository(analyticsRepoPg.NewSQLDB(db))
	store := analyticsRepoPg.NewSummaryStore(db)
	precalcUC := analyticsUsecase.NewPrecalculateUseCase(source, store, appLog,
		analyticsUsecase.WithWorkers(cfg.Precalc.Workers))

	// Run once mode (for testing or backfilling)
	if *runOnce {
		r, err := runRange(time.Now())
		if err != nil {
			appLog.Error("Invalid range", logger.Error(err))
			return 2
		}
		if r == nil {
			window := analyticsUsecase.LastDays(time.Now(), cfg.Precalc.Days)
			r = &window
		}

		report, err := precalcUC.Run(ctx, *r)
		if err != nil {
			appLog.Error("Precalculation failed", logger.Error(err))
		}
		return exitCode(report, err)
	}

	// Scheduled mode
	s, err := scheduler.New(precalcUC, cfg.Precalc.Schedule, cfg.Precalc.Days, appLog,
		scheduler.WithTimeout(time.Hour))
	if err != nil {
		appLog.Error("Failed to schedule precalculation", logger.Error(err))
		return 1
	}
	s.Start()
	appLog.Info("Precalculation scheduler running", logger.String("schedule", cfg.Precalc.Schedule))

	<-ctx.Done()
	appLog.Info("Shutting down gracefully")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		appLog.Warn("Precalculation still running at shutdown", logger.Error(err))
	}

	appLog.Info("Precalculation scheduler stopped")
	return 0
}

// exitCode is non-zero when the run failed or left any day stale.
func exitCode(report analyticsUsecase.PrecalculateReport, err error) int {
	if err != nil || len(report.Failed) > 0 {
		return 1
	}
	return 0
}

// runRange resolves the --days, --from and --to flags. It returns nil when
// none is set.
func runRange(now time.Time) (*analyticsUsecase.DateRange, error) {
	if *days > 0 {
		r := analyticsUsecase.LastDays(now, *days)
		return &r, nil
	}
	if *fromDate == "" && *toDate == "" {
		return nil, nil
	}

	var r analyticsUsecase.DateRange
	var err error
	if *fromDate != "" {
		if r.From, err = time.Parse("2006-01-02", *fromDate); err != nil {
			return nil, err
		}
	}
	if *toDate != "" {
		if r.To, err = time.Parse("2006-01-02", *toDate); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
