package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/ports"
	"view-analytics-service/internal/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultPrecalculateWorkers = 4

// DateRange is an inclusive range of UTC days. A zero From starts at the
// oldest recorded view; a zero To ends today.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LastDays returns the range covering today and the n days before it.
func LastDays(now time.Time, n int) DateRange {
	today := domain.Day(now)
	return DateRange{From: today.AddDate(0, 0, -n), To: today}
}

type PrecalculateReport struct {
	RunID  string
	From   time.Time
	To     time.Time
	Days   int // days written successfully
	Rows   int
	Failed []time.Time
}

// PrecalculateUseCase rebuilds daily summaries from raw view events.
type PrecalculateUseCase struct {
	source  ports.DailySourcePort
	store   ports.SummaryStorePort
	log     logger.Logger
	workers int
	now     func() time.Time
}

type PrecalculateOption func(*PrecalculateUseCase)

func WithWorkers(n int) PrecalculateOption {
	return func(uc *PrecalculateUseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

func WithClock(now func() time.Time) PrecalculateOption {
	return func(uc *PrecalculateUseCase) { uc.now = now }
}

func NewPrecalculateUseCase(
	source ports.DailySourcePort,
	store ports.SummaryStorePort,
	log logger.Logger,
	opts ...PrecalculateOption,
) *PrecalculateUseCase {
	uc := &PrecalculateUseCase{
		source:  source,
		store:   store,
		log:     log,
		workers: DefaultPrecalculateWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run recomputes and replaces the summaries of every day in r.
//
// Re-running a range yields the same rows. A day that fails is logged and
// reported in Failed, and the remaining days still run. The returned error
// is reserved for an unresolvable range or a cancelled context.
func (uc *PrecalculateUseCase) Run(ctx context.Context, r DateRange) (PrecalculateReport, error) {
	report := PrecalculateReport{RunID: uuid.NewString()}
	log := uc.log.With(logger.String("run_id", report.RunID))

	from := domain.Day(r.From)
	if r.From.IsZero() {
		earliest, ok, err := uc.source.EarliestViewDay(ctx)
		if err != nil {
			return report, fmt.Errorf("resolve earliest view day: %w", err)
		}
		if !ok {
			log.Info("No views recorded, nothing to precalculate")
			return report, nil
		}
		from = earliest
	}
	to := domain.Day(uc.now())
	if !r.To.IsZero() {
		to = domain.Day(r.To)
	}
	if from.After(to) {
		return report, fmt.Errorf("%w: range starts %s after it ends %s",
			ErrInvalidParameter, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	report.From, report.To = from, to

	log.Info("Starting precalculation",
		logger.Date("from", from),
		logger.Date("to", to),
		logger.Int("workers", uc.workers),
	)
	started := time.Now()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(uc.workers)

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rows, err := uc.runDay(ctx, day)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("Precalculation failed for day", logger.Date("date", day), logger.Error(err))
				report.Failed = append(report.Failed, day)
				return nil
			}
			report.Days++
			report.Rows += rows
			return nil
		})
	}
	// Workers record failures in report and always return nil.
	g.Wait()

	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Before(report.Failed[j]) })

	log.Info("Precalculation finished",
		logger.Int("days", report.Days),
		logger.Int("rows", report.Rows),
		logger.Int("failed", len(report.Failed)),
		logger.Duration("took", time.Since(started)),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (uc *PrecalculateUseCase) runDay(ctx context.Context, day time.Time) (int, error) {
	rows, err := uc.source.AggregateDay(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("aggregate: %w", err)
	}
	if err := uc.store.ReplaceDay(ctx, day, rows); err != nil {
		return 0, fmt.Errorf("replace summaries: %w", err)
	}
	return len(rows), nil
}
