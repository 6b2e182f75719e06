package ports

import (
	"context"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
)

// ViewGroupQuery groups matching view events by an entity.
// Distinct counts countries for DimensionBlog and blogs otherwise.
// Limit <= 0 means no limit; results are ordered by views desc, label asc, key asc.
type ViewGroupQuery struct {
	Where filter.Predicate
	By    domain.Dimension
	Limit int
}

// SummaryGroupQuery sums daily summaries per country or author.
// Views is the sum of total_views, Distinct the sum of unique_blogs.
type SummaryGroupQuery struct {
	Where filter.Predicate
	By    domain.Dimension
}

// BucketQuery counts matching views per time bucket, in chronological order.
type BucketQuery struct {
	Where       filter.Predicate
	Granularity domain.Granularity
}

// ViewReaderPort reads aggregates over raw view events.
type ViewReaderPort interface {
	GroupViews(ctx context.Context, q ViewGroupQuery) ([]domain.GroupTotals, error)
	ViewSpan(ctx context.Context, where filter.Predicate) (domain.Span, error)
	BucketViews(ctx context.Context, q BucketQuery) ([]domain.BucketTotals, error)
}

// SummaryReaderPort reads aggregates over daily summaries.
type SummaryReaderPort interface {
	GroupSummaries(ctx context.Context, q SummaryGroupQuery) ([]domain.GroupTotals, error)
}

// DailySourcePort computes summaries from raw view events.
type DailySourcePort interface {
	// EarliestViewDay returns the UTC day of the oldest view; ok is false when there are none.
	EarliestViewDay(ctx context.Context) (day time.Time, ok bool, err error)
	// AggregateDay returns one summary per (country, author) with views on day.
	AggregateDay(ctx context.Context, day time.Time) ([]domain.DailySummary, error)
}

// SummaryStorePort persists daily summaries.
type SummaryStorePort interface {
	// ReplaceDay atomically replaces every summary row of day with rows.
	// Concurrent calls for the same day must serialize.
	ReplaceDay(ctx context.Context, day time.Time, rows []domain.DailySummary) error
}
