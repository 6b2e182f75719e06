package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/ports"
)

var ErrInvalidParameter = errors.New("invalid parameter")

const (
	DefaultTopLimit = 10
	DefaultMaxLimit = 100

	SourceSummary = "summary"
	SourceRaw     = "raw"

	RangeAuto = "auto"

	// maxAutoBuckets is the most buckets auto granularity will produce
	// unless even yearly buckets exceed it.
	maxAutoBuckets = 60
)

type GroupedInput struct {
	By     string // "country" / "author" ("user" is accepted)
	Source string // "summary" (default) / "raw"
	Filter filter.Node
}

type TopInput struct {
	Kind   string // "blog" / "author" ("user") / "country"
	Limit  int    // 0 means the default limit
	Filter filter.Node
}

type PerformanceInput struct {
	Range  string // "day" / "week" / "month" / "year" / "auto" (default)
	Filter filter.Node
}

// QueryUseCase runs the grouped, top-N and performance aggregations.
// It holds no mutable state and is safe for concurrent use.
type QueryUseCase struct {
	views     ports.ViewReaderPort
	summaries ports.SummaryReaderPort
	cache     ports.ResultCachePort

	viewFields    filter.Whitelist
	summaryFields filter.Whitelist
	filterOpts    []filter.Option
	defaultLimit  int
	maxLimit      int

	viewCompiler    *filter.Compiler
	summaryCompiler *filter.Compiler
}

type QueryOption func(*QueryUseCase)

// WithCache puts a read-through cache in front of every query.
func WithCache(c ports.ResultCachePort) QueryOption {
	return func(uc *QueryUseCase) { uc.cache = c }
}

// WithWhitelists replaces the filterable fields of the raw and summary paths.
func WithWhitelists(views, summaries filter.Whitelist) QueryOption {
	return func(uc *QueryUseCase) {
		uc.viewFields = views
		uc.summaryFields = summaries
	}
}

// WithFilterLimits bounds the depth and node count of accepted filters.
func WithFilterLimits(maxDepth, maxNodes int) QueryOption {
	return func(uc *QueryUseCase) {
		uc.filterOpts = []filter.Option{filter.WithMaxDepth(maxDepth), filter.WithMaxNodes(maxNodes)}
	}
}

// WithDefaultLimit sets the limit of top-N queries that do not ask for one.
func WithDefaultLimit(n int) QueryOption {
	return func(uc *QueryUseCase) {
		if n > 0 {
			uc.defaultLimit = n
		}
	}
}

// WithMaxLimit caps the limit a top-N query may ask for.
func WithMaxLimit(n int) QueryOption {
	return func(uc *QueryUseCase) {
		if n > 0 {
			uc.maxLimit = n
		}
	}
}

func NewQueryUseCase(views ports.ViewReaderPort, summaries ports.SummaryReaderPort, opts ...QueryOption) *QueryUseCase {
	uc := &QueryUseCase{
		views:         views,
		summaries:     summaries,
		viewFields:    filter.ViewFields(),
		summaryFields: filter.SummaryFields(),
		defaultLimit:  DefaultTopLimit,
		maxLimit:      DefaultMaxLimit,
	}
	for _, opt := range opts {
		opt(uc)
	}
	uc.viewCompiler = filter.NewCompiler(uc.viewFields, uc.filterOpts...)
	uc.summaryCompiler = filter.NewCompiler(uc.summaryFields, uc.filterOpts...)
	return uc
}

// Grouped returns views grouped by country or author: x is the group,
// y the blog count and z the view count, ordered by z desc then x asc.
//
// The summary source sums per-day distinct blog counts, so y counts
// blog-days when the filter spans several days. The raw source counts
// distinct blogs exactly.
func (uc *QueryUseCase) Grouped(ctx context.Context, in GroupedInput) ([]domain.Row, error) {
	by, err := parseDimension(in.By, domain.DimensionCountry, domain.DimensionAuthor)
	if err != nil {
		return nil, err
	}

	source := in.Source
	if source == "" {
		source = SourceSummary
	}
	if source != SourceSummary && source != SourceRaw {
		return nil, fmt.Errorf("%w: source %q", ErrInvalidParameter, in.Source)
	}

	compiler := uc.summaryCompiler
	if source == SourceRaw {
		compiler = uc.viewCompiler
	}
	where, err := compiler.Compile(in.Filter)
	if err != nil {
		return nil, err
	}

	kind := "grouped:" + string(by) + ":" + source
	return uc.run(ctx, kind, in.Filter, func(ctx context.Context) ([]domain.Row, error) {
		var groups []domain.GroupTotals
		var err error
		if source == SourceRaw {
			groups, err = uc.views.GroupViews(ctx, ports.ViewGroupQuery{Where: where, By: by})
		} else {
			groups, err = uc.summaries.GroupSummaries(ctx, ports.SummaryGroupQuery{Where: where, By: by})
		}
		if err != nil {
			return nil, err
		}

		sortGroups(groups)
		rows := make([]domain.Row, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, domain.Row{X: g.Label, Y: g.Distinct, Z: domain.Value(float64(g.Views))})
		}
		return rows, nil
	})
}

// Top returns the entities with the most views: x is the entity, y its
// views and z the distinct countries (blogs) or distinct blogs (authors,
// countries), ordered by y desc then x asc.
func (uc *QueryUseCase) Top(ctx context.Context, in TopInput) ([]domain.Row, error) {
	kind, err := parseDimension(in.Kind, domain.DimensionBlog, domain.DimensionAuthor, domain.DimensionCountry)
	if err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit == 0 {
		limit = uc.defaultLimit
	}
	if limit < 1 || limit > uc.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidParameter, uc.maxLimit, in.Limit)
	}

	where, err := uc.viewCompiler.Compile(in.Filter)
	if err != nil {
		return nil, err
	}

	cacheKind := "top:" + string(kind) + ":" + strconv.Itoa(limit)
	return uc.run(ctx, cacheKind, in.Filter, func(ctx context.Context) ([]domain.Row, error) {
		groups, err := uc.views.GroupViews(ctx, ports.ViewGroupQuery{Where: where, By: kind, Limit: limit})
		if err != nil {
			return nil, err
		}

		sortGroups(groups)
		if len(groups) > limit {
			groups = groups[:limit]
		}
		rows := make([]domain.Row, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, domain.Row{X: g.Label, Y: g.Views, Z: domain.Value(float64(g.Distinct))})
		}
		return rows, nil
	})
}

// Performance returns views per time bucket in chronological order: x is
// "<bucket start> (<n> blogs)", y the views and z the growth in percent
// against the previous bucket.
func (uc *QueryUseCase) Performance(ctx context.Context, in PerformanceInput) ([]domain.Row, error) {
	rng := in.Range
	if rng == "" {
		rng = RangeAuto
	}
	switch domain.Granularity(rng) {
	case domain.GranularityDay, domain.GranularityWeek, domain.GranularityMonth, domain.GranularityYear:
	default:
		if rng != RangeAuto {
			return nil, fmt.Errorf("%w: range %q", ErrInvalidParameter, in.Range)
		}
	}

	where, err := uc.viewCompiler.Compile(in.Filter)
	if err != nil {
		return nil, err
	}

	return uc.run(ctx, "performance:"+rng, in.Filter, func(ctx context.Context) ([]domain.Row, error) {
		span, err := uc.views.ViewSpan(ctx, where)
		if err != nil {
			return nil, err
		}
		if span.Empty {
			return []domain.Row{}, nil
		}

		g := domain.Granularity(rng)
		if rng == RangeAuto {
			g = AutoGranularity(span)
		}

		buckets, err := uc.views.BucketViews(ctx, ports.BucketQuery{Where: where, Granularity: g})
		if err != nil {
			return nil, err
		}
		return performanceRows(buckets, g, span), nil
	})
}

func (uc *QueryUseCase) run(ctx context.Context, kind string, where filter.Node, compute ports.ComputeFunc) ([]domain.Row, error) {
	if uc.cache == nil {
		return compute(ctx)
	}
	return uc.cache.GetOrCompute(ctx, kind, where, compute)
}

// AutoGranularity picks the finest granularity that covers span in at most
// maxAutoBuckets buckets, falling back to years.
func AutoGranularity(span domain.Span) domain.Granularity {
	for _, g := range []domain.Granularity{
		domain.GranularityDay,
		domain.GranularityWeek,
		domain.GranularityMonth,
	} {
		if g.Count(span.From, span.To) <= maxAutoBuckets {
			return g
		}
	}
	return domain.GranularityYear
}

func performanceRows(buckets []domain.BucketTotals, g domain.Granularity, span domain.Span) []domain.Row {
	byStart := make(map[int64]domain.BucketTotals, len(buckets))
	for _, b := range buckets {
		start := g.Truncate(b.Start)
		acc := byStart[start.Unix()]
		acc.Start = start
		acc.Views += b.Views
		acc.Blogs += b.Blogs
		byStart[start.Unix()] = acc
	}

	var rows []domain.Row
	var prev int64
	for start, last := g.Truncate(span.From), g.Truncate(span.To); !start.After(last); start = g.Next(start) {
		b := byStart[start.Unix()]
		rows = append(rows, domain.Row{
			X: fmt.Sprintf("%s (%d blogs)", start.Format("2006-01-02"), b.Blogs),
			Y: b.Views,
			Z: growth(prev, b.Views, rows == nil),
		})
		prev = b.Views
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return rows
}

// growth is the percentage change from prev to curr rounded to two
// decimals. The first bucket has no predecessor and reports 0. A rise from
// zero has no finite percentage and is reported as undefined.
func growth(prev, curr int64, first bool) domain.Metric {
	switch {
	case first:
		return domain.Value(0)
	case prev == 0 && curr == 0:
		return domain.Value(0)
	case prev == 0:
		return domain.Undefined()
	}
	pct := float64(curr-prev) / float64(prev) * 100
	return domain.Value(math.Round(pct*100) / 100)
}

func parseDimension(raw string, allowed ...domain.Dimension) (domain.Dimension, error) {
	d := domain.Dimension(raw)
	if raw == "user" {
		d = domain.DimensionAuthor
	}
	if slices.Contains(allowed, d) {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q must be one of %v", ErrInvalidParameter, raw, allowed)
}

func sortGroups(groups []domain.GroupTotals) {
	slices.SortFunc(groups, func(a, b domain.GroupTotals) int {
		if c := cmp.Compare(b.Views, a.Views); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}
