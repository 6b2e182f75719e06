package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/ports"
	"view-analytics-service/internal/analytics/core/usecase"
)

// fakeViewReader fakes ViewReaderPort for tests.
type fakeViewReader struct {
	GroupFn  func(ctx context.Context, q ports.ViewGroupQuery) ([]domain.GroupTotals, error)
	SpanFn   func(ctx context.Context, where filter.Predicate) (domain.Span, error)
	BucketFn func(ctx context.Context, q ports.BucketQuery) ([]domain.BucketTotals, error)

	lastGroup  ports.ViewGroupQuery
	lastBucket ports.BucketQuery
	called     bool
}

func (f *fakeViewReader) GroupViews(ctx context.Context, q ports.ViewGroupQuery) ([]domain.GroupTotals, error) {
	f.called = true
	f.lastGroup = q
	if f.GroupFn != nil {
		return f.GroupFn(ctx, q)
	}
	return nil, nil
}

func (f *fakeViewReader) ViewSpan(ctx context.Context, where filter.Predicate) (domain.Span, error) {
	f.called = true
	if f.SpanFn != nil {
		return f.SpanFn(ctx, where)
	}
	return domain.Span{Empty: true}, nil
}

func (f *fakeViewReader) BucketViews(ctx context.Context, q ports.BucketQuery) ([]domain.BucketTotals, error) {
	f.called = true
	f.lastBucket = q
	if f.BucketFn != nil {
		return f.BucketFn(ctx, q)
	}
	return nil, nil
}

// fakeSummaryReader fakes SummaryReaderPort for tests.
type fakeSummaryReader struct {
	GroupFn func(ctx context.Context, q ports.SummaryGroupQuery) ([]domain.GroupTotals, error)
	called  bool
}

func (f *fakeSummaryReader) GroupSummaries(ctx context.Context, q ports.SummaryGroupQuery) ([]domain.GroupTotals, error) {
	f.called = true
	if f.GroupFn != nil {
		return f.GroupFn(ctx, q)
	}
	return nil, nil
}

// fakeCache records the kinds it was asked for and always computes.
type fakeCache struct {
	kinds []string
}

func (f *fakeCache) GetOrCompute(ctx context.Context, kind string, _ filter.Node, compute ports.ComputeFunc) ([]domain.Row, error) {
	f.kinds = append(f.kinds, kind)
	return compute(ctx)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// ------------------------------------------------------------
// GROUPED
// ------------------------------------------------------------

func TestGrouped_SummarySourceByDefault(t *testing.T) {
	views := &fakeViewReader{}
	summaries := &fakeSummaryReader{
		GroupFn: func(ctx context.Context, q ports.SummaryGroupQuery) ([]domain.GroupTotals, error) {
			if q.By != domain.DimensionCountry {
				t.Fatalf("expected by=country, got %s", q.By)
			}
			return []domain.GroupTotals{
				{Key: "UK", Label: "UK", Views: 1, Distinct: 1},
				{Key: "US", Label: "US", Views: 2, Distinct: 2},
			}, nil
		},
	}

	uc := usecase.NewQueryUseCase(views, summaries)

	rows, err := uc.Grouped(context.Background(), usecase.GroupedInput{By: "country"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if views.called {
		t.Fatalf("expected raw views not to be read")
	}
	if len(rows) != 2 || rows[0].X != "US" || rows[1].X != "UK" {
		t.Fatalf("expected US then UK, got %+v", rows)
	}
	if z, _ := rows[0].Z.Float64(); rows[0].Y != 2 || z != 2 {
		t.Fatalf("unexpected US row: %+v", rows[0])
	}
}

func TestGrouped_RawSourceUsesViewWhitelist(t *testing.T) {
	views := &fakeViewReader{
		GroupFn: func(ctx context.Context, q ports.ViewGroupQuery) ([]domain.GroupTotals, error) {
			return []domain.GroupTotals{{Key: "1", Label: "alice", Views: 3, Distinct: 2}}, nil
		},
	}
	summaries := &fakeSummaryReader{}
	uc := usecase.NewQueryUseCase(views, summaries)

	// blog_title is filterable on raw events only.
	where := &filter.Leaf{Field: "blog_title", Op: filter.OpContains, Value: "go"}

	rows, err := uc.Grouped(context.Background(), usecase.GroupedInput{By: "user", Source: "raw", Filter: where})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summaries.called {
		t.Fatalf("expected summaries not to be read")
	}
	if views.lastGroup.By != domain.DimensionAuthor {
		t.Fatalf("expected user to alias author, got %s", views.lastGroup.By)
	}
	if len(rows) != 1 || rows[0].X != "alice" || rows[0].Y != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	_, err = uc.Grouped(context.Background(), usecase.GroupedInput{By: "author", Filter: where})
	if !errors.Is(err, filter.ErrForbiddenField) {
		t.Fatalf("expected ErrForbiddenField on the summary source, got %v", err)
	}
}

func TestGrouped_InvalidParameters(t *testing.T) {
	tests := []usecase.GroupedInput{
		{By: ""},
		{By: "blog"},
		{By: "planet"},
		{By: "country", Source: "warehouse"},
	}

	for _, in := range tests {
		views := &fakeViewReader{}
		summaries := &fakeSummaryReader{}
		uc := usecase.NewQueryUseCase(views, summaries)

		_, err := uc.Grouped(context.Background(), in)
		if !errors.Is(err, usecase.ErrInvalidParameter) {
			t.Fatalf("expected ErrInvalidParameter for %+v, got %v", in, err)
		}
		if views.called || summaries.called {
			t.Fatalf("storage must not be touched for %+v", in)
		}
	}
}

func TestGrouped_InvalidFilterNeverReachesStorageOrCache(t *testing.T) {
	views := &fakeViewReader{}
	summaries := &fakeSummaryReader{}
	cache := &fakeCache{}
	uc := usecase.NewQueryUseCase(views, summaries, usecase.WithCache(cache))

	where := &filter.Leaf{Field: "password", Value: "x"}
	_, err := uc.Grouped(context.Background(), usecase.GroupedInput{By: "country", Filter: where})

	if !errors.Is(err, filter.ErrForbiddenField) {
		t.Fatalf("expected ErrForbiddenField, got %v", err)
	}
	if views.called || summaries.called || len(cache.kinds) != 0 {
		t.Fatalf("expected no storage or cache access")
	}
}

func TestGrouped_StorageError(t *testing.T) {
	summaries := &fakeSummaryReader{
		GroupFn: func(ctx context.Context, q ports.SummaryGroupQuery) ([]domain.GroupTotals, error) {
			return nil, errors.New("db failure")
		},
	}
	uc := usecase.NewQueryUseCase(&fakeViewReader{}, summaries)

	_, err := uc.Grouped(context.Background(), usecase.GroupedInput{By: "country"})
	if err == nil || err.Error() != "db failure" {
		t.Fatalf("expected 'db failure', got %v", err)
	}
}

// ------------------------------------------------------------
// TOP
// ------------------------------------------------------------

func TestTop_DefaultLimitAndOrdering(t *testing.T) {
	views := &fakeViewReader{
		GroupFn: func(ctx context.Context, q ports.ViewGroupQuery) ([]domain.GroupTotals, error) {
			return []domain.GroupTotals{
				{Key: "2", Label: "beta", Views: 5, Distinct: 1},
				{Key: "3", Label: "alpha", Views: 5, Distinct: 2},
				{Key: "1", Label: "gamma", Views: 9, Distinct: 3},
			}, nil
		},
	}
	cache := &fakeCache{}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{}, usecase.WithCache(cache))

	rows, err := uc.Top(context.Background(), usecase.TopInput{Kind: "blog"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if views.lastGroup.Limit != usecase.DefaultTopLimit || views.lastGroup.By != domain.DimensionBlog {
		t.Fatalf("unexpected query: %+v", views.lastGroup)
	}
	want := []string{"gamma", "alpha", "beta"}
	for i, w := range want {
		if rows[i].X != w {
			t.Fatalf("row %d: expected %s, got %s", i, w, rows[i].X)
		}
	}
	if rows[0].Y != 9 {
		t.Fatalf("expected y=views=9, got %d", rows[0].Y)
	}
	if len(cache.kinds) != 1 || cache.kinds[0] != "top:blog:10" {
		t.Fatalf("unexpected cache kinds: %v", cache.kinds)
	}
}

func TestTop_TruncatesToLimit(t *testing.T) {
	views := &fakeViewReader{
		GroupFn: func(ctx context.Context, q ports.ViewGroupQuery) ([]domain.GroupTotals, error) {
			return []domain.GroupTotals{
				{Key: "US", Label: "US", Views: 3},
				{Key: "UK", Label: "UK", Views: 2},
				{Key: "DE", Label: "DE", Views: 1},
			}, nil
		},
	}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{})

	rows, err := uc.Top(context.Background(), usecase.TopInput{Kind: "country", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestTop_InvalidParameters(t *testing.T) {
	tests := []usecase.TopInput{
		{Kind: "planet"},
		{Kind: "blog", Limit: -1},
		{Kind: "blog", Limit: 101},
	}

	for _, in := range tests {
		views := &fakeViewReader{}
		uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{})

		_, err := uc.Top(context.Background(), in)
		if !errors.Is(err, usecase.ErrInvalidParameter) {
			t.Fatalf("expected ErrInvalidParameter for %+v, got %v", in, err)
		}
		if views.called {
			t.Fatalf("storage must not be touched for %+v", in)
		}
	}
}

func TestTop_MaxLimitIsConfigurable(t *testing.T) {
	uc := usecase.NewQueryUseCase(&fakeViewReader{}, &fakeSummaryReader{}, usecase.WithMaxLimit(5))

	if _, err := uc.Top(context.Background(), usecase.TopInput{Kind: "blog", Limit: 6}); !errors.Is(err, usecase.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := uc.Top(context.Background(), usecase.TopInput{Kind: "blog", Limit: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTop_WithDefaultLimit(t *testing.T) {
	views := &fakeViewReader{}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{}, usecase.WithDefaultLimit(3))

	if _, err := uc.Top(context.Background(), usecase.TopInput{Kind: "country"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if views.lastGroup.Limit != 3 {
		t.Fatalf("expected limit 3, got %d", views.lastGroup.Limit)
	}
}

// ------------------------------------------------------------
// PERFORMANCE
// ------------------------------------------------------------

func TestPerformance_EmptySpan(t *testing.T) {
	views := &fakeViewReader{}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{})

	rows, err := uc.Performance(context.Background(), usecase.PerformanceInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil rows, got %#v", rows)
	}
}

func TestPerformance_GapFilledGrowth(t *testing.T) {
	views := &fakeViewReader{
		SpanFn: func(ctx context.Context, where filter.Predicate) (domain.Span, error) {
			return domain.Span{From: day("2025-01-01").Add(9 * time.Hour), To: day("2025-01-05").Add(18 * time.Hour)}, nil
		},
		BucketFn: func(ctx context.Context, q ports.BucketQuery) ([]domain.BucketTotals, error) {
			return []domain.BucketTotals{
				{Start: day("2025-01-01"), Views: 10, Blogs: 2},
				{Start: day("2025-01-02"), Views: 15, Blogs: 1},
				{Start: day("2025-01-04"), Views: 6, Blogs: 1},
				{Start: day("2025-01-05"), Views: 3, Blogs: 3},
			}, nil
		},
	}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{})

	rows, err := uc.Performance(context.Background(), usecase.PerformanceInput{Range: "auto"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if views.lastBucket.Granularity != domain.GranularityDay {
		t.Fatalf("expected day buckets for a 5 day span, got %s", views.lastBucket.Granularity)
	}

	type want struct {
		x       string
		y       int64
		z       float64
		defined bool
	}
	expected := []want{
		{"2025-01-01 (2 blogs)", 10, 0, true},
		{"2025-01-02 (1 blogs)", 15, 50, true},
		{"2025-01-03 (0 blogs)", 0, -100, true},
		{"2025-01-04 (1 blogs)", 6, 0, false},
		{"2025-01-05 (3 blogs)", 3, -50, true},
	}
	if len(rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d: %+v", len(expected), len(rows), rows)
	}
	for i, w := range expected {
		z, ok := rows[i].Z.Float64()
		if rows[i].X != w.x || rows[i].Y != w.y || ok != w.defined || (ok && z != w.z) {
			t.Fatalf("row %d: expected %+v, got %+v", i, w, rows[i])
		}
	}
}

func TestPerformance_ZeroToZeroIsZeroGrowth(t *testing.T) {
	views := &fakeViewReader{
		SpanFn: func(ctx context.Context, where filter.Predicate) (domain.Span, error) {
			return domain.Span{From: day("2025-03-03"), To: day("2025-03-17")}, nil
		},
		BucketFn: func(ctx context.Context, q ports.BucketQuery) ([]domain.BucketTotals, error) {
			return []domain.BucketTotals{{Start: day("2025-03-17"), Views: 4, Blogs: 1}}, nil
		},
	}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{})

	rows, err := uc.Performance(context.Background(), usecase.PerformanceInput{Range: "week"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 weekly buckets, got %+v", rows)
	}
	if z, ok := rows[1].Z.Float64(); !ok || z != 0 {
		t.Fatalf("expected 0 growth from 0 to 0, got %v", rows[1].Z)
	}
	if _, ok := rows[2].Z.Float64(); ok {
		t.Fatalf("expected undefined growth from 0 to 4, got %v", rows[2].Z)
	}
}

func TestPerformance_InvalidRange(t *testing.T) {
	views := &fakeViewReader{}
	uc := usecase.NewQueryUseCase(views, &fakeSummaryReader{})

	_, err := uc.Performance(context.Background(), usecase.PerformanceInput{Range: "hour"})
	if !errors.Is(err, usecase.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if views.called {
		t.Fatalf("storage must not be touched")
	}
}

func TestAutoGranularity(t *testing.T) {
	tests := []struct {
		from, to string
		want     domain.Granularity
	}{
		{"2025-01-01", "2025-01-01", domain.GranularityDay},
		{"2025-01-01", "2025-03-01", domain.GranularityDay},   // 60 days
		{"2025-01-01", "2025-03-02", domain.GranularityWeek},  // 61 days
		{"2025-01-01", "2026-02-01", domain.GranularityWeek},  // 57 weeks
		{"2025-01-01", "2027-01-01", domain.GranularityMonth}, // 25 months
		{"2020-01-01", "2026-01-01", domain.GranularityYear},  // 73 months
	}

	for _, tt := range tests {
		got := usecase.AutoGranularity(domain.Span{From: day(tt.from), To: day(tt.to)})
		if got != tt.want {
			t.Fatalf("%s..%s: expected %s, got %s", tt.from, tt.to, tt.want, got)
		}
	}
}
