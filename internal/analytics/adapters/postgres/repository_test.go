package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/ports"
)

// fakeRowScanner implements RowScanner for tests.
type fakeRowScanner struct {
	rows []fakeRow
	i    int
	err  error
}

type fakeRow struct {
	values []any
}

func (f *fakeRowScanner) Next() bool {
	return f.i < len(f.rows)
}

func (f *fakeRowScanner) Scan(dest ...any) error {
	if f.i >= len(f.rows) {
		return errors.New("no more rows")
	}
	row := f.rows[f.i]
	if len(dest) != len(row.values) {
		return errors.New("dest length mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *int64:
			v, ok := row.values[i].(int64)
			if !ok {
				return errors.New("type assertion to int64 failed")
			}
			*d = v
		case *string:
			v, ok := row.values[i].(string)
			if !ok {
				return errors.New("type assertion to string failed")
			}
			*d = v
		case *time.Time:
			v, ok := row.values[i].(time.Time)
			if !ok {
				return errors.New("type assertion to time.Time failed")
			}
			*d = v
		case *sql.NullTime:
			if row.values[i] == nil {
				*d = sql.NullTime{}
				continue
			}
			v, ok := row.values[i].(time.Time)
			if !ok {
				return errors.New("type assertion to time.Time failed")
			}
			*d = sql.NullTime{Time: v, Valid: true}
		default:
			return errors.New("unsupported dest type")
		}
	}
	f.i++
	return nil
}

func (f *fakeRowScanner) Err() error {
	return f.err
}

func (f *fakeRowScanner) Close() error {
	return nil
}

// fakeDB implements DB interface.
type fakeDB struct {
	QueryFn   func(ctx context.Context, query string, args ...any) (RowScanner, error)
	lastQuery string
	lastArgs  []any
	called    bool
}

func (f *fakeDB) QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error) {
	f.called = true
	f.lastQuery = query
	f.lastArgs = args
	if f.QueryFn != nil {
		return f.QueryFn(ctx, query, args...)
	}
	return &fakeRowScanner{}, nil
}

func countryIs(code string) filter.Predicate {
	return filter.StringCond{Field: "country", Op: filter.OpEq, Values: []string{code}}
}

// ------------------------------------------------------------
// GROUP VIEWS
// ------------------------------------------------------------

func TestViewRepository_GroupViewsByBlog(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{
				rows: []fakeRow{
					{values: []any{"10", "Go generics", int64(3), int64(2)}},
					{values: []any{"20", "Postgres tips", int64(1), int64(1)}},
				},
			}, nil
		},
	}

	repo := NewViewRepository(db)

	groups, err := repo.GroupViews(context.Background(), ports.ViewGroupQuery{
		Where: countryIs("US"),
		By:    domain.DimensionBlog,
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"v.blog_id::text AS group_key",
		"b.title AS group_label",
		"COUNT(DISTINCT v.country_code)",
		"WHERE v.country_code = $1",
		"LIMIT $2",
	} {
		if !strings.Contains(db.lastQuery, want) {
			t.Fatalf("expected %q in query, got: %s", want, db.lastQuery)
		}
	}
	if len(db.lastArgs) != 2 || db.lastArgs[0] != "US" || db.lastArgs[1] != 5 {
		t.Fatalf("unexpected args: %v", db.lastArgs)
	}
	if len(groups) != 2 || groups[0].Label != "Go generics" || groups[0].Distinct != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestViewRepository_GroupViewsByAuthorWithoutLimit(t *testing.T) {
	db := &fakeDB{}
	repo := NewViewRepository(db)

	if _, err := repo.GroupViews(context.Background(), ports.ViewGroupQuery{By: domain.DimensionAuthor}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.lastQuery, "u.username AS group_label") || strings.Contains(db.lastQuery, "LIMIT") {
		t.Fatalf("unexpected query: %s", db.lastQuery)
	}
	if !strings.Contains(db.lastQuery, "WHERE TRUE") {
		t.Fatalf("expected empty filter to render as TRUE, got: %s", db.lastQuery)
	}
}

func TestViewRepository_GroupViewsUnsupportedDimension(t *testing.T) {
	db := &fakeDB{}
	repo := NewViewRepository(db)

	if _, err := repo.GroupViews(context.Background(), ports.ViewGroupQuery{By: "planet"}); err == nil {
		t.Fatalf("expected error for unsupported dimension")
	}
	if db.called {
		t.Fatalf("expected no query")
	}
}

func TestViewRepository_QueryError(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return nil, errors.New("db failure")
		},
	}
	repo := NewViewRepository(db)

	_, err := repo.GroupViews(context.Background(), ports.ViewGroupQuery{By: domain.DimensionCountry})
	if err == nil || err.Error() != "db failure" {
		t.Fatalf("expected 'db failure', got %v", err)
	}
}

// ------------------------------------------------------------
// SPAN AND BUCKETS
// ------------------------------------------------------------

func TestViewRepository_ViewSpan(t *testing.T) {
	from := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 9, 18, 0, 0, 0, time.UTC)

	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: []fakeRow{{values: []any{from, to}}}}, nil
		},
	}
	repo := NewViewRepository(db)

	span, err := repo.ViewSpan(context.Background(), countryIs("US"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span.Empty || !span.From.Equal(from) || !span.To.Equal(to) {
		t.Fatalf("unexpected span: %+v", span)
	}
}

func TestViewRepository_ViewSpanEmpty(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: []fakeRow{{values: []any{nil, nil}}}}, nil
		},
	}
	repo := NewViewRepository(db)

	span, err := repo.ViewSpan(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !span.Empty {
		t.Fatalf("expected empty span, got %+v", span)
	}
}

func TestViewRepository_BucketViews(t *testing.T) {
	week1 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	week2 := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)

	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			if !strings.Contains(query, "date_trunc('week', v.viewed_at AT TIME ZONE 'UTC')") {
				t.Fatalf("expected weekly date_trunc, got: %s", query)
			}
			return &fakeRowScanner{
				rows: []fakeRow{
					{values: []any{week1, int64(100), int64(3)}},
					{values: []any{week2, int64(150), int64(4)}},
				},
			}, nil
		},
	}
	repo := NewViewRepository(db)

	buckets, err := repo.BucketViews(context.Background(), ports.BucketQuery{Granularity: domain.GranularityWeek})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 2 || !buckets[1].Start.Equal(week2) || buckets[1].Views != 150 || buckets[1].Blogs != 4 {
		t.Fatalf("unexpected buckets: %+v", buckets)
	}
}

func TestViewRepository_BucketViewsRejectsUnknownGranularity(t *testing.T) {
	db := &fakeDB{}
	repo := NewViewRepository(db)

	if _, err := repo.BucketViews(context.Background(), ports.BucketQuery{Granularity: "hour'; DROP TABLE x; --"}); err == nil {
		t.Fatalf("expected error")
	}
	if db.called {
		t.Fatalf("expected no query")
	}
}

// ------------------------------------------------------------
// DAILY SOURCE
// ------------------------------------------------------------

func TestViewRepository_EarliestViewDay(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: []fakeRow{{values: []any{time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)}}}}, nil
		},
	}
	repo := NewViewRepository(db)

	day, ok, err := repo.EarliestViewDay(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected a day, got ok=%v err=%v", ok, err)
	}
	if !day.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day: %v", day)
	}
}

func TestViewRepository_EarliestViewDayNoViews(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: []fakeRow{{values: []any{nil}}}}, nil
		},
	}
	repo := NewViewRepository(db)

	_, ok, err := repo.EarliestViewDay(context.Background())
	if err != nil || ok {
		t.Fatalf("expected no day, got ok=%v err=%v", ok, err)
	}
}

func TestViewRepository_AggregateDay(t *testing.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			if !args[0].(time.Time).Equal(day) || !args[1].(time.Time).Equal(day.AddDate(0, 0, 1)) {
				t.Fatalf("unexpected day range: %v", args)
			}
			return &fakeRowScanner{
				rows: []fakeRow{
					{values: []any{"UK", int64(1), "alice", int64(1), int64(1)}},
					{values: []any{"US", int64(1), "alice", int64(2), int64(2)}},
				},
			}, nil
		},
	}
	repo := NewViewRepository(db)

	rows, err := repo.AggregateDay(context.Background(), day.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[1].CountryCode != "US" || rows[1].TotalViews != 2 || !rows[1].Date.Equal(day) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

// ------------------------------------------------------------
// SUMMARIES
// ------------------------------------------------------------

func TestSummaryRepository_GroupSummaries(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			if !strings.Contains(query, "FROM daily_summaries s") {
				t.Fatalf("unexpected query: %s", query)
			}
			return &fakeRowScanner{
				rows: []fakeRow{
					{values: []any{"US", "US", int64(2), int64(2)}},
					{values: []any{"UK", "UK", int64(1), int64(1)}},
				},
			}, nil
		},
	}
	repo := NewSummaryRepository(db)

	year := filter.YearCond{Field: "date", Year: 2025}
	groups, err := repo.GroupSummaries(context.Background(), ports.SummaryGroupQuery{Where: year, By: domain.DimensionCountry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.lastQuery, "s.date >= $1::date AND s.date < $2::date") {
		t.Fatalf("expected year range on s.date, got: %s", db.lastQuery)
	}
	if len(groups) != 2 || groups[0].Key != "US" || groups[0].Views != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestSummaryRepository_RejectsBlogDimension(t *testing.T) {
	db := &fakeDB{}
	repo := NewSummaryRepository(db)

	if _, err := repo.GroupSummaries(context.Background(), ports.SummaryGroupQuery{By: domain.DimensionBlog}); err == nil {
		t.Fatalf("expected error")
	}
	if db.called {
		t.Fatalf("expected no query")
	}
}
