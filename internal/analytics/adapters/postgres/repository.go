package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/ports"
)

const viewsFrom = `
FROM view_events v
JOIN blogs b ON b.id = v.blog_id
JOIN users u ON u.id = v.author_id`

// ViewRepository pushes filters and aggregations over raw view events into SQL.
type ViewRepository struct {
	db DB
}

func NewViewRepository(db DB) *ViewRepository {
	return &ViewRepository{db: db}
}

var (
	_ ports.ViewReaderPort  = (*ViewRepository)(nil)
	_ ports.DailySourcePort = (*ViewRepository)(nil)
)

// groupSelect returns the key, label and distinct-count expressions of a grouping.
func groupSelect(by domain.Dimension) (key, label, distinct string, err error) {
	switch by {
	case domain.DimensionCountry:
		return "v.country_code", "v.country_code", "v.blog_id", nil
	case domain.DimensionAuthor:
		return "v.author_id::text", "u.username", "v.blog_id", nil
	case domain.DimensionBlog:
		return "v.blog_id::text", "b.title", "v.country_code", nil
	}
	return "", "", "", fmt.Errorf("unsupported group dimension: %s", by)
}

func (r *ViewRepository) GroupViews(ctx context.Context, q ports.ViewGroupQuery) ([]domain.GroupTotals, error) {
	key, label, distinct, err := groupSelect(q.By)
	if err != nil {
		return nil, err
	}

	wb := newWhereBuilder(viewColumns)
	where, err := wb.build(q.Where)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT
    %[1]s AS group_key,
    %[2]s AS group_label,
    COUNT(*) AS views,
    COUNT(DISTINCT %[3]s) AS distinct_count`+viewsFrom+`
WHERE %[4]s
GROUP BY %[1]s, %[2]s
ORDER BY COUNT(*) DESC, (%[2]s) COLLATE "C", (%[1]s) COLLATE "C"`, key, label, distinct, where)

	if q.Limit > 0 {
		query += "\nLIMIT " + wb.bind(q.Limit)
	}

	return scanGroups(ctx, r.db, query, wb.args)
}

func (r *ViewRepository) ViewSpan(ctx context.Context, where filter.Predicate) (domain.Span, error) {
	wb := newWhereBuilder(viewColumns)
	cond, err := wb.build(where)
	if err != nil {
		return domain.Span{}, err
	}

	query := `
SELECT
    MIN(v.viewed_at),
    MAX(v.viewed_at)` + viewsFrom + `
WHERE ` + cond

	rows, err := r.db.QueryContext(ctx, query, wb.args...)
	if err != nil {
		return domain.Span{}, err
	}
	defer rows.Close()

	span := domain.Span{Empty: true}
	if rows.Next() {
		var from, to sql.NullTime
		if err := rows.Scan(&from, &to); err != nil {
			return domain.Span{}, err
		}
		if from.Valid && to.Valid {
			span = domain.Span{From: from.Time.UTC(), To: to.Time.UTC()}
		}
	}

	if err := rows.Err(); err != nil {
		return domain.Span{}, err
	}

	return span, nil
}

func (r *ViewRepository) BucketViews(ctx context.Context, q ports.BucketQuery) ([]domain.BucketTotals, error) {
	switch q.Granularity {
	case domain.GranularityDay, domain.GranularityWeek, domain.GranularityMonth, domain.GranularityYear:
	default:
		return nil, fmt.Errorf("unsupported granularity: %s", q.Granularity)
	}

	wb := newWhereBuilder(viewColumns)
	where, err := wb.build(q.Where)
	if err != nil {
		return nil, err
	}

	// Granularity is one of the whitelisted values above.
	query := fmt.Sprintf(`
SELECT
    date_trunc('%s', v.viewed_at AT TIME ZONE 'UTC') AS bucket,
    COUNT(*) AS views,
    COUNT(DISTINCT v.blog_id) AS blogs%s
WHERE %s
GROUP BY bucket
ORDER BY bucket
`, q.Granularity, viewsFrom, where)

	rows, err := r.db.QueryContext(ctx, query, wb.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []domain.BucketTotals
	for rows.Next() {
		var start time.Time
		var views, blogs int64

		if err := rows.Scan(&start, &views, &blogs); err != nil {
			return nil, err
		}

		// timestamp without time zone, already in UTC
		y, m, d := start.Date()
		hh, mm, ss := start.Clock()
		buckets = append(buckets, domain.BucketTotals{
			Start: time.Date(y, m, d, hh, mm, ss, 0, time.UTC),
			Views: views,
			Blogs: blogs,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buckets, nil
}

func (r *ViewRepository) EarliestViewDay(ctx context.Context) (time.Time, bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT MIN(viewed_at) FROM view_events`)
	if err != nil {
		return time.Time{}, false, err
	}
	defer rows.Close()

	var earliest sql.NullTime
	if rows.Next() {
		if err := rows.Scan(&earliest); err != nil {
			return time.Time{}, false, err
		}
	}

	if err := rows.Err(); err != nil {
		return time.Time{}, false, err
	}

	if !earliest.Valid {
		return time.Time{}, false, nil
	}
	return domain.Day(earliest.Time), true, nil
}

const aggregateDaySQL = `
SELECT
    v.country_code,
    v.author_id,
    u.username,
    COUNT(*) AS total_views,
    COUNT(DISTINCT v.blog_id) AS unique_blogs
FROM view_events v
JOIN users u ON u.id = v.author_id
WHERE v.viewed_at >= $1 AND v.viewed_at < $2
GROUP BY v.country_code, v.author_id, u.username
ORDER BY v.country_code COLLATE "C", v.author_id`

func (r *ViewRepository) AggregateDay(ctx context.Context, day time.Time) ([]domain.DailySummary, error) {
	day = domain.Day(day)

	rows, err := r.db.QueryContext(ctx, aggregateDaySQL, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		s := domain.DailySummary{Date: day}
		if err := rows.Scan(&s.CountryCode, &s.AuthorID, &s.AuthorUsername, &s.TotalViews, &s.UniqueBlogs); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// SummaryRepository reads pre-aggregated daily summaries.
type SummaryRepository struct {
	db DB
}

func NewSummaryRepository(db DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

var _ ports.SummaryReaderPort = (*SummaryRepository)(nil)

func (r *SummaryRepository) GroupSummaries(ctx context.Context, q ports.SummaryGroupQuery) ([]domain.GroupTotals, error) {
	var key, label string
	switch q.By {
	case domain.DimensionCountry:
		key, label = "s.country_code", "s.country_code"
	case domain.DimensionAuthor:
		key, label = "s.author_id::text", "u.username"
	default:
		return nil, fmt.Errorf("unsupported group dimension: %s", q.By)
	}

	wb := newWhereBuilder(summaryColumns)
	where, err := wb.build(q.Where)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT
    %[1]s AS group_key,
    %[2]s AS group_label,
    SUM(s.total_views)::bigint AS views,
    SUM(s.unique_blogs)::bigint AS distinct_count
FROM daily_summaries s
JOIN users u ON u.id = s.author_id
WHERE %[3]s
GROUP BY %[1]s, %[2]s
ORDER BY SUM(s.total_views) DESC, (%[2]s) COLLATE "C", (%[1]s) COLLATE "C"`, key, label, where)

	return scanGroups(ctx, r.db, query, wb.args)
}

func scanGroups(ctx context.Context, db DB, query string, args []any) ([]domain.GroupTotals, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.GroupTotals
	for rows.Next() {
		var g domain.GroupTotals
		if err := rows.Scan(&g.Key, &g.Label, &g.Views, &g.Distinct); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groups, nil
}
