package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/ports"

	"github.com/cespare/xxhash/v2"
	"github.com/lib/pq"
)

// SummaryStore writes daily summaries. Each day is replaced in a single
// transaction holding a per-day advisory lock, so concurrent runs over the
// same day serialize and readers never see a half-written day.
type SummaryStore struct {
	db *sql.DB
}

func NewSummaryStore(db *sql.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

var _ ports.SummaryStorePort = (*SummaryStore)(nil)

const (
	lockDaySQL = `SELECT pg_advisory_xact_lock($1)`

	deleteDaySQL = `DELETE FROM daily_summaries WHERE date = $1::date`

	upsertDaySQL = `
INSERT INTO daily_summaries (date, country_code, author_id, total_views, unique_blogs, updated_at)
SELECT $1::date, r.country_code, r.author_id, r.total_views, r.unique_blogs, NOW()
FROM unnest($2::text[], $3::bigint[], $4::bigint[], $5::bigint[])
    AS r(country_code, author_id, total_views, unique_blogs)
ON CONFLICT (date, country_code, author_id) DO UPDATE SET
    total_views = EXCLUDED.total_views,
    unique_blogs = EXCLUDED.unique_blogs,
    updated_at = EXCLUDED.updated_at`
)

// dayLockKey maps a day to its advisory lock key.
func dayLockKey(day time.Time) int64 {
	return int64(xxhash.Sum64String("daily_summaries:" + day.Format("2006-01-02")))
}

func (s *SummaryStore) ReplaceDay(ctx context.Context, day time.Time, rows []domain.DailySummary) (err error) {
	day = domain.Day(day)
	date := day.Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockDaySQL, dayLockKey(day)); err != nil {
		return fmt.Errorf("lock day %s: %w", date, err)
	}

	if _, err = tx.ExecContext(ctx, deleteDaySQL, date); err != nil {
		return fmt.Errorf("delete summaries of %s: %w", date, err)
	}

	if len(rows) > 0 {
		countries := make([]string, len(rows))
		authors := make([]int64, len(rows))
		views := make([]int64, len(rows))
		blogs := make([]int64, len(rows))
		for i, r := range rows {
			countries[i] = r.CountryCode
			authors[i] = r.AuthorID
			views[i] = r.TotalViews
			blogs[i] = r.UniqueBlogs
		}

		if _, err = tx.ExecContext(ctx, upsertDaySQL,
			date,
			pq.Array(countries),
			pq.Array(authors),
			pq.Array(views),
			pq.Array(blogs),
		); err != nil {
			return fmt.Errorf("upsert summaries of %s: %w", date, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit summaries of %s: %w", date, err)
	}
	return nil
}
