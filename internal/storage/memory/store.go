// Package memory is a process-local store implementing the analytics and
// views ports. Filters are applied by evaluating compiled predicates against
// each record, which makes it the reference for the SQL translation.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	analyticsports "view-analytics-service/internal/analytics/core/ports"
	viewsdomain "view-analytics-service/internal/views/core/domain"
	viewsports "view-analytics-service/internal/views/core/ports"
)

type blog struct {
	title    string
	authorID int64
}

type view struct {
	blogID   int64
	country  string
	viewerID *int64
	at       time.Time
}

type summaryKey struct {
	day      int64
	country  string
	authorID int64
}

type Store struct {
	mu        sync.RWMutex
	authors   map[int64]string
	countries map[string]string
	blogs     map[int64]blog
	views     []view
	summaries map[summaryKey]domain.DailySummary
}

var (
	_ analyticsports.ViewReaderPort    = (*Store)(nil)
	_ analyticsports.SummaryReaderPort = (*Store)(nil)
	_ analyticsports.DailySourcePort   = (*Store)(nil)
	_ analyticsports.SummaryStorePort  = (*Store)(nil)
	_ viewsports.ViewWriterPort        = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		authors:   make(map[int64]string),
		countries: make(map[string]string),
		blogs:     make(map[int64]blog),
		summaries: make(map[summaryKey]domain.DailySummary),
	}
}

func (s *Store) AddAuthor(id int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[id] = username
}

func (s *Store) AddCountry(code, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countries[code] = name
}

func (s *Store) AddBlog(id int64, title string, authorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authors[authorID]; !ok {
		return fmt.Errorf("%w: author %d", viewsports.ErrUnknownReference, authorID)
	}
	s.blogs[id] = blog{title: title, authorID: authorID}
	return nil
}

func (s *Store) InsertView(_ context.Context, v *viewsdomain.ViewEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blogs[v.BlogID]; !ok {
		return fmt.Errorf("%w: blog %d", viewsports.ErrUnknownReference, v.BlogID)
	}
	if _, ok := s.countries[v.CountryCode]; !ok {
		return fmt.Errorf("%w: country %q", viewsports.ErrUnknownReference, v.CountryCode)
	}
	s.views = append(s.views, view{
		blogID:   v.BlogID,
		country:  v.CountryCode,
		viewerID: v.ViewerID,
		at:       v.ViewedAt.UTC(),
	})
	return nil
}

// matching returns the joined records of every view where matches.
// Callers hold the read lock.
func (s *Store) matching(where filter.Predicate) []domain.ViewRecord {
	if where == nil {
		where = filter.MatchAll
	}
	var out []domain.ViewRecord
	for _, v := range s.views {
		b := s.blogs[v.blogID]
		rec := domain.ViewRecord{
			BlogID:         v.blogID,
			BlogTitle:      b.title,
			AuthorID:       b.authorID,
			AuthorUsername: s.authors[b.authorID],
			CountryCode:    v.country,
			ViewerID:       v.viewerID,
			Timestamp:      v.at,
		}
		if where.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

type groupAcc struct {
	totals   domain.GroupTotals
	distinct map[string]struct{}
}

func (s *Store) GroupViews(ctx context.Context, q analyticsports.ViewGroupQuery) ([]domain.GroupTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string]*groupAcc)
	for _, r := range s.matching(q.Where) {
		var key, label, distinct string
		switch q.By {
		case domain.DimensionCountry:
			key, label, distinct = r.CountryCode, r.CountryCode, strconv.FormatInt(r.BlogID, 10)
		case domain.DimensionAuthor:
			key, label, distinct = strconv.FormatInt(r.AuthorID, 10), r.AuthorUsername, strconv.FormatInt(r.BlogID, 10)
		case domain.DimensionBlog:
			key, label, distinct = strconv.FormatInt(r.BlogID, 10), r.BlogTitle, r.CountryCode
		default:
			return nil, fmt.Errorf("group views by %q: unsupported dimension", q.By)
		}

		acc, ok := groups[key]
		if !ok {
			acc = &groupAcc{totals: domain.GroupTotals{Key: key, Label: label}, distinct: map[string]struct{}{}}
			groups[key] = acc
		}
		acc.totals.Views++
		acc.distinct[distinct] = struct{}{}
	}

	out := make([]domain.GroupTotals, 0, len(groups))
	for _, acc := range groups {
		acc.totals.Distinct = int64(len(acc.distinct))
		out = append(out, acc.totals)
	}
	sortTotals(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) ViewSpan(ctx context.Context, where filter.Predicate) (domain.Span, error) {
	if err := ctx.Err(); err != nil {
		return domain.Span{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	span := domain.Span{Empty: true}
	for _, r := range s.matching(where) {
		if span.Empty || r.Timestamp.Before(span.From) {
			span.From = r.Timestamp
		}
		if span.Empty || r.Timestamp.After(span.To) {
			span.To = r.Timestamp
		}
		span.Empty = false
	}
	return span, nil
}

func (s *Store) BucketViews(ctx context.Context, q analyticsports.BucketQuery) ([]domain.BucketTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		totals domain.BucketTotals
		blogs  map[int64]struct{}
	}
	buckets := make(map[int64]*bucket)
	for _, r := range s.matching(q.Where) {
		start := q.Granularity.Truncate(r.Timestamp)
		b, ok := buckets[start.Unix()]
		if !ok {
			b = &bucket{totals: domain.BucketTotals{Start: start}, blogs: map[int64]struct{}{}}
			buckets[start.Unix()] = b
		}
		b.totals.Views++
		b.blogs[r.BlogID] = struct{}{}
	}

	out := make([]domain.BucketTotals, 0, len(buckets))
	for _, b := range buckets {
		b.totals.Blogs = int64(len(b.blogs))
		out = append(out, b.totals)
	}
	slices.SortFunc(out, func(a, b domain.BucketTotals) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (s *Store) GroupSummaries(ctx context.Context, q analyticsports.SummaryGroupQuery) ([]domain.GroupTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	where := q.Where
	if where == nil {
		where = filter.MatchAll
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string]*domain.GroupTotals)
	for _, row := range s.summaries {
		row.AuthorUsername = s.authors[row.AuthorID]
		if !where.Match(row) {
			continue
		}

		var key, label string
		switch q.By {
		case domain.DimensionCountry:
			key, label = row.CountryCode, row.CountryCode
		case domain.DimensionAuthor:
			key, label = strconv.FormatInt(row.AuthorID, 10), row.AuthorUsername
		default:
			return nil, fmt.Errorf("group summaries by %q: unsupported dimension", q.By)
		}

		g, ok := groups[key]
		if !ok {
			g = &domain.GroupTotals{Key: key, Label: label}
			groups[key] = g
		}
		g.Views += row.TotalViews
		g.Distinct += row.UniqueBlogs
	}

	out := make([]domain.GroupTotals, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sortTotals(out)
	return out, nil
}

func (s *Store) EarliestViewDay(ctx context.Context) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.views) == 0 {
		return time.Time{}, false, nil
	}
	earliest := s.views[0].at
	for _, v := range s.views[1:] {
		if v.at.Before(earliest) {
			earliest = v.at
		}
	}
	return domain.Day(earliest), true, nil
}

func (s *Store) AggregateDay(ctx context.Context, day time.Time) ([]domain.DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day = domain.Day(day)

	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		row   domain.DailySummary
		blogs map[int64]struct{}
	}
	groups := make(map[summaryKey]*acc)
	for _, v := range s.views {
		if !domain.Day(v.at).Equal(day) {
			continue
		}
		authorID := s.blogs[v.blogID].authorID
		k := summaryKey{day: day.Unix(), country: v.country, authorID: authorID}
		a, ok := groups[k]
		if !ok {
			a = &acc{
				row: domain.DailySummary{
					Date:           day,
					CountryCode:    v.country,
					AuthorID:       authorID,
					AuthorUsername: s.authors[authorID],
				},
				blogs: map[int64]struct{}{},
			}
			groups[k] = a
		}
		a.row.TotalViews++
		a.blogs[v.blogID] = struct{}{}
	}

	out := make([]domain.DailySummary, 0, len(groups))
	for _, a := range groups {
		a.row.UniqueBlogs = int64(len(a.blogs))
		out = append(out, a.row)
	}
	slices.SortFunc(out, func(a, b domain.DailySummary) int {
		if c := cmp.Compare(a.CountryCode, b.CountryCode); c != 0 {
			return c
		}
		return cmp.Compare(a.AuthorID, b.AuthorID)
	})
	return out, nil
}

// ReplaceDay swaps the summaries of day under the write lock, so readers
// observe either the previous or the new rows.
func (s *Store) ReplaceDay(ctx context.Context, day time.Time, rows []domain.DailySummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	day = domain.Day(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.summaries {
		if k.day == day.Unix() {
			delete(s.summaries, k)
		}
	}
	for _, row := range rows {
		row.Date = day
		s.summaries[summaryKey{day: day.Unix(), country: row.CountryCode, authorID: row.AuthorID}] = row
	}
	return nil
}

// Summaries returns every stored summary ordered by date, country and author.
func (s *Store) Summaries() []domain.DailySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DailySummary, 0, len(s.summaries))
	for _, row := range s.summaries {
		row.AuthorUsername = s.authors[row.AuthorID]
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b domain.DailySummary) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(a.CountryCode, b.CountryCode); c != 0 {
			return c
		}
		return cmp.Compare(a.AuthorID, b.AuthorID)
	})
	return out
}

func sortTotals(groups []domain.GroupTotals) {
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
