package domain

import "time"

// Filterable field names shared by the filter whitelists and the records.
const (
	FieldDate      = "date"
	FieldCountry   = "country"
	FieldAuthor    = "author"
	FieldAuthorID  = "author_id"
	FieldBlogID    = "blog_id"
	FieldBlogTitle = "blog_title"
)

// ViewRecord is a view event joined with the blog and author it belongs to.
type ViewRecord struct {
	BlogID         int64
	BlogTitle      string
	AuthorID       int64
	AuthorUsername string
	CountryCode    string
	ViewerID       *int64
	Timestamp      time.Time
}

// FieldValue exposes the record to compiled filter predicates.
func (r ViewRecord) FieldValue(name string) (any, bool) {
	switch name {
	case FieldDate:
		return r.Timestamp, true
	case FieldCountry:
		return r.CountryCode, true
	case FieldAuthor:
		return r.AuthorUsername, true
	case FieldAuthorID:
		return r.AuthorID, true
	case FieldBlogID:
		return r.BlogID, true
	case FieldBlogTitle:
		return r.BlogTitle, true
	}
	return nil, false
}

// DailySummary is the pre-aggregated view count of one (date, country, author).
type DailySummary struct {
	Date           time.Time
	CountryCode    string
	AuthorID       int64
	AuthorUsername string
	TotalViews     int64
	UniqueBlogs    int64
}

func (s DailySummary) FieldValue(name string) (any, bool) {
	switch name {
	case FieldDate:
		return s.Date, true
	case FieldCountry:
		return s.CountryCode, true
	case FieldAuthor:
		return s.AuthorUsername, true
	case FieldAuthorID:
		return s.AuthorID, true
	}
	return nil, false
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
