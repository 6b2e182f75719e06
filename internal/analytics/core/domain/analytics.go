package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Dimension is an entity views can be grouped by.
type Dimension string

const (
	DimensionCountry Dimension = "country"
	DimensionAuthor  Dimension = "author"
	DimensionBlog    Dimension = "blog"
)

// Granularity is the width of a performance bucket.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Truncate returns the UTC start of the bucket containing t. Weeks start on Monday.
func (g Granularity) Truncate(t time.Time) time.Time {
	d := Day(t)
	switch g {
	case GranularityWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// Next returns the start of the bucket following the one starting at start.
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	case GranularityMonth:
		return start.AddDate(0, 1, 0)
	case GranularityYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Count returns the number of buckets needed to cover [from, to].
func (g Granularity) Count(from, to time.Time) int {
	n := 0
	for b, last := g.Truncate(from), g.Truncate(to); !b.After(last); b = g.Next(b) {
		n++
	}
	return n
}

// GroupTotals is one group of an aggregation read from storage.
// Key identifies the entity, Label is what gets displayed.
type GroupTotals struct {
	Key      string
	Label    string
	Views    int64
	Distinct int64
}

// BucketTotals is the view count of one time bucket.
type BucketTotals struct {
	Start time.Time
	Views int64
	Blogs int64
}

// Span is the [From, To] timestamp range covered by a set of views.
type Span struct {
	From  time.Time
	To    time.Time
	Empty bool
}

// Row is the uniform (x, y, z) analytics result row.
type Row struct {
	X string `json:"x"`
	Y int64  `json:"y"`
	Z Metric `json:"z"`
}

// Metric is a numeric row value that may be undefined (encoded as JSON null).
type Metric struct {
	value float64
	valid bool
}

// Value returns a defined metric.
func Value(v float64) Metric {
	return Metric{value: v, valid: true}
}

// Undefined returns the metric used where no meaningful number exists.
func Undefined() Metric {
	return Metric{}
}

// Float64 returns the value and whether it is defined.
func (m Metric) Float64() (float64, bool) {
	return m.value, m.valid
}

func (m Metric) String() string {
	if !m.valid {
		return "null"
	}
	return fmt.Sprintf("%g", m.value)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	if math.IsNaN(m.value) || math.IsInf(m.value, 0) {
		return nil, fmt.Errorf("metric value %v is not representable", m.value)
	}
	return json.Marshal(m.value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Undefined()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Value(v)
	return nil
}
