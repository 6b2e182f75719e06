package filter

import (
	"sort"

	"view-analytics-service/internal/analytics/core/domain"
)

// FieldType is the declared value type of a filterable field.
type FieldType string

const (
	TypeDate   FieldType = "date"
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
)

// Whitelist is an immutable set of filterable fields and their types.
type Whitelist struct {
	fields map[string]FieldType
}

// NewWhitelist copies fields into a new Whitelist.
func NewWhitelist(fields map[string]FieldType) Whitelist {
	m := make(map[string]FieldType, len(fields))
	for name, t := range fields {
		m[name] = t
	}
	return Whitelist{fields: m}
}

// Lookup returns the type of field and whether it is allowed.
func (w Whitelist) Lookup(field string) (FieldType, bool) {
	t, ok := w.fields[field]
	return t, ok
}

// Fields returns the allowed field names in sorted order.
func (w Whitelist) Fields() []string {
	names := make([]string, 0, len(w.fields))
	for name := range w.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ViewFields is the whitelist for queries over raw view events.
func ViewFields() Whitelist {
	return NewWhitelist(map[string]FieldType{
		domain.FieldDate:      TypeDate,
		domain.FieldCountry:   TypeString,
		domain.FieldAuthor:    TypeString,
		domain.FieldAuthorID:  TypeInt,
		domain.FieldBlogID:    TypeInt,
		domain.FieldBlogTitle: TypeString,
	})
}

// SummaryFields is the whitelist for queries over daily summaries.
func SummaryFields() Whitelist {
	return NewWhitelist(map[string]FieldType{
		domain.FieldDate:     TypeDate,
		domain.FieldCountry:  TypeString,
		domain.FieldAuthor:   TypeString,
		domain.FieldAuthorID: TypeInt,
	})
}
