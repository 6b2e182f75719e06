package filter

import "view-analytics-service/internal/analytics/core/domain"

// Flat is the convenience filter form accepted next to (or instead of) an
// explicit tree. Zero values mean "no constraint".
type Flat struct {
	Year                *int
	StartDate           string
	EndDate             string
	CountryCodes        []string
	ExcludeCountryCodes []string
	AuthorUsername      string
	BlogID              *int64
}

// Node translates the flat form into an equivalent tree. Year takes
// precedence over the start and end dates. It returns nil for an empty form.
func (f Flat) Node() Node {
	var conds []Node

	if f.Year != nil {
		conds = append(conds, &Leaf{Field: domain.FieldDate, Op: OpYearEq, Value: *f.Year})
	} else {
		if f.StartDate != "" {
			conds = append(conds, &Leaf{Field: domain.FieldDate, Op: OpGte, Value: f.StartDate})
		}
		if f.EndDate != "" {
			conds = append(conds, &Leaf{Field: domain.FieldDate, Op: OpLte, Value: f.EndDate})
		}
	}

	if len(f.CountryCodes) > 0 {
		conds = append(conds, &Leaf{Field: domain.FieldCountry, Op: OpIn, Value: stringList(f.CountryCodes)})
	}
	if len(f.ExcludeCountryCodes) > 0 {
		conds = append(conds, &Group{Op: Not, Children: []Node{
			&Leaf{Field: domain.FieldCountry, Op: OpIn, Value: stringList(f.ExcludeCountryCodes)},
		}})
	}
	if f.AuthorUsername != "" {
		conds = append(conds, &Leaf{Field: domain.FieldAuthor, Op: OpEq, Value: f.AuthorUsername})
	}
	if f.BlogID != nil {
		conds = append(conds, &Leaf{Field: domain.FieldBlogID, Op: OpEq, Value: *f.BlogID})
	}

	if len(conds) == 0 {
		return nil
	}
	return &Group{Op: And, Children: conds}
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
