package fiber

import (
	"encoding/json"

	"view-analytics-service/internal/analytics/core/filter"
)

// QueryRequest is the analytics request body. The flat filter keys and an
// explicit {"operator", "conditions"} tree may be combined; both must match.
// @Description Analytics query DTO
type QueryRequest struct {
	Year                *int     `json:"year,omitempty" example:"2025"`
	StartDate           string   `json:"start_date,omitempty" example:"2025-01-01"`
	EndDate             string   `json:"end_date,omitempty" example:"2025-03-31"`
	CountryCodes        []string `json:"country_codes,omitempty"`
	ExcludeCountryCodes []string `json:"exclude_country_codes,omitempty"`
	AuthorUsername      string   `json:"author_username,omitempty" example:"alice"`
	BlogID              *int64   `json:"blog_id,omitempty" example:"7"`

	Range  string `json:"range,omitempty" example:"week"` // performance only
	Limit  int    `json:"limit,omitempty" example:"10"`   // top only
	Source string `json:"source,omitempty" example:"raw"` // grouped only

	// Decoded by filter.ParseTree.
	Operator   json.RawMessage `json:"operator,omitempty" swaggertype:"string" example:"AND"`
	Conditions json.RawMessage `json:"conditions,omitempty" swaggertype:"array,object"`
}

func (r QueryRequest) flat() filter.Flat {
	return filter.Flat{
		Year:                r.Year,
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
		CountryCodes:        r.CountryCodes,
		ExcludeCountryCodes: r.ExcludeCountryCodes,
		AuthorUsername:      r.AuthorUsername,
		BlogID:              r.BlogID,
	}
}

// RowResponse mirrors domain.Row for the API docs. z is null when growth
// from an empty bucket is undefined.
type RowResponse struct {
	X string   `json:"x" example:"US"`
	Y int64    `json:"y" example:"12"`
	Z *float64 `json:"z" example:"340"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"forbidden_field"`
	Message string `json:"message,omitempty" example:"forbidden filter field: password at $.conditions[0]"`
}
