package postgres

import (
	"fmt"
	"strings"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"

	"github.com/lib/pq"
)

type column struct {
	expr string
	date bool // DATE column, compared against day literals
}

// Column expressions of the filterable fields, per source table alias.
var (
	viewColumns = map[string]column{
		domain.FieldDate:      {expr: "v.viewed_at"},
		domain.FieldCountry:   {expr: "v.country_code"},
		domain.FieldAuthor:    {expr: "u.username"},
		domain.FieldAuthorID:  {expr: "v.author_id"},
		domain.FieldBlogID:    {expr: "v.blog_id"},
		domain.FieldBlogTitle: {expr: "b.title"},
	}
	summaryColumns = map[string]column{
		domain.FieldDate:     {expr: "s.date", date: true},
		domain.FieldCountry:  {expr: "s.country_code"},
		domain.FieldAuthor:   {expr: "u.username"},
		domain.FieldAuthorID: {expr: "s.author_id"},
	}
)

// whereBuilder renders a compiled predicate as a parameterized SQL boolean
// expression. Values never reach the SQL text; they are appended to args.
type whereBuilder struct {
	columns map[string]column
	args    []any
}

func newWhereBuilder(columns map[string]column, args ...any) *whereBuilder {
	return &whereBuilder{columns: columns, args: args}
}

func (b *whereBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) build(p filter.Predicate) (string, error) {
	if p == nil {
		return "TRUE", nil
	}

	switch p := p.(type) {
	case filter.Conjunction:
		return b.join(p.Terms, " AND ", "TRUE")
	case filter.Disjunction:
		return b.join(p.Terms, " OR ", "FALSE")
	case filter.Negation:
		inner, err := b.build(p.Term)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.StringCond:
		col, err := b.column(p.Field)
		if err != nil {
			return "", err
		}
		return b.stringCond(col, p)
	case filter.IntCond:
		col, err := b.column(p.Field)
		if err != nil {
			return "", err
		}
		return b.intCond(col, p)
	case filter.DateCond:
		col, err := b.column(p.Field)
		if err != nil {
			return "", err
		}
		from, to := p.Range()
		return b.dateCond(col, p.Op, from, to)
	case filter.YearCond:
		col, err := b.column(p.Field)
		if err != nil {
			return "", err
		}
		from, to := p.Range()
		return b.dateCond(col, filter.OpEq, from, to)
	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func (b *whereBuilder) join(terms []filter.Predicate, sep, empty string) (string, error) {
	if len(terms) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		s, err := b.build(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

func (b *whereBuilder) column(field string) (column, error) {
	col, ok := b.columns[field]
	if !ok {
		return column{}, fmt.Errorf("field %q has no column in this source", field)
	}
	return col, nil
}

func (b *whereBuilder) stringCond(col column, c filter.StringCond) (string, error) {
	switch c.Op {
	case filter.OpEq:
		return col.expr + " = " + b.bind(c.Values[0]), nil
	case filter.OpNeq:
		return col.expr + " <> " + b.bind(c.Values[0]), nil
	case filter.OpIn:
		if len(c.Values) == 0 {
			return "FALSE", nil
		}
		return col.expr + " = ANY(" + b.bind(pq.Array(c.Values)) + ")", nil
	case filter.OpContains:
		return col.expr + " ILIKE " + b.bind("%"+escapeLike(c.Values[0])+"%"), nil
	case filter.OpStartsWith:
		return col.expr + " ILIKE " + b.bind(escapeLike(c.Values[0])+"%"), nil
	}
	return "", fmt.Errorf("operator %q unsupported on string column %s", c.Op, col.expr)
}

var intOps = map[filter.Operator]string{
	filter.OpEq:  "=",
	filter.OpNeq: "<>",
	filter.OpGt:  ">",
	filter.OpGte: ">=",
	filter.OpLt:  "<",
	filter.OpLte: "<=",
}

func (b *whereBuilder) intCond(col column, c filter.IntCond) (string, error) {
	if c.Op == filter.OpIn {
		if len(c.Values) == 0 {
			return "FALSE", nil
		}
		return col.expr + " = ANY(" + b.bind(pq.Array(c.Values)) + ")", nil
	}
	op, ok := intOps[c.Op]
	if !ok {
		return "", fmt.Errorf("operator %q unsupported on integer column %s", c.Op, col.expr)
	}
	return col.expr + " " + op + " " + b.bind(c.Values[0]), nil
}

// dateCond compares col against the half-open day range [from, to).
func (b *whereBuilder) dateCond(col column, op filter.Operator, from, to time.Time) (string, error) {
	param := func(t time.Time) string { return b.dateParam(col, t) }

	switch op {
	case filter.OpEq:
		return col.expr + " >= " + param(from) + " AND " + col.expr + " < " + param(to), nil
	case filter.OpNeq:
		return col.expr + " < " + param(from) + " OR " + col.expr + " >= " + param(to), nil
	case filter.OpGt:
		return col.expr + " >= " + param(to), nil
	case filter.OpGte:
		return col.expr + " >= " + param(from), nil
	case filter.OpLt:
		return col.expr + " < " + param(from), nil
	case filter.OpLte:
		return col.expr + " < " + param(to), nil
	}
	return "", fmt.Errorf("operator %q unsupported on date column %s", op, col.expr)
}

func (b *whereBuilder) dateParam(col column, t time.Time) string {
	if col.date {
		return b.bind(t.UTC().Format("2006-01-02")) + "::date"
	}
	return b.bind(t.UTC())
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
