package filter

import (
	"slices"
	"strings"
	"time"
)

// Record is anything a predicate can be evaluated against.
type Record interface {
	FieldValue(name string) (any, bool)
}

// Predicate is a compiled, storage independent boolean test over a record.
// The concrete types are Conjunction, Disjunction, Negation, StringCond,
// IntCond, DateCond and YearCond; storage adapters translate them by type switch.
type Predicate interface {
	Match(r Record) bool
	predicate()
}

// MatchAll is the predicate of an empty filter.
var MatchAll Predicate = Conjunction{}

// Conjunction matches when every term matches. No terms: matches everything.
type Conjunction struct {
	Terms []Predicate
}

// Disjunction matches when any term matches. No terms: matches nothing.
type Disjunction struct {
	Terms []Predicate
}

// Negation inverts Term.
type Negation struct {
	Term Predicate
}

// StringCond compares a string field. Values has one element except for OpIn.
type StringCond struct {
	Field  string
	Op     Operator
	Values []string
}

// IntCond compares an integer field. Values has one element except for OpIn.
type IntCond struct {
	Field  string
	Op     Operator
	Values []int64
}

// DateCond compares a date field at UTC calendar-day granularity.
type DateCond struct {
	Field string
	Op    Operator
	Day   time.Time
}

// YearCond matches dates within the given UTC year.
type YearCond struct {
	Field string
	Year  int
}

func (Conjunction) predicate() {}
func (Disjunction) predicate() {}
func (Negation) predicate()    {}
func (StringCond) predicate()  {}
func (IntCond) predicate()     {}
func (DateCond) predicate()    {}
func (YearCond) predicate()    {}

func (p Conjunction) Match(r Record) bool {
	for _, t := range p.Terms {
		if !t.Match(r) {
			return false
		}
	}
	return true
}

func (p Disjunction) Match(r Record) bool {
	for _, t := range p.Terms {
		if t.Match(r) {
			return true
		}
	}
	return false
}

func (p Negation) Match(r Record) bool {
	return !p.Term.Match(r)
}

func (c StringCond) Match(r Record) bool {
	raw, ok := r.FieldValue(c.Field)
	if !ok {
		return false
	}
	s, ok := raw.(string)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return s == c.Values[0]
	case OpNeq:
		return s != c.Values[0]
	case OpIn:
		return slices.Contains(c.Values, s)
	case OpContains:
		return strings.Contains(strings.ToLower(s), strings.ToLower(c.Values[0]))
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(s), strings.ToLower(c.Values[0]))
	}
	return false
}

func (c IntCond) Match(r Record) bool {
	raw, ok := r.FieldValue(c.Field)
	if !ok {
		return false
	}
	n, ok := raw.(int64)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return n == c.Values[0]
	case OpNeq:
		return n != c.Values[0]
	case OpGt:
		return n > c.Values[0]
	case OpGte:
		return n >= c.Values[0]
	case OpLt:
		return n < c.Values[0]
	case OpLte:
		return n <= c.Values[0]
	case OpIn:
		return slices.Contains(c.Values, n)
	}
	return false
}

// Range returns the half-open instant range [from, to) of the condition's day.
func (c DateCond) Range() (from, to time.Time) {
	return c.Day, c.Day.AddDate(0, 0, 1)
}

func (c DateCond) Match(r Record) bool {
	raw, ok := r.FieldValue(c.Field)
	if !ok {
		return false
	}
	t, ok := raw.(time.Time)
	if !ok {
		return false
	}
	from, to := c.Range()
	switch c.Op {
	case OpEq:
		return !t.Before(from) && t.Before(to)
	case OpNeq:
		return t.Before(from) || !t.Before(to)
	case OpGt:
		return !t.Before(to)
	case OpGte:
		return !t.Before(from)
	case OpLt:
		return t.Before(from)
	case OpLte:
		return t.Before(to)
	}
	return false
}

// Range returns the half-open instant range [from, to) of the year.
func (c YearCond) Range() (from, to time.Time) {
	from = time.Date(c.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

func (c YearCond) Match(r Record) bool {
	raw, ok := r.FieldValue(c.Field)
	if !ok {
		return false
	}
	t, ok := raw.(time.Time)
	if !ok {
		return false
	}
	from, to := c.Range()
	return !t.Before(from) && t.Before(to)
}
