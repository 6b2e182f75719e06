// Package filter turns user supplied filter trees into predicates over view
// and summary records.
//
// A filter is either a Leaf condition on one field or a Group combining
// child filters with AND, OR or NOT. Trees are validated against an explicit
// field Whitelist by Compile, which is the only way to obtain a Predicate.
package filter

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startswith"
	OpYearEq     Operator = "year_eq"
)

// Logic is a group operator.
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
	Not Logic = "not"
)

// Node is a filter tree node: a *Leaf or a *Group.
type Node interface {
	node()
}

// Leaf is a single field condition. Value holds the decoded JSON value:
// string, json.Number, float64, int, int64 or []any.
type Leaf struct {
	Field string
	Op    Operator
	Value any
}

// Group combines its children with Op. NOT takes exactly one child.
type Group struct {
	Op       Logic
	Children []Node
}

func (*Leaf) node()  {}
func (*Group) node() {}

// AllOf returns an AND group of the non-nil nodes, collapsing trivial cases.
// It returns nil when no node is given.
func AllOf(nodes ...Node) Node {
	var children []Node
	for _, n := range nodes {
		if n != nil {
			children = append(children, n)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return &Group{Op: And, Children: children}
}
