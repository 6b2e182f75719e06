package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"view-analytics-service/internal/analytics/core/domain"
)

// Default limits on filter trees.
const (
	DefaultMaxDepth = 10
	DefaultMaxNodes = 256
)

const dateLayout = "2006-01-02"

// Compiler validates filter trees against a whitelist and compiles them.
// It holds no mutable state and is safe for concurrent use.
type Compiler struct {
	whitelist Whitelist
	maxDepth  int
	maxNodes  int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMaxDepth bounds the nesting depth of a tree. The root is at depth 1.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithMaxNodes bounds the total number of nodes in a tree.
func WithMaxNodes(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.maxNodes = n
		}
	}
}

func NewCompiler(w Whitelist, opts ...Option) *Compiler {
	c := &Compiler{
		whitelist: w,
		maxDepth:  DefaultMaxDepth,
		maxNodes:  DefaultMaxNodes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles node against w with the default limits.
func Compile(node Node, w Whitelist) (Predicate, error) {
	return NewCompiler(w).Compile(node)
}

// Compile validates node and returns its predicate. A nil node matches everything.
//
// Field access is checked over the whole tree before anything else, so a
// non-whitelisted field is reported as ErrForbiddenField whatever the
// tree's depth or other defects.
func (c *Compiler) Compile(node Node) (Predicate, error) {
	if node == nil {
		return MatchAll, nil
	}
	if err := c.checkFields(node); err != nil {
		return nil, err
	}
	nodes := 0
	return c.compile(node, 1, "$", &nodes)
}

func (c *Compiler) checkFields(root Node) error {
	type item struct {
		node Node
		path string
	}
	stack := []item{{root, "$"}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n := it.node.(type) {
		case *Leaf:
			if n == nil || n.Field == "" {
				continue
			}
			if _, ok := c.whitelist.Lookup(n.Field); !ok {
				return fmt.Errorf("%w: %q at %s", ErrForbiddenField, n.Field, it.path)
			}
		case *Group:
			if n == nil {
				continue
			}
			for i, child := range n.Children {
				stack = append(stack, item{child, childPath(it.path, i)})
			}
		}
	}
	return nil
}

func (c *Compiler) compile(node Node, depth int, path string, nodes *int) (Predicate, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("%w: depth exceeds %d at %s", ErrTreeTooDeep, c.maxDepth, path)
	}
	*nodes++
	if *nodes > c.maxNodes {
		return nil, fmt.Errorf("%w: more than %d nodes", ErrTreeTooDeep, c.maxNodes)
	}

	switch n := node.(type) {
	case *Leaf:
		if n == nil {
			return nil, fmt.Errorf("%w: empty condition at %s", ErrMalformedFilter, path)
		}
		return c.compileLeaf(n, path)
	case *Group:
		if n == nil {
			return nil, fmt.Errorf("%w: empty group at %s", ErrMalformedFilter, path)
		}
		return c.compileGroup(n, depth, path, nodes)
	default:
		return nil, fmt.Errorf("%w: unexpected node %T at %s", ErrMalformedFilter, node, path)
	}
}

func (c *Compiler) compileGroup(g *Group, depth int, path string, nodes *int) (Predicate, error) {
	logic := Logic(strings.ToLower(string(g.Op)))
	if logic == "" {
		logic = And
	}
	switch logic {
	case And, Or, Not:
	default:
		return nil, fmt.Errorf("%w: group operator %q at %s", ErrUnknownOperator, g.Op, path)
	}
	if logic == Not && len(g.Children) != 1 {
		return nil, fmt.Errorf("%w: not takes exactly one condition, got %d at %s",
			ErrMalformedFilter, len(g.Children), path)
	}

	terms := make([]Predicate, 0, len(g.Children))
	for i, child := range g.Children {
		if child == nil {
			return nil, fmt.Errorf("%w: empty condition at %s", ErrMalformedFilter, childPath(path, i))
		}
		p, err := c.compile(child, depth+1, childPath(path, i), nodes)
		if err != nil {
			return nil, err
		}
		terms = append(terms, p)
	}

	switch logic {
	case Or:
		return Disjunction{Terms: terms}, nil
	case Not:
		return Negation{Term: terms[0]}, nil
	default:
		return Conjunction{Terms: terms}, nil
	}
}

func (c *Compiler) compileLeaf(l *Leaf, path string) (Predicate, error) {
	if l.Field == "" {
		return nil, fmt.Errorf("%w: condition missing field at %s", ErrMalformedFilter, path)
	}
	typ, ok := c.whitelist.Lookup(l.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %q at %s", ErrForbiddenField, l.Field, path)
	}
	op := Operator(strings.ToLower(string(l.Op)))
	if op == "" {
		op = OpEq
	}
	if !knownOperator(op) {
		return nil, fmt.Errorf("%w: %q at %s", ErrUnknownOperator, l.Op, path)
	}

	mismatch := func(want string) error {
		return fmt.Errorf("%w: %s on %s field %q expects %s at %s",
			ErrTypeMismatch, op, typ, l.Field, want, path)
	}

	switch typ {
	case TypeString:
		switch op {
		case OpEq, OpNeq, OpContains, OpStartsWith:
			s, ok := l.Value.(string)
			if !ok {
				return nil, mismatch("a string")
			}
			return StringCond{Field: l.Field, Op: op, Values: []string{s}}, nil
		case OpIn:
			items, ok := toList(l.Value)
			if !ok {
				return nil, mismatch("a list of strings")
			}
			values := make([]string, 0, len(items))
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return nil, mismatch("a list of strings")
				}
				values = append(values, s)
			}
			return StringCond{Field: l.Field, Op: op, Values: values}, nil
		}
		return nil, mismatch("a string operator (eq, neq, in, contains, startswith)")

	case TypeInt:
		switch op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
			n, ok := toInt(l.Value)
			if !ok {
				return nil, mismatch("an integer")
			}
			return IntCond{Field: l.Field, Op: op, Values: []int64{n}}, nil
		case OpIn:
			items, ok := toList(l.Value)
			if !ok {
				return nil, mismatch("a list of integers")
			}
			values := make([]int64, 0, len(items))
			for _, item := range items {
				n, ok := toInt(item)
				if !ok {
					return nil, mismatch("a list of integers")
				}
				values = append(values, n)
			}
			return IntCond{Field: l.Field, Op: op, Values: values}, nil
		}
		return nil, mismatch("a numeric operator (eq, neq, gt, gte, lt, lte, in)")

	case TypeDate:
		switch op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
			s, ok := l.Value.(string)
			if !ok {
				return nil, mismatch("a date string")
			}
			day, err := parseDay(s)
			if err != nil {
				return nil, mismatch("a YYYY-MM-DD or RFC 3339 date")
			}
			return DateCond{Field: l.Field, Op: op, Day: day}, nil
		case OpYearEq:
			n, ok := toInt(l.Value)
			if !ok || n < 1 || n > 9999 {
				return nil, mismatch("a year between 1 and 9999")
			}
			return YearCond{Field: l.Field, Year: int(n)}, nil
		}
		return nil, mismatch("a date operator (eq, neq, gt, gte, lt, lte, year_eq)")
	}

	return nil, fmt.Errorf("%w: field %q has unsupported type %q", ErrTypeMismatch, l.Field, typ)
}

func knownOperator(op Operator) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains, OpStartsWith, OpYearEq:
		return true
	}
	return false
}

func childPath(parent string, i int) string {
	return parent + ".conditions[" + strconv.Itoa(i) + "]"
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Day(t), nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}
