package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonical returns a deterministic JSON encoding of node. Logically equal
// trees that differ only in object key order, the order of list values or
// the order of AND/OR children encode to the same bytes.
func Canonical(node Node) ([]byte, error) {
	v, err := canonicalNode(node)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func canonicalNode(node Node) (any, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *Leaf:
		if n == nil {
			return nil, nil
		}
		op := strings.ToLower(string(n.Op))
		if op == "" {
			op = string(OpEq)
		}
		value, err := canonicalValue(n.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"field": n.Field, "op": op, "value": value}, nil
	case *Group:
		if n == nil {
			return nil, nil
		}
		op := Logic(strings.ToLower(string(n.Op)))
		if op == "" {
			op = And
		}
		children := make([]json.RawMessage, 0, len(n.Children))
		for _, child := range n.Children {
			v, err := canonicalNode(child)
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			children = append(children, b)
		}
		if op == And || op == Or {
			sortRaw(children)
		}
		return map[string]any{"operator": string(op), "conditions": children}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected node %T", ErrMalformedFilter, node)
	}
}

func canonicalValue(v any) (any, error) {
	items, ok := toList(v)
	if !ok {
		return v, nil
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	sortRaw(out)
	return out, nil
}

func sortRaw(items []json.RawMessage) {
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i], items[j]) < 0
	})
}
