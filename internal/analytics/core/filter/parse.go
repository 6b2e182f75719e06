package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// maxParseDepth protects the decoder from absurd nesting. The compiler
// enforces the configured, much smaller limit.
const maxParseDepth = 64

// Parse decodes a JSON filter node. Objects with a "conditions" key are
// groups ({"operator", "conditions"}); any other object is a leaf
// ({"field", "op", "value"}). Empty input, null and {} decode to nil.
func Parse(data []byte) (Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	obj, err := decodeObject(data, "$")
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return parseObject(obj, 1, "$")
}

// ParseTree extracts the tree form from a request body that may also carry
// flat filter keys. It returns nil when the body has no "conditions" key.
func ParseTree(body []byte) (Node, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	obj, err := decodeObject(body, "$")
	if err != nil {
		return nil, err
	}
	if _, ok := obj["conditions"]; !ok {
		return nil, nil
	}
	return parseGroup(obj, 1, "$")
}

func parseObject(obj map[string]json.RawMessage, depth int, path string) (Node, error) {
	if _, ok := obj["conditions"]; ok {
		return parseGroup(obj, depth, path)
	}
	return parseLeaf(obj, path)
}

func parseGroup(obj map[string]json.RawMessage, depth int, path string) (Node, error) {
	if depth > maxParseDepth {
		return nil, fmt.Errorf("%w: depth exceeds %d at %s", ErrTreeTooDeep, maxParseDepth, path)
	}

	op := And
	if raw, ok := obj["operator"]; ok {
		s, err := decodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: operator must be a string at %s", ErrMalformedFilter, path)
		}
		if s != "" {
			op = Logic(strings.ToLower(s))
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(obj["conditions"], &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: conditions must be a list at %s", ErrMalformedFilter, path)
	}

	g := &Group{Op: op, Children: make([]Node, 0, len(items))}
	for i, item := range items {
		p := childPath(path, i)
		child, err := decodeObject(item, p)
		if err != nil {
			return nil, err
		}
		n, err := parseObject(child, depth+1, p)
		if err != nil {
			return nil, err
		}
		g.Children = append(g.Children, n)
	}
	return g, nil
}

func parseLeaf(obj map[string]json.RawMessage, path string) (Node, error) {
	rawField, ok := obj["field"]
	if !ok {
		return nil, fmt.Errorf("%w: condition missing field at %s", ErrMalformedFilter, path)
	}
	field, err := decodeString(rawField)
	if err != nil || field == "" {
		return nil, fmt.Errorf("%w: field must be a non-empty string at %s", ErrMalformedFilter, path)
	}

	op := OpEq
	rawOp, ok := obj["op"]
	if !ok {
		rawOp, ok = obj["operator"]
	}
	if ok {
		s, err := decodeString(rawOp)
		if err != nil {
			return nil, fmt.Errorf("%w: op must be a string at %s", ErrMalformedFilter, path)
		}
		if s != "" {
			op = Operator(strings.ToLower(s))
		}
	}

	rawValue, ok := obj["value"]
	if !ok {
		return nil, fmt.Errorf("%w: condition missing value at %s", ErrMalformedFilter, path)
	}
	dec := json.NewDecoder(bytes.NewReader(rawValue))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: invalid value at %s", ErrMalformedFilter, path)
	}

	return &Leaf{Field: field, Op: op, Value: value}, nil
}

func decodeObject(data []byte, path string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: expected an object at %s", ErrMalformedFilter, path)
	}
	return obj, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	err := json.Unmarshal(raw, &s)
	return s, err
}
