package filter

import (
	"encoding/json"
	"fmt"
)

// Wire format, matching what the backend's filter grammar accepts:
//
//	All    -> "all"
//	Leaf   -> {"<table>": {"<field>": {"<op>": <value>}}}
//	Branch -> {"left": <node>, "operator": "and"|"or", "right": <node>}

// MarshalJSON encodes All as the literal string "all".
func (All) MarshalJSON() ([]byte, error) {
	return json.Marshal("all")
}

// MarshalJSON encodes a leaf as its nested single-entry mappings.
func (l *Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]map[string]any{
		l.Table: {l.Field: {l.Op: l.Value}},
	})
}

// MarshalJSON encodes a branch with recursively encoded subtrees.
func (b *Branch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Left     Node   `json:"left"`
		Operator string `json:"operator"`
		Right    Node   `json:"right"`
	}{b.Left, b.Op, b.Right})
}

// Parse decodes a raw user-supplied filter tree. JSON null, the string
// "all", and an empty object all decode to All. Malformed input is a fatal
// user error: the caller is expected to report the message and exit non-zero.
func Parse(data []byte) (Node, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	return fromValue(raw)
}

func fromValue(v any) (Node, error) {
	switch val := v.(type) {
	case nil:
		return All{}, nil
	case string:
		if val == "all" {
			return All{}, nil
		}
		return nil, fmt.Errorf("invalid filter: unexpected string %q (only \"all\" is allowed)", val)
	case map[string]any:
		if len(val) == 0 {
			return All{}, nil
		}
		if _, ok := val["operator"]; ok {
			return branchFromMap(val)
		}
		return leafFromMap(val)
	default:
		return nil, fmt.Errorf("invalid filter: expected object or \"all\", got %T", v)
	}
}

func branchFromMap(m map[string]any) (Node, error) {
	op, _ := m["operator"].(string)
	if op != "and" && op != "or" {
		return nil, fmt.Errorf("invalid filter: branch operator must be \"and\" or \"or\", got %v", m["operator"])
	}
	leftRaw, ok := m["left"]
	if !ok {
		return nil, fmt.Errorf("invalid filter: branch is missing \"left\"")
	}
	rightRaw, ok := m["right"]
	if !ok {
		return nil, fmt.Errorf("invalid filter: branch is missing \"right\"")
	}

	left, err := fromValue(leftRaw)
	if err != nil {
		return nil, err
	}
	right, err := fromValue(rightRaw)
	if err != nil {
		return nil, err
	}
	return &Branch{Left: left, Op: op, Right: right}, nil
}

func leafFromMap(m map[string]any) (Node, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("invalid filter: leaf must name exactly one table, got %d keys", len(m))
	}
	for table, fieldsRaw := range m {
		fields, ok := fieldsRaw.(map[string]any)
		if !ok || len(fields) != 1 {
			return nil, fmt.Errorf("invalid filter: table %q must map to exactly one field", table)
		}
		for field, opsRaw := range fields {
			ops, ok := opsRaw.(map[string]any)
			if !ok || len(ops) != 1 {
				return nil, fmt.Errorf("invalid filter: field %q must map to exactly one operator", field)
			}
			for op, value := range ops {
				if !validOperators[op] {
					return nil, fmt.Errorf("invalid filter: unknown operator %q on field %q", op, field)
				}
				return &Leaf{Table: table, Field: field, Op: op, Value: value}, nil
			}
		}
	}
	panic("unreachable")
}
