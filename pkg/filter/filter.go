package filter

import (
	"time"
)

// Table identifiers accepted by the backend filter grammar.
const (
	TableRequests   = "request_response_log"
	TableSessions   = "session_log"
	TableProperties = "properties"
)

// Operators accepted by the backend filter grammar.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not-equals"
	OpContains    = "contains"
	OpNotContains = "not-contains"
	OpLike        = "like"
	OpILike       = "ilike"
	OpGte         = "gte"
	OpLte         = "lte"
	OpGt          = "gt"
	OpLt          = "lt"
)

var validOperators = map[string]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpContains:    true,
	OpNotContains: true,
	OpLike:        true,
	OpILike:       true,
	OpGte:         true,
	OpLte:         true,
	OpGt:          true,
	OpLt:          true,
}

// Node is a boolean filter expression over record fields. It has exactly
// three shapes: All (matches everything), Leaf (a single field test), and
// Branch (an and/or combination of two subtrees). Nodes are immutable once
// built; combinators return new trees.
type Node interface {
	isNode()
}

// All is the identity filter: it matches every record and is the two-sided
// identity for AND-combination.
type All struct{}

// Leaf is a single field/operator/value test against one table.
type Leaf struct {
	Table string
	Field string
	Op    string
	Value any
}

// Branch combines two subtrees with "and" or "or".
type Branch struct {
	Left  Node
	Op    string
	Right Node
}

func (All) isNode()     {}
func (*Leaf) isNode()   {}
func (*Branch) isNode() {}

// IsEmpty reports whether n is equivalent to "no filter".
func IsEmpty(n Node) bool {
	if n == nil {
		return true
	}
	_, ok := n.(All)
	return ok
}

// And folds the given nodes into a left-associated and-chain, preserving
// order. Zero nodes yields All; a single node is returned as-is.
func And(nodes ...Node) Node {
	if len(nodes) == 0 {
		return All{}
	}
	out := nodes[0]
	for _, n := range nodes[1:] {
		out = &Branch{Left: out, Op: "and", Right: n}
	}
	return out
}

// Combine AND-combines a user-supplied filter tree with a derived one.
// Either side being empty (nil, All, or a tree parsed from an empty JSON
// object) returns the other unchanged, so a raw --filter tree is always
// narrowed by convenience flags, never replaced by them.
func Combine(user, derived Node) Node {
	if IsEmpty(user) {
		return derived
	}
	if IsEmpty(derived) {
		return user
	}
	return &Branch{Left: user, Op: "and", Right: derived}
}

// Property is one key/value equality test against request properties.
// Order matters: properties contribute leaves in insertion order.
type Property struct {
	Key   string
	Value string
}

// Conditions holds the optional convenience conditions a command collects
// from its flags. Each set condition becomes exactly one leaf, except Search
// which expands to an OR over request and response body.
type Conditions struct {
	Model            string
	ModelContains    string
	Status           *int
	UserID           string
	Provider         string
	StartDate        *time.Time
	EndDate          *time.Time
	MinCost          *float64
	MaxCost          *float64
	MinLatency       *int
	MaxLatency       *int
	Properties       []Property
	Cached           *bool
	Search           string
	RequestContains  string
	ResponseContains string
}

func leaf(field, op string, value any) *Leaf {
	return &Leaf{Table: TableRequests, Field: field, Op: op, Value: value}
}

// Build turns the set conditions into a filter tree: All for zero
// conditions, a bare leaf for one, and a left-associated and-chain for more,
// in declaration order.
func Build(c Conditions) Node {
	var nodes []Node

	if c.Model != "" {
		nodes = append(nodes, leaf("model", OpEquals, c.Model))
	}
	if c.ModelContains != "" {
		nodes = append(nodes, leaf("model", OpContains, c.ModelContains))
	}
	if c.Status != nil {
		nodes = append(nodes, leaf("status", OpEquals, *c.Status))
	}
	if c.UserID != "" {
		nodes = append(nodes, leaf("user_id", OpEquals, c.UserID))
	}
	if c.Provider != "" {
		nodes = append(nodes, leaf("provider", OpEquals, c.Provider))
	}
	if c.StartDate != nil {
		nodes = append(nodes, leaf("created_at", OpGte, c.StartDate.UTC().Format(time.RFC3339)))
	}
	if c.EndDate != nil {
		nodes = append(nodes, leaf("created_at", OpLte, c.EndDate.UTC().Format(time.RFC3339)))
	}
	if c.MinCost != nil {
		nodes = append(nodes, leaf("cost", OpGte, *c.MinCost))
	}
	if c.MaxCost != nil {
		nodes = append(nodes, leaf("cost", OpLte, *c.MaxCost))
	}
	if c.MinLatency != nil {
		nodes = append(nodes, leaf("latency", OpGte, *c.MinLatency))
	}
	if c.MaxLatency != nil {
		nodes = append(nodes, leaf("latency", OpLte, *c.MaxLatency))
	}
	for _, p := range c.Properties {
		nodes = append(nodes, &Leaf{Table: TableProperties, Field: p.Key, Op: OpEquals, Value: p.Value})
	}
	if c.Cached != nil {
		nodes = append(nodes, leaf("cached", OpEquals, *c.Cached))
	}
	if c.Search != "" {
		// Free-text search matches either side of the exchange.
		nodes = append(nodes, &Branch{
			Left:  leaf("request_body", OpContains, c.Search),
			Op:    "or",
			Right: leaf("response_body", OpContains, c.Search),
		})
	}
	if c.RequestContains != "" {
		nodes = append(nodes, leaf("request_body", OpContains, c.RequestContains))
	}
	if c.ResponseContains != "" {
		nodes = append(nodes, leaf("response_body", OpContains, c.ResponseContains))
	}

	return And(nodes...)
}
