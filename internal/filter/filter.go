// Package filter implements the tagged-union filter AST of spec §4.6: a
// tree of field constraints combined with AND/OR, compiled to a SQL
// fragment for the index store and, separately, to an in-memory
// predicate for callers that already have a FileRecord in hand.
package filter

import (
	"encoding/json"
	"fmt"
)

// Node is either a FilterCondition (field -> constraint map) or a
// LogicalFilter (and/or of child Nodes). Both implement node so the
// package can keep a closed set of variants while still round-tripping
// through encoding/json.
type Node interface {
	node()
}

// FilterCondition maps field names to constraints; fields within one
// condition combine with AND.
type FilterCondition struct {
	Fields map[string]Constraint
}

func (FilterCondition) node() {}

// LogicalFilter is {operation: "and"|"or", conditions: [...]}.
type LogicalFilter struct {
	Operation  string // "and" | "or"
	Conditions []Node
}

func (LogicalFilter) node() {}

// Constraint is one field's constraint value. Exactly one of its
// members is meaningful per constraint shape; which one is determined
// at unmarshal time from the JSON shape actually present.
type Constraint struct {
	// Exact scalar match (string, number, bool).
	Exact interface{}

	// OR-set match: value must equal one of these.
	Set []interface{}

	// String constraint object.
	Includes      *string
	Glob          *string
	Regex         *string
	StartsWith    *string
	DirectChildOf *string
	RootOnly      *bool

	// Numeric/timestamp range.
	Min interface{}
	Max interface{}
	HasRange bool

	// Folder-specific alternate form.
	Folder    *string
	Recursive bool
	IsFolderForm bool

	// Null constraint: field must be absent/null.
	IsNull bool
}

// UnmarshalJSON implements the constraint-shape dispatch described in
// spec §4.6: a bare scalar, an array (OR-set), an object with known
// keys, or JSON null.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		c.IsNull = true
		return nil
	}

	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err == nil {
		c.Set = arr
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err == nil {
		return c.fromObject(obj)
	}

	var scalar interface{}
	if err := json.Unmarshal(data, &scalar); err != nil {
		return fmt.Errorf("filter: invalid constraint: %w", err)
	}
	c.Exact = scalar
	return nil
}

func (c *Constraint) fromObject(obj map[string]interface{}) error {
	if _, ok := obj["folder"]; ok {
		c.IsFolderForm = true
		if f, ok := obj["folder"].(string); ok {
			c.Folder = &f
		}
		if r, ok := obj["recursive"].(bool); ok {
			c.Recursive = r
		}
		return nil
	}

	if v, ok := obj["includes"].(string); ok {
		c.Includes = &v
	}
	if v, ok := obj["glob"].(string); ok {
		c.Glob = &v
	}
	if v, ok := obj["regex"].(string); ok {
		c.Regex = &v
	}
	if v, ok := obj["startsWith"].(string); ok {
		c.StartsWith = &v
	}
	if v, ok := obj["directChildOf"].(string); ok {
		c.DirectChildOf = &v
	}
	if v, ok := obj["rootOnly"].(bool); ok {
		c.RootOnly = &v
	}
	if v, ok := obj["min"]; ok {
		c.Min = v
		c.HasRange = true
	}
	if v, ok := obj["max"]; ok {
		c.Max = v
		c.HasRange = true
	}

	return nil
}

// UnmarshalJSON on FilterCondition/LogicalFilter is handled one level up
// by UnmarshalNode, since Go can't dispatch on an interface field
// directly during decode.

// UnmarshalNode decodes a raw filter tree node, dispatching on the
// presence of an "operation" key to distinguish LogicalFilter from
// FilterCondition.
func UnmarshalNode(data []byte) (Node, error) {
	var probe struct {
		Operation string `json:"operation"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("filter: invalid node: %w", err)
	}

	if probe.Operation == "and" || probe.Operation == "or" {
		var raw struct {
			Operation  string            `json:"operation"`
			Conditions []json.RawMessage `json:"conditions"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		lf := LogicalFilter{Operation: raw.Operation}
		for _, c := range raw.Conditions {
			child, err := UnmarshalNode(c)
			if err != nil {
				return nil, err
			}
			lf.Conditions = append(lf.Conditions, child)
		}
		return lf, nil
	}

	var fields map[string]Constraint
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("filter: invalid condition: %w", err)
	}
	return FilterCondition{Fields: fields}, nil
}

// NeedsRefinement reports whether n contains a regex or glob
// constraint — the two shapes compile.go can only lower to a
// conservative SQL superset (regex to "match everything", glob to a
// substring test on its literal prefix). Callers that need an exact
// match count, not just a filtered scan, should re-check rows returned
// under the compiled plan with Match rather than trust SQL's row count.
func NeedsRefinement(n Node) bool {
	if n == nil {
		return false
	}
	switch v := n.(type) {
	case LogicalFilter:
		for _, c := range v.Conditions {
			if NeedsRefinement(c) {
				return true
			}
		}
		return false
	case FilterCondition:
		for _, c := range v.Fields {
			if c.Regex != nil || c.Glob != nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Parse decodes a filter AST from its URL-decoded JSON text form
// (spec §6.2 "filter" query parameter).
func Parse(jsonText string) (Node, error) {
	if jsonText == "" {
		return nil, nil
	}
	return UnmarshalNode([]byte(jsonText))
}
