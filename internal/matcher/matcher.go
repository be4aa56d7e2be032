// Package matcher implements the small boolean expression language used
// both for worker-side task filtering (required_fields, extra_filter) and
// admin-side bulk updates. It is pure: it consumes domain.Value documents
// and produces booleans or new documents.
package matcher

import (
	"encoding/json"
	"fmt"

	"github.com/labtasker/labtasker/internal/domain"
)

// Op names one node of the filter expression tree.
type Op string

const (
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpIn        Op = "in"
	OpExists    Op = "exists"
	OpNotExists Op = "not_exists"
	OpAnd       Op = "and"
	OpOr        Op = "or"
	OpNot       Op = "not"
)

// Filter is a node in the expression tree. Leaf nodes (eq/ne/lt/lte/gt/
// gte/in/exists/not_exists) carry Path and Value/Values. Logical nodes
// (and/or/not) carry Children.
type Filter struct {
	Op       Op             `json:"op"`
	Path     string         `json:"path,omitempty"`
	Value    domain.Value   `json:"value,omitempty"`
	Values   []domain.Value `json:"values,omitempty"`
	Children []Filter       `json:"children,omitempty"`
}

// Eq builds a field-path equality leaf.
func Eq(path string, v domain.Value) Filter { return Filter{Op: OpEq, Path: path, Value: v} }

// Ne builds a field-path inequality leaf.
func Ne(path string, v domain.Value) Filter { return Filter{Op: OpNe, Path: path, Value: v} }

// Lt/Lte/Gt/Gte build ordered-comparison leaves.
func Lt(path string, v domain.Value) Filter  { return Filter{Op: OpLt, Path: path, Value: v} }
func Lte(path string, v domain.Value) Filter { return Filter{Op: OpLte, Path: path, Value: v} }
func Gt(path string, v domain.Value) Filter  { return Filter{Op: OpGt, Path: path, Value: v} }
func Gte(path string, v domain.Value) Filter { return Filter{Op: OpGte, Path: path, Value: v} }

// In builds a set-membership leaf.
func In(path string, vs ...domain.Value) Filter { return Filter{Op: OpIn, Path: path, Values: vs} }

// Exists/NotExists build existence-test leaves.
func Exists(path string) Filter    { return Filter{Op: OpExists, Path: path} }
func NotExists(path string) Filter { return Filter{Op: OpNotExists, Path: path} }

// And/Or/Not build logical combinators.
func And(children ...Filter) Filter { return Filter{Op: OpAnd, Children: children} }
func Or(children ...Filter) Filter  { return Filter{Op: OpOr, Children: children} }
func Not(child Filter) Filter       { return Filter{Op: OpNot, Children: []Filter{child}} }

// Match evaluates f against doc. Missing field paths evaluate as "not
// present"; comparisons against missing paths are false.
func Match(doc domain.Value, f Filter) bool {
	switch f.Op {
	case OpAnd:
		for _, c := range f.Children {
			if !Match(doc, c) {
				return false
			}
		}
		return true
	case OpOr:
		if len(f.Children) == 0 {
			return false
		}
		for _, c := range f.Children {
			if Match(doc, c) {
				return true
			}
		}
		return false
	case OpNot:
		if len(f.Children) != 1 {
			return false
		}
		return !Match(doc, f.Children[0])
	case OpExists:
		_, ok := doc.Get(f.Path)
		return ok
	case OpNotExists:
		_, ok := doc.Get(f.Path)
		return !ok
	case OpEq:
		got, ok := doc.Get(f.Path)
		if !ok {
			return false
		}
		return got.Equal(f.Value)
	case OpNe:
		got, ok := doc.Get(f.Path)
		if !ok {
			// Not present is not equal to anything concrete.
			return true
		}
		return !got.Equal(f.Value)
	case OpLt, OpLte, OpGt, OpGte:
		got, ok := doc.Get(f.Path)
		if !ok {
			return false
		}
		cmp, orderable := got.Compare(f.Value)
		if !orderable {
			return false
		}
		switch f.Op {
		case OpLt:
			return cmp < 0
		case OpLte:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		}
		return false
	case OpIn:
		got, ok := doc.Get(f.Path)
		if !ok {
			return false
		}
		for _, v := range f.Values {
			if got.Equal(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// RequiredFieldsMatch reports whether every dotted path exists (and is
// non-null) within args.
func RequiredFieldsMatch(args domain.Value, paths []string) bool {
	for _, p := range paths {
		v, ok := args.Get(p)
		if !ok || v.IsNull() {
			return false
		}
	}
	return true
}

// Update is a bulk-update document: a set of dotted-path assignments to
// apply to a task document.
type Update struct {
	Sets map[string]domain.Value `json:"set"`
}

// Apply returns a new document with each Sets path assigned, without
// disturbing sibling fields.
func Apply(doc domain.Value, u Update) domain.Value {
	out := doc
	for path, val := range u.Sets {
		out = out.Set(path, val)
	}
	return out
}

// wireFilter mirrors Filter's JSON shape but with Value/Values as raw
// messages, since domain.Value's own UnmarshalJSON expects plain JSON
// scalars/containers, not a further-nested envelope.
type wireFilter struct {
	Op       Op                `json:"op"`
	Path     string            `json:"path,omitempty"`
	Value    json.RawMessage   `json:"value,omitempty"`
	Values   []json.RawMessage `json:"values,omitempty"`
	Children []wireFilter      `json:"children,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler so Filter trees can be decoded
// directly from an HTTP request body's extra_filter field.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var w wireFilter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return f.fromWire(w)
}

func (f *Filter) fromWire(w wireFilter) error {
	f.Op = w.Op
	f.Path = w.Path
	if len(w.Value) > 0 {
		if err := json.Unmarshal(w.Value, &f.Value); err != nil {
			return err
		}
	}
	if len(w.Values) > 0 {
		f.Values = make([]domain.Value, len(w.Values))
		for i, raw := range w.Values {
			if err := json.Unmarshal(raw, &f.Values[i]); err != nil {
				return err
			}
		}
	}
	if len(w.Children) > 0 {
		f.Children = make([]Filter, len(w.Children))
		for i, c := range w.Children {
			if err := f.Children[i].fromWire(c); err != nil {
				return err
			}
		}
	}
	switch f.Op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpExists, OpNotExists, OpAnd, OpOr, OpNot, "":
		return nil
	default:
		return fmt.Errorf("matcher: unknown op %q", f.Op)
	}
}
