// Package domain holds the core entities of the dispatch engine: the tagged
// JSON value tree used for task args/metadata, and the Queue/Task/Worker/
// Event documents the engine operates on.
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the shape a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a tagged JSON value: null, bool, number, string, array, or
// object. It exists so args/metadata documents can be traversed and
// compared generically, instead of threading a bare `any`/map[string]any
// through the matcher and engine.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func Array(vs ...Value) Value   { return Value{kind: KindArray, arr: vs} }
func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindObject, obj: m}
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) Number() (float64, bool)  { return v.n, v.kind == KindNumber }
func (v Value) String() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) Array() ([]Value, bool)   { return v.arr, v.kind == KindArray }
func (v Value) Object() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Get traverses a dotted path ("args.lr", "metadata.tag.nested") through
// nested objects. Arrays are not indexable by dotted path; a path segment
// hitting an array returns (Null, false). Missing paths return (Null,
// false) — "not present".
func (v Value) Get(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	segs := strings.Split(path, ".")
	cur := v
	for _, seg := range segs {
		if cur.kind != KindObject {
			return Null(), false
		}
		next, ok := cur.obj[seg]
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return cur, true
}

// Set returns a new Value with the sub-path set to val, creating
// intermediate objects as needed, without disturbing sibling fields. The
// receiver must be an object (or null, treated as an empty object).
func (v Value) Set(path string, val Value) Value {
	if path == "" {
		return val
	}
	segs := strings.Split(path, ".")
	return setPath(v, segs, val)
}

func setPath(v Value, segs []string, val Value) Value {
	obj := map[string]Value{}
	if v.kind == KindObject {
		for k, vv := range v.obj {
			obj[k] = vv
		}
	}
	head := segs[0]
	if len(segs) == 1 {
		obj[head] = val
		return Object(obj)
	}
	child := obj[head]
	obj[head] = setPath(child, segs[1:], val)
	return Object(obj)
}

// Equal reports deep structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two Values of the same comparable kind (number or
// string). It returns (0, false) if the kinds differ or are not
// orderable, matching the matcher's "comparisons against an unorderable
// pair are false" rule.
func (v Value) Compare(o Value) (int, bool) {
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindNumber:
		switch {
		case v.n < o.n:
			return -1, true
		case v.n > o.n:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		return strings.Compare(v.s, o.s), true
	default:
		return 0, false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		// Deterministic key order keeps storage documents diffable.
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			vb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(vb)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	}
	return nil, fmt.Errorf("domain: unknown Value kind %d", v.kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded interface{} (as produced by encoding/json)
// into a Value tree.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case string:
		return String(x)
	case []any:
		vs := make([]Value, len(x))
		for i, e := range x {
			vs[i] = FromAny(e)
		}
		return Array(vs...)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = FromAny(e)
		}
		return Object(m)
	default:
		return Null()
	}
}

// ToAny converts a Value tree back into plain interface{} values, for
// callers (e.g. the store driver) that need the untyped shape.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.ToAny()
		}
		return out
	}
	return nil
}
