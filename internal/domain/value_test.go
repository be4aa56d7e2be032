package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueGetSet(t *testing.T) {
	v := Object(map[string]Value{
		"lr": Number(0.01),
		"nested": Object(map[string]Value{
			"tag": String("a"),
		}),
	})

	got, ok := v.Get("nested.tag")
	require.True(t, ok)
	assert.Equal(t, "a", got.s)

	_, ok = v.Get("missing.path")
	assert.False(t, ok)

	updated := v.Set("nested.tag", String("b"))
	got, ok = updated.Get("nested.tag")
	require.True(t, ok)
	assert.Equal(t, "b", got.s)

	// original is untouched
	got, ok = v.Get("nested.tag")
	require.True(t, ok)
	assert.Equal(t, "a", got.s)

	// sibling fields survive a Set
	lr, ok := updated.Get("lr")
	require.True(t, ok)
	n, _ := lr.Number()
	assert.Equal(t, 0.01, n)
}

func TestValueGetThroughArray(t *testing.T) {
	v := Object(map[string]Value{
		"items": Array(Number(1), Number(2)),
	})
	_, ok := v.Get("items.0")
	assert.False(t, ok)
}

func TestValueEqual(t *testing.T) {
	a := Object(map[string]Value{"x": Number(1), "y": Array(String("a"), Null())})
	b := Object(map[string]Value{"y": Array(String("a"), Null()), "x": Number(1)})
	assert.True(t, a.Equal(b))

	c := Object(map[string]Value{"x": Number(2), "y": Array(String("a"), Null())})
	assert.False(t, a.Equal(c))
}

func TestValueCompare(t *testing.T) {
	lt, ok := Number(1).Compare(Number(2))
	require.True(t, ok)
	assert.Equal(t, -1, lt)

	_, ok = Number(1).Compare(String("x"))
	assert.False(t, ok)

	eq, ok := String("a").Compare(String("a"))
	require.True(t, ok)
	assert.Equal(t, 0, eq)
}

func TestValueMarshalDeterministicKeyOrder(t *testing.T) {
	v := Object(map[string]Value{"b": Number(2), "a": Number(1), "c": Number(3)})
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(b))
}

func TestValueRoundTrip(t *testing.T) {
	raw := []byte(`{"args":{"lr":0.01,"tags":["a","b"]},"done":false,"n":null}`)
	var v Value
	require.NoError(t, json.Unmarshal(raw, &v))

	lr, ok := v.Get("args.lr")
	require.True(t, ok)
	n, _ := lr.Number()
	assert.Equal(t, 0.01, n)

	out, err := json.Marshal(v)
	require.NoError(t, err)

	var roundTripped Value
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	assert.True(t, v.Equal(roundTripped))
}

func TestFromAnyToAny(t *testing.T) {
	raw := map[string]any{"a": 1.0, "b": []any{"x", nil}}
	v := FromAny(raw)
	back := v.ToAny()
	assert.Equal(t, raw, back)
}
