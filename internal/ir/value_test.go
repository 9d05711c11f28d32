package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Number(4.2)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Number(1)}
	var _ Value = Object{"key": String("value")}
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"nil", nil, Null{}},
		{"string", "red", String("red")},
		{"int", 7, Number(7)},
		{"int64", int64(-3), Number(-3)},
		{"float32", float32(0.5), Number(0.5)},
		{"bool", true, Bool(true)},
		{"value passthrough", Number(3), Number(3)},
		{"slice", []any{1, "a"}, Array{Number(1), String("a")}},
		{"typed slice", []int{1, 2}, Array{Number(1), Number(2)}},
		{"map", map[string]any{"k": 1}, Object{"k": Number(1)}},
		{"spec", S("x", 1, "y", "top"), Object{"x": Number(1), "y": String("top")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromGoRejectsFunctions(t *testing.T) {
	_, err := FromGo(func() {})
	assert.Error(t, err)

	_, err = FromGo([]any{1, func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[1]")
}

func TestToGo(t *testing.T) {
	v := Object{"a": Array{Number(1), Null{}, Bool(false)}, "b": String("x")}
	assert.Equal(t, map[string]any{
		"a": []any{float64(1), nil, false},
		"b": "x",
	}, ToGo(v))
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{"zebra": Null{}, "apple": Null{}, "Banana": Null{}}
	assert.Equal(t, []string{"Banana", "apple", "zebra"}, obj.SortedKeys())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "10", Format(Number(10)))
	assert.Equal(t, "0.25", Format(Number(0.25)))
	assert.Equal(t, "rgb(1,2,3)", Format(String("rgb(1,2,3)")))
	assert.Equal(t, "null", Format(nil))
	assert.Equal(t, `[1,"a"]`, Format(Array{Number(1), String("a")}))
}

func TestEqual(t *testing.T) {
	nested := Object{"a": Object{"b": Number(1)}}
	same := Object{"a": Object{"b": Number(1)}}

	t.Run("scalars", func(t *testing.T) {
		assert.True(t, ShallowEqual(Number(1), Number(1)))
		assert.False(t, ShallowEqual(Number(1), String("1")))
		assert.True(t, ShallowEqual(nil, Null{}))
	})

	t.Run("one level composites", func(t *testing.T) {
		assert.True(t, ShallowEqual(Array{Number(1), String("x")}, Array{Number(1), String("x")}))
		assert.False(t, ShallowEqual(Array{Number(1)}, Array{Number(1), Number(2)}))
	})

	t.Run("nested composites are unequal shallowly", func(t *testing.T) {
		assert.False(t, ShallowEqual(nested, same))
		assert.True(t, DeepEqual(nested, same))
	})

	t.Run("deep equality ignores key order", func(t *testing.T) {
		assert.True(t, Equal(Object{"x": Number(1), "y": Number(2)}, Object{"y": Number(2), "x": Number(1)}, true))
	})

	t.Run("unserializable values are never equal", func(t *testing.T) {
		nan := Array{Number(math.NaN())}
		assert.NotPanics(t, func() {
			assert.False(t, DeepEqual(nan, nan))
		})
	})
}

func TestValueHashStable(t *testing.T) {
	h1, err := ValueHash(Object{"a": Number(1), "b": Array{String("x")}})
	require.NoError(t, err)
	h2, err := ValueHash(Object{"b": Array{String("x")}, "a": Number(1)})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestSpecHelpers(t *testing.T) {
	spec := S("x", 1, "width$", []any{100, 10})
	assert.Equal(t, []string{"x", "width$"}, spec.Names())
	assert.True(t, spec.Has("x"))
	raw, ok := spec.Get("width$")
	require.True(t, ok)
	assert.Equal(t, []any{100, 10}, raw)

	ordered := SpecFromMap(map[string]any{"b": 1, "a": 2})
	assert.Equal(t, []string{"a", "b"}, ordered.Names())

	assert.Panics(t, func() { S("x") })
}

func TestCountEval(t *testing.T) {
	assert.Equal(t, 3, FixedCount(3).Eval(0, 0))
	assert.Equal(t, 0, FixedCount(-2).Eval(0, 0))

	c := Count{Func: func(cycle, prior int) int { return cycle * 10 }, Set: true}
	assert.Equal(t, 20, c.Eval(2, 0))
}
