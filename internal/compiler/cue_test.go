package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
)

func TestCompileNodesBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		node: box: {
			x:          0
			width:      [100, 10, 16]
			"opacity$": {value: 0.5, steps: 5}
			"_glow":    {expr: "prev * 2"}
			items: [{width: 10, height: 10}]
		}
		node: label: {
			text: "hi"
		}
	`)
	require.NoError(t, v.Err())

	nodes, err := CompileNodes(v)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	box := nodes[0]
	assert.Equal(t, "box", box.ID)
	assert.Equal(t, []string{"x", "width", "opacity$", "_glow", "items"}, box.Spec.Names())

	width, _ := box.Spec.Get("width")
	assert.Equal(t, []any{int64(100), int64(10), int64(16)}, width)

	opacity, _ := box.Spec.Get("opacity$")
	require.IsType(t, ir.Spec{}, opacity)
	val, _ := opacity.(ir.Spec).Get("value")
	assert.Equal(t, 0.5, val)

	assert.Equal(t, "label", nodes[1].ID)

	// The decoded spec compiles like a Go literal.
	ds := Compile(box.Spec, 0)
	Link(ds)
	assert.Equal(t, ir.KindShorthand, ds[1].Kind)
	assert.Equal(t, ir.ContinueImmediate, ds[2].Continuation)
	assert.True(t, ds[3].Inactive)
	assert.Equal(t, ir.KindChildren, ds[4].Kind)
}

func TestCompileNodesMissingNode(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: 1`)
	_, err := CompileNodes(v)
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "node", ce.Field)
}

func TestCompileNodesRejectsNonStruct(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`node: box: 3`)
	_, err := CompileNodes(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node.box")
}

func TestCompileNodesRejectsIncomplete(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`node: box: { x: int }`)
	_, err := CompileNodes(v)
	require.Error(t, err)
}
