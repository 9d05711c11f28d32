package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/cadence/internal/ir"
)

// NodeSpec is one top-level node loaded from CUE.
type NodeSpec struct {
	ID   string
	Spec ir.Spec
}

// CompileNodes reads the `node` struct of a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// Each field of `node` is one root node; its fields are directives in
// declaration order. Marker names must be quoted because CUE hides
// identifiers with a leading underscore:
//
//	node: box: {
//		x:          0
//		width:      [100, 10, 16]
//		"opacity$": {value: 1, steps: 5}
//		"_glow":    {expr: "prev * 2"}
//	}
func CompileNodes(v cue.Value) ([]NodeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nodesVal := v.LookupPath(cue.ParsePath("node"))
	if !nodesVal.Exists() {
		return nil, &CompileError{
			Field:   "node",
			Message: "at least one node is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []NodeSpec
	for iter.Next() {
		id := iter.Selector().Unquoted()
		raw, err := cueToRaw(iter.Value())
		if err != nil {
			return nil, err
		}
		spec, ok := raw.(ir.Spec)
		if !ok {
			return nil, &CompileError{
				Field:   "node." + id,
				Message: "node must be a struct of directives",
				Pos:     iter.Value().Pos(),
			}
		}
		nodes = append(nodes, NodeSpec{ID: id, Spec: spec})
	}

	if len(nodes) == 0 {
		return nil, &CompileError{
			Field:   "node",
			Message: "at least one node is required",
			Pos:     nodesVal.Pos(),
		}
	}
	return nodes, nil
}

// cueToRaw converts a concrete CUE value into authored Go data, keeping
// struct field order.
func cueToRaw(v cue.Value) (any, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := cueToRaw(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec := ir.Spec{}
		for iter.Next() {
			elem, err := cueToRaw(iter.Value())
			if err != nil {
				return nil, err
			}
			spec = append(spec, ir.Entry{Name: iter.Selector().Unquoted(), Raw: elem})
		}
		return spec, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported or non-concrete value: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
