package compiler

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/roach88/cadence/internal/ir"
)

// CompileExpr turns a Starlark expression into a computed descriptor.
//
// The expression sees these predeclared names:
//
//	cycle   current cycle index (int)
//	last    the directive's current value
//	prev    value handed over by the preceding directive
//	node    node id (string)
//	get     get(name) reads another property of the node
//
// The result is resolved like any computed result, so "[prev * 2, 10]"
// yields a ten step animation. Evaluation errors yield null.
func CompileExpr(src string) (ir.ComputedFunc, error) {
	if _, err := syntax.ParseExpr("expr", src, 0); err != nil {
		return nil, fmt.Errorf("parse expr %q: %w", src, err)
	}

	return func(s ir.Scope) any {
		thread := &starlark.Thread{
			Name:  "cadence",
			Print: func(_ *starlark.Thread, _ string) {},
		}
		env := starlark.StringDict{
			"cycle": starlark.MakeInt(s.Cycle),
			"last":  toStarlarkValue(s.Last),
			"prev":  toStarlarkValue(s.Prev),
			"node":  starlark.String(s.NodeID),
			"get": starlark.NewBuiltin("get", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var name string
				if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
					return nil, err
				}
				return toStarlarkValue(s.Value(name)), nil
			}),
		}

		result, err := starlark.Eval(thread, "expr", src, env)
		if err != nil {
			return ir.Null{}
		}
		out, err := fromStarlarkValue(result)
		if err != nil {
			return ir.Null{}
		}
		return out
	}, nil
}

// toStarlarkValue converts a Value to a Starlark value.
func toStarlarkValue(v ir.Value) starlark.Value {
	switch val := v.(type) {
	case ir.String:
		return starlark.String(val)
	case ir.Number:
		f := float64(val)
		if f == float64(int64(f)) {
			return starlark.MakeInt64(int64(f))
		}
		return starlark.Float(f)
	case ir.Bool:
		return starlark.Bool(val)
	case ir.Array:
		list := make([]starlark.Value, len(val))
		for i, elem := range val {
			list[i] = toStarlarkValue(elem)
		}
		return starlark.NewList(list)
	case ir.Object:
		dict := starlark.NewDict(len(val))
		for _, k := range val.SortedKeys() {
			_ = dict.SetKey(starlark.String(k), toStarlarkValue(val[k]))
		}
		return dict
	default:
		return starlark.None
	}
}

// fromStarlarkValue converts a Starlark value to authored Go data.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]any, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		spec := ir.Spec{}
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			spec = append(spec, ir.Entry{Name: string(key), Raw: value})
		}
		return spec, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
