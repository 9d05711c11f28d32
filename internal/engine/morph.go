package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/cadence/internal/easing"
	"github.com/roach88/cadence/internal/ir"
)

// curve returns the unit easing function for e; nil is linear.
func curve(e ir.Easing) easing.Func {
	if e.Func != nil {
		return e.Func
	}
	if e.Name == "" {
		return nil
	}
	fn, _ := easing.Lookup(e.Name)
	return fn
}

// morph interpolates from initial to target at step/steps.
//
// Numbers lerp (a Null initial counts as 0), colors lerp per channel with
// floor, arrays of numbers lerp component-wise. Any other value jumps to
// the target.
func morph(from, to ir.Value, step, steps int, e ir.Easing) ir.Value {
	if steps <= 0 || step >= steps {
		return to
	}
	t := easing.Apply(curve(e), float64(step)/float64(steps))

	switch tv := to.(type) {
	case ir.Number:
		f, ok := numberOrZero(from)
		if !ok {
			return to
		}
		return ir.Number(lerp(f, float64(tv), t))

	case ir.String:
		tc, ok := parseColor(string(tv))
		if !ok {
			return to
		}
		fs, _ := from.(ir.String)
		fc, ok := parseColor(string(fs))
		if !ok {
			return to
		}
		var out [3]int
		for i := range out {
			out[i] = int(math.Floor(lerp(float64(fc[i]), float64(tc[i]), t)))
		}
		return ir.String(fmt.Sprintf("rgb(%d,%d,%d)", out[0], out[1], out[2]))

	case ir.Array:
		fa, ok := from.(ir.Array)
		if !ok || len(fa) != len(tv) {
			return to
		}
		out := make(ir.Array, len(tv))
		for i := range tv {
			a, aok := fa[i].(ir.Number)
			b, bok := tv[i].(ir.Number)
			if !aok || !bok {
				return to
			}
			out[i] = ir.Number(lerp(float64(a), float64(b), t))
		}
		return out
	}
	return to
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func numberOrZero(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case nil, ir.Null:
		return 0, true
	case ir.Number:
		return float64(n), true
	}
	return 0, false
}

// parseColor accepts #rgb, #rrggbb, rgb(r,g,b) and rgba(r,g,b,a); alpha is
// dropped.
func parseColor(s string) ([3]int, bool) {
	var c [3]int
	s = strings.TrimSpace(strings.ToLower(s))

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		switch len(hex) {
		case 3:
			for i := 0; i < 3; i++ {
				n, err := strconv.ParseUint(hex[i:i+1], 16, 8)
				if err != nil {
					return c, false
				}
				c[i] = int(n * 17)
			}
			return c, true
		case 6:
			for i := 0; i < 3; i++ {
				n, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
				if err != nil {
					return c, false
				}
				c[i] = int(n)
			}
			return c, true
		}
		return c, false
	}

	var body string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body = s[4 : len(s)-1]
	default:
		return c, false
	}
	parts := strings.Split(body, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return c, false
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || f < 0 || f > 255 {
			return c, false
		}
		c[i] = int(f)
	}
	return c, true
}
