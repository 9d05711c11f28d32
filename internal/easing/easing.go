// Package easing maps easing names to normalized curves.
//
// The catalogue is the Penner set shipped by github.com/tanema/gween/ease,
// plus the CSS keyword aliases directive authors commonly write. Every
// curve is normalized to map t in [0,1] onto [0,1].
package easing

import (
	"sort"

	"github.com/tanema/gween/ease"
)

// Func is a normalized easing curve.
type Func func(t float64) float64

var catalogue = map[string]ease.TweenFunc{
	"linear": ease.Linear,

	"inQuad":    ease.InQuad,
	"outQuad":   ease.OutQuad,
	"inOutQuad": ease.InOutQuad,

	"inCubic":    ease.InCubic,
	"outCubic":   ease.OutCubic,
	"inOutCubic": ease.InOutCubic,

	"inQuart":    ease.InQuart,
	"outQuart":   ease.OutQuart,
	"inOutQuart": ease.InOutQuart,

	"inQuint":    ease.InQuint,
	"outQuint":   ease.OutQuint,
	"inOutQuint": ease.InOutQuint,

	"inSine":    ease.InSine,
	"outSine":   ease.OutSine,
	"inOutSine": ease.InOutSine,

	"inExpo":    ease.InExpo,
	"outExpo":   ease.OutExpo,
	"inOutExpo": ease.InOutExpo,

	"inCirc":    ease.InCirc,
	"outCirc":   ease.OutCirc,
	"inOutCirc": ease.InOutCirc,

	"inElastic":    ease.InElastic,
	"outElastic":   ease.OutElastic,
	"inOutElastic": ease.InOutElastic,

	"inBack":    ease.InBack,
	"outBack":   ease.OutBack,
	"inOutBack": ease.InOutBack,

	"inBounce":    ease.InBounce,
	"outBounce":   ease.OutBounce,
	"inOutBounce": ease.InOutBounce,
}

// CSS keyword aliases.
var aliases = map[string]string{
	"ease":      "inOutQuad",
	"easeIn":    "inQuad",
	"easeOut":   "outQuad",
	"easeInOut": "inOutQuad",
}

// Known reports whether name is in the catalogue.
func Known(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Lookup returns the normalized curve for name.
func Lookup(name string) (Func, bool) {
	if target, ok := aliases[name]; ok {
		name = target
	}
	fn, ok := catalogue[name]
	if !ok {
		return nil, false
	}
	return Normalize(fn), true
}

// Normalize adapts a gween tween function (t, begin, change, duration) to
// a unit curve.
func Normalize(fn ease.TweenFunc) Func {
	return func(t float64) float64 {
		return float64(fn(float32(t), 0, 1, 1))
	}
}

// Apply evaluates the curve at t, clamping t to [0,1]. A nil curve is linear.
func Apply(fn Func, t float64) float64 {
	t = max(0, min(1, t))
	if fn == nil {
		return t
	}
	// Endpoints are exact regardless of float32 rounding inside the curve.
	if t == 0 || t == 1 {
		return t
	}
	return fn(t)
}

// Names returns every catalogue name and alias, sorted.
func Names() []string {
	names := make([]string, 0, len(catalogue)+len(aliases))
	for n := range catalogue {
		names = append(names, n)
	}
	for n := range aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
