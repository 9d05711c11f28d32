package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cadence/internal/easing"
	"github.com/roach88/cadence/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateName        = "E101" // two entries share a base name
	ErrOrphanContinuation   = "E102" // $ or $$ with nothing before it
	ErrUnknownEasing        = "E103" // easing name not in the catalogue
	ErrInvalidExpr          = "E104" // expr does not parse
	ErrDegradedShorthand    = "E105" // array kept as a literal
	ErrHookNotCallable      = "E106" // node hook without a callback value
	ErrFetchWithoutSource   = "E107" // fetch with no url
	ErrInactiveContinuation = "E108" // _name$ is redundant: chains activate it anyway
)

// ValidationError represents a lint finding on a directive spec.
//
// Compilation never fails, because malformed descriptors degrade to
// literals. Validate reports those degradations so authors can see them.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate lints a node spec. Returns all findings (does not fail-fast).
func Validate(spec ir.Spec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	executableSeen := false

	for _, e := range spec {
		d := parseName(e.Name)

		// E101: duplicate base name
		if seen[d.Name] {
			errs = append(errs, ValidationError{
				Field:   e.Name,
				Message: fmt.Sprintf("duplicate directive name %q, later entry wins", d.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[d.Name] = true

		compiled := Classify(e.Name, e.Raw, 0)

		// E102: continuation without predecessor
		if d.Continuation != ir.ContinueNone && !executableSeen && compiled.Kind.Executable() {
			errs = append(errs, ValidationError{
				Field:   e.Name,
				Message: "continuation has no preceding directive and runs at registration",
				Code:    ErrOrphanContinuation,
			})
		}
		if compiled.Kind.Executable() {
			executableSeen = true
		}

		// E108: inactive continuation
		if d.Inactive && d.Continuation != ir.ContinueNone {
			errs = append(errs, ValidationError{
				Field:   e.Name,
				Message: "leading _ has no effect on a chained directive",
				Code:    ErrInactiveContinuation,
			})
		}

		errs = append(errs, validateRaw(e.Name, d.Name, e.Raw, compiled)...)
	}
	return errs
}

func validateRaw(field, name string, raw any, d *ir.Directive) []ValidationError {
	var errs []ValidationError

	if isHookName(name) && d.Kind != ir.KindHook && d.Event == "" {
		if _, ok := callbackOf(raw); !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "node hook value must be a callback",
				Code:    ErrHookNotCallable,
			})
		}
	}

	if arr, ok := arrayOf(raw); ok && d.Kind == ir.KindLiteral && len(arr) > 1 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "array does not match [value, steps, interval, cycles|easing, cycles] and is used as a literal",
			Code:    ErrDegradedShorthand,
		})
		if len(arr) > 3 {
			if s, ok := arr[3].(string); ok && !easing.Known(s) {
				errs = append(errs, unknownEasing(field+"[3]", s))
			}
		}
	}

	if obj, ok := objectOf(raw); ok {
		for _, e := range obj {
			switch e.Name {
			case keyEasing:
				for _, s := range easingNames(e.Raw) {
					if !easing.Known(s) {
						errs = append(errs, unknownEasing(field+"."+keyEasing, s))
					}
				}
			case keyExpr:
				if src, ok := e.Raw.(string); ok {
					if _, err := CompileExpr(src); err != nil {
						errs = append(errs, ValidationError{
							Field:   field + "." + keyExpr,
							Message: err.Error(),
							Code:    ErrInvalidExpr,
						})
					}
				}
			}
		}
	}

	if d.Kind == ir.KindFetch && d.Params != nil && d.Params.Value.Func == nil && isEmptySource(d.Params.Value.Raw) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "fetch has no url",
			Code:    ErrFetchWithoutSource,
		})
	}
	return errs
}

func unknownEasing(field, name string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("unknown easing %q (known: %s)", name, strings.Join(easing.Names(), ", ")),
		Code:    ErrUnknownEasing,
	}
}

func easingNames(raw any) []string {
	if s, ok := raw.(string); ok {
		return []string{s}
	}
	var names []string
	if arr, ok := arrayOf(raw); ok {
		for _, elem := range arr {
			if s, ok := elem.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names
}

func isEmptySource(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	if arr, ok := arrayOf(raw); ok {
		return len(arr) == 0
	}
	return false
}
