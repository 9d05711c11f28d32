package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cadence/internal/ir"
)

// Compile classifies every entry of spec in declaration order and wires
// the chain links. Orders start at offset so the result can be appended
// to a node that already holds directives.
func Compile(spec ir.Spec, offset int) []*ir.Directive {
	out := make([]*ir.Directive, 0, len(spec))
	for i, e := range spec {
		out = append(out, Classify(e.Name, e.Raw, offset+i))
	}
	return out
}

// Link recomputes the Prev/Next links of an ordered directive list.
//
// A continuation binds to the closest earlier executable directive
// (control and hook entries are skipped). A continuation with nothing
// before it degrades to ContinueNone so it still runs.
func Link(directives []*ir.Directive) {
	for _, d := range directives {
		d.Prev, d.Next = "", ""
	}

	var prev *ir.Directive
	for _, d := range directives {
		if !d.Kind.Executable() {
			continue
		}
		if d.Continuation != ir.ContinueNone {
			if prev == nil {
				d.Continuation = ir.ContinueNone
			} else {
				d.Prev = prev.Name
				prev.Next = d.Name
			}
		}
		prev = d
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
