// Package ir provides the value and directive types shared by cadence.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This ensures ir remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Values are a sealed union (Null, String, Number, Bool, Array, Object)
//   - Directives are a tagged union decided once at compile time
//   - Name markers ($, $$, _, +) become structural fields, never re-parsed
//   - Declaration order is semantic, so authored maps travel as Spec
//   - Trace events are ordered by logical seq, never by wall clock
package ir
