// Package autograph lowers imperative control flow onto the tracing
// runtime's functional primitives.
//
// The upstream source rewriter turns `if` and `for` statements inside staged
// functions into calls to IfStmt and ForStmt, handing over the statement's
// tracked variables through capture/restore closures. The engines here
// decide whether the statement can be expressed as a functional conditional
// or bounded loop over those variables, trace it if so, and fall back to
// native execution when tracing is impossible or fails. Nested calls inside
// rewritten code re-enter through ConvertedCall.
//
// Recoverable conditions never escape this package as errors: a loop that
// cannot trace simply runs natively, at most with a warning. Fatal
// conditions (an undefined variable, an unstable carry type) always
// propagate, naming the offending variable.
package autograph

import (
	"fmt"
	"strings"

	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// Undefined stands in for a variable that has no value on some control-flow
// path. The rewriter seeds tracked variables with it; the lowering engines
// detect it and convert it into a named error before anything reaches the
// tracer.
type Undefined struct {
	name string
}

// NewUndefined returns the marker for the given symbol name.
func NewUndefined(name string) *Undefined {
	return &Undefined{name: name}
}

// Name returns the symbol this marker stands in for.
func (u *Undefined) Name() string { return u.name }

func (u *Undefined) String() string { return u.name }

// IsUndefined reports whether v is an Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(*Undefined)
	return ok
}

// valuesAsAny converts traced values into the any-typed tuple shape the
// capture/restore closures use.
func valuesAsAny(vals []tracer.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// name returns the i-th variable name, or a positional placeholder when the
// rewriter supplied fewer names than values.
func name(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("#%d", i)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
