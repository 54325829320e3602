package autograph

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/runtime/quantum"
)

// Builtin identifies a host builtin the call shim rewrites instead of
// invoking. The rewriter replaces direct uses of these constructors inside
// converted code with ConvertedCall(BuiltinRange, ...) and friends, so the
// loop classifier later receives descriptor objects whose raw bounds
// survive even when they are staged values.
type Builtin int

const (
	// BuiltinRange marks a call to the range constructor.
	BuiltinRange Builtin = iota + 1
	// BuiltinEnumerate marks a call to the enumerate constructor.
	BuiltinEnumerate
)

func (b Builtin) String() string {
	switch b {
	case BuiltinRange:
		return "range"
	case BuiltinEnumerate:
		return "enumerate"
	}
	return "builtin"
}

// calleeKind tags the closed set of callees the shim handles specially.
// Classification happens once at entry; everything unrecognized delegates
// to the installed transformer.
type calleeKind int

const (
	calleeDefault calleeKind = iota
	calleeRange
	calleeEnumerate
	calleeQJIT
	calleeQNode
)

func classifyCallee(fn any) calleeKind {
	switch f := fn.(type) {
	case Builtin:
		if f == BuiltinRange {
			return calleeRange
		}
		return calleeEnumerate
	case *quantum.QJIT:
		return calleeQJIT
	case *quantum.QNode:
		return calleeQNode
	}
	return calleeDefault
}

// doNotConvert lists the package prefixes whose functions must never be
// handed to the transformer: the tracing runtime, the quantum wrappers,
// and this package itself. Rewriting their internals would convert the
// machinery doing the converting.
var doNotConvert = []string{
	"github.com/ritu-thombre99/catalyst/runtime/tracer",
	"github.com/ritu-thombre99/catalyst/runtime/quantum",
	"github.com/ritu-thombre99/catalyst/runtime/autograph",
}

// ConvertedCall is the re-entry point for calls inside rewritten code. For
// the duration of the call the scope's conversion context carries this
// package's overrides: the transformer resolved at entry and an allowlist
// extended with the lowering core's own packages. The previous values are
// restored on every exit path, so re-entrant conversions nest cleanly and
// callers observe no change afterwards.
//
// Range and enumerate calls return classifier descriptors instead of
// running. A QJIT callee unwraps to its user function, so the wrapper's
// dispatch is never converted. A QNode callee is rebuilt around a shim
// that re-enters conversion on the inner function, keeping the node's
// device binding intact. Everything else goes to the installed
// transformer, except allowlisted functions, which are invoked directly.
func ConvertedCall(fn any, args []any, kwargs map[string]any, scope *FunctionScope, opts *ConversionOptions) (any, error) {
	invariant.NotNil(fn, "callee")

	ctx := scope.conversionContext()
	restore := ctx.override(ctx.Transformer(), extendAllowlist(ctx.Allowlist()))
	defer restore()

	switch classifyCallee(fn) {
	case calleeRange:
		return NewRange(args...), nil

	case calleeEnumerate:
		invariant.Precondition(len(args) >= 1 && len(args) <= 2,
			"enumerate takes 1 or 2 arguments, got %d", len(args))
		start := any(int64(0))
		if len(args) == 2 {
			start = args[1]
		}
		if s, ok := kwargs["start"]; ok {
			start = s
		}
		return NewEnumerate(args[0], start), nil

	case calleeQJIT:
		// The compiled wrapper's call machinery stays unconverted; only the
		// user function it carries is subject to rewriting.
		j := fn.(*quantum.QJIT)
		return ConvertedCall(j.UserFunc, args, kwargs, scope, opts)

	case calleeQNode:
		return convertedQNodeCall(fn.(*quantum.QNode), args, scope, opts)

	default:
		if allowlisted(fn, ctx.Allowlist()) {
			return PassthroughTransformer{}.ConvertedCall(fn, args, kwargs, scope, opts)
		}
		return ctx.Transformer().ConvertedCall(fn, args, kwargs, scope, opts)
	}
}

// convertedQNodeCall rebuilds a QNode so that conversion applies to its
// inner function but not to the node's own dispatch: the replacement node
// shares the original's device and differentiation method and wraps a shim
// that re-enters ConvertedCall on the inner function with the original
// call's arguments.
func convertedQNodeCall(q *quantum.QNode, args []any, scope *FunctionScope, opts *ConversionOptions) (any, error) {
	inner := q.Func
	invariant.NotNil(inner, "qnode function")

	shim := quantum.StagedFunc(func(callArgs ...any) (any, error) {
		return ConvertedCall(inner, callArgs, nil, scope, opts)
	})

	rebound := &quantum.QNode{
		Name:       q.Name,
		Device:     q.Device,
		DiffMethod: q.DiffMethod,
		Func:       shim,
		SourceMap:  q.SourceMap,
	}
	return rebound.Call(args...)
}

// extendAllowlist returns base plus the packages that must never convert,
// without duplicating prefixes already present.
func extendAllowlist(base []string) []string {
	out := append([]string(nil), base...)
	for _, p := range doNotConvert {
		found := false
		for _, b := range base {
			if b == p {
				found = true
				break
			}
		}
		if !found {
			out = append(out, p)
		}
	}
	return out
}

// allowlisted reports whether fn is a function from an allowlisted
// package. Non-function callees are never allowlisted; they fall through
// to the transformer, which owns the error for uncallable values.
func allowlisted(fn any, allow []string) bool {
	if len(allow) == 0 {
		return false
	}
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return false
	}
	rf := runtime.FuncForPC(fv.Pointer())
	if rf == nil {
		return false
	}
	name := rf.Name()
	for _, prefix := range allow {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
