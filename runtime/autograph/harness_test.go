package autograph_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ritu-thombre99/catalyst/core/logging"
	"github.com/ritu-thombre99/catalyst/runtime/autograph"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// stateVars simulates the machinery the rewriter generates around a
// lowered statement: an ordered set of named variable slots with
// capture/restore closures over them. Variables begin Undefined, exactly
// as the rewriter seeds locals that have no value yet on entry.
type stateVars struct {
	names  []string
	values []any
}

func newStateVars(names ...string) *stateVars {
	s := &stateVars{names: names, values: make([]any, len(names))}
	for i, n := range names {
		s.values[i] = autograph.NewUndefined(n)
	}
	return s
}

func (s *stateVars) get() []any {
	return append([]any(nil), s.values...)
}

func (s *stateVars) set(values []any) {
	copy(s.values, values)
}

func (s *stateVars) index(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (s *stateVars) value(name string) any {
	i := s.index(name)
	if i < 0 {
		return nil
	}
	return s.values[i]
}

func (s *stateVars) assign(name string, v any) {
	i := s.index(name)
	if i >= 0 {
		s.values[i] = v
	}
}

// asInt reads a state variable back as a concrete integer, whichever side
// of the traced domain it ended up on.
func asInt(t *testing.T, v any) int64 {
	t.Helper()
	tv, err := tracer.TryLift(v)
	require.NoError(t, err)
	return tv.ConcreteInt()
}

// asFloat reads a state variable back as a concrete float.
func asFloat(t *testing.T, v any) float64 {
	t.Helper()
	tv, err := tracer.TryLift(v)
	require.NoError(t, err)
	ct, err := tv.Concrete()
	require.NoError(t, err)
	f, err := ct.Float()
	require.NoError(t, err)
	return f
}

// add lifts both operands so loop and branch bodies behave identically
// under tracing and under native fallback execution.
func add(a, b any) any { return tracer.Lift(a).Add(tracer.Lift(b)) }

func mul(a, b any) any { return tracer.Lift(a).Mul(tracer.Lift(b)) }

// concretize resolves a body element to a host integer: raw integers pass
// through, traced values concretize and panic when abstract. Bodies use it
// to model tracer-incompatible indexing.
func concretize(elem any) int64 {
	if v, ok := elem.(tracer.Value); ok {
		return v.ConcreteInt()
	}
	if v, ok := elem.(int64); ok {
		return v
	}
	return int64(elem.(int))
}

// capturedScope builds a function scope whose warnings collect into the
// returned buffer instead of stderr.
func capturedScope(name string) (*autograph.FunctionScope, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.NewLogger("autograph")
	logger.SetFormatter(&logging.TextFormatter{})
	logger.SetOutput(&buf)

	scope := autograph.NewFunctionScope(name)
	scope.Config.Logger = logger
	return scope, &buf
}

func warningCount(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "Tracing of a converted for loop failed")
}
