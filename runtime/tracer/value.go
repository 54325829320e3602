// Package tracer implements the staged execution backend that the
// control-flow lowering engines target: traced values, a functional
// two-branch conditional, and a bounded loop over carried state.
//
// A Value is either concrete (it holds a tensor) or abstract (it names a
// node in the trace under construction, with only shape and dtype known).
// Operations on concrete values compute eagerly; operations with an
// abstract operand record a graph node instead. Abstract values exist only
// while their originating trace is active.
//
// Failure contract: operations that cannot proceed under tracing panic
// with *TraceError. The lowering engines recover these at their boundary
// and turn them into errors or fallback decisions; they are never
// propagated as panics out of the public lowering entry points.
//
// The trace stack is package-level and not synchronized: tracing assumes a
// single logical thread of control, re-entrant by recursion only.
package tracer

import (
	"fmt"

	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
)

// TraceError reports an operation that is not possible under tracing, such
// as concretizing an abstract value or indexing with an incompatible type.
// It travels as a panic value between the tracer and the lowering engines.
type TraceError struct {
	Op      string
	Message string
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func traceFail(op, format string, args ...interface{}) {
	panic(&TraceError{Op: op, Message: fmt.Sprintf(format, args...)})
}

// Value is a traced value. The zero Value is invalid.
type Value struct {
	t  *tensor.Tensor
	fr *frame
	id nodeID
}

// Constant wraps a tensor as a concrete Value.
func Constant(t *tensor.Tensor) Value {
	invariant.NotNil(t, "tensor")
	return Value{t: t}
}

// Lift converts a host value into a Value: Values pass through, tensors
// wrap directly, and anything tensor.FromAny can materialize becomes a
// constant. Panics with *TraceError for values outside the traceable
// domain.
func Lift(v any) Value {
	lifted, err := TryLift(v)
	if err != nil {
		traceFail("lift", "%v", err)
	}
	return lifted
}

// TryLift is Lift with an error return instead of a panic, for callers that
// probe whether a host value can enter the traced domain at all.
func TryLift(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		invariant.Precondition(x.valid(), "value must not be the zero Value")
		return x, nil
	case *tensor.Tensor:
		return Constant(x), nil
	}
	t, err := tensor.FromAny(v)
	if err != nil {
		return Value{}, fmt.Errorf("value of type %T cannot enter the traced domain: %v", v, err)
	}
	return Constant(t), nil
}

func (v Value) valid() bool {
	return v.t != nil || v.fr != nil
}

// IsAbstract reports whether the value is known only by shape and dtype.
func (v Value) IsAbstract() bool {
	invariant.Precondition(v.valid(), "value must not be the zero Value")
	return v.t == nil
}

// Signature returns the abstract type of the value.
func (v Value) Signature() tensor.Signature {
	invariant.Precondition(v.valid(), "value must not be the zero Value")
	if v.t != nil {
		return v.t.Signature()
	}
	return v.fr.nodes[v.id].sig
}

// Concrete returns the tensor payload, or an error for abstract values.
func (v Value) Concrete() (*tensor.Tensor, error) {
	invariant.Precondition(v.valid(), "value must not be the zero Value")
	if v.t == nil {
		return nil, fmt.Errorf("value %s is abstract; its data is only known at trace time", v.Signature())
	}
	return v.t, nil
}

// ConcreteInt returns the value as a concrete integer. Panics with
// *TraceError when the value is abstract or not an integer scalar; this is
// the failure mode behind indexing host containers with a now-dynamic loop
// variable.
func (v Value) ConcreteInt() int64 {
	t, err := v.Concrete()
	if err != nil {
		traceFail("concretize", "cannot convert an abstract value to a concrete integer; "+
			"it is a placeholder of type %s with no data attached", v.Signature())
	}
	n, err := t.Int()
	if err != nil {
		traceFail("concretize", "%v", err)
	}
	return n
}

// ConcreteBool returns the value as a concrete boolean, with the same
// panic contract as ConcreteInt.
func (v Value) ConcreteBool() bool {
	t, err := v.Concrete()
	if err != nil {
		traceFail("concretize", "cannot convert an abstract value to a concrete boolean; "+
			"it is a placeholder of type %s with no data attached", v.Signature())
	}
	b, err := t.Bool()
	if err != nil {
		traceFail("concretize", "%v", err)
	}
	return b
}

// Len returns the first-axis length. Shapes are static, so Len works for
// abstract values too.
func (v Value) Len() int {
	sig := v.Signature()
	if len(sig.Shape) == 0 {
		traceFail("len", "value of type %s has no length", sig)
	}
	return sig.Shape[0]
}

func (v Value) String() string {
	invariant.Precondition(v.valid(), "value must not be the zero Value")
	if v.t != nil {
		return v.t.String()
	}
	return fmt.Sprintf("abstract %s", v.Signature())
}
