package autograph

import (
	"fmt"
	"reflect"

	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// RangeTarget is the classifier-friendly stand-in for a range call inside
// converted code. The raw bounds are kept untouched: they may be staged
// values, which native range construction would have to concretize.
type RangeTarget struct {
	Start, Stop, Step any
}

// NewRange mirrors range's argument forms: (stop), (start, stop) and
// (start, stop, step).
func NewRange(args ...any) *RangeTarget {
	invariant.Precondition(len(args) >= 1 && len(args) <= 3,
		"range takes 1 to 3 arguments, got %d", len(args))
	switch len(args) {
	case 1:
		return &RangeTarget{Start: int64(0), Stop: args[0], Step: int64(1)}
	case 2:
		return &RangeTarget{Start: args[0], Stop: args[1], Step: int64(1)}
	default:
		return &RangeTarget{Start: args[0], Stop: args[1], Step: args[2]}
	}
}

func (r *RangeTarget) String() string {
	return fmt.Sprintf("range(%v, %v, %v)", r.Start, r.Stop, r.Step)
}

// concrete resolves the raw bounds into host integers. Staged bounds
// concretize here; an abstract bound faults with a trace error, which is
// what cascades a fallback outward when a nested loop's bounds depend on an
// enclosing loop's index.
func (r *RangeTarget) concrete() (start, stop, step int64, err error) {
	if start, err = concreteBound(r.Start); err != nil {
		return
	}
	if stop, err = concreteBound(r.Stop); err != nil {
		return
	}
	step, err = concreteBound(r.Step)
	return
}

func concreteBound(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case tracer.Value:
		return x.ConcreteInt(), nil
	case *tensor.Tensor:
		return x.Int()
	}
	return 0, fmt.Errorf("range bound must be an integer, got %T", v)
}

// EnumerateTarget is the stand-in for an enumerate call: the inner iterable
// plus the start offset for the exposed index. The offset stays raw; a
// staged offset only concretizes if the loop falls back to native
// iteration.
type EnumerateTarget struct {
	Target any
	Start  any
}

// NewEnumerate wraps target for enumeration starting at the given offset.
func NewEnumerate(target any, start any) *EnumerateTarget {
	return &EnumerateTarget{Target: target, Start: start}
}

func (e *EnumerateTarget) String() string {
	return fmt.Sprintf("enumerate(%v, %v)", e.Target, e.Start)
}

// Enumerated is the (index, element) pair an enumeration loop feeds its
// body, on both the graph and the native path.
type Enumerated struct {
	Index any
	Elem  any
}

// classification is the per-statement iteration target descriptor. It is
// built fresh for each lowering call and never outlives it.
type classification struct {
	start, stop, step any // raw bounds, lifted at attempt time
	enumStart         any // raw enumerate offset, kept even when materialization fails
	isRange           bool
	isEnum            bool
	elements          tracer.Value // materialized element source, unset for ranges
	failed            bool         // materialization failed, fallback required
}

// classify inspects the raw iteration target. Ranges and enumerations are
// detected structurally, by type, because their bounds are needed before
// any materialization and because range bounds may be staged. Everything
// else is treated as a plain sequence and materialized whole.
func classify(target any) (classification, error) {
	switch t := target.(type) {
	case *RangeTarget:
		return classification{start: t.Start, stop: t.Stop, step: t.Step, isRange: true}, nil

	case *EnumerateTarget:
		n, err := targetLen(t.Target)
		if err != nil {
			return classification{}, err
		}
		c := classification{start: int64(0), stop: n, step: int64(1), enumStart: t.Start, isEnum: true}
		if elems, merr := tracer.TryLift(t.Target); merr == nil {
			c.elements = elems
		} else {
			c.failed = true
		}
		return c, nil

	default:
		n, err := targetLen(target)
		if err != nil {
			return classification{}, err
		}
		c := classification{start: int64(0), stop: n, step: int64(1)}
		if elems, merr := tracer.TryLift(target); merr == nil {
			c.elements = elems
		} else {
			c.failed = true
		}
		return c, nil
	}
}

// targetLen measures the native length of an iteration target. A target
// with no length cannot be iterated at all, natively or otherwise, so a
// failure here is the caller's error rather than a classification failure.
func targetLen(target any) (int64, error) {
	switch t := target.(type) {
	case *tensor.Tensor:
		n, err := t.Len()
		if err != nil {
			return 0, fmt.Errorf("cannot iterate over a value of type %s", t.Signature())
		}
		return int64(n), nil
	case tracer.Value:
		return int64(t.Len()), nil
	}
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		return int64(rv.Len()), nil
	}
	return 0, fmt.Errorf("cannot iterate over a value of type %T", target)
}

// element computes what the user body sees for the traced iteration index:
// the index itself for ranges, the i-th element for materialized iterables,
// and the (offset index, element) pair for enumerations.
func element(cls classification, i tracer.Value) any {
	switch {
	case cls.isRange:
		return i
	case cls.isEnum:
		return Enumerated{
			Index: i.Add(tracer.Lift(cls.enumStart)),
			Elem:  tracer.Take(cls.elements, i),
		}
	default:
		return tracer.Take(cls.elements, i)
	}
}

// nativeElements expands the original iteration target into the element
// sequence a native loop sees. Nothing is materialized into the traced
// domain: heterogeneous slices yield their raw elements, tensors yield
// per-index views, and range descriptors concretize their bounds.
func nativeElements(target any) ([]any, error) {
	switch t := target.(type) {
	case *RangeTarget:
		start, stop, step, err := t.concrete()
		if err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, fmt.Errorf("range step argument must not be zero")
		}
		var out []any
		for i := start; step > 0 && i < stop || step < 0 && i > stop; i += step {
			out = append(out, i)
		}
		return out, nil

	case *EnumerateTarget:
		inner, err := nativeElements(t.Target)
		if err != nil {
			return nil, err
		}
		offset, err := concreteBound(t.Start)
		if err != nil {
			return nil, fmt.Errorf("enumerate start must be an integer, got %T", t.Start)
		}
		out := make([]any, len(inner))
		for i, e := range inner {
			out[i] = Enumerated{Index: offset + int64(i), Elem: e}
		}
		return out, nil

	case *tensor.Tensor:
		n, err := t.Len()
		if err != nil {
			return nil, fmt.Errorf("cannot iterate over a value of type %s", t.Signature())
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			el, terr := t.Take(i)
			if terr != nil {
				return nil, terr
			}
			out[i] = el
		}
		return out, nil

	case tracer.Value:
		n := t.Len()
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = tracer.Take(t, tracer.Lift(i))
		}
		return out, nil

	case string:
		var out []any
		for _, r := range t {
			out = append(out, r)
		}
		return out, nil
	}

	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot iterate over a value of type %T", target)
}
