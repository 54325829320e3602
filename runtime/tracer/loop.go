package tracer

import (
	"fmt"

	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
)

// CarryMismatchError reports a loop-carried value whose abstract type
// could not be held stable across iterations. Dtype widening is absorbed
// by promotion; a shape change cannot be.
type CarryMismatchError struct {
	Index int
	Entry tensor.Signature
	Exit  tensor.Signature
}

func (e *CarryMismatchError) Error() string {
	return fmt.Sprintf("loop carry %d changes shape across iterations: entry %s, exit %s",
		e.Index, e.Entry, e.Exit)
}

// ExecError reports a failure while executing an already-traced loop,
// after staged effects may have run. It is never a fallback trigger; the
// lowering engines propagate it unchanged.
type ExecError struct {
	Iteration int64
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("loop execution failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// LoopBuilder assembles a bounded loop over carried state. The body is
// traced once against abstract carry parameters; the recorded trace then
// runs for every index in [start, stop) by step. Bounds must concretize;
// an abstract bound panics with *TraceError when Call runs.
type LoopBuilder struct {
	start, stop, step Value
	body              func(i Value, carry []Value) ([]Value, error)
}

// ForLoop starts a bounded loop over the given integer bounds.
func ForLoop(start, stop, step Value) *LoopBuilder {
	return &LoopBuilder{start: start, stop: stop, step: step}
}

// Body registers the loop body. The index and carried values arrive
// abstract during tracing; the body returns the next carry tuple.
func (b *LoopBuilder) Body(fn func(i Value, carry []Value) ([]Value, error)) *LoopBuilder {
	b.body = fn
	return b
}

// Call traces the body, stabilizes the carry signatures, and runs the
// loop from the given initial carry. Dtype changes across an iteration
// promote the carry and re-trace; shape changes return a
// *CarryMismatchError. A zero-iteration loop returns the initial carry
// converted to the stable signatures, so typing does not depend on the
// trip count.
func (b *LoopBuilder) Call(init []Value) ([]Value, error) {
	invariant.Precondition(b.body != nil, "loop requires a body")

	start := b.start.ConcreteInt()
	stop := b.stop.ConcreteInt()
	step := b.step.ConcreteInt()
	if step == 0 {
		return nil, fmt.Errorf("for_loop step argument must not be zero")
	}

	initSigs := make([]tensor.Signature, len(init))
	carrySigs := make([]tensor.Signature, len(init))
	for i, v := range init {
		initSigs[i] = v.Signature()
		carrySigs[i] = v.Signature()
	}

	// Trace until the carry signatures reach a fixpoint. Each pass widens
	// at least one carry dtype, so the pass count is bounded by the
	// lattice height times the carry arity.
	var (
		f       *frame
		results []Value
	)
	for pass := 0; ; pass++ {
		invariant.Invariant(pass <= 2*len(init)+2, "loop carry signatures must stabilize")

		var err error
		results, f, err = b.traceOnce(carrySigs)
		if err != nil {
			return nil, err
		}
		if len(results) != len(init) {
			return nil, fmt.Errorf("loop body returned %d values, expected %d", len(results), len(init))
		}

		changed := false
		for i, r := range results {
			rs := r.Signature()
			if !shapeEqual(rs.Shape, carrySigs[i].Shape) {
				return nil, &CarryMismatchError{Index: i, Entry: initSigs[i], Exit: rs}
			}
			if d := tensor.Promote(carrySigs[i].DType, rs.DType); d != carrySigs[i].DType {
				carrySigs[i] = tensor.Signature{DType: d, Shape: carrySigs[i].Shape}
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	carry := make([]Value, len(init))
	for i, v := range init {
		carry[i] = v.AsDType(carrySigs[i].DType)
	}

	for iv := start; step > 0 && iv < stop || step < 0 && iv > stop; iv += step {
		vals := f.evaluate(append([]Value{Lift(iv)}, carry...))
		if err := f.replayEffects(vals); err != nil {
			return nil, &ExecError{Iteration: iv, Err: err}
		}
		for i, r := range results {
			carry[i] = f.resolve(r, vals).AsDType(carrySigs[i].DType)
		}
	}
	return carry, nil
}

// traceOnce records one symbolic pass over the body. The frame unwinds on
// every exit path, panics included, so a recovered trace failure leaves
// the stack consistent.
func (b *LoopBuilder) traceOnce(carrySigs []tensor.Signature) (res []Value, f *frame, err error) {
	params := append([]tensor.Signature{tensor.ScalarSignature(tensor.Int64)}, carrySigs...)
	f = pushFrame(params)
	defer popFrame(f)

	vals := f.paramValues()
	res, err = b.body(vals[0], vals[1:])
	return res, f, err
}
