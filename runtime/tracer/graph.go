package tracer

import (
	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
)

type nodeID int

type opKind uint8

const (
	opParam opKind = iota
	opAdd
	opSub
	opMul
	opMod
	opNeg
	opLt
	opGt
	opEq
	opSelect
	opTake
	opCast
)

// node is one recorded operation. Operands are stored as Values so a node
// may reference concrete constants and values of enclosing frames
// directly; only same-frame references use node ids.
type node struct {
	kind  opKind
	sig   tensor.Signature
	args  []Value
	param int // opParam: index into the frame's parameter list
}

// frame is one trace under construction: the body of a bounded loop. Its
// parameters stand in for the loop index and the carried state, and its
// sink accumulates the effects staged while tracing.
type frame struct {
	params []tensor.Signature
	nodes  []node
	sink   *sink
}

// guard conditions an effect on a branch predicate recorded by Cond.
type guard struct {
	pred   Value
	negate bool
}

// record is one staged effectful call: opaque to the tracer except for its
// argument values and guards.
type record struct {
	args   []Value
	guards []guard
	run    func(args []*tensor.Tensor) error
}

type sink struct {
	records []*record
}

// Package-level trace state. Single logical thread of control; see the
// package comment.
var state struct {
	frames []*frame
	sinks  []*sink
}

// Active reports whether a trace is in progress. Effectful callers use it
// to refuse operations that cannot be staged, such as measurements.
func Active() bool {
	return len(state.frames) > 0
}

func newFrame(params []tensor.Signature) *frame {
	f := &frame{params: params, sink: &sink{}}
	for i, sig := range params {
		f.nodes = append(f.nodes, node{kind: opParam, sig: sig, param: i})
	}
	return f
}

// paramValues returns the abstract values standing for the frame's
// parameters, in declaration order.
func (f *frame) paramValues() []Value {
	vals := make([]Value, len(f.params))
	for i := range f.params {
		vals[i] = Value{fr: f, id: nodeID(i)}
	}
	return vals
}

func pushFrame(params []tensor.Signature) *frame {
	f := newFrame(params)
	state.frames = append(state.frames, f)
	state.sinks = append(state.sinks, f.sink)
	return f
}

func popFrame(f *frame) {
	n := len(state.frames)
	invariant.Invariant(n > 0 && state.frames[n-1] == f, "trace frames must unwind in order")
	state.frames = state.frames[:n-1]
	popSink(f.sink)
}

func topFrame() *frame {
	if n := len(state.frames); n > 0 {
		return state.frames[n-1]
	}
	return nil
}

func pushSink() *sink {
	s := &sink{}
	state.sinks = append(state.sinks, s)
	return s
}

func popSink(s *sink) {
	n := len(state.sinks)
	invariant.Invariant(n > 0 && state.sinks[n-1] == s, "effect sinks must unwind in order")
	state.sinks = state.sinks[:n-1]
}

func topSink() *sink {
	if n := len(state.sinks); n > 0 {
		return state.sinks[n-1]
	}
	return nil
}

// newNode appends an operation to the innermost trace and returns the
// abstract value naming it.
func newNode(kind opKind, sig tensor.Signature, args ...Value) Value {
	f := topFrame()
	invariant.Precondition(f != nil, "abstract operations require an active trace")
	id := nodeID(len(f.nodes))
	f.nodes = append(f.nodes, node{kind: kind, sig: sig, args: args})
	return Value{fr: f, id: id}
}

// StageEffect records an opaque effectful call against the innermost sink,
// or runs it immediately when no trace or branch scope is active. Deferred
// effects re-run once per loop iteration with that iteration's argument
// values.
func StageEffect(run func(args []*tensor.Tensor) error, args ...Value) error {
	return stage(&record{args: args, run: run})
}

func stage(rec *record) error {
	if s := topSink(); s != nil {
		s.records = append(s.records, rec)
		return nil
	}
	invariant.Invariant(len(rec.guards) == 0, "immediate effects must not carry branch guards")
	mats := make([]*tensor.Tensor, len(rec.args))
	for i, a := range rec.args {
		t, err := a.Concrete()
		invariant.ExpectNoError(err, "immediate effect arguments must be concrete")
		mats[i] = t
	}
	return rec.run(mats)
}

// resolve maps a value through one evaluation of the frame: same-frame
// references read the computed slot, everything else passes through.
func (f *frame) resolve(v Value, vals []Value) Value {
	if v.fr == f {
		return vals[v.id]
	}
	return v
}

// evaluate computes a value for every node in the frame under the given
// parameter bindings. Bindings may be concrete (loop execution) or
// abstract (symbolic unrolling inside an enclosing trace); the operation
// implementations handle both.
func (f *frame) evaluate(bindings []Value) []Value {
	invariant.Precondition(len(bindings) == len(f.params), "one binding per frame parameter")
	vals := make([]Value, len(f.nodes))
	for id, n := range f.nodes {
		if n.kind == opParam {
			vals[id] = bindings[n.param]
			continue
		}
		args := make([]Value, len(n.args))
		for i, a := range n.args {
			args[i] = f.resolve(a, vals)
		}
		vals[id] = reapply(n, args)
	}
	return vals
}

// replayEffects re-stages or runs the frame's staged effects for one
// evaluation. Guards decided by this evaluation filter the record; guards
// still abstract are carried outward with the record.
func (f *frame) replayEffects(vals []Value) error {
	for _, rec := range f.sink.records {
		keep := true
		var remaining []guard
		for _, g := range rec.guards {
			p := f.resolve(g.pred, vals)
			if p.IsAbstract() {
				remaining = append(remaining, guard{pred: p, negate: g.negate})
				continue
			}
			if p.ConcreteBool() == g.negate {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		args := make([]Value, len(rec.args))
		for i, a := range rec.args {
			args[i] = f.resolve(a, vals)
		}
		if err := stage(&record{args: args, guards: remaining, run: rec.run}); err != nil {
			return err
		}
	}
	return nil
}
