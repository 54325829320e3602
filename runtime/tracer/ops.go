package tracer

import (
	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
)

// Binary arithmetic and comparisons. Concrete operands evaluate through
// the tensor kernels; an abstract operand records a node with the inferred
// signature instead.

// Add returns v + o.
func (v Value) Add(o Value) Value { return binary(opAdd, v, o) }

// Sub returns v - o.
func (v Value) Sub(o Value) Value { return binary(opSub, v, o) }

// Mul returns v * o.
func (v Value) Mul(o Value) Value { return binary(opMul, v, o) }

// Mod returns v % o with the sign of the divisor.
func (v Value) Mod(o Value) Value { return binary(opMod, v, o) }

// Lt returns v < o as Bool.
func (v Value) Lt(o Value) Value { return binary(opLt, v, o) }

// Gt returns v > o as Bool.
func (v Value) Gt(o Value) Value { return binary(opGt, v, o) }

// Eq returns v == o as Bool.
func (v Value) Eq(o Value) Value { return binary(opEq, v, o) }

// Neg returns -v; Bool operands land in the integer domain.
func (v Value) Neg() Value {
	if !v.IsAbstract() {
		t, err := tensor.Neg(v.t)
		invariant.ExpectNoError(err, "negation")
		return Constant(t)
	}
	sig := v.Signature()
	d := tensor.Promote(sig.DType, tensor.Int64)
	return newNode(opNeg, tensor.Signature{DType: d, Shape: sig.Shape}, v)
}

// AsDType converts the value to the target dtype.
func (v Value) AsDType(d tensor.DType) Value {
	if v.Signature().DType == d {
		return v
	}
	if !v.IsAbstract() {
		return Constant(tensor.AsType(v.t, d))
	}
	return newNode(opCast, tensor.Signature{DType: d, Shape: v.Signature().Shape}, v)
}

// Take returns arr indexed along its first axis. The index must be an
// integer scalar; out-of-range concrete indices clamp to the valid range,
// matching the backend's gather semantics, so a traced index can never
// fault at loop execution time.
func Take(arr, i Value) Value {
	arrSig, iSig := arr.Signature(), i.Signature()
	if len(arrSig.Shape) == 0 {
		traceFail("take", "cannot index a scalar of type %s", arrSig)
	}
	if arrSig.Shape[0] == 0 {
		traceFail("take", "cannot index an empty axis of type %s", arrSig)
	}
	if len(iSig.Shape) != 0 || iSig.DType == tensor.Float64 {
		traceFail("take", "index must be an integer scalar, got %s", iSig)
	}
	if !arr.IsAbstract() && !i.IsAbstract() {
		idx := i.ConcreteInt()
		if idx < 0 {
			idx = 0
		}
		if max := int64(arrSig.Shape[0] - 1); idx > max {
			idx = max
		}
		t, err := arr.t.Take(int(idx))
		invariant.ExpectNoError(err, "clamped take")
		return Constant(t)
	}
	return newNode(opTake, tensor.Signature{DType: arrSig.DType, Shape: arrSig.Shape[1:]}, arr, i)
}

// Select returns onTrue where pred holds and onFalse elsewhere. The
// predicate must be Bool; the branch values must share a shape and their
// dtypes join over the promotion lattice.
func Select(pred, onTrue, onFalse Value) Value {
	ps, ts, fs := pred.Signature(), onTrue.Signature(), onFalse.Signature()
	if ps.DType != tensor.Bool {
		traceFail("select", "predicate must be bool, got %s", ps)
	}
	if !shapeEqual(ts.Shape, fs.Shape) {
		traceFail("select", "branch shapes %v and %v differ", ts.Shape, fs.Shape)
	}
	if len(ps.Shape) != 0 && !shapeEqual(ps.Shape, ts.Shape) {
		traceFail("select", "predicate shape %v does not match operand shape %v", ps.Shape, ts.Shape)
	}
	if !pred.IsAbstract() {
		// A decided predicate selects a whole branch value.
		if len(ps.Shape) == 0 {
			if pred.ConcreteBool() {
				return onTrue
			}
			return onFalse
		}
		if !onTrue.IsAbstract() && !onFalse.IsAbstract() {
			t, err := tensor.Select(pred.t, onTrue.t, onFalse.t)
			invariant.ExpectNoError(err, "select kernel")
			return Constant(t)
		}
	}
	d := tensor.Promote(ts.DType, fs.DType)
	return newNode(opSelect, tensor.Signature{DType: d, Shape: ts.Shape}, pred, onTrue, onFalse)
}

func binary(kind opKind, a, b Value) Value {
	if !a.IsAbstract() && !b.IsAbstract() {
		t, err := applyKernel(kind, a.t, b.t)
		if err != nil {
			traceFail(opName(kind), "%v", err)
		}
		return Constant(t)
	}
	sig := inferBinary(kind, a.Signature(), b.Signature())
	return newNode(kind, sig, a, b)
}

func applyKernel(kind opKind, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	switch kind {
	case opAdd:
		return tensor.Add(a, b)
	case opSub:
		return tensor.Sub(a, b)
	case opMul:
		return tensor.Mul(a, b)
	case opMod:
		return tensor.Mod(a, b)
	case opLt:
		return tensor.Lt(a, b)
	case opGt:
		return tensor.Gt(a, b)
	case opEq:
		return tensor.Eq(a, b)
	default:
		invariant.Invariant(false, "unexpected binary op %d", kind)
		return nil, nil
	}
}

// inferBinary mirrors the kernels' shape and dtype rules so a trace fails
// exactly where concrete execution would.
func inferBinary(kind opKind, a, b tensor.Signature) tensor.Signature {
	var shape []int
	switch {
	case shapeEqual(a.Shape, b.Shape):
		shape = a.Shape
	case len(a.Shape) == 0:
		shape = b.Shape
	case len(b.Shape) == 0:
		shape = a.Shape
	default:
		traceFail(opName(kind), "incompatible shapes %v and %v", a.Shape, b.Shape)
	}
	if kind == opLt || kind == opGt || kind == opEq {
		return tensor.Signature{DType: tensor.Bool, Shape: shape}
	}
	d := tensor.Promote(a.DType, b.DType)
	if d == tensor.Bool {
		d = tensor.Int64
	}
	return tensor.Signature{DType: d, Shape: shape}
}

// reapply executes a recorded node against already-resolved operands. It
// reuses the public operations, so one evaluation works for concrete loop
// execution and for symbolic unrolling alike.
func reapply(n node, args []Value) Value {
	switch n.kind {
	case opAdd, opSub, opMul, opMod, opLt, opGt, opEq:
		return binary(n.kind, args[0], args[1])
	case opNeg:
		return args[0].Neg()
	case opCast:
		return args[0].AsDType(n.sig.DType)
	case opTake:
		return Take(args[0], args[1])
	case opSelect:
		return Select(args[0], args[1], args[2])
	default:
		invariant.Invariant(false, "unexpected op %d in evaluation", n.kind)
		return Value{}
	}
}

func opName(kind opKind) string {
	switch kind {
	case opAdd:
		return "add"
	case opSub:
		return "sub"
	case opMul:
		return "mul"
	case opMod:
		return "mod"
	case opNeg:
		return "neg"
	case opLt:
		return "lt"
	case opGt:
		return "gt"
	case opEq:
		return "eq"
	case opSelect:
		return "select"
	case opTake:
		return "take"
	case opCast:
		return "cast"
	default:
		return "op"
	}
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
