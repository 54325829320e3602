package tensor

import (
	"fmt"
	"math"
)

// Binary elementwise kernels. Operands of unequal rank broadcast only in
// the scalar-against-array case; general shape broadcasting is out of
// scope for the host value model. Arithmetic results take the promoted
// dtype of the operands, comparisons always produce Bool.

// Add returns a + b elementwise.
func Add(a, b *Tensor) (*Tensor, error) {
	return arith("add", a, b,
		func(x, y int64) int64 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub returns a - b elementwise.
func Sub(a, b *Tensor) (*Tensor, error) {
	return arith("sub", a, b,
		func(x, y int64) int64 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul returns a * b elementwise.
func Mul(a, b *Tensor) (*Tensor, error) {
	return arith("mul", a, b,
		func(x, y int64) int64 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Mod returns a % b elementwise. The sign of the result follows the
// divisor, matching the numpy convention rather than Go's.
func Mod(a, b *Tensor) (*Tensor, error) {
	return arith("mod", a, b, floorMod, math.Mod)
}

func floorMod(x, y int64) int64 {
	if y == 0 {
		return 0
	}
	r := x % y
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r
}

// Neg returns -a elementwise. Bool operands promote to Int64 first.
func Neg(a *Tensor) (*Tensor, error) {
	d := Promote(a.DType, Int64)
	a = AsType(a, d)
	out := newTensor(Signature{DType: d, Shape: a.Shape})
	for i := 0; i < a.Size(); i++ {
		if d == Float64 {
			out.Floats[i] = -a.Floats[i]
		} else {
			out.Ints[i] = -a.Ints[i]
		}
	}
	return out, nil
}

// Lt returns a < b elementwise as Bool.
func Lt(a, b *Tensor) (*Tensor, error) {
	return compare("lt", a, b,
		func(x, y int64) bool { return x < y },
		func(x, y float64) bool { return x < y })
}

// Gt returns a > b elementwise as Bool.
func Gt(a, b *Tensor) (*Tensor, error) {
	return compare("gt", a, b,
		func(x, y int64) bool { return x > y },
		func(x, y float64) bool { return x > y })
}

// Eq returns a == b elementwise as Bool.
func Eq(a, b *Tensor) (*Tensor, error) {
	return compare("eq", a, b,
		func(x, y int64) bool { return x == y },
		func(x, y float64) bool { return x == y })
}

// broadcast aligns two operands to a common dtype and shape, expanding a
// scalar against the other operand's shape.
func broadcast(op string, a, b *Tensor) (*Tensor, *Tensor, error) {
	d := Promote(a.DType, b.DType)
	a, b = AsType(a, d), AsType(b, d)
	switch {
	case sameShape(a.Shape, b.Shape):
		return a, b, nil
	case len(a.Shape) == 0:
		return expand(a, b.Shape), b, nil
	case len(b.Shape) == 0:
		return a, expand(b, a.Shape), nil
	default:
		return nil, nil, fmt.Errorf("%s: incompatible shapes %v and %v", op, a.Shape, b.Shape)
	}
}

func expand(scalar *Tensor, shape []int) *Tensor {
	out := newTensor(Signature{DType: scalar.DType, Shape: shape})
	for i := 0; i < out.Size(); i++ {
		if scalar.DType == Float64 {
			out.Floats[i] = scalar.Floats[0]
		} else {
			out.Ints[i] = scalar.Ints[0]
		}
	}
	return out
}

func arith(op string, a, b *Tensor, fi func(int64, int64) int64, ff func(float64, float64) float64) (*Tensor, error) {
	a, b, err := broadcast(op, a, b)
	if err != nil {
		return nil, err
	}
	d := a.DType
	if d == Bool {
		// Arithmetic on booleans works in the integer domain.
		d = Int64
		a, b = AsType(a, d), AsType(b, d)
	}
	out := newTensor(Signature{DType: d, Shape: a.Shape})
	for i := 0; i < a.Size(); i++ {
		if d == Float64 {
			out.Floats[i] = ff(a.Floats[i], b.Floats[i])
		} else {
			out.Ints[i] = fi(a.Ints[i], b.Ints[i])
		}
	}
	return out, nil
}

func compare(op string, a, b *Tensor, fi func(int64, int64) bool, ff func(float64, float64) bool) (*Tensor, error) {
	a, b, err := broadcast(op, a, b)
	if err != nil {
		return nil, err
	}
	out := newTensor(Signature{DType: Bool, Shape: a.Shape})
	for i := 0; i < a.Size(); i++ {
		var hit bool
		if a.DType == Float64 {
			hit = ff(a.Floats[i], b.Floats[i])
		} else {
			hit = fi(a.Ints[i], b.Ints[i])
		}
		if hit {
			out.Ints[i] = 1
		}
	}
	return out, nil
}

// Select returns onTrue where pred is set and onFalse elsewhere. The pred
// must be Bool and all three shapes must agree, except that a scalar pred
// selects whole operands.
func Select(pred, onTrue, onFalse *Tensor) (*Tensor, error) {
	if pred.DType != Bool {
		return nil, fmt.Errorf("select: predicate must be bool, got %s", pred.Signature())
	}
	d := Promote(onTrue.DType, onFalse.DType)
	onTrue, onFalse = AsType(onTrue, d), AsType(onFalse, d)
	if !sameShape(onTrue.Shape, onFalse.Shape) {
		return nil, fmt.Errorf("select: branch shapes %v and %v differ", onTrue.Shape, onFalse.Shape)
	}
	if len(pred.Shape) == 0 {
		if pred.Ints[0] != 0 {
			return onTrue, nil
		}
		return onFalse, nil
	}
	if !sameShape(pred.Shape, onTrue.Shape) {
		return nil, fmt.Errorf("select: predicate shape %v does not match operand shape %v", pred.Shape, onTrue.Shape)
	}
	out := newTensor(Signature{DType: d, Shape: onTrue.Shape})
	for i := 0; i < out.Size(); i++ {
		src := onFalse
		if pred.Ints[i] != 0 {
			src = onTrue
		}
		if d == Float64 {
			out.Floats[i] = src.Floats[i]
		} else {
			out.Ints[i] = src.Ints[i]
		}
	}
	return out, nil
}
