// Package tensor provides the dense numeric value model shared by the tracing
// runtime and the control-flow lowering engines: element types with a fixed
// promotion lattice, shape/dtype signatures, and the materialization of plain
// Go values into fixed-shape arrays.
//
// Tensors are treated as immutable once constructed. All mutation happens by
// building new tensors through the kernel functions.
package tensor

import (
	"fmt"
	"strings"
)

// DType identifies the element type of a tensor.
type DType uint8

const (
	// Bool stores 0/1 elements. Participates in arithmetic by promotion.
	Bool DType = iota
	// Int64 stores signed 64-bit integers.
	Int64
	// Float64 stores IEEE-754 double precision floats.
	Float64
)

// String returns the short signature spelling of the dtype.
func (d DType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	default:
		return "unknown"
	}
}

// Promote returns the joined dtype of two operands under the promotion
// lattice Bool < Int64 < Float64.
func Promote(a, b DType) DType {
	if a > b {
		return a
	}
	return b
}

// Signature is the abstract type of a traced value: element dtype plus shape.
// A scalar has an empty shape.
type Signature struct {
	DType DType
	Shape []int
}

// ScalarSignature returns the signature of a rank-0 value.
func ScalarSignature(d DType) Signature {
	return Signature{DType: d}
}

// Equal reports whether two signatures are identical. Equality is exact:
// a compatible-but-promoted dtype or a broadcastable shape does not count.
func (s Signature) Equal(o Signature) bool {
	if s.DType != o.DType || len(s.Shape) != len(o.Shape) {
		return false
	}
	for i := range s.Shape {
		if s.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Size returns the element count implied by the shape.
func (s Signature) Size() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// String renders the signature in the form "f64[2 3]"; scalars render as
// "f64[]". This spelling appears verbatim in type-instability errors.
func (s Signature) String() string {
	if len(s.Shape) == 0 {
		return s.DType.String() + "[]"
	}
	dims := make([]string, len(s.Shape))
	for i, d := range s.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return s.DType.String() + "[" + strings.Join(dims, " ") + "]"
}
