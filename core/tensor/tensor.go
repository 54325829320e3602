package tensor

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ritu-thombre99/catalyst/core/invariant"
)

// Tensor is a dense array with a dtype, a shape and flat row-major storage.
//
// Storage is a union keyed on DType (only one field is valid):
//   - Bool and Int64 elements live in Ints (booleans as 0/1)
//   - Float64 elements live in Floats
//
// Construct tensors through FromAny, the scalar helpers or the kernels;
// hand-built literals bypass the shape/storage consistency checks.
type Tensor struct {
	DType DType
	Shape []int

	Ints   []int64   // valid for Bool, Int64
	Floats []float64 // valid for Float64
}

// Signature returns the abstract type of the tensor.
func (t *Tensor) Signature() Signature {
	return Signature{DType: t.DType, Shape: t.Shape}
}

// Size returns the element count.
func (t *Tensor) Size() int {
	return t.Signature().Size()
}

// FromBool returns a scalar Bool tensor.
func FromBool(b bool) *Tensor {
	v := int64(0)
	if b {
		v = 1
	}
	return &Tensor{DType: Bool, Ints: []int64{v}}
}

// FromInt returns a scalar Int64 tensor.
func FromInt(v int64) *Tensor {
	return &Tensor{DType: Int64, Ints: []int64{v}}
}

// FromFloat returns a scalar Float64 tensor.
func FromFloat(v float64) *Tensor {
	return &Tensor{DType: Float64, Floats: []float64{v}}
}

// FromInts returns a rank-1 Int64 tensor over a copy of vs.
func FromInts(vs ...int64) *Tensor {
	data := make([]int64, len(vs))
	copy(data, vs)
	return &Tensor{DType: Int64, Shape: []int{len(vs)}, Ints: data}
}

// FromFloats returns a rank-1 Float64 tensor over a copy of vs.
func FromFloats(vs ...float64) *Tensor {
	data := make([]float64, len(vs))
	copy(data, vs)
	return &Tensor{DType: Float64, Shape: []int{len(vs)}, Floats: data}
}

// newTensor allocates zeroed storage for the given signature.
func newTensor(sig Signature) *Tensor {
	t := &Tensor{DType: sig.DType, Shape: sig.Shape}
	if sig.DType == Float64 {
		t.Floats = make([]float64, sig.Size())
	} else {
		t.Ints = make([]int64, sig.Size())
	}
	return t
}

// FromAny materializes a plain Go value into a tensor. It accepts tensors
// (returned as-is), numeric and boolean scalars, and arbitrarily nested
// slices/arrays of those, promoting mixed element dtypes to their join.
//
// Materialization fails for non-numeric elements and for ragged nesting;
// the loop classifier treats such failures as a signal to leave the
// iteration target to native execution.
func FromAny(v any) (*Tensor, error) {
	if t, ok := v.(*Tensor); ok {
		return t, nil
	}
	if t, ok := scalarTensor(v); ok {
		return t, nil
	}

	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("cannot materialize value of type %T as an array", v)
	}

	n := rv.Len()
	if n == 0 {
		return &Tensor{DType: Int64, Shape: []int{0}, Ints: nil}, nil
	}

	elems := make([]*Tensor, n)
	for i := 0; i < n; i++ {
		el, err := FromAny(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = el
	}

	// Element shapes must agree exactly; dtypes are joined over the lattice.
	shape := elems[0].Shape
	dtype := elems[0].DType
	for i := 1; i < n; i++ {
		if !sameShape(shape, elems[i].Shape) {
			return nil, fmt.Errorf("ragged nesting: element 0 has shape %v, element %d has shape %v",
				shape, i, elems[i].Shape)
		}
		dtype = Promote(dtype, elems[i].DType)
	}

	out := newTensor(Signature{DType: dtype, Shape: append([]int{n}, shape...)})
	stride := Signature{DType: dtype, Shape: shape}.Size()
	for i, el := range elems {
		el = AsType(el, dtype)
		if dtype == Float64 {
			copy(out.Floats[i*stride:], el.Floats)
		} else {
			copy(out.Ints[i*stride:], el.Ints)
		}
	}
	return out, nil
}

// scalarTensor converts a Go scalar into a rank-0 tensor.
func scalarTensor(v any) (*Tensor, bool) {
	switch x := v.(type) {
	case bool:
		return FromBool(x), true
	case int:
		return FromInt(int64(x)), true
	case int8:
		return FromInt(int64(x)), true
	case int16:
		return FromInt(int64(x)), true
	case int32:
		return FromInt(int64(x)), true
	case int64:
		return FromInt(x), true
	case uint8:
		return FromInt(int64(x)), true
	case uint16:
		return FromInt(int64(x)), true
	case uint32:
		return FromInt(int64(x)), true
	case float32:
		return FromFloat(float64(x)), true
	case float64:
		return FromFloat(x), true
	default:
		return nil, false
	}
}

func sameShape(a, b []int) bool {
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

// AsType converts a tensor to the target dtype. Conversion follows Go
// semantics: float-to-int truncates, nonzero-to-bool is true.
func AsType(t *Tensor, d DType) *Tensor {
	if t.DType == d {
		return t
	}
	out := newTensor(Signature{DType: d, Shape: t.Shape})
	n := t.Size()
	for i := 0; i < n; i++ {
		switch d {
		case Float64:
			out.Floats[i] = t.floatAt(i)
		case Int64:
			out.Ints[i] = t.intAt(i)
		case Bool:
			if t.intAt(i) != 0 || t.floatNonzero(i) {
				out.Ints[i] = 1
			}
		}
	}
	return out
}

func (t *Tensor) floatAt(i int) float64 {
	if t.DType == Float64 {
		return t.Floats[i]
	}
	return float64(t.Ints[i])
}

func (t *Tensor) intAt(i int) int64 {
	if t.DType == Float64 {
		return int64(t.Floats[i])
	}
	return t.Ints[i]
}

func (t *Tensor) floatNonzero(i int) bool {
	return t.DType == Float64 && t.Floats[i] != 0
}

// Len returns the first-axis length.
func (t *Tensor) Len() (int, error) {
	if len(t.Shape) == 0 {
		return 0, fmt.Errorf("scalar %s has no length", t.Signature())
	}
	return t.Shape[0], nil
}

// Take returns the sub-tensor at index i along the first axis. The result
// shares storage with t.
func (t *Tensor) Take(i int) (*Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("cannot index scalar %s", t.Signature())
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("index %d out of bounds for axis of length %d", i, t.Shape[0])
	}
	sub := Signature{DType: t.DType, Shape: t.Shape[1:]}
	stride := sub.Size()
	out := &Tensor{DType: t.DType, Shape: t.Shape[1:]}
	if t.DType == Float64 {
		out.Floats = t.Floats[i*stride : (i+1)*stride]
	} else {
		out.Ints = t.Ints[i*stride : (i+1)*stride]
	}
	return out, nil
}

// Bool returns the value of a scalar Bool tensor. Non-bool dtypes follow
// truthiness (nonzero is true).
func (t *Tensor) Bool() (bool, error) {
	if len(t.Shape) != 0 {
		return false, fmt.Errorf("expected a scalar, got %s", t.Signature())
	}
	if t.DType == Float64 {
		return t.Floats[0] != 0, nil
	}
	return t.Ints[0] != 0, nil
}

// Int returns the value of a scalar tensor as an int64. Float scalars are
// rejected rather than truncated: silent truncation of a loop bound is a bug.
func (t *Tensor) Int() (int64, error) {
	if len(t.Shape) != 0 {
		return 0, fmt.Errorf("expected a scalar, got %s", t.Signature())
	}
	if t.DType == Float64 {
		return 0, fmt.Errorf("expected an integer scalar, got %s", t.Signature())
	}
	return t.Ints[0], nil
}

// Float returns the value of a scalar tensor as a float64.
func (t *Tensor) Float() (float64, error) {
	if len(t.Shape) != 0 {
		return 0, fmt.Errorf("expected a scalar, got %s", t.Signature())
	}
	return t.floatAt(0), nil
}

// Equal reports exact equality of dtype, shape and elements.
func Equal(a, b *Tensor) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.Signature().Equal(b.Signature()) {
		return false
	}
	n := a.Size()
	for i := 0; i < n; i++ {
		if a.DType == Float64 {
			if a.Floats[i] != b.Floats[i] {
				return false
			}
		} else if a.Ints[i] != b.Ints[i] {
			return false
		}
	}
	return true
}

// String renders the signature plus, for small tensors, the elements:
// "i64[3]{0 4 5}". Larger tensors render the signature only.
func (t *Tensor) String() string {
	const maxShown = 8
	sig := t.Signature().String()
	if t.Size() > maxShown {
		return sig
	}
	parts := make([]string, t.Size())
	for i := range parts {
		switch t.DType {
		case Float64:
			parts[i] = fmt.Sprint(t.Floats[i])
		case Bool:
			parts[i] = fmt.Sprint(t.Ints[i] != 0)
		default:
			parts[i] = fmt.Sprint(t.Ints[i])
		}
	}
	return sig + "{" + strings.Join(parts, " ") + "}"
}

// Clone returns a deep copy with private storage.
func (t *Tensor) Clone() *Tensor {
	out := newTensor(t.Signature())
	invariant.Invariant(out.Size() == t.Size(), "clone must preserve element count")
	copy(out.Ints, t.Ints)
	copy(out.Floats, t.Floats)
	out.Shape = append([]int(nil), t.Shape...)
	return out
}
