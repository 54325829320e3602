package tensor

import "fmt"

// Shaped is implemented by values that carry an abstract tensor type
// without necessarily carrying data. The tracing runtime's graph nodes
// implement it; so does Tensor itself.
type Shaped interface {
	Signature() Signature
}

// Abstractify returns the abstract type of a host value: the signature of
// anything Shaped, or the signature its materialized tensor would have.
// Values that cannot enter the traced domain (strings, maps, functions)
// produce an error, which the consistency validator reports as a
// non-traceable capture.
func Abstractify(v any) (Signature, error) {
	if s, ok := v.(Shaped); ok {
		return s.Signature(), nil
	}
	t, err := FromAny(v)
	if err != nil {
		return Signature{}, fmt.Errorf("value of type %T is not traceable: %w", v, err)
	}
	return t.Signature(), nil
}
