package quantum

import (
	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/runtime/diagnostics"
)

// StagedFunc is the canonical signature of a staged workload body.
type StagedFunc func(args ...any) (any, error)

// QNode binds a staged function to an execution device. The call shim
// recognizes it and rewraps it so only the inner function is subject to
// control-flow rewriting, never the dispatch logic here.
type QNode struct {
	Name       string
	Device     *Device
	DiffMethod string
	Func       StagedFunc
	SourceMap  *diagnostics.SourceMap
}

// NewQNode binds fn to dev with the default differentiation method.
func NewQNode(dev *Device, fn StagedFunc) *QNode {
	return &QNode{Device: dev, Func: fn, DiffMethod: "parameter-shift"}
}

// Call resets the device and invokes the wrapped function. The reset is a
// staged effect, so a QNode called inside traced control flow replays
// cleanly on every iteration.
func (q *QNode) Call(args ...any) (any, error) {
	invariant.NotNil(q.Func, "qnode function")
	if q.Device != nil {
		if err := q.Device.Reset(); err != nil {
			return nil, err
		}
	}
	return q.Func(args...)
}
