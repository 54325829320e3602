package quantum_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritu-thombre99/catalyst/core/tensor"
	"github.com/ritu-thombre99/catalyst/runtime/quantum"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

const tol = 1e-9

func newTestDevice(t *testing.T, name string, wires int) *quantum.Device {
	t.Helper()
	dev, err := quantum.NewDevice(quantum.DeviceSpec{Name: name, Wires: wires})
	require.NoError(t, err)
	return dev
}

func TestDeviceStartsInGroundState(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 2)

	probs, err := dev.Probs()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, probs, tol)

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev, tol)
}

func TestPauliXFlipsWire(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 1)
	require.NoError(t, dev.PauliX(0))

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, ev, tol)
}

func TestHadamardSuperposition(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 1)
	require.NoError(t, dev.Hadamard(0))

	probs, err := dev.Probs()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, probs, tol)

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ev, tol)
}

func TestRotationGates(t *testing.T) {
	tests := []struct {
		name  string
		apply func(d *quantum.Device) error
		want  float64
	}{
		{name: "ry zero is identity", apply: func(d *quantum.Device) error { return d.RY(0.0, 0) }, want: 1},
		{name: "ry pi flips", apply: func(d *quantum.Device) error { return d.RY(math.Pi, 0) }, want: -1},
		{name: "ry half pi equalizes", apply: func(d *quantum.Device) error { return d.RY(math.Pi/2, 0) }, want: 0},
		{name: "rx pi flips", apply: func(d *quantum.Device) error { return d.RX(math.Pi, 0) }, want: -1},
		{name: "two quarter turns compose", apply: func(d *quantum.Device) error {
			if err := d.RY(math.Pi/2, 0); err != nil {
				return err
			}
			return d.RY(math.Pi/2, 0)
		}, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t, "lightning.qubit", 1)
			require.NoError(t, tt.apply(dev))
			ev, err := dev.ExpvalZ(0)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, ev, tol)
		})
	}
}

func TestWireZeroIsMostSignificant(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 2)
	require.NoError(t, dev.PauliX(0))

	probs, err := dev.Probs()
	require.NoError(t, err)
	// |10> is basis index 2.
	assert.InDeltaSlice(t, []float64{0, 0, 1, 0}, probs, tol)

	ev0, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	ev1, err := dev.ExpvalZ(1)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, ev0, tol)
	assert.InDelta(t, 1.0, ev1, tol)
}

func TestWireRangeChecked(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 2)

	err := dev.PauliX(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire 2 out of range for a 2-wire device")

	_, err = dev.ExpvalZ(-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestNullDeviceDiscardsGates(t *testing.T) {
	dev := newTestDevice(t, "null.qubit", 1)
	require.NoError(t, dev.PauliX(0))

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev, tol)

	// Structure is still validated even though nothing is applied.
	require.Error(t, dev.PauliX(5))
}

func TestResetRestoresGroundState(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 1)
	require.NoError(t, dev.PauliX(0))
	require.NoError(t, dev.Reset())

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev, tol)
}

func TestRotationRejectsUnliftableAngle(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 1)
	err := dev.RY("fast", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ry angle")
}

func TestGatesReplayPerLoopIteration(t *testing.T) {
	// A constant rotation staged inside a traced loop applies once per
	// iteration: four quarter turns add up to a half turn.
	dev := newTestDevice(t, "lightning.qubit", 1)

	_, err := tracer.ForLoop(tracer.Lift(0), tracer.Lift(4), tracer.Lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			if gerr := dev.RY(math.Pi/4, 0); gerr != nil {
				return nil, gerr
			}
			return carry, nil
		}).
		Call(nil)
	require.NoError(t, err)

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, ev, tol)
}

func TestGateAngleResolvesPerIteration(t *testing.T) {
	// The staged angle depends on the loop index; each replay must see that
	// iteration's value. Angles 0, pi/2, pi, 3pi/2 add up to 3pi, which is a
	// net half turn.
	dev := newTestDevice(t, "lightning.qubit", 1)

	_, err := tracer.ForLoop(tracer.Lift(0), tracer.Lift(4), tracer.Lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			angle := i.AsDType(tensor.Float64).Mul(tracer.Lift(math.Pi / 2))
			if gerr := dev.RY(angle, 0); gerr != nil {
				return nil, gerr
			}
			return carry, nil
		}).
		Call(nil)
	require.NoError(t, err)

	ev, err := dev.ExpvalZ(0)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, ev, tol)
}

func TestMeasurementRefusedUnderTrace(t *testing.T) {
	dev := newTestDevice(t, "lightning.qubit", 1)

	_, err := tracer.ForLoop(tracer.Lift(0), tracer.Lift(1), tracer.Lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			_, merr := dev.ExpvalZ(0)
			return carry, merr
		}).
		Call(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot measure a device during an active trace")

	_, err = tracer.ForLoop(tracer.Lift(0), tracer.Lift(1), tracer.Lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			_, merr := dev.Probs()
			return carry, merr
		}).
		Call(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot measure a device during an active trace")
}

func TestDeviceAccessors(t *testing.T) {
	dev, err := quantum.NewDevice(quantum.DeviceSpec{Name: "lightning.qubit", Wires: 3, Shots: 128})
	require.NoError(t, err)
	assert.Equal(t, "lightning.qubit", dev.Name())
	assert.Equal(t, 3, dev.Wires())
	assert.Equal(t, 128, dev.Shots())
	assert.Equal(t, "lightning.qubit(wires=3)", dev.String())
}
