// Package quantum provides the staged-callable wrappers the lowering core
// recognizes (QNode, QJIT) and the execution device they bind to: a small
// statevector simulator whose gates stage as deferred effects under an
// active trace and apply immediately otherwise.
package quantum

import (
	"fmt"
	"math"

	"github.com/ritu-thombre99/catalyst/core/tensor"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// Device is a named qubit simulator holding a full statevector. Gate
// methods route through tracer.StageEffect, so inside a traced loop or
// conditional they defer and replay with the resolved angle per iteration.
// Measurements read the statevector and therefore cannot run under an
// active trace.
type Device struct {
	name  string
	wires int
	shots int
	null  bool // discard gates, for structural tests
	state []complex128
}

func newDevice(spec DeviceSpec, null bool) *Device {
	d := &Device{
		name:  spec.Name,
		wires: spec.Wires,
		shots: spec.Shots,
		null:  null,
		state: make([]complex128, 1<<spec.Wires),
	}
	d.reset()
	return d
}

// Name returns the registry name the device was built under.
func (d *Device) Name() string { return d.name }

// Wires returns the number of qubits.
func (d *Device) Wires() int { return d.wires }

// Shots returns the configured shot count, 0 meaning analytic results.
func (d *Device) Shots() int { return d.shots }

func (d *Device) reset() {
	for i := range d.state {
		d.state[i] = 0
	}
	d.state[0] = 1
}

// Reset returns the device to |0...0>. Staged like a gate, so a reset
// inside a traced region replays in order with the surrounding operations.
func (d *Device) Reset() error {
	return tracer.StageEffect(func([]*tensor.Tensor) error {
		d.reset()
		return nil
	})
}

// RY applies a Y-axis rotation by angle to the given wire.
func (d *Device) RY(angle any, wire int) error {
	return d.rotation("ry", angle, wire, func(theta float64) [2][2]complex128 {
		c, s := math.Cos(theta/2), math.Sin(theta/2)
		return [2][2]complex128{
			{complex(c, 0), complex(-s, 0)},
			{complex(s, 0), complex(c, 0)},
		}
	})
}

// RX applies an X-axis rotation by angle to the given wire.
func (d *Device) RX(angle any, wire int) error {
	return d.rotation("rx", angle, wire, func(theta float64) [2][2]complex128 {
		c, s := math.Cos(theta/2), math.Sin(theta/2)
		return [2][2]complex128{
			{complex(c, 0), complex(0, -s)},
			{complex(0, -s), complex(c, 0)},
		}
	})
}

func (d *Device) rotation(op string, angle any, wire int, gate func(float64) [2][2]complex128) error {
	v, err := tracer.TryLift(angle)
	if err != nil {
		return fmt.Errorf("%s angle: %w", op, err)
	}
	return tracer.StageEffect(func(args []*tensor.Tensor) error {
		theta, ferr := args[0].Float()
		if ferr != nil {
			return fmt.Errorf("%s angle: %w", op, ferr)
		}
		return d.apply(gate(theta), wire)
	}, v)
}

// Hadamard applies the Hadamard gate to the given wire.
func (d *Device) Hadamard(wire int) error {
	h := complex(1/math.Sqrt2, 0)
	m := [2][2]complex128{{h, h}, {h, -h}}
	return tracer.StageEffect(func([]*tensor.Tensor) error {
		return d.apply(m, wire)
	})
}

// PauliX applies the X (NOT) gate to the given wire.
func (d *Device) PauliX(wire int) error {
	m := [2][2]complex128{{0, 1}, {1, 0}}
	return tracer.StageEffect(func([]*tensor.Tensor) error {
		return d.apply(m, wire)
	})
}

// apply multiplies one wire's amplitudes by a single-qubit matrix. Wire 0
// is the leftmost (most significant) qubit of the basis label.
func (d *Device) apply(m [2][2]complex128, wire int) error {
	if err := d.checkWire(wire); err != nil {
		return err
	}
	if d.null {
		return nil
	}
	bit := 1 << uint(d.wires-1-wire)
	for i := range d.state {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := d.state[i], d.state[j]
		d.state[i] = m[0][0]*a0 + m[0][1]*a1
		d.state[j] = m[1][0]*a0 + m[1][1]*a1
	}
	return nil
}

// ExpvalZ returns the expectation value of Pauli-Z on the given wire.
func (d *Device) ExpvalZ(wire int) (float64, error) {
	if tracer.Active() {
		return 0, &tracer.TraceError{
			Op:      "expval",
			Message: "cannot measure a device during an active trace; hoist measurements out of traced control flow",
		}
	}
	if err := d.checkWire(wire); err != nil {
		return 0, err
	}
	bit := 1 << uint(d.wires-1-wire)
	ev := 0.0
	for i, amp := range d.state {
		p := real(amp)*real(amp) + imag(amp)*imag(amp)
		if i&bit == 0 {
			ev += p
		} else {
			ev -= p
		}
	}
	return ev, nil
}

// Probs returns the computational-basis probabilities of the full register.
func (d *Device) Probs() ([]float64, error) {
	if tracer.Active() {
		return nil, &tracer.TraceError{
			Op:      "probs",
			Message: "cannot measure a device during an active trace; hoist measurements out of traced control flow",
		}
	}
	out := make([]float64, len(d.state))
	for i, amp := range d.state {
		out[i] = real(amp)*real(amp) + imag(amp)*imag(amp)
	}
	return out, nil
}

func (d *Device) checkWire(wire int) error {
	if wire < 0 || wire >= d.wires {
		return fmt.Errorf("wire %d out of range for a %d-wire device", wire, d.wires)
	}
	return nil
}

func (d *Device) String() string {
	return fmt.Sprintf("%s(wires=%d)", d.name, d.wires)
}
