package tracer_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritu-thombre99/catalyst/core/tensor"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

func lift(v any) tracer.Value { return tracer.Lift(v) }

// catchTraceError runs fn and returns the *TraceError it panicked with,
// or nil if it returned normally. Any other panic is re-raised.
func catchTraceError(fn func()) (te *tracer.TraceError) {
	defer func() {
		if r := recover(); r != nil {
			var ok bool
			te, ok = r.(*tracer.TraceError)
			if !ok {
				panic(r)
			}
		}
	}()
	fn()
	return nil
}

func TestLiftAndConcrete(t *testing.T) {
	v := lift(3)
	require.False(t, v.IsAbstract())
	assert.Equal(t, int64(3), v.ConcreteInt())

	arr := lift([]float64{1, 2, 3})
	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, "f64[3]", arr.Signature().String())

	te := catchTraceError(func() { lift("not traceable") })
	require.NotNil(t, te)
	assert.Contains(t, te.Error(), "cannot enter the traced domain")
}

func TestConcreteArithmetic(t *testing.T) {
	sum := lift(2).Add(lift(3)).Mul(lift(4))
	assert.Equal(t, int64(20), sum.ConcreteInt())

	mixed := lift(1).Add(lift(0.5))
	got, err := mixed.Concrete()
	require.NoError(t, err)
	f, err := got.Float()
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	assert.True(t, lift(2).Lt(lift(3)).ConcreteBool())
	assert.False(t, lift(2).Gt(lift(3)).ConcreteBool())
	assert.True(t, lift(4).Mod(lift(2)).Eq(lift(0)).ConcreteBool())
}

func TestTakeClampsConcreteIndex(t *testing.T) {
	arr := lift([]int64{5, 6})
	assert.Equal(t, int64(6), tracer.Take(arr, lift(9)).ConcreteInt())
	assert.Equal(t, int64(5), tracer.Take(arr, lift(-3)).ConcreteInt())

	te := catchTraceError(func() { tracer.Take(lift(1), lift(0)) })
	require.NotNil(t, te)
	assert.Contains(t, te.Error(), "cannot index a scalar")
}

func TestForLoopAccumulates(t *testing.T) {
	tests := []struct {
		name              string
		start, stop, step int64
		want              int64
	}{
		{name: "simple range", start: 0, stop: 5, step: 1, want: 10},
		{name: "offset range", start: 2, stop: 8, step: 2, want: 12},
		{name: "negative step", start: 3, stop: 0, step: -1, want: 6},
		{name: "empty range", start: 4, stop: 4, step: 1, want: 0},
		{name: "inverted bounds", start: 5, stop: 0, step: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, err := tracer.ForLoop(lift(tt.start), lift(tt.stop), lift(tt.step)).
				Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
					return []tracer.Value{carry[0].Add(i)}, nil
				}).
				Call([]tracer.Value{lift(0)})
			require.NoError(t, err)
			require.Len(t, final, 1)
			assert.Equal(t, tt.want, final[0].ConcreteInt())
		})
	}
}

func TestForLoopBodySeesAbstractCarry(t *testing.T) {
	_, err := tracer.ForLoop(lift(0), lift(2), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			assert.True(t, i.IsAbstract())
			assert.True(t, carry[0].IsAbstract())
			return []tracer.Value{carry[0]}, nil
		}).
		Call([]tracer.Value{lift(7)})
	require.NoError(t, err)
	assert.False(t, tracer.Active())
}

func TestForLoopPromotesCarryDType(t *testing.T) {
	final, err := tracer.ForLoop(lift(0), lift(3), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return []tracer.Value{carry[0].Add(lift(0.5))}, nil
		}).
		Call([]tracer.Value{lift(0)})
	require.NoError(t, err)
	assert.Equal(t, "f64[]", final[0].Signature().String())
	got, err := final[0].Concrete()
	require.NoError(t, err)
	f, err := got.Float()
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
}

func TestForLoopZeroTripStillTypes(t *testing.T) {
	// Typing must not depend on the trip count: an empty range returns the
	// initial carry converted to the stable signature.
	final, err := tracer.ForLoop(lift(0), lift(0), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return []tracer.Value{carry[0].Add(lift(0.5))}, nil
		}).
		Call([]tracer.Value{lift(4)})
	require.NoError(t, err)
	assert.Equal(t, "f64[]", final[0].Signature().String())
	got, err := final[0].Concrete()
	require.NoError(t, err)
	f, err := got.Float()
	require.NoError(t, err)
	assert.Equal(t, 4.0, f)
}

func TestForLoopShapeChangeFails(t *testing.T) {
	_, err := tracer.ForLoop(lift(0), lift(3), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return []tracer.Value{lift([]int64{1, 2})}, nil
		}).
		Call([]tracer.Value{lift(0)})
	var cm *tracer.CarryMismatchError
	require.ErrorAs(t, err, &cm)
	assert.Equal(t, 0, cm.Index)
	assert.Equal(t, "i64[]", cm.Entry.String())
	assert.Equal(t, "i64[2]", cm.Exit.String())
}

func TestForLoopBodyErrorPropagates(t *testing.T) {
	boom := errors.New("body failed")
	_, err := tracer.ForLoop(lift(0), lift(3), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return nil, boom
		}).
		Call([]tracer.Value{lift(0)})
	require.ErrorIs(t, err, boom)
	assert.False(t, tracer.Active())
}

func TestForLoopZeroStep(t *testing.T) {
	_, err := tracer.ForLoop(lift(0), lift(3), lift(0)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return carry, nil
		}).
		Call([]tracer.Value{lift(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be zero")
}

func TestForLoopIteratesElements(t *testing.T) {
	elements := lift([]float64{10, 20, 30})
	final, err := tracer.ForLoop(lift(0), lift(int64(elements.Len())), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return []tracer.Value{carry[0].Add(tracer.Take(elements, i))}, nil
		}).
		Call([]tracer.Value{lift(0.0)})
	require.NoError(t, err)
	got, err := final[0].Concrete()
	require.NoError(t, err)
	f, err := got.Float()
	require.NoError(t, err)
	assert.Equal(t, 60.0, f)
}

func TestForLoopReplaysEffectsPerIteration(t *testing.T) {
	var seen []float64
	record := func(args []*tensor.Tensor) error {
		f, err := args[0].Float()
		if err != nil {
			return err
		}
		seen = append(seen, f)
		return nil
	}

	_, err := tracer.ForLoop(lift(0), lift(3), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			if err := tracer.StageEffect(record, i.AsDType(tensor.Float64)); err != nil {
				return nil, err
			}
			return carry, nil
		}).
		Call([]tracer.Value{lift(0)})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, seen)
}

func TestForLoopEffectFailureIsExecError(t *testing.T) {
	calls := 0
	failing := func(args []*tensor.Tensor) error {
		calls++
		if calls == 2 {
			return errors.New("device rejected gate")
		}
		return nil
	}

	_, err := tracer.ForLoop(lift(0), lift(5), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			if err := tracer.StageEffect(failing, i); err != nil {
				return nil, err
			}
			return carry, nil
		}).
		Call([]tracer.Value{lift(0)})
	var ee *tracer.ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, int64(1), ee.Iteration)
	assert.Equal(t, 2, calls)
}

func TestStageEffectImmediateWhenNoTrace(t *testing.T) {
	ran := false
	err := tracer.StageEffect(func(args []*tensor.Tensor) error {
		ran = true
		v, _ := args[0].Int()
		assert.Equal(t, int64(42), v)
		return nil
	}, lift(42))
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestCondConcretePredicate(t *testing.T) {
	thenRan, elseRan := 0, 0
	run := func(counter *int) func([]*tensor.Tensor) error {
		return func([]*tensor.Tensor) error { *counter++; return nil }
	}

	res, err := tracer.Cond(lift(true)).
		Then(func() ([]tracer.Value, error) {
			require.NoError(t, tracer.StageEffect(run(&thenRan)))
			return []tracer.Value{lift(1)}, nil
		}).
		Otherwise(func() ([]tracer.Value, error) {
			require.NoError(t, tracer.StageEffect(run(&elseRan)))
			return []tracer.Value{lift(2)}, nil
		}).
		Call()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res[0].ConcreteInt())

	// Both branches run for their results, but only the selected branch's
	// effects commit.
	assert.Equal(t, 1, thenRan)
	assert.Equal(t, 0, elseRan)
}

func TestCondBranchArityMismatch(t *testing.T) {
	_, err := tracer.Cond(lift(true)).
		Then(func() ([]tracer.Value, error) { return []tracer.Value{lift(1)}, nil }).
		Otherwise(func() ([]tracer.Value, error) { return []tracer.Value{lift(1), lift(2)}, nil }).
		Call()
	var bm *tracer.BranchMismatchError
	require.ErrorAs(t, err, &bm)
	assert.Equal(t, -1, bm.Index)
}

func TestCondBranchSignatureMismatch(t *testing.T) {
	_, err := tracer.Cond(lift(false)).
		Then(func() ([]tracer.Value, error) { return []tracer.Value{lift(1)}, nil }).
		Otherwise(func() ([]tracer.Value, error) { return []tracer.Value{lift(2.5)}, nil }).
		Call()
	var bm *tracer.BranchMismatchError
	require.ErrorAs(t, err, &bm)
	assert.Equal(t, 0, bm.Index)
	assert.Equal(t, "i64[]", bm.Then)
	assert.Equal(t, "f64[]", bm.Else)
}

func TestCondNonScalarPredicate(t *testing.T) {
	te := catchTraceError(func() {
		_, _ = tracer.Cond(lift([]bool{true, false})).
			Then(func() ([]tracer.Value, error) { return nil, nil }).
			Otherwise(func() ([]tracer.Value, error) { return nil, nil }).
			Call()
	})
	require.NotNil(t, te)
	assert.Contains(t, te.Error(), "scalar boolean")
}

func TestCondInsideLoopSelectsPerIteration(t *testing.T) {
	// Sum of even indices in [0, 5): the predicate is abstract, so both
	// branches trace and a select merges them per iteration.
	final, err := tracer.ForLoop(lift(0), lift(5), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			pred := i.Mod(lift(2)).Eq(lift(0))
			assert.True(t, pred.IsAbstract())
			return tracer.Cond(pred).
				Then(func() ([]tracer.Value, error) {
					return []tracer.Value{carry[0].Add(i)}, nil
				}).
				Otherwise(func() ([]tracer.Value, error) {
					return []tracer.Value{carry[0]}, nil
				}).
				Call()
		}).
		Call([]tracer.Value{lift(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(6), final[0].ConcreteInt())
}

func TestCondInsideLoopGuardsEffects(t *testing.T) {
	fired := 0
	gate := func([]*tensor.Tensor) error { fired++; return nil }

	_, err := tracer.ForLoop(lift(0), lift(5), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			pred := i.Mod(lift(2)).Eq(lift(0))
			return tracer.Cond(pred).
				Then(func() ([]tracer.Value, error) {
					require.NoError(t, tracer.StageEffect(gate))
					return []tracer.Value{carry[0]}, nil
				}).
				Otherwise(func() ([]tracer.Value, error) {
					return []tracer.Value{carry[0]}, nil
				}).
				Call()
		}).
		Call([]tracer.Value{lift(0)})
	require.NoError(t, err)

	// Guarded effects fire only on iterations where the predicate held:
	// i = 0, 2, 4.
	assert.Equal(t, 3, fired)
}

func TestNestedLoopUnrollsSymbolically(t *testing.T) {
	final, err := tracer.ForLoop(lift(0), lift(3), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return tracer.ForLoop(lift(0), lift(2), lift(1)).
				Body(func(j tracer.Value, inner []tracer.Value) ([]tracer.Value, error) {
					return []tracer.Value{inner[0].Add(lift(1))}, nil
				}).
				Call(carry)
		}).
		Call([]tracer.Value{lift(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(6), final[0].ConcreteInt())
}

func TestNestedLoopAbstractBoundPanics(t *testing.T) {
	te := catchTraceError(func() {
		_, _ = tracer.ForLoop(lift(0), lift(3), lift(1)).
			Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
				return tracer.ForLoop(lift(0), i, lift(1)).
					Body(func(j tracer.Value, inner []tracer.Value) ([]tracer.Value, error) {
						return inner, nil
					}).
					Call(carry)
			}).
			Call([]tracer.Value{lift(0)})
	})
	require.NotNil(t, te)
	assert.Contains(t, te.Error(), "abstract value")

	// The recovered panic must leave no dangling trace frames.
	assert.False(t, tracer.Active())
}

func TestConcretizeAbstractPanics(t *testing.T) {
	var te *tracer.TraceError
	_, err := tracer.ForLoop(lift(0), lift(2), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			te = catchTraceError(func() { i.ConcreteInt() })
			return carry, nil
		}).
		Call([]tracer.Value{lift(0)})
	require.NoError(t, err)
	require.NotNil(t, te)
	assert.Contains(t, te.Error(), "concrete integer")
}

func TestSelectConcrete(t *testing.T) {
	v := tracer.Select(lift(true), lift(1), lift(2))
	assert.Equal(t, int64(1), v.ConcreteInt())

	v = tracer.Select(lift(false), lift(1), lift(2))
	assert.Equal(t, int64(2), v.ConcreteInt())
}

func TestLoopCarriesMultipleValues(t *testing.T) {
	// fib-style pair rotation: (a, b) -> (b, a+b)
	final, err := tracer.ForLoop(lift(0), lift(6), lift(1)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			return []tracer.Value{carry[1], carry[0].Add(carry[1])}, nil
		}).
		Call([]tracer.Value{lift(0), lift(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(8), final[0].ConcreteInt())
	assert.Equal(t, int64(13), final[1].ConcreteInt())
}

func TestLoopMatchesNativeSemantics(t *testing.T) {
	native := func(start, stop, step int64) int64 {
		acc := int64(0)
		for i := start; step > 0 && i < stop || step < 0 && i > stop; i += step {
			acc = acc*2 + i
		}
		return acc
	}

	for _, bounds := range [][3]int64{{0, 7, 1}, {1, 10, 3}, {9, -1, -2}, {5, 5, 1}} {
		name := fmt.Sprintf("range(%d,%d,%d)", bounds[0], bounds[1], bounds[2])
		t.Run(name, func(t *testing.T) {
			final, err := tracer.ForLoop(lift(bounds[0]), lift(bounds[1]), lift(bounds[2])).
				Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
					return []tracer.Value{carry[0].Mul(lift(2)).Add(i)}, nil
				}).
				Call([]tracer.Value{lift(0)})
			require.NoError(t, err)
			assert.Equal(t, native(bounds[0], bounds[1], bounds[2]), final[0].ConcreteInt())
		})
	}
}
