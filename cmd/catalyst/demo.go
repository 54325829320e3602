package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritu-thombre99/catalyst/core/artifact"
	"github.com/ritu-thombre99/catalyst/runtime/autograph"
	"github.com/ritu-thombre99/catalyst/runtime/diagnostics"
	"github.com/ritu-thombre99/catalyst/runtime/quantum"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// A workload is a built-in staged program: the hand-lowered form of the
// imperative function quoted in its builder's doc comment, written exactly
// as the rewriter would emit it.
type workload struct {
	name  string
	about string
	build func(scope *autograph.FunctionScope) (*quantum.QJIT, error)
}

var workloads = []workload{
	{name: "rotations", about: "layered RY rotations on one qubit, loop kept in graph form", build: rotationsWorkload},
	{name: "parity", about: "counting loop with a data-dependent conditional", build: parityWorkload},
	{name: "ragged", about: "loop over a heterogeneous slice, silent native fallback", build: raggedWorkload},
	{name: "labels", about: "loop carrying a string variable, warned native fallback", build: labelsWorkload},
}

func demoCommand() *cobra.Command {
	var (
		strict     bool
		quiet      bool
		configFile string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "demo [workload]",
		Short: "Run a built-in staged workload and print its conversion report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listWorkloads(cmd.OutOrStdout())
			}
			return runDemo(cmd.OutOrStdout(), args[0], strict, quiet, configFile, output)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Escalate fallbacks into errors")
	cmd.Flags().BoolVar(&quiet, "quiet-fallbacks", false, "Suppress fallback warnings")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML conversion config")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the staging artifact to this file")

	return cmd
}

func listWorkloads(out io.Writer) error {
	fmt.Fprintln(out, "Available workloads:")
	for _, w := range workloads {
		fmt.Fprintf(out, "  %-10s %s\n", w.name, w.about)
	}
	return nil
}

func runDemo(out io.Writer, name string, strict, quiet bool, configFile, output string) error {
	var found *workload
	for i := range workloads {
		if workloads[i].name == name {
			found = &workloads[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("unknown workload %q (run 'catalyst demo' for the list)", name)
	}

	cfg := autograph.DefaultConfig()
	if configFile != "" {
		loaded, err := autograph.LoadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.FromEnvironment()
	// Flags win over both the file and the environment.
	if strict {
		cfg.StrictConversion = true
	}
	if quiet {
		cfg.IgnoreFallbacks = true
	}

	scope := autograph.NewFunctionScope(found.name)
	scope.SourceMap = diagnostics.NewSourceMap()
	scope.Config = cfg

	jit, err := found.build(scope)
	if err != nil {
		return err
	}
	result, err := jit.Call()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %v\n", found.name, result)
	fmt.Fprintln(out, scope.Report.Summary())
	for _, o := range scope.Report.Outcomes {
		if o.Reason != "" {
			fmt.Fprintf(out, "  %-4s %-10s %s (%s)\n", o.Statement, o.Function, o.Strategy, o.Reason)
		} else {
			fmt.Fprintf(out, "  %-4s %-10s %s\n", o.Statement, o.Function, o.Strategy)
		}
	}

	if output == "" {
		return nil
	}
	return writeArtifact(out, jit, output)
}

func writeArtifact(out io.Writer, jit *quantum.QJIT, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	hash, werr := artifact.Write(f, jit.Artifact())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write artifact: %w", werr)
	}
	fmt.Fprintf(out, "wrote %s (blake2b:%x)\n", path, hash)
	return nil
}

// loopState is the variable-slot machinery the rewriter generates around a
// lowered statement: named slots with capture and restore closures over
// them.
type loopState struct {
	names  []string
	values []any
}

func newLoopState(names ...string) *loopState {
	return &loopState{names: names, values: make([]any, len(names))}
}

func (s *loopState) get() []any  { return append([]any(nil), s.values...) }
func (s *loopState) set(v []any) { copy(s.values, v) }

func newQJIT(name string, fn any, scope *autograph.FunctionScope) *quantum.QJIT {
	return &quantum.QJIT{Name: name, UserFunc: fn, SourceMap: scope.SourceMap, Report: scope.Report}
}

// rotationsWorkload is the staged form of
//
//	angle := 0.0
//	for range 4 {
//		angle += math.Pi / 8
//		RY(angle, 0)
//	}
//	return expval(Z(0))
//
// The angle carry stays float throughout, so the loop keeps graph form and
// the staged gates replay once per iteration with that iteration's angle.
func rotationsWorkload(scope *autograph.FunctionScope) (*quantum.QJIT, error) {
	dev, err := quantum.NewDevice(quantum.DeviceSpec{Name: "lightning.qubit", Wires: 1})
	if err != nil {
		return nil, err
	}
	theta := tracer.Lift(math.Pi / 8)

	node := quantum.NewQNode(dev, func(args ...any) (any, error) {
		state := newLoopState("angle")
		state.values[0] = 0.0

		err := autograph.ForStmt(autograph.NewRange(4), nil, func(elem any) error {
			next := tracer.Lift(state.values[0]).Add(theta)
			state.values[0] = next
			return dev.RY(next, 0)
		}, state.get, state.set, state.names, &autograph.ForOptions{Scope: scope})
		if err != nil {
			return nil, err
		}
		return dev.ExpvalZ(0)
	})

	return newQJIT("rotations", node, scope), nil
}

// parityWorkload is the staged form of
//
//	total := 0
//	for i := range 6 {
//		if i%2 == 0 {
//			total += i
//		} else {
//			total -= i
//		}
//	}
//
// The predicate depends on the loop index, so the conditional lowers to a
// select merge inside the traced loop.
func parityWorkload(scope *autograph.FunctionScope) (*quantum.QJIT, error) {
	fn := quantum.StagedFunc(func(args ...any) (any, error) {
		state := newLoopState("total")
		state.values[0] = int64(0)

		body := func(elem any) error {
			i := tracer.Lift(elem)
			pred := i.Mod(tracer.Lift(2)).Eq(tracer.Lift(0))
			return autograph.IfStmt(pred,
				func() error {
					state.values[0] = tracer.Lift(state.values[0]).Add(i)
					return nil
				},
				func() error {
					state.values[0] = tracer.Lift(state.values[0]).Sub(i)
					return nil
				},
				state.get, state.set, state.names, 1)
		}

		err := autograph.ForStmt(autograph.NewRange(6), nil, body,
			state.get, state.set, state.names, &autograph.ForOptions{Scope: scope})
		if err != nil {
			return nil, err
		}
		total, err := tracer.TryLift(state.values[0])
		if err != nil {
			return nil, err
		}
		return total.ConcreteInt(), nil
	})

	return newQJIT("parity", fn, scope), nil
}

// raggedWorkload is the staged form of
//
//	weight := 0
//	for _, v := range []any{4, "seven", 11} {
//		weight += sizeOf(v)
//	}
//
// A heterogeneous slice never materializes as an iteration target, so the
// loop runs natively without a warning. Strict mode turns this into an
// error instead.
func raggedWorkload(scope *autograph.FunctionScope) (*quantum.QJIT, error) {
	fn := quantum.StagedFunc(func(args ...any) (any, error) {
		state := newLoopState("weight")
		state.values[0] = int64(0)

		target := []any{int64(4), "seven", int64(11)}
		err := autograph.ForStmt(target, nil, func(elem any) error {
			switch v := elem.(type) {
			case int64:
				state.values[0] = state.values[0].(int64) + v
			case string:
				state.values[0] = state.values[0].(int64) + int64(len(v))
			}
			return nil
		}, state.get, state.set, state.names, &autograph.ForOptions{Scope: scope})
		if err != nil {
			return nil, err
		}
		return state.values[0], nil
	})

	return newQJIT("ragged", fn, scope), nil
}

// labelsWorkload is the staged form of
//
//	label := "layer"
//	steps := 0
//	for i := range 3 {
//		label += "+"
//		steps += i
//	}
//
// The string carry keeps the loop out of graph form, so it falls back to
// native execution with a warning naming the variable.
func labelsWorkload(scope *autograph.FunctionScope) (*quantum.QJIT, error) {
	fn := quantum.StagedFunc(func(args ...any) (any, error) {
		state := newLoopState("label", "steps")
		state.values[0] = "layer"
		state.values[1] = int64(0)

		err := autograph.ForStmt(autograph.NewRange(3), nil, func(elem any) error {
			state.values[0] = state.values[0].(string) + "+"
			state.values[1] = tracer.Lift(state.values[1]).Add(tracer.Lift(elem))
			return nil
		}, state.get, state.set, state.names, &autograph.ForOptions{Scope: scope})
		if err != nil {
			return nil, err
		}
		steps, err := tracer.TryLift(state.values[1])
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%s x%d", state.values[0], steps.ConcreteInt()), nil
	})

	return newQJIT("labels", fn, scope), nil
}
