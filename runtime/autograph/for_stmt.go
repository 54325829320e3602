package autograph

import (
	"errors"
	"fmt"

	"github.com/ritu-thombre99/catalyst/core/artifact"
	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
	"github.com/ritu-thombre99/catalyst/runtime/diagnostics"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// ForOptions carries the rewriter-provided options for one for statement.
type ForOptions struct {
	// IterateNames are the loop-carried variable names used in error
	// messages, in capture order. Defaults to the statement's symbol names.
	IterateNames []string
	// Scope is the enclosing function's conversion scope.
	Scope *FunctionScope
}

func (o *ForOptions) scope() *FunctionScope {
	if o == nil {
		return nil
	}
	return o.Scope
}

func (o *ForOptions) names(symbolNames []string) []string {
	if o != nil && len(o.IterateNames) > 0 {
		return o.IterateNames
	}
	return symbolNames
}

// loopPhase tracks the ForStmt state machine. The explicit machine makes
// the attempt-once, fall-back-once guarantee structural: no transition
// re-enters phaseAttempt.
type loopPhase int

const (
	phaseClassify loopPhase = iota
	phaseAttempt
	phaseValidate
	phaseFallback
	phaseDone
)

// ForStmt lowers one for statement. The iteration target is classified,
// graph form is attempted when the target materializes, the result carry is
// validated for type stability, and on a recoverable failure the loop runs
// natively over the original target instead. extraTest must be nil: a
// non-nil guard means the rewriter sent a loop shape this engine does not
// support.
func ForStmt(target any, extraTest any, body func(elem any) error, getState func() []any, setState func([]any), symbolNames []string, opts *ForOptions) (err error) {
	invariant.Precondition(extraTest == nil, "for-loop extra test guards are unsupported")
	invariant.NotNil(body, "loop body function")
	invariant.NotNil(getState, "state capture closure")
	invariant.NotNil(setState, "state restore closure")

	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(*tracer.TraceError)
			if !ok {
				panic(r)
			}
			err = te
		}
	}()

	var (
		scope = opts.scope()
		cfg   = scope.config()
		names = opts.names(symbolNames)
		// Captured once, while the rewritten statement is still the caller.
		frame = diagnostics.CallerFrame(1)
	)

	initState := getState()
	invariant.Precondition(len(initState) == len(names),
		"captured state arity %d must match variable names arity %d", len(initState), len(names))

	var (
		phase    = phaseClassify
		strategy = artifact.StrategyGraph
		reason   string
		cls      classification
		entry    []tracer.Value
		graphed  []tracer.Value
		results  []any
	)

	for phase != phaseDone {
		switch phase {
		case phaseClassify:
			c, cerr := classify(target)
			if cerr != nil {
				return cerr
			}
			cls = c
			if !cls.failed {
				phase = phaseAttempt
				break
			}
			if cfg.strict() {
				return &ConversionError{
					Kind: StrictConversion,
					Message: fmt.Sprintf(
						"Could not convert the iteration target %v to array while processing the following with AutoGraph:\n%s",
						target, locationBlock(scope, frame)),
				}
			}
			// Materialization failure is expected for heterogeneous
			// iterables; fall back without a warning.
			strategy, reason = artifact.StrategyFallback, "iteration target is not materializable"
			phase = phaseFallback

		case phaseAttempt:
			setState(initState)
			in, out, aerr := attemptGraphLoop(cls, body, getState, setState, names)
			if aerr == nil {
				entry, graphed = in, out
				phase = phaseValidate
				break
			}
			if fatalLoopError(aerr) || cfg.strict() {
				return convertLoopError(aerr, names)
			}
			warnFallback(cfg, aerr, locationBlock(scope, frame))
			strategy, reason = artifact.StrategyFallback, "tracing failed: "+firstLine(aerr.Error())
			phase = phaseFallback

		case phaseValidate:
			if verr := validateCarry(entry, graphed, names); verr != nil {
				return verr
			}
			results = valuesAsAny(graphed)
			phase = phaseDone

		case phaseFallback:
			setState(initState)
			elems, ferr := nativeElements(target)
			if ferr != nil {
				return ferr
			}
			for _, el := range elems {
				if berr := body(el); berr != nil {
					return berr
				}
			}
			results = getState()
			phase = phaseDone
		}
	}

	recordOutcome(scope, "for", strategy, reason)
	setState(results)
	return nil
}

// attemptGraphLoop traces the loop in graph form, returning the lifted
// entry carry alongside the loop results. Recovery here is selective: only
// trace errors convert into returned errors, anything else keeps unwinding.
func attemptGraphLoop(cls classification, body func(elem any) error, getState func() []any, setState func([]any), names []string) (entry, out []tracer.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(*tracer.TraceError)
			if !ok {
				panic(r)
			}
			entry, out = nil, nil
			err = te
		}
	}()

	init := getState()
	entry = make([]tracer.Value, len(init))
	for i, v := range init {
		if u, ok := v.(*Undefined); ok {
			return nil, nil, uninitializedError(u)
		}
		lifted, lerr := tracer.TryLift(v)
		if lerr != nil {
			return nil, nil, &ConversionError{
				Kind:     NotTraceable,
				Variable: name(names, i),
				Message: fmt.Sprintf(
					"The variable '%s' was initialized with type %T, which is not compatible with the tracer. Typically, this is the case for non-numeric values.",
					name(names, i), v),
				Suggestion: "You may still use such a variable as a constant inside a loop, but it cannot be updated from one iteration to the next, or accessed outside the loop scope if it was defined inside of it.",
			}
		}
		entry[i] = lifted
	}

	loop := tracer.ForLoop(tracer.Lift(cls.start), tracer.Lift(cls.stop), tracer.Lift(cls.step)).
		Body(func(i tracer.Value, carry []tracer.Value) ([]tracer.Value, error) {
			setState(valuesAsAny(carry))
			if berr := body(element(cls, i)); berr != nil {
				return nil, berr
			}
			return liftResults(getState(), names)
		})

	out, cerr := loop.Call(entry)
	if cerr != nil {
		return nil, nil, cerr
	}
	return entry, out, nil
}

// validateCarry enforces type stability: every carried variable's exit
// signature must equal its entry signature exactly. The usual cause of a
// mismatch is an initializer of the wrong dtype, e.g. 0 where 0.0 was
// meant.
func validateCarry(entry, exit []tracer.Value, names []string) error {
	invariant.Invariant(len(entry) == len(exit), "loop primitive must preserve carry arity")
	for i := range entry {
		in, out := entry[i].Signature(), exit[i].Signature()
		if !in.Equal(out) {
			return typeInstabilityError(name(names, i), out, in)
		}
	}
	return nil
}

func typeInstabilityError(varName string, expected, got tensor.Signature) *ConversionError {
	return &ConversionError{
		Kind:     TypeInstability,
		Variable: varName,
		Message: fmt.Sprintf(
			"The variable '%s' was initialized with the wrong type. Expected: %s, Got: %s",
			varName, expected, got),
	}
}

func uninitializedError(u *Undefined) *ConversionError {
	return &ConversionError{
		Kind:     UndefinedVariable,
		Variable: u.Name(),
		Message: fmt.Sprintf(
			"The variable '%s' is potentially uninitialized:\n"+
				" - you may have forgotten to initialize it prior to accessing it inside a loop, or\n"+
				" - you may be attempting to access a variable local to the body of a loop in an outer scope.",
			u.Name()),
		Suggestion: fmt.Sprintf("Please ensure '%s' is initialized with a value before entering the loop.", u.Name()),
	}
}

// fatalLoopError reports whether err may not trigger a fallback: fatal
// conversion errors, carry shape changes mid-trace, branch mismatches, and
// failures that occurred after staged effects were already applied.
func fatalLoopError(err error) bool {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Fatal()
	}
	var cm *tracer.CarryMismatchError
	var bm *tracer.BranchMismatchError
	var ee *tracer.ExecError
	return errors.As(err, &cm) || errors.As(err, &bm) || errors.As(err, &ee)
}

// convertLoopError maps tracer-level structural failures onto the
// conversion taxonomy; everything else passes through unchanged.
func convertLoopError(err error, names []string) error {
	var cm *tracer.CarryMismatchError
	if errors.As(err, &cm) {
		return typeInstabilityError(name(names, cm.Index), cm.Exit, cm.Entry)
	}
	return err
}

// warnFallback emits the non-fatal warning for a loop that abandons graph
// form, pointing at the original source location when one is known.
func warnFallback(cfg *Config, cause error, location string) {
	if cfg.quiet() {
		return
	}
	cfg.logger().Warnf(
		"Tracing of a converted for loop failed with an exception:\n"+
			"  %T:\n%s\n"+
			"\n"+
			"The error occurred within the body of the following for loop statement:\n"+
			"%s"+
			"\n"+
			"If you intended for the conversion to happen, make sure that the (now dynamic) loop variable is not used in tracing-incompatible ways, for instance by indexing a native slice with it. In that case, wrap the slice into an array before the loop.\n"+
			"\n"+
			"If you did not intend for the conversion to happen, you may safely ignore this warning.",
		cause, indent(cause.Error(), "    "), location)
}

// locationBlock renders the user-facing location of the statement being
// lowered.
func locationBlock(scope *FunctionScope, f diagnostics.Frame) string {
	return diagnostics.FormatFrame(diagnostics.Resolve(scope.sourceMap(), f))
}

func recordOutcome(scope *FunctionScope, statement string, strategy artifact.Strategy, reason string) {
	if scope == nil || scope.Report == nil {
		return
	}
	scope.Report.Add(artifact.Outcome{
		Statement: statement,
		Function:  scope.Name,
		Strategy:  strategy,
		Reason:    reason,
	})
}
