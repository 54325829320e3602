package autograph

import (
	"errors"
	"fmt"

	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/runtime/tracer"
)

// IfStmt lowers a two-branch conditional onto the tracer's functional
// conditional. Both branches always trace, regardless of the predicate:
// each restores the entry state, runs its branch function, and captures the
// branch's results. A variable left Undefined by either branch is a hard
// error naming that variable. There is no fallback path for conditionals;
// predicates are cheap to trace, so graph form is always attempted.
//
// numResults is the rewriter's declared result count; the captured state
// carries the authoritative arity, so it is only cross-checked here.
func IfStmt(pred any, trueFn, falseFn func() error, getState func() []any, setState func([]any), symbolNames []string, numResults int) (err error) {
	invariant.NotNil(trueFn, "true branch function")
	invariant.NotNil(falseFn, "false branch function")
	invariant.NotNil(getState, "state capture closure")
	invariant.NotNil(setState, "state restore closure")
	invariant.Precondition(numResults == len(symbolNames),
		"declared result count %d must match symbol names arity %d", numResults, len(symbolNames))

	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(*tracer.TraceError)
			if !ok {
				panic(r)
			}
			err = te
		}
	}()

	// Entry state is shared: both branches rewind to it before running.
	initState := getState()
	invariant.Precondition(len(initState) == len(symbolNames),
		"captured state arity %d must match symbol names arity %d", len(initState), len(symbolNames))

	branch := func(fn func() error) func() ([]tracer.Value, error) {
		return func() ([]tracer.Value, error) {
			setState(initState)
			if berr := fn(); berr != nil {
				return nil, berr
			}
			return liftResults(getState(), symbolNames)
		}
	}

	results, cerr := tracer.Cond(tracer.Lift(pred)).
		Then(branch(trueFn)).
		Otherwise(branch(falseFn)).
		Call()
	if cerr != nil {
		return convertCondError(cerr, symbolNames)
	}

	setState(valuesAsAny(results))
	return nil
}

// liftResults validates a captured state tuple and lifts it into the traced
// domain. Undefined entries become named errors; values the tracer cannot
// represent surface as plain lift errors, which an enclosing loop may still
// recover from by falling back.
func liftResults(state []any, names []string) ([]tracer.Value, error) {
	out := make([]tracer.Value, len(state))
	for i, v := range state {
		if u, ok := v.(*Undefined); ok {
			return nil, &ConversionError{
				Kind:     UndefinedVariable,
				Variable: u.Name(),
				Message:  fmt.Sprintf("Some branches did not define a value for variable '%s'", u.Name()),
			}
		}
		lifted, err := tracer.TryLift(v)
		if err != nil {
			return nil, fmt.Errorf("variable '%s': %w", name(names, i), err)
		}
		out[i] = lifted
	}
	return out, nil
}

// convertCondError maps the tracer's branch mismatch onto the conversion
// taxonomy; other errors pass through unchanged.
func convertCondError(err error, names []string) error {
	var bm *tracer.BranchMismatchError
	if !errors.As(err, &bm) {
		return err
	}
	if bm.Index < 0 {
		return &ConversionError{
			Kind: InconsistentBranches,
			Message: fmt.Sprintf(
				"The branches of a conditional produced a different number of results: %s in the true branch, %s in the false branch", bm.Then, bm.Else),
		}
	}
	return &ConversionError{
		Kind:     TypeInstability,
		Variable: name(names, bm.Index),
		Message: fmt.Sprintf(
			"The variable '%s' was assigned incompatible types in the branches of a conditional. True branch: %s, False branch: %s",
			name(names, bm.Index), bm.Then, bm.Else),
	}
}
