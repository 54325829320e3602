package tracer

import (
	"fmt"

	"github.com/ritu-thombre99/catalyst/core/invariant"
	"github.com/ritu-thombre99/catalyst/core/tensor"
)

// BranchMismatchError reports branches whose results cannot be merged:
// either a differing result count (Index -1) or a signature mismatch at
// one result position.
type BranchMismatchError struct {
	Index int
	Then  string
	Else  string
}

func (e *BranchMismatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("branches returned a different number of values: %s then, %s otherwise", e.Then, e.Else)
	}
	return fmt.Sprintf("branch result %d has inconsistent types: %s then, %s otherwise", e.Index, e.Then, e.Else)
}

// CondBuilder assembles a two-branch functional conditional. Both branch
// procedures always run, each against a private effect sink; only the
// selected branch's effects commit. With an abstract predicate the results
// merge into select nodes and the effects commit under branch guards.
type CondBuilder struct {
	pred   Value
	thenFn func() ([]Value, error)
	elseFn func() ([]Value, error)
}

// Cond starts a conditional over the given scalar boolean predicate.
func Cond(pred Value) *CondBuilder {
	return &CondBuilder{pred: pred}
}

// Then registers the procedure traced for a true predicate.
func (b *CondBuilder) Then(fn func() ([]Value, error)) *CondBuilder {
	b.thenFn = fn
	return b
}

// Otherwise registers the procedure traced for a false predicate.
func (b *CondBuilder) Otherwise(fn func() ([]Value, error)) *CondBuilder {
	b.elseFn = fn
	return b
}

// Call traces both branches and returns the merged result tuple. Branch
// result tuples must agree in arity and exact signatures; a
// *BranchMismatchError reports the first disagreement.
func (b *CondBuilder) Call() ([]Value, error) {
	invariant.Precondition(b.thenFn != nil, "conditional requires a then branch")
	invariant.Precondition(b.elseFn != nil, "conditional requires an otherwise branch")

	ps := b.pred.Signature()
	if ps.DType != tensor.Bool || len(ps.Shape) != 0 {
		traceFail("cond", "predicate must be a scalar boolean, got %s", ps)
	}

	thenRes, thenEff, err := runBranch(b.thenFn)
	if err != nil {
		return nil, err
	}
	elseRes, elseEff, err := runBranch(b.elseFn)
	if err != nil {
		return nil, err
	}

	if len(thenRes) != len(elseRes) {
		return nil, &BranchMismatchError{
			Index: -1,
			Then:  fmt.Sprint(len(thenRes)),
			Else:  fmt.Sprint(len(elseRes)),
		}
	}
	for i := range thenRes {
		ts, es := thenRes[i].Signature(), elseRes[i].Signature()
		if !ts.Equal(es) {
			return nil, &BranchMismatchError{Index: i, Then: ts.String(), Else: es.String()}
		}
	}

	if !b.pred.IsAbstract() {
		results, effects := thenRes, thenEff
		if !b.pred.ConcreteBool() {
			results, effects = elseRes, elseEff
		}
		for _, rec := range effects {
			if err := stage(rec); err != nil {
				return nil, err
			}
		}
		return results, nil
	}

	for _, rec := range thenEff {
		rec.guards = append(rec.guards, guard{pred: b.pred})
		if err := stage(rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range elseEff {
		rec.guards = append(rec.guards, guard{pred: b.pred, negate: true})
		if err := stage(rec); err != nil {
			return nil, err
		}
	}

	merged := make([]Value, len(thenRes))
	for i := range thenRes {
		merged[i] = Select(b.pred, thenRes[i], elseRes[i])
	}
	return merged, nil
}

// runBranch traces one branch procedure under a private effect sink. The
// sink unwinds even when the procedure panics, keeping the trace stack
// consistent for the recovery path in the lowering engines.
func runBranch(fn func() ([]Value, error)) (res []Value, effects []*record, err error) {
	s := pushSink()
	defer popSink(s)
	res, err = fn()
	return res, s.records, err
}
