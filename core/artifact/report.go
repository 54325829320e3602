package artifact

import "fmt"

// Strategy identifies how a rewritten statement was ultimately executed.
type Strategy string

const (
	// StrategyGraph means the statement was lowered to a functional
	// primitive and traced.
	StrategyGraph Strategy = "graph"
	// StrategyFallback means the statement ran natively after lowering was
	// abandoned.
	StrategyFallback Strategy = "fallback"
)

// Outcome records the lowering decision for one rewritten statement.
type Outcome struct {
	Statement string // "for" or "if"
	Function  string // enclosing function name, "" when unknown
	Strategy  Strategy
	Reason    string // why the fallback was taken, empty for graph form
}

// Report collects the lowering outcomes of one staging run. The lowering
// engines append to it through the function scope; the artifact writer
// serializes it next to the source map so `catalyst inspect` can show which
// statements kept graph form.
type Report struct {
	Outcomes []Outcome
}

// Add appends one statement outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// FallbackCount reports how many statements abandoned graph form.
func (r *Report) FallbackCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Strategy == StrategyFallback {
			n++
		}
	}
	return n
}

// Summary renders a one-line digest, e.g. "3 statements lowered, 1 fallback".
func (r *Report) Summary() string {
	if r == nil || len(r.Outcomes) == 0 {
		return "no statements lowered"
	}
	return fmt.Sprintf("%d statements lowered, %d fallbacks", len(r.Outcomes), r.FallbackCount())
}
