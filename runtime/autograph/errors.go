package autograph

import "strings"

// ErrorKind classifies conversion failures.
type ErrorKind int

const (
	// UndefinedVariable means a branch or loop body left a tracked variable
	// with no value on some path.
	UndefinedVariable ErrorKind = iota
	// NotTraceable means a loop-carried value cannot be abstracted into the
	// traced domain.
	NotTraceable
	// TypeInstability means a carried value's signature differs between
	// loop entry and exit, or between the branches of a conditional.
	TypeInstability
	// StrictConversion means strict mode escalated a would-be fallback.
	StrictConversion
	// InconsistentBranches means the branches of a conditional produced a
	// different number of results.
	InconsistentBranches
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedVariable:
		return "undefined-variable"
	case NotTraceable:
		return "not-traceable"
	case TypeInstability:
		return "type-instability"
	case StrictConversion:
		return "strict-conversion"
	case InconsistentBranches:
		return "inconsistent-branches"
	}
	return "unknown"
}

// ConversionError is a failure to lower a statement, carrying enough
// context to point the user at the offending variable.
type ConversionError struct {
	Kind       ErrorKind
	Variable   string // offending symbol, "" when not variable-specific
	Message    string
	Suggestion string
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		b.WriteString("\n")
		b.WriteString(e.Suggestion)
	}
	return b.String()
}

// Fatal reports whether the error must propagate to the caller. Only
// non-traceable loop inputs are recoverable: ForStmt turns those into a
// native fallback when strict mode is off. Everything else names a user
// mistake that a fallback would mask.
func (e *ConversionError) Fatal() bool {
	return e.Kind != NotTraceable
}
