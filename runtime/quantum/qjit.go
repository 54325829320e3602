package quantum

import (
	"fmt"

	"github.com/ritu-thombre99/catalyst/core/artifact"
	"github.com/ritu-thombre99/catalyst/runtime/diagnostics"
)

// QJIT wraps a compiled top-level staged program. It owns the artifacts the
// rewriter produced for it: the source map back to the user's code and the
// report of lowering outcomes. Calling it dispatches straight to the user
// function; the call shim unwraps it so the wrapper's own dispatch is never
// rewritten.
type QJIT struct {
	Name      string
	UserFunc  any // StagedFunc or *QNode
	SourceMap *diagnostics.SourceMap
	Report    *artifact.Report
}

// Call dispatches to the wrapped user function.
func (j *QJIT) Call(args ...any) (any, error) {
	switch fn := j.UserFunc.(type) {
	case StagedFunc:
		return fn(args...)
	case func(args ...any) (any, error):
		return fn(args...)
	case *QNode:
		return fn.Call(args...)
	}
	return nil, fmt.Errorf("qjit wraps an uncallable value of type %T", j.UserFunc)
}

// Artifact assembles the staging artifact for this program: the source map
// and the conversion report, stamped with the current compiler build.
func (j *QJIT) Artifact() *artifact.Artifact {
	art := artifact.New(j.Name)
	if j.Report != nil {
		art.Report = *j.Report
	}
	for _, m := range j.SourceMap.Mappings() {
		art.Mappings = append(art.Mappings, artifact.Mapping{
			GeneratedFile: m.From.File,
			GeneratedLine: uint32(m.From.Line),
			Function:      m.To.Function,
			File:          m.To.File,
			Line:          uint32(m.To.Line),
			Source:        m.To.Source,
		})
	}
	return art
}
