package autograph

import (
	"fmt"
	"reflect"

	"github.com/ritu-thombre99/catalyst/core/artifact"
	"github.com/ritu-thombre99/catalyst/runtime/diagnostics"
)

// FunctionScope is the per-rewritten-function context built by the upstream
// transformer before it invokes any lowering engine: the function's name,
// the source map from its staging artifact, the conversion context for
// nested calls, the active configuration, and the report collecting
// lowering outcomes.
type FunctionScope struct {
	Name      string
	SourceMap *diagnostics.SourceMap
	Context   *ConversionContext
	Config    *Config
	Report    *artifact.Report
}

// NewFunctionScope returns a scope with default context, config, and an
// empty report.
func NewFunctionScope(funcName string) *FunctionScope {
	return &FunctionScope{
		Name:    funcName,
		Context: NewConversionContext(),
		Config:  DefaultConfig(),
		Report:  &artifact.Report{},
	}
}

func (s *FunctionScope) config() *Config {
	if s == nil {
		return nil
	}
	return s.Config
}

func (s *FunctionScope) sourceMap() *diagnostics.SourceMap {
	if s == nil {
		return nil
	}
	return s.SourceMap
}

// conversionContext returns the scope's context, falling back to the
// process-wide default for scope-less calls.
func (s *FunctionScope) conversionContext() *ConversionContext {
	if s == nil || s.Context == nil {
		return defaultContext
	}
	return s.Context
}

// defaultContext backs conversions that arrive without a scope. Like the
// rest of the lowering core it assumes a single logical thread of control.
var defaultContext = NewConversionContext()

// Transformer converts nested calls inside rewritten code. The upstream
// rewriter supplies the real implementation; PassthroughTransformer serves
// when no rewriting is wanted.
type Transformer interface {
	ConvertedCall(fn any, args []any, kwargs map[string]any, scope *FunctionScope, opts *ConversionOptions) (any, error)
}

// ConversionOptions mirrors the rewriter's per-call options.
type ConversionOptions struct {
	// Recursive requests conversion of functions reached through the
	// converted function.
	Recursive bool
}

// ConversionContext holds the transformer and the do-not-convert allowlist
// that apply to nested conversions. ConvertedCall installs scoped overrides
// on it and restores the previous values on every exit path.
type ConversionContext struct {
	transformer Transformer
	allowlist   []string
}

// NewConversionContext returns a context with the passthrough transformer
// and an empty allowlist.
func NewConversionContext() *ConversionContext {
	return &ConversionContext{transformer: PassthroughTransformer{}}
}

// Transformer returns the active transformer.
func (c *ConversionContext) Transformer() Transformer { return c.transformer }

// SetTransformer installs t as the delegate for nested conversions.
func (c *ConversionContext) SetTransformer(t Transformer) { c.transformer = t }

// Allowlist returns the package path prefixes that must not be converted.
func (c *ConversionContext) Allowlist() []string { return c.allowlist }

// SetAllowlist replaces the do-not-convert prefixes.
func (c *ConversionContext) SetAllowlist(paths []string) { c.allowlist = paths }

// override installs the given transformer and allowlist and returns a
// restore function for the previous values. Callers must defer the restore
// so panics unwind the override too.
func (c *ConversionContext) override(t Transformer, allow []string) func() {
	prevT, prevA := c.transformer, c.allowlist
	c.transformer = t
	c.allowlist = allow
	return func() {
		c.transformer = prevT
		c.allowlist = prevA
	}
}

// PassthroughTransformer invokes plain Go functions reflectively without
// rewriting them. It is the default delegate, and what makes the call shim
// usable without the external rewriter.
type PassthroughTransformer struct{}

// ConvertedCall calls fn with args. A trailing error return is split off;
// zero remaining results yield nil, one yields the value, several yield a
// []any tuple.
func (PassthroughTransformer) ConvertedCall(fn any, args []any, kwargs map[string]any, _ *FunctionScope, _ *ConversionOptions) (any, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("keyword arguments are not supported when calling %T", fn)
	}
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("cannot call a value of type %T", fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		if len(args) < ft.NumIn()-1 {
			return nil, fmt.Errorf("%s takes at least %d arguments, got %d", ft, ft.NumIn()-1, len(args))
		}
	} else if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", ft, ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := paramType(ft, i)
		if arg == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(arg)
		switch {
		case av.Type().AssignableTo(pt):
			in[i] = av
		case av.Type().ConvertibleTo(pt):
			in[i] = av.Convert(pt)
		default:
			return nil, fmt.Errorf("argument %d: cannot use %T as %s", i, arg, pt)
		}
	}

	outs := fv.Call(in)
	if n := len(outs); n > 0 && ft.Out(n-1) == errType {
		last := outs[n-1]
		outs = outs[:n-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0].Interface(), nil
	}
	res := make([]any, len(outs))
	for i, o := range outs {
		res[i] = o.Interface()
	}
	return res, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}
