package diagnostics_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritu-thombre99/catalyst/runtime/diagnostics"
)

func TestSourceMapLookup(t *testing.T) {
	m := diagnostics.NewSourceMap()
	loc := diagnostics.Location{File: "/tmp/rewritten.go", Line: 42}
	entry := diagnostics.Entry{Function: "circuit", File: "workload.go", Line: 7, Source: "for i := range n {"}
	m.Add(loc, entry)

	got, ok := m.Lookup(loc)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	_, ok = m.Lookup(diagnostics.Location{File: "/tmp/rewritten.go", Line: 43})
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestSourceMapNilSafe(t *testing.T) {
	var m *diagnostics.SourceMap
	_, ok := m.Lookup(diagnostics.Location{File: "x", Line: 1})
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Mappings())
}

func TestSourceMapMerge(t *testing.T) {
	a := diagnostics.NewSourceMap()
	a.Add(diagnostics.Location{File: "f", Line: 1}, diagnostics.Entry{Function: "old"})
	a.Add(diagnostics.Location{File: "f", Line: 2}, diagnostics.Entry{Function: "keep"})

	b := diagnostics.NewSourceMap()
	b.Add(diagnostics.Location{File: "f", Line: 1}, diagnostics.Entry{Function: "new"})

	a.Merge(b)
	got, ok := a.Lookup(diagnostics.Location{File: "f", Line: 1})
	require.True(t, ok)
	assert.Equal(t, "new", got.Function)
	assert.Equal(t, 2, a.Len())

	a.Merge(nil)
	assert.Equal(t, 2, a.Len())
}

func TestMappingsOrdered(t *testing.T) {
	m := diagnostics.NewSourceMap()
	m.Add(diagnostics.Location{File: "b.go", Line: 3}, diagnostics.Entry{Function: "three"})
	m.Add(diagnostics.Location{File: "a.go", Line: 9}, diagnostics.Entry{Function: "nine"})
	m.Add(diagnostics.Location{File: "a.go", Line: 2}, diagnostics.Entry{Function: "two"})

	got := m.Mappings()
	require.Len(t, got, 3)
	assert.Equal(t, diagnostics.Location{File: "a.go", Line: 2}, got[0].From)
	assert.Equal(t, diagnostics.Location{File: "a.go", Line: 9}, got[1].From)
	assert.Equal(t, diagnostics.Location{File: "b.go", Line: 3}, got[2].From)
}

func TestResolveHitUsesOriginalLocation(t *testing.T) {
	m := diagnostics.NewSourceMap()
	frame := diagnostics.Frame{Function: "rewritten_fn", File: "/tmp/gen.go", Line: 100, Source: "autograph goo"}
	m.Add(diagnostics.Location{File: frame.File, Line: frame.Line},
		diagnostics.Entry{Function: "workload", File: "demo.go", Line: 12, Source: "if x > 0 {"})

	e := diagnostics.Resolve(m, frame)
	assert.Equal(t, "workload", e.Function)
	assert.Equal(t, "demo.go", e.File)
	assert.Equal(t, 12, e.Line)
}

func TestResolveMissFallsBackToRawFrame(t *testing.T) {
	frame := diagnostics.Frame{Function: "fn", File: "gen.go", Line: 5, Source: "x := y"}

	e := diagnostics.Resolve(diagnostics.NewSourceMap(), frame)
	assert.Equal(t, diagnostics.Entry{Function: "fn", File: "gen.go", Line: 5, Source: "x := y"}, e)

	e = diagnostics.Resolve(nil, frame)
	assert.Equal(t, "gen.go", e.File)
}

func TestFormatFrame(t *testing.T) {
	e := diagnostics.Entry{Function: "workload", File: "demo.go", Line: 12, Source: "if x > 0 {"}
	want := "  File \"demo.go\", line 12, in workload\n    if x > 0 {\n"
	assert.Equal(t, want, diagnostics.FormatFrame(e))
}

func TestCallerFrame(t *testing.T) {
	f := diagnostics.CallerFrame(0) // this line's text ends up in f.Source
	require.NotZero(t, f.Line)
	assert.True(t, strings.HasSuffix(f.File, "diagnostics_test.go"), "got file %q", f.File)
	assert.Equal(t, "TestCallerFrame", f.Function)
	assert.Contains(t, f.Source, "diagnostics.CallerFrame(0)")
}

func TestCallerFrameSkipsLevels(t *testing.T) {
	var f diagnostics.Frame
	capture := func() { f = diagnostics.CallerFrame(1) }
	capture()
	assert.Equal(t, "TestCallerFrameSkipsLevels", f.Function)
}

func TestCallerFrameOutOfRange(t *testing.T) {
	f := diagnostics.CallerFrame(10_000)
	assert.Equal(t, diagnostics.Frame{}, f)
}
