// Package diagnostics maps locations inside rewritten code back to the
// original source the user wrote.
//
// The upstream rewriter records, for every statement it rewrites, where the
// statement came from. That record is the SourceMap. When a lowering engine
// needs to point a warning or an error at user code, it snapshots its caller
// frame with CallerFrame, resolves it through the map with Resolve, and
// renders the result with FormatFrame. Every step is best effort: a missing
// map, a failed lookup, or an unreadable source file degrades to the raw
// frame, never to an error.
package diagnostics

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
)

// Location is a file/line pair in rewritten code.
type Location struct {
	File string
	Line int
}

// Entry describes the original-source statement behind a rewritten location.
type Entry struct {
	Function string
	File     string
	Line     int
	Source   string
}

// Mapping pairs a rewritten-code location with its original entry.
type Mapping struct {
	From Location
	To   Entry
}

// SourceMap records where rewritten statements originated. It is written by
// the rewriter and read-only to the lowering core.
type SourceMap struct {
	entries map[Location]Entry
}

// NewSourceMap returns an empty source map.
func NewSourceMap() *SourceMap {
	return &SourceMap{entries: make(map[Location]Entry)}
}

// Add records the original entry behind a rewritten location.
func (m *SourceMap) Add(loc Location, e Entry) {
	m.entries[loc] = e
}

// Lookup returns the entry recorded for loc, if any.
func (m *SourceMap) Lookup(loc Location) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.entries[loc]
	return e, ok
}

// Len reports the number of recorded locations.
func (m *SourceMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Merge copies every mapping from other into m. Collisions keep other's
// entry, matching how a later rewrite pass supersedes an earlier one.
func (m *SourceMap) Merge(other *SourceMap) {
	if other == nil {
		return
	}
	for loc, e := range other.entries {
		m.entries[loc] = e
	}
}

// Mappings returns every recorded mapping ordered by file then line, so
// callers that serialize the map produce identical bytes for identical maps.
func (m *SourceMap) Mappings() []Mapping {
	if m == nil {
		return nil
	}
	out := make([]Mapping, 0, len(m.entries))
	for loc, e := range m.entries {
		out = append(out, Mapping{From: loc, To: e})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From.File != out[j].From.File {
			return out[i].From.File < out[j].From.File
		}
		return out[i].From.Line < out[j].From.Line
	})
	return out
}

// Frame is a snapshot of one call-stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
	Source   string
}

// CallerFrame snapshots the frame skip levels above the caller. skip 0 is
// the caller of CallerFrame itself. It never fails; if the stack cannot be
// inspected a zero Frame is returned, and the source line text is left empty
// when the file cannot be read.
func CallerFrame(skip int) Frame {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Frame{}
	}
	f := Frame{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		f.Function = shortFuncName(fn.Name())
	}
	f.Source = sourceLine(file, line)
	return f
}

// Resolve maps f through m. A hit returns the original entry; a miss or a
// nil map falls back to the raw frame.
func Resolve(m *SourceMap, f Frame) Entry {
	if e, ok := m.Lookup(Location{File: f.File, Line: f.Line}); ok {
		return e
	}
	return Entry{Function: f.Function, File: f.File, Line: f.Line, Source: f.Source}
}

// FormatFrame renders the two-line location block used in warnings and
// errors.
func FormatFrame(e Entry) string {
	return fmt.Sprintf("  File \"%s\", line %d, in %s\n    %s\n", e.File, e.Line, e.Function, e.Source)
}

// shortFuncName trims the package path from a runtime function name, leaving
// the bare function or method name.
func shortFuncName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// sourceLine reads line number line from file, trimmed of indentation.
// Returns "" on any trouble.
func sourceLine(file string, line int) string {
	if line <= 0 {
		return ""
	}
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if n == line {
			return strings.TrimSpace(sc.Text())
		}
	}
	return ""
}
