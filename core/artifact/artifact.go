// Package artifact defines the staging artifact: the file the rewriter emits
// next to compiled code so later runs (and `catalyst inspect`) can see where
// each rewritten statement came from and how it was lowered.
//
// An artifact carries three things: the target function name, the source map
// back to the user's original statements, and the conversion report of
// per-statement lowering outcomes. The binary layout and its integrity hash
// live in writer.go and reader.go; canonical.go defines the
// rewrite-independent identity hash.
package artifact

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// Format limits (enforced by wire types):
// - Target/path/source strings: max 65,535 bytes (uint16 length prefix)
// - Mappings per artifact: max 65,535 (uint16 count)
// - Outcomes per artifact: max 65,535 (uint16 count)
// - Header size: max 64 KB (enforced by reader)
// - Body size: max 32 MB (enforced by reader)
//
// Version compatibility:
// - Format version: uint16, readers reject any mismatch
// - Compiler version: semver string, readers reject a different major

// CompilerVersion is the semver of this build, recorded in every artifact it
// writes. Readers reject artifacts whose recorded major differs from theirs:
// a newer major's staging decisions may not mean the same thing here.
const CompilerVersion = "v0.4.0"

// Header carries artifact metadata. None of it participates in the integrity
// hash, so restamping with a newer compiler build keeps the digest intact as
// long as the staging semantics did not change.
type Header struct {
	CreatedAt uint64 // Unix nanoseconds (UTC)
	Compiler  string // semver of the producing build (e.g. "v0.4.0")
}

// Mapping ties one location in rewritten code to the original statement it
// replaced. GeneratedFile/GeneratedLine point into the rewriter's output; the
// remaining fields describe the statement the user actually wrote.
type Mapping struct {
	GeneratedFile string
	GeneratedLine uint32
	Function      string
	File          string
	Line          uint32
	Source        string
}

// Artifact is the in-memory representation of a staging artifact. This is the
// stable contract between the rewriter, `catalyst inspect`, and later
// re-staging runs.
type Artifact struct {
	Header   Header
	Target   string    // function the artifact was staged for
	Mappings []Mapping // source map, sorted by generated location on write
	Report   Report    // per-statement lowering outcomes, in statement order
}

// New returns an artifact for target stamped with the current time and this
// build's compiler version.
func New(target string) *Artifact {
	return &Artifact{
		Header: Header{
			CreatedAt: uint64(time.Now().UTC().UnixNano()),
			Compiler:  CompilerVersion,
		},
		Target: target,
	}
}

// Validate checks artifact invariants: a well-formed compiler version and
// known lowering strategies. The writer enforces the same rules piecemeal;
// Validate lets callers fail before serialization starts.
func (a *Artifact) Validate() error {
	if !semver.IsValid(compilerTag(a.Header.Compiler)) {
		return fmt.Errorf("invalid compiler version %q", a.Header.Compiler)
	}
	for i := range a.Report.Outcomes {
		if _, err := strategyCode(a.Report.Outcomes[i].Strategy); err != nil {
			return fmt.Errorf("outcome %d: %w", i, err)
		}
	}
	return nil
}

// CompatibleCompiler reports whether an artifact recorded by version can be
// used by this build. Majors must match; minor and patch may differ.
func CompatibleCompiler(version string) bool {
	tag := compilerTag(version)
	return semver.IsValid(tag) && semver.Major(tag) == semver.Major(CompilerVersion)
}

// compilerTag normalizes a compiler version for x/mod/semver, which requires
// the "v" prefix.
func compilerTag(version string) string {
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// sortMappings orders the source map by generated location for deterministic
// binary encoding. Outcome order is left alone: it is the statement order of
// the staging run and part of the artifact's meaning.
func (a *Artifact) sortMappings() {
	sort.Slice(a.Mappings, func(i, j int) bool {
		if a.Mappings[i].GeneratedFile != a.Mappings[j].GeneratedFile {
			return a.Mappings[i].GeneratedFile < a.Mappings[j].GeneratedFile
		}
		return a.Mappings[i].GeneratedLine < a.Mappings[j].GeneratedLine
	})
}

// Digest computes the BLAKE2b-256 hash of the serialized artifact.
// Returns hex-encoded hash: "blake2b:a3f8b2c1d4e5f6a7..."
func (a *Artifact) Digest() (string, error) {
	var buf bytes.Buffer
	hash, err := Write(&buf, a)
	if err != nil {
		return "", fmt.Errorf("failed to serialize artifact for digest: %w", err)
	}

	return fmt.Sprintf("blake2b:%x", hash), nil
}
