package artifact

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// CanonicalArtifact is the intermediate form for rewrite-independent hashing.
//
// The binary digest (writer.go) covers the exact source-map bytes, including
// where each statement landed in the rewriter's output. Those generated
// locations shift every time the rewriter runs, even when the user's code and
// the lowering decisions are identical. CanonicalArtifact drops them, so two
// staging runs over unchanged source hash the same.
//
// Includes Target to ensure artifacts staged for different functions produce
// different hashes.
type CanonicalArtifact struct {
	Version  uint8  // Canonical format version (for forward compatibility)
	Target   string // Function being staged (ensures circuit != workflow)
	Mappings []CanonicalMapping
	Outcomes []CanonicalOutcome
}

// CanonicalMapping is a source-map entry stripped to the user-visible part:
// the original statement. Generated locations are omitted because they are
// derived from the rewrite, not from the source.
type CanonicalMapping struct {
	Function string
	File     string
	Line     uint32
	Source   string
}

// CanonicalOutcome represents a lowering outcome in canonical form
type CanonicalOutcome struct {
	Statement string
	Function  string
	Strategy  string
	Reason    string
}

// Canonicalize converts an Artifact into canonical form for deterministic
// hashing. Mappings are sorted by original location so the same source map
// produces the same hash regardless of construction order. Outcomes keep
// their order: it is the statement order of the staging run and part of the
// artifact's meaning.
func (a *Artifact) Canonicalize() (*CanonicalArtifact, error) {
	ca := &CanonicalArtifact{
		Version:  1, // Canonical format version
		Target:   a.Target,
		Mappings: make([]CanonicalMapping, len(a.Mappings)),
		Outcomes: make([]CanonicalOutcome, len(a.Report.Outcomes)),
	}

	for i := range a.Mappings {
		m := &a.Mappings[i]
		ca.Mappings[i] = CanonicalMapping{
			Function: m.Function,
			File:     m.File,
			Line:     m.Line,
			Source:   m.Source,
		}
	}
	sort.Slice(ca.Mappings, func(i, j int) bool {
		if ca.Mappings[i].File != ca.Mappings[j].File {
			return ca.Mappings[i].File < ca.Mappings[j].File
		}
		if ca.Mappings[i].Line != ca.Mappings[j].Line {
			return ca.Mappings[i].Line < ca.Mappings[j].Line
		}
		return ca.Mappings[i].Function < ca.Mappings[j].Function
	})

	for i := range a.Report.Outcomes {
		o := &a.Report.Outcomes[i]
		ca.Outcomes[i] = CanonicalOutcome{
			Statement: o.Statement,
			Function:  o.Function,
			Strategy:  string(o.Strategy),
			Reason:    o.Reason,
		}
	}

	return ca, nil
}

// MarshalBinary produces deterministic CBOR encoding of the canonical
// artifact. This ensures byte-for-byte stability across multiple runs.
func (ca *CanonicalArtifact) MarshalBinary() ([]byte, error) {
	// Create CBOR encoder with deterministic options
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	// Create a type alias to avoid infinite recursion
	// (CBOR would call MarshalBinary recursively otherwise)
	type canonicalArtifactAlias CanonicalArtifact
	alias := (*canonicalArtifactAlias)(ca)

	// Encode to CBOR
	data, err := encMode.Marshal(alias)
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}

	return data, nil
}

// Hash computes the SHA-256 hash of the canonical artifact. This is the
// staging identity: it survives restamping and rewriter re-runs, unlike the
// binary digest, which changes whenever statements land on new generated
// lines.
func (ca *CanonicalArtifact) Hash() ([32]byte, error) {
	data, err := ca.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}

	return sha256.Sum256(data), nil
}
