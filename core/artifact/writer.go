package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/ritu-thombre99/catalyst/core/invariant"
)

const (
	// Magic is the file magic number "CLYS" (4 bytes)
	Magic = "CLYS"

	// Version is the format version (uint16, little-endian)
	// Version scheme: major.minor encoded as single uint16
	// 0x0001 = version 1.0
	// Breaking changes increment major, additions increment minor
	Version uint16 = 0x0001
)

// Flags is a bitmask for optional features
type Flags uint16

const (
	// FlagCompressed indicates the body section is zstd-compressed
	FlagCompressed Flags = 1 << 0

	// FlagSigned indicates a detached Ed25519 signature is present
	FlagSigned Flags = 1 << 1

	// Bits 2-15 reserved for future use
)

// Strategy codes for binary serialization
const (
	strategyCodeGraph    = 0x01
	strategyCodeFallback = 0x02
)

// strategyCode maps a Strategy to its wire byte
func strategyCode(s Strategy) (byte, error) {
	switch s {
	case StrategyGraph:
		return strategyCodeGraph, nil
	case StrategyFallback:
		return strategyCodeFallback, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// validateUint16 checks if a value fits in uint16, returns error if it exceeds max
func validateUint16(value int, fieldName string) error {
	if value > math.MaxUint16 {
		return fmt.Errorf("%s %d exceeds maximum %d", fieldName, value, math.MaxUint16)
	}
	return nil
}

// Write writes an artifact to w and returns the 32-byte file hash
// (BLAKE2b-256). Sorts the source map before writing to ensure deterministic
// output.
func Write(w io.Writer, a *Artifact) ([32]byte, error) {
	wr := &Writer{w: w}
	return wr.WriteArtifact(a)
}

// Writer handles writing artifacts to binary format.
type Writer struct {
	w io.Writer
}

// WriteArtifact writes the artifact to the underlying writer.
// Format: MAGIC(4) | VERSION(2) | FLAGS(2) | HEADER_LEN(4) | BODY_LEN(8) | HEADER | BODY
//
// Returns the BLAKE2b-256 hash of target + body (staging semantics only).
// Metadata (CreatedAt, Compiler) excluded from hash to allow
// timestamp/version updates without invalidating the digest.
func (wr *Writer) WriteArtifact(a *Artifact) ([32]byte, error) {
	// INPUT CONTRACT
	invariant.NotNil(a, "artifact")

	// Sort for deterministic encoding (defense in depth - the rewriter
	// already emits its map in generated order)
	a.sortMappings()

	// Buffer first to compute lengths for preamble
	var headerBuf, bodyBuf bytes.Buffer

	if err := wr.writeHeader(&headerBuf, a); err != nil {
		return [32]byte{}, err
	}

	if err := wr.writeBody(&bodyBuf, a); err != nil {
		return [32]byte{}, err
	}

	// Hash target + body only (metadata excluded to allow timestamp/version changes)
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, err
	}

	if _, err := hasher.Write([]byte(a.Target)); err != nil {
		return [32]byte{}, err
	}

	if _, err := hasher.Write(bodyBuf.Bytes()); err != nil {
		return [32]byte{}, err
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))

	var preambleBuf bytes.Buffer
	if err := wr.writePreambleToBuffer(&preambleBuf, uint32(headerBuf.Len()), uint64(bodyBuf.Len())); err != nil {
		return [32]byte{}, err
	}
	if _, err := wr.w.Write(preambleBuf.Bytes()); err != nil {
		return [32]byte{}, err
	}

	if _, err := wr.w.Write(headerBuf.Bytes()); err != nil {
		return [32]byte{}, err
	}

	if _, err := wr.w.Write(bodyBuf.Bytes()); err != nil {
		return [32]byte{}, err
	}

	return digest, nil
}

// writePreambleToBuffer writes the fixed-size preamble (20 bytes) to a buffer
func (wr *Writer) writePreambleToBuffer(buf *bytes.Buffer, headerLen uint32, bodyLen uint64) error {
	// Magic number (4 bytes)
	if _, err := buf.WriteString(Magic); err != nil {
		return err
	}

	// Version (2 bytes, little-endian)
	if err := binary.Write(buf, binary.LittleEndian, Version); err != nil {
		return err
	}

	flags := Flags(0) // No compression, no signature
	if err := binary.Write(buf, binary.LittleEndian, uint16(flags)); err != nil {
		return err
	}

	if err := binary.Write(buf, binary.LittleEndian, headerLen); err != nil {
		return err
	}

	return binary.Write(buf, binary.LittleEndian, bodyLen)
}

// writeHeader writes the artifact header to the buffer
func (wr *Writer) writeHeader(buf *bytes.Buffer, a *Artifact) error {
	// CreatedAt (8 bytes, uint64, little-endian)
	if err := binary.Write(buf, binary.LittleEndian, a.Header.CreatedAt); err != nil {
		return err
	}

	// Compiler version (2-byte length prefix + string)
	if err := writeString(buf, a.Header.Compiler, "compiler version length"); err != nil {
		return err
	}

	// Target (2-byte length prefix + string)
	return writeString(buf, a.Target, "target length")
}

// writeBody writes the source map and the conversion report to the buffer
func (wr *Writer) writeBody(buf *bytes.Buffer, a *Artifact) error {
	// Mapping count (2 bytes, uint16)
	if err := validateUint16(len(a.Mappings), "mapping count"); err != nil {
		return err
	}
	mappingCount := uint16(len(a.Mappings))
	if err := binary.Write(buf, binary.LittleEndian, mappingCount); err != nil {
		return err
	}

	// Write each mapping
	for i := range a.Mappings {
		if err := wr.writeMapping(buf, &a.Mappings[i]); err != nil {
			return err
		}
	}

	// Outcome count (2 bytes, uint16)
	if err := validateUint16(len(a.Report.Outcomes), "outcome count"); err != nil {
		return err
	}
	outcomeCount := uint16(len(a.Report.Outcomes))
	if err := binary.Write(buf, binary.LittleEndian, outcomeCount); err != nil {
		return err
	}

	// Write each outcome
	for i := range a.Report.Outcomes {
		if err := wr.writeOutcome(buf, &a.Report.Outcomes[i]); err != nil {
			return err
		}
	}

	return nil
}

// writeMapping writes a single source-map entry
func (wr *Writer) writeMapping(buf *bytes.Buffer, m *Mapping) error {
	if err := writeString(buf, m.GeneratedFile, "generated file length"); err != nil {
		return err
	}

	// Generated line (4 bytes, uint32, little-endian)
	if err := binary.Write(buf, binary.LittleEndian, m.GeneratedLine); err != nil {
		return err
	}

	if err := writeString(buf, m.Function, "function name length"); err != nil {
		return err
	}
	if err := writeString(buf, m.File, "file length"); err != nil {
		return err
	}

	// Original line (4 bytes, uint32, little-endian)
	if err := binary.Write(buf, binary.LittleEndian, m.Line); err != nil {
		return err
	}

	return writeString(buf, m.Source, "source line length")
}

// writeOutcome writes a single lowering outcome
func (wr *Writer) writeOutcome(buf *bytes.Buffer, o *Outcome) error {
	if err := writeString(buf, o.Statement, "statement length"); err != nil {
		return err
	}
	if err := writeString(buf, o.Function, "function name length"); err != nil {
		return err
	}

	// Strategy (1 byte)
	code, err := strategyCode(o.Strategy)
	if err != nil {
		return err
	}
	if err := buf.WriteByte(code); err != nil {
		return err
	}

	return writeString(buf, o.Reason, "fallback reason length")
}

func writeString(buf *bytes.Buffer, value, fieldName string) error {
	if err := validateUint16(len(value), fieldName); err != nil {
		return err
	}
	valueLen := uint16(len(value))
	if err := binary.Write(buf, binary.LittleEndian, valueLen); err != nil {
		return err
	}
	if _, err := buf.WriteString(value); err != nil {
		return err
	}
	return nil
}
