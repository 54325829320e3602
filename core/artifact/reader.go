package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"
)

// Read reads an artifact from r and returns the artifact and its hash.
func Read(r io.Reader) (*Artifact, [32]byte, error) {
	rd := &Reader{r: r}
	return rd.ReadArtifact()
}

// Reader handles reading artifacts from binary format.
type Reader struct {
	r io.Reader
}

// ReadArtifact reads the artifact from the underlying reader and returns the
// computed hash.
func (rd *Reader) ReadArtifact() (*Artifact, [32]byte, error) {
	// Create hasher to recompute the digest while reading
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("create hasher: %w", err)
	}

	// Read preamble (20 bytes) - not included in hash (metadata)
	var preamble [20]byte
	if _, err := io.ReadFull(rd.r, preamble[:]); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read preamble: %w", err)
	}

	// Verify magic
	magic := string(preamble[0:4])
	if magic != Magic {
		return nil, [32]byte{}, fmt.Errorf("invalid magic: got %q, expected %q", magic, Magic)
	}

	// Read version
	version := binary.LittleEndian.Uint16(preamble[4:6])
	if version != Version {
		return nil, [32]byte{}, fmt.Errorf("unsupported version: got 0x%04x, expected 0x%04x", version, Version)
	}

	// Read flags
	flags := Flags(binary.LittleEndian.Uint16(preamble[6:8]))

	// Reject unknown flags for this version
	knownFlags := FlagCompressed | FlagSigned
	if flags&^knownFlags != 0 {
		return nil, [32]byte{}, fmt.Errorf("unsupported flags: 0x%04x (unknown bits: 0x%04x)", flags, flags&^knownFlags)
	}

	if flags&FlagCompressed != 0 {
		return nil, [32]byte{}, fmt.Errorf("compressed artifacts not yet supported")
	}
	if flags&FlagSigned != 0 {
		return nil, [32]byte{}, fmt.Errorf("signed artifacts not yet supported")
	}

	// Read header length
	headerLen := binary.LittleEndian.Uint32(preamble[8:12])

	// Read body length
	bodyLen := binary.LittleEndian.Uint64(preamble[12:20])

	// Validate lengths to prevent OOM on corrupt preambles
	// Header: metadata only, under 1KB in practice
	// Body: even tens of thousands of mappings fit well under the cap
	const maxHeaderLen = 64 * 1024      // 64KB max header (very generous)
	const maxBodyLen = 32 * 1024 * 1024 // 32MB max body

	if headerLen > maxHeaderLen {
		return nil, [32]byte{}, fmt.Errorf("header length %d exceeds maximum %d", headerLen, maxHeaderLen)
	}
	if bodyLen > maxBodyLen {
		return nil, [32]byte{}, fmt.Errorf("body length %d exceeds maximum %d", bodyLen, maxBodyLen)
	}

	// Read header (metadata - not included in hash except target)
	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(rd.r, headerBuf); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read header: %w", err)
	}

	art, err := rd.readHeader(bytes.NewReader(headerBuf))
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse header: %w", err)
	}

	// Read body (staging semantics - included in hash)
	bodyBuf := make([]byte, bodyLen)
	if _, err := io.ReadFull(rd.r, bodyBuf); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read body: %w", err)
	}

	if err := rd.readBody(bytes.NewReader(bodyBuf), art); err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse body: %w", err)
	}

	// Compute hash of target + body (staging semantics only)
	// Target is part of the semantics (which function was staged)
	// Metadata (CreatedAt, Compiler) is excluded from hash
	if _, err := hasher.Write([]byte(art.Target)); err != nil {
		return nil, [32]byte{}, fmt.Errorf("hash target: %w", err)
	}
	if _, err := hasher.Write(bodyBuf); err != nil {
		return nil, [32]byte{}, fmt.Errorf("hash body: %w", err)
	}

	// Extract hash
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return art, digest, nil
}

// readHeader reads the artifact header and gates the compiler version
func (rd *Reader) readHeader(r io.Reader) (*Artifact, error) {
	art := &Artifact{}

	// Read CreatedAt (8 bytes, uint64, little-endian)
	if err := binary.Read(r, binary.LittleEndian, &art.Header.CreatedAt); err != nil {
		return nil, fmt.Errorf("read created at: %w", err)
	}

	// Read compiler version (2-byte length + string)
	compiler, err := readString(r, "compiler version")
	if err != nil {
		return nil, err
	}
	art.Header.Compiler = compiler

	// Majors must agree. A newer major's staging decisions may not mean the
	// same thing to this build.
	tag := compilerTag(compiler)
	if !semver.IsValid(tag) {
		return nil, fmt.Errorf("invalid compiler version %q", compiler)
	}
	if semver.Major(tag) != semver.Major(CompilerVersion) {
		return nil, fmt.Errorf("artifact written by incompatible compiler %s (this build is %s)", compiler, CompilerVersion)
	}

	// Read target (2-byte length + string)
	target, err := readString(r, "target")
	if err != nil {
		return nil, err
	}
	art.Target = target

	return art, nil
}

// readBody reads the source map and the conversion report
func (rd *Reader) readBody(r io.Reader, art *Artifact) error {
	// Read mapping count (2 bytes, uint16, little-endian)
	var mappingCount uint16
	if err := binary.Read(r, binary.LittleEndian, &mappingCount); err != nil {
		if err == io.EOF {
			// Empty body, nothing was staged
			return nil
		}
		return fmt.Errorf("read mapping count: %w", err)
	}

	// Read each mapping
	if mappingCount > 0 {
		art.Mappings = make([]Mapping, mappingCount)
		for i := 0; i < int(mappingCount); i++ {
			m, err := rd.readMapping(r)
			if err != nil {
				return fmt.Errorf("read mapping %d: %w", i, err)
			}
			art.Mappings[i] = *m
		}
	}

	// Read outcome count (2 bytes, uint16, little-endian)
	var outcomeCount uint16
	if err := binary.Read(r, binary.LittleEndian, &outcomeCount); err != nil {
		return fmt.Errorf("read outcome count: %w", err)
	}

	// Read each outcome
	if outcomeCount > 0 {
		art.Report.Outcomes = make([]Outcome, outcomeCount)
		for i := 0; i < int(outcomeCount); i++ {
			o, err := rd.readOutcome(r)
			if err != nil {
				return fmt.Errorf("read outcome %d: %w", i, err)
			}
			art.Report.Outcomes[i] = *o
		}
	}

	return nil
}

// readMapping reads a single source-map entry
func (rd *Reader) readMapping(r io.Reader) (*Mapping, error) {
	m := &Mapping{}

	var err error
	if m.GeneratedFile, err = readString(r, "generated file"); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.GeneratedLine); err != nil {
		return nil, fmt.Errorf("read generated line: %w", err)
	}
	if m.Function, err = readString(r, "function name"); err != nil {
		return nil, err
	}
	if m.File, err = readString(r, "file"); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.Line); err != nil {
		return nil, fmt.Errorf("read line: %w", err)
	}
	if m.Source, err = readString(r, "source line"); err != nil {
		return nil, err
	}

	return m, nil
}

// readOutcome reads a single lowering outcome
func (rd *Reader) readOutcome(r io.Reader) (*Outcome, error) {
	o := &Outcome{}

	var err error
	if o.Statement, err = readString(r, "statement"); err != nil {
		return nil, err
	}
	if o.Function, err = readString(r, "function name"); err != nil {
		return nil, err
	}

	// Read strategy (1 byte)
	var code byte
	if err := binary.Read(r, binary.LittleEndian, &code); err != nil {
		return nil, fmt.Errorf("read strategy: %w", err)
	}
	strategy, err := strategyFromCode(code)
	if err != nil {
		return nil, err
	}
	o.Strategy = strategy

	if o.Reason, err = readString(r, "fallback reason"); err != nil {
		return nil, err
	}

	return o, nil
}

// readString reads a uint16 length-prefixed string
func readString(r io.Reader, fieldName string) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", fmt.Errorf("read %s length: %w", fieldName, err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", fieldName, err)
	}
	return string(buf), nil
}

// strategyFromCode maps a wire byte back to its Strategy
func strategyFromCode(code byte) (Strategy, error) {
	switch code {
	case strategyCodeGraph:
		return StrategyGraph, nil
	case strategyCodeFallback:
		return StrategyFallback, nil
	}
	return "", fmt.Errorf("unknown strategy code: 0x%02x", code)
}
