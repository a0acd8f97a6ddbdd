// Caninana
// Copyright (c) 2026, Caninana contributors

// Package signature parses and indexes a signature database: an ordered
// sequence of Signature values plus a secondary index by target FileType.
// Grounded on the plain encoding/json, defaulted-fields style sampledb and
// uploader use throughout, and extended with github.com/buger/jsonparser
// for a cheap, allocation-light read of just the database's "version"
// field (used by the updater without parsing the full signature array).
package signature

import (
	"encoding/json"
	"os"

	"github.com/buger/jsonparser"

	"github.com/caninana/caninana/cerrors"
	"github.com/caninana/caninana/filetype"
)

// Signature is a named byte pattern with a target file type and severity.
// Identity is Name; duplicate names are permitted (multiple aliases for one
// pattern), but a scan's reported detections are deduplicated on Name.
type Signature struct {
	Name       string
	Pattern    []byte
	TargetType filetype.FileType
	Severity   uint8
}

type rawSignature struct {
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
	FileType string `json:"file_type"`
	Severity uint8  `json:"severity"`
}

// Store is the parsed, immutable-until-the-next-Load signature database:
// an ordered sequence of signatures plus a secondary index from target type
// to positions in that sequence.
type Store struct {
	signatures []Signature
	typeIndex  map[filetype.FileType][]int
}

// New returns an empty Store. Call Load to populate it.
func New() *Store {
	return &Store{typeIndex: make(map[filetype.FileType][]int)}
}

// Signatures returns the ordered signature sequence. The returned slice must
// not be mutated by callers; the Store considers it immutable until the
// next Load.
func (s *Store) Signatures() []Signature { return s.signatures }

// ByType returns the indices into Signatures() of every signature targeting
// the given type.
func (s *Store) ByType(t filetype.FileType) []int { return s.typeIndex[t] }

// Load parses the signature database at path and rebuilds the Store from
// scratch. On any failure the Store's previous contents (if any) are left
// untouched.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.Wrap(cerrors.FileAccess, "failed to open signature database: "+path, err)
	}
	return s.LoadBytes(data)
}

// LoadBytes parses raw JSON bytes as a signature database, for callers that
// already hold the document in memory (e.g. the updater validating a
// freshly-downloaded database before installing it).
func (s *Store) LoadBytes(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return cerrors.Wrap(cerrors.DatabaseParse, "signature database is not valid JSON", err)
	}
	rawSignatures, ok := top["signatures"]
	if !ok {
		return cerrors.New(cerrors.DatabaseParse,
			"signature database is malformed: missing 'signatures' array")
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(rawSignatures, &elements); err != nil {
		return cerrors.New(cerrors.DatabaseParse,
			"signature database is malformed: 'signatures' is not an array")
	}

	signatures := make([]Signature, 0, len(elements))
	typeIndex := make(map[filetype.FileType][]int)

	for _, element := range elements {
		var raw rawSignature
		raw.Name = "Unnamed Signature"
		raw.FileType = "any"
		if err := json.Unmarshal(element, &raw); err != nil {
			// Not a JSON object (or otherwise unparseable as one): skipped.
			continue
		}
		if raw.Name == "" {
			raw.Name = "Unnamed Signature"
		}
		if raw.Pattern == "" {
			continue
		}
		sig := Signature{
			Name:       raw.Name,
			Pattern:    []byte(raw.Pattern),
			TargetType: filetype.FromString(raw.FileType),
			Severity:   raw.Severity,
		}
		idx := len(signatures)
		signatures = append(signatures, sig)
		typeIndex[sig.TargetType] = append(typeIndex[sig.TargetType], idx)
	}

	s.signatures = signatures
	s.typeIndex = typeIndex
	return nil
}

// Version reads the top-level "version" field out of a signature database
// file without parsing the rest of the document, defaulting to "0" on any
// I/O or parse error (missing file, malformed JSON, missing key).
func Version(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "0"
	}
	return VersionFromBytes(data)
}

// VersionFromBytes is Version's in-memory counterpart.
func VersionFromBytes(data []byte) string {
	v, err := jsonparser.GetString(data, "version")
	if err != nil {
		return "0"
	}
	return v
}
