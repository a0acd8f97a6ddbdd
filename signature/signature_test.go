// Caninana
// Copyright (c) 2026, Caninana contributors

package signature

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caninana/caninana/filetype"
)

func TestLoadBasic(t *testing.T) {
	s := New()
	err := s.LoadBytes([]byte(`{
		"version": "1.0",
		"signatures": [
			{"name": "Eicar", "pattern": "X5O!", "file_type": "executable", "severity": 10},
			{"name": "", "pattern": "abc", "file_type": "bogus", "severity": 3},
			{"pattern": ""},
			"not an object",
			42,
			{"name": "NoPattern"}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	sigs := s.Signatures()
	if len(sigs) != 2 {
		t.Fatalf("expected 2 surviving signatures, got %d: %+v", len(sigs), sigs)
	}
	if sigs[0].Name != "Eicar" || sigs[0].TargetType != filetype.EXECUTABLE {
		t.Errorf("unexpected first signature: %+v", sigs[0])
	}
	if sigs[1].Name != "Unnamed Signature" || sigs[1].TargetType != filetype.UNKNOWN {
		t.Errorf("unexpected second signature: %+v", sigs[1])
	}

	unknownIdx := s.ByType(filetype.UNKNOWN)
	if len(unknownIdx) != 1 || unknownIdx[0] != 1 {
		t.Errorf("expected index 1 under UNKNOWN, got %v", unknownIdx)
	}
}

func TestLoadMalformedShape(t *testing.T) {
	s := New()
	if err := s.LoadBytes([]byte(`{"foo": "bar"}`)); err == nil {
		t.Fatal("expected DatabaseParseError for missing signatures array")
	}
	if err := s.LoadBytes([]byte(`{"signatures": "not-an-array"}`)); err == nil {
		t.Fatal("expected DatabaseParseError for non-array signatures")
	}
	if err := s.LoadBytes([]byte(`not json`)); err == nil {
		t.Fatal("expected DatabaseParseError for invalid JSON")
	}
}

func TestLoadFromFileTwiceIsEqual(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	content := `{"version":"1.0","signatures":[{"name":"A","pattern":"x","file_type":"any","severity":1}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s1 := New()
	if err := s1.Load(path); err != nil {
		t.Fatal(err)
	}
	s2 := New()
	if err := s2.Load(path); err != nil {
		t.Fatal(err)
	}
	a, b := s1.Signatures()[0], s2.Signatures()[0]
	if len(s1.Signatures()) != len(s2.Signatures()) ||
		a.Name != b.Name || string(a.Pattern) != string(b.Pattern) ||
		a.TargetType != b.TargetType || a.Severity != b.Severity {
		t.Errorf("expected equal Store state across repeated loads")
	}
}

func TestVersionDefaults(t *testing.T) {
	if got := Version("/nonexistent/path/db.json"); got != "0" {
		t.Errorf("expected default version 0 for missing file, got %q", got)
	}
	if got := VersionFromBytes([]byte("not json")); got != "0" {
		t.Errorf("expected default version 0 for malformed JSON, got %q", got)
	}
	if got := VersionFromBytes([]byte(`{"version":"2.3"}`)); got != "2.3" {
		t.Errorf("expected version 2.3, got %q", got)
	}
}
