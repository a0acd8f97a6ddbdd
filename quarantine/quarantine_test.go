// Caninana
// Copyright (c) 2026, Caninana contributors

package quarantine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caninana/caninana/engine"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInitCreatesDirectoryAndEmptyLedger(t *testing.T) {
	root := t.TempDir()
	m, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(m.quarantinePath); err != nil {
		t.Fatalf("expected quarantine dir to exist: %v", err)
	}
	entries := m.List()
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %v", entries)
	}
}

func TestQuarantineThenRestoreRoundTrips(t *testing.T) {
	m := newTestManager(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	content := []byte("this is the original file content")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	entry, err := m.Quarantine(src, engine.ScanResult{ThreatDetected: true, DetectedSignatures: []string{"Eicar"}, MaxSeverity: 10})
	if err != nil {
		t.Fatal(err)
	}
	if entry.ThreatName != "Eicar" {
		t.Fatalf("expected threat name Eicar, got %s", entry.ThreatName)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("expected original file to be gone after quarantine")
	}

	entries := m.List()
	if len(entries) != 1 || entries[0].QuarantineID != entry.QuarantineID {
		t.Fatalf("expected ledger to contain the new entry, got %v", entries)
	}

	if err := m.Restore(entry.QuarantineID); err != nil {
		t.Fatal(err)
	}

	restored, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("expected restored file at original path: %v", err)
	}
	if string(restored) != string(content) {
		t.Fatalf("expected byte-identical restore, got %q", restored)
	}
	if len(m.List()) != 0 {
		t.Fatal("expected ledger to be empty after restore")
	}
}

func TestQuarantineNeutralizesContent(t *testing.T) {
	m := newTestManager(t)
	src := filepath.Join(t.TempDir(), "sample.bin")
	content := []byte("recognizable plaintext marker")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	entry, err := m.Quarantine(src, engine.ScanResult{DetectedSignatures: []string{"X"}})
	if err != nil {
		t.Fatal(err)
	}

	stored, err := os.ReadFile(filepath.Join(m.quarantinePath, entry.QuarantineID))
	if err != nil {
		t.Fatal(err)
	}
	if string(stored) == string(content) {
		t.Fatal("expected quarantined content to be obfuscated, not stored verbatim")
	}
}

func TestQuarantineMissingFileFails(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Quarantine(filepath.Join(t.TempDir(), "nonexistent"), engine.ScanResult{}); err == nil {
		t.Fatal("expected error quarantining a nonexistent file")
	}
}

func TestQuarantineDefaultThreatNameWhenNoSignatures(t *testing.T) {
	m := newTestManager(t)
	src := filepath.Join(t.TempDir(), "unknown.bin")
	if err := os.WriteFile(src, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	entry, err := m.Quarantine(src, engine.ScanResult{})
	if err != nil {
		t.Fatal(err)
	}
	if entry.ThreatName != "UnknownThreat" {
		t.Fatalf("expected default threat name, got %s", entry.ThreatName)
	}
}

func TestRestoreUnknownIDFails(t *testing.T) {
	m := newTestManager(t)
	if err := m.Restore("00000000-0000-0000-0000-000000000000"); err == nil {
		t.Fatal("expected error restoring an unknown ID")
	}
}

func TestXorFileInPlaceIsSelfInverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	original := make([]byte, xorChunkSize*2+37)
	for i := range original {
		original[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, original, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := xorFileInPlace(path); err != nil {
		t.Fatal(err)
	}
	obfuscated, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(obfuscated) == string(original) {
		t.Fatal("expected obfuscated content to differ from original")
	}

	if err := xorFileInPlace(path); err != nil {
		t.Fatal(err)
	}
	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != string(original) {
		t.Fatal("expected double XOR to restore the original content")
	}
}
