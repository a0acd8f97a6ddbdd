// Caninana
// Copyright (c) 2026, Caninana contributors

package sampleupload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/caninana/caninana/quarantineentry"
)

func TestBacklogPatternMatchesUUID(t *testing.T) {
	if !backlogPattern.MatchString("550e8400-e29b-41d4-a716-446655440000") {
		t.Fatal("expected a UUID-shaped name to match the backlog pattern")
	}
	if backlogPattern.MatchString("ledger.json") {
		t.Fatal("expected ledger.json to not match the backlog pattern")
	}
}

func TestNewCreatesScratchDir(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	u, err := New(Credentials{Endpoint: "127.0.0.1:0", BucketName: "samples"}, scratch, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer u.Stop()

	if _, err := os.Stat(scratch); err != nil {
		t.Fatalf("expected scratch dir to be created: %v", err)
	}
}

func TestEnqueueCopiesFileIntoScratchDir(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	u, err := New(Credentials{Endpoint: "127.0.0.1:0", BucketName: "samples"}, scratch, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer u.Stop()

	src := filepath.Join(t.TempDir(), "sample")
	if err := os.WriteFile(src, []byte("neutralized content"), 0o600); err != nil {
		t.Fatal(err)
	}

	entry := quarantineentry.Entry{
		QuarantineID:   "test-id",
		OriginalPath:   "/tmp/evil.exe",
		QuarantineDate: "2026-08-02T00:00:00Z",
		ThreatName:     "Eicar",
	}
	if err := u.Enqueue(entry, src); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(scratch, "test-id"))
	if err != nil {
		t.Fatalf("expected scratch copy to exist before upload completes: %v", err)
	}
	if string(data) != "neutralized content" {
		t.Fatalf("unexpected scratch content: %q", data)
	}
}

func TestEnqueueWritesCompanionEntryFile(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "scratch")
	u, err := New(Credentials{Endpoint: "127.0.0.1:0", BucketName: "samples"}, scratch, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer u.Stop()

	src := filepath.Join(t.TempDir(), "sample")
	if err := os.WriteFile(src, []byte("neutralized content"), 0o600); err != nil {
		t.Fatal(err)
	}

	entry := quarantineentry.Entry{
		QuarantineID:   "test-id",
		OriginalPath:   "/tmp/evil.exe",
		QuarantineDate: "2026-08-02T00:00:00Z",
		ThreatName:     "Eicar",
	}
	if err := u.Enqueue(entry, src); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(scratch, "test-id"+entrySuffix))
	if err != nil {
		t.Fatalf("expected companion entry file to exist: %v", err)
	}
	var got quarantineentry.Entry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got != entry {
		t.Fatalf("expected companion entry file to carry the quarantine entry, got %+v", got)
	}
}
