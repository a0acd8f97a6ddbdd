// Caninana
// Copyright (c) 2026, Caninana contributors

package scancache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/caninana/caninana/fileanalyzer"
	"github.com/caninana/caninana/filetype"
	"github.com/caninana/caninana/scanresult"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "scancache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutThenGet(t *testing.T) {
	c := openTestCache(t)
	entry := Entry{
		FileInfo:  fileanalyzer.FileInfo{Type: filetype.EXECUTABLE, SHA256Hash: "deadbeef"},
		Result:    scanresult.Result{Status: scanresult.Complete},
		ScannedAt: time.Now(),
	}
	if err := c.Put(entry); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.FileInfo.SHA256Hash != "deadbeef" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestGetMissingIsNoError(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Get("nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestGetStaleEntryIsMiss(t *testing.T) {
	c := openTestCache(t)
	c.SetFreshnessWindow(time.Hour)
	entry := Entry{
		FileInfo:  fileanalyzer.FileInfo{SHA256Hash: "stale"},
		ScannedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := c.Put(entry); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Get("stale")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected stale entry to be treated as a miss")
	}
}

func TestPutOverwritesPriorEntry(t *testing.T) {
	c := openTestCache(t)
	first := Entry{FileInfo: fileanalyzer.FileInfo{SHA256Hash: "h"}, Result: scanresult.Result{Status: scanresult.Complete}, ScannedAt: time.Now()}
	second := Entry{FileInfo: fileanalyzer.FileInfo{SHA256Hash: "h"}, Result: scanresult.Result{Status: scanresult.TimeoutError, ThreatDetected: true}, ScannedAt: time.Now()}

	if err := c.Put(first); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get("h")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.Result.Status != scanresult.TimeoutError {
		t.Fatalf("expected overwritten entry, got %+v", got)
	}
}
