// Caninana
// Copyright (c) 2026, Caninana contributors

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caninana/caninana/fileanalyzer"
	"github.com/caninana/caninana/logging"
)

func TestLoadEngineBuildsEngineFromValidDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "signatures.json")
	content := `{"version":"1","signatures":[{"name":"Eicar","pattern":"X5O!","file_type":"any","severity":10}]}`
	if err := os.WriteFile(dbPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	logger := logging.Open(filepath.Join(t.TempDir(), "caninana.log"))
	defer logger.Close()

	e := loadEngine(dbPath, logger)
	result := e.Scan(strings.NewReader("contains X5O! marker"), fileanalyzer.FileInfo{})
	if !result.ThreatDetected {
		t.Fatalf("expected the loaded signature to fire, got %+v", result)
	}
}
