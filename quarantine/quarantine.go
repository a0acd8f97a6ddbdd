// Caninana
// Copyright (c) 2026, Caninana contributors

// Package quarantine isolates files that the signature engine flagged as
// threats: it moves them into a dedicated directory, obfuscates their
// content so they cannot be executed or opened accidentally, and tracks
// them in a JSON ledger that supports later restoration. Grounded on
// quarantine_manager.cpp.
package quarantine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caninana/caninana/cerrors"
	"github.com/caninana/caninana/engine"
	"github.com/caninana/caninana/logging"
	"github.com/caninana/caninana/quarantineentry"
	"github.com/caninana/caninana/sampleupload"
)

const (
	ledgerFileName  = "ledger.json"
	quarantineDir   = "quarantine"
	defaultRootName = "caninana_quarantine"
	xorChunkSize    = 4096
)

var xorKey = []byte("CANINANA")

// Entry is a single ledger record for one quarantined file.
type Entry = quarantineentry.Entry

// Manager owns a quarantine directory and its ledger.
type Manager struct {
	mu             sync.Mutex
	quarantinePath string
	ledgerPath     string
	logger         *logging.Logger
	uploader       *sampleupload.Uploader
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithUploader attaches a best-effort sample uploader: on a successful
// Quarantine call, the neutralized content is also enqueued for offload.
// A nil or unset uploader disables this entirely.
func WithUploader(u *sampleupload.Uploader) Option {
	return func(m *Manager) { m.uploader = u }
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New resolves the quarantine root directory and initializes it.
// rootPath, if non-empty, is used directly as the parent of the
// "quarantine" subdirectory. Otherwise the manager falls back to
// "$HOME/.caninana/quarantine", and finally to
// "./caninana_quarantine/quarantine" if no home directory can be
// determined.
func New(rootPath string, opts ...Option) (*Manager, error) {
	var quarantinePath string
	switch {
	case rootPath != "":
		quarantinePath = filepath.Join(rootPath, quarantineDir)
	default:
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			quarantinePath = filepath.Join(defaultRootName, quarantineDir)
		} else {
			quarantinePath = filepath.Join(home, ".caninana", quarantineDir)
		}
	}

	m := &Manager{
		quarantinePath: quarantinePath,
		ledgerPath:     filepath.Join(quarantinePath, ledgerFileName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}

	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) init() error {
	if err := os.MkdirAll(m.quarantinePath, 0o750); err != nil {
		return cerrors.Wrap(cerrors.Initialization, "failed to create quarantine directory '"+m.quarantinePath+"'", err)
	}
	if _, err := os.Stat(m.ledgerPath); os.IsNotExist(err) {
		if werr := os.WriteFile(m.ledgerPath, []byte("[]\n"), 0o640); werr != nil {
			return cerrors.Wrap(cerrors.Initialization, "failed to create empty metadata ledger at: "+m.ledgerPath, werr)
		}
	}
	return nil
}

// Quarantine moves path into the quarantine directory, obfuscates its
// content, and appends an Entry to the ledger. It returns the newly
// created Entry. On any failure past the initial move, Quarantine attempts
// to restore the file to its original location before returning an error.
func (m *Manager) Quarantine(path string, result engine.ScanResult) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, cerrors.Wrap(cerrors.FileAccess, "quarantine failed, could not resolve path: "+path, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return Entry{}, cerrors.Wrap(cerrors.FileAccess, "quarantine failed, file does not exist: "+absPath, err)
	}

	threatName := "UnknownThreat"
	if len(result.DetectedSignatures) > 0 {
		threatName = result.DetectedSignatures[0]
	}

	entry := Entry{
		QuarantineID:   uuid.NewString(),
		OriginalPath:   absPath,
		QuarantineDate: time.Now().UTC().Format(time.RFC3339),
		ThreatName:     threatName,
	}
	quarantinedPath := filepath.Join(m.quarantinePath, entry.QuarantineID)

	if err := os.Rename(absPath, quarantinedPath); err != nil {
		return Entry{}, cerrors.Wrap(cerrors.Quarantine, "quarantine failed, could not move file '"+absPath+"' to '"+quarantinedPath+"'", err)
	}

	if err := xorFileInPlace(quarantinedPath); err != nil {
		_ = os.Rename(quarantinedPath, absPath)
		return Entry{}, cerrors.Wrap(cerrors.Quarantine, "quarantine failed, could not neutralize file content for ID: "+entry.QuarantineID, err)
	}

	entries, _ := m.readLedger()
	entries = append(entries, entry)
	if err := m.writeLedger(entries); err != nil {
		// Critical: the file is quarantined but not tracked. Attempt to
		// de-neutralize and move it back.
		_ = xorFileInPlace(quarantinedPath)
		_ = os.Rename(quarantinedPath, absPath)
		return Entry{}, cerrors.Wrap(cerrors.Quarantine, "quarantine failed, could not record entry for ID: "+entry.QuarantineID, err)
	}

	m.logger.Warning("QuarantineManager", "File quarantined. Original path: "+entry.OriginalPath+", ID: "+entry.QuarantineID)

	if m.uploader != nil {
		if err := m.uploader.Enqueue(entry, quarantinedPath); err != nil {
			m.logger.Warning("QuarantineManager", "failed to enqueue sample upload for ID "+entry.QuarantineID+": "+err.Error())
		}
	}

	return entry, nil
}

// Restore reverses a prior Quarantine call: it de-neutralizes the stored
// file, moves it back to its recorded original path, and removes the
// entry from the ledger.
func (m *Manager) Restore(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, _ := m.readLedger()
	idx := -1
	for i, e := range entries {
		if e.QuarantineID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return cerrors.New(cerrors.Quarantine, "restore failed, ID not found in ledger: "+id)
	}
	entry := entries[idx]
	quarantinedPath := filepath.Join(m.quarantinePath, entry.QuarantineID)

	if _, err := os.Stat(quarantinedPath); err != nil {
		return cerrors.Wrap(cerrors.Quarantine, "restore failed, file missing from storage. ID: "+id, err)
	}

	if err := xorFileInPlace(quarantinedPath); err != nil {
		return cerrors.Wrap(cerrors.Quarantine, "restore failed, could not de-neutralize file. ID: "+id, err)
	}

	if parent := filepath.Dir(entry.OriginalPath); parent != "" {
		_ = os.MkdirAll(parent, 0o750)
	}
	if err := os.Rename(quarantinedPath, entry.OriginalPath); err != nil {
		_ = xorFileInPlace(quarantinedPath)
		return cerrors.Wrap(cerrors.Quarantine, "restore failed, could not move file to original location '"+entry.OriginalPath+"'", err)
	}

	remaining := append(append([]Entry{}, entries[:idx]...), entries[idx+1:]...)
	if err := m.writeLedger(remaining); err != nil {
		m.logger.Critical("QuarantineManager", "Restore succeeded, but failed to update metadata ledger for ID: "+id)
	}

	m.logger.Info("QuarantineManager", "File restored. ID: "+id+", Path: "+entry.OriginalPath)
	return nil
}

// List returns every currently quarantined entry. A corrupt or unreadable
// ledger yields an empty list rather than an error.
func (m *Manager) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, _ := m.readLedger()
	return entries
}

func (m *Manager) readLedger() ([]Entry, error) {
	data, err := os.ReadFile(m.ledgerPath)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Manager) writeLedger(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.ledgerPath, data, 0o640)
}

// xorFileInPlace XORs a file's content against the repeating quarantine
// key, in 4 KiB chunks, reading and rewriting each chunk in place. XOR is
// its own inverse, so the same function neutralizes and restores content.
func xorFileInPlace(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, xorChunkSize)
	keyIndex := 0
	var offset int64

	for {
		n, rerr := f.ReadAt(buf, offset)
		if n > 0 {
			for i := 0; i < n; i++ {
				buf[i] ^= xorKey[keyIndex]
				keyIndex = (keyIndex + 1) % len(xorKey)
			}
			if _, werr := f.WriteAt(buf[:n], offset); werr != nil {
				return werr
			}
			offset += int64(n)
		}
		if rerr != nil {
			break
		}
	}
	return nil
}
