// Caninana
// Copyright (c) 2026, Caninana contributors

// Package scancache records the most recent scan verdict for a given
// content hash in a bbolt-backed store, so that unchanged content is not
// rescanned within a freshness window. Grounded directly on
// sampledb/db.go's bucket-per-database, JSON-encoded-value pattern, and on
// registry.PluginIterator's rescanTimeframe short-circuit.
package scancache

import (
	"encoding/json"
	"time"

	bolt "github.com/etcd-io/bbolt"

	"github.com/caninana/caninana/fileanalyzer"
	"github.com/caninana/caninana/scanresult"
)

const bucketName = "SCANS"

// DefaultFreshnessWindow mirrors registry's rescanTimeframe default of 72
// hours.
const DefaultFreshnessWindow = 72 * time.Hour

// Entry is the cached record for one content hash.
type Entry struct {
	FileInfo  fileanalyzer.FileInfo
	Result    scanresult.Result
	ScannedAt time.Time
}

// Cache is a bbolt-backed map from SHA-256 content hash to the most recent
// Entry for that content.
type Cache struct {
	db              *bolt.DB
	freshnessWindow time.Duration
}

// Open opens (creating as needed) the bbolt database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, freshnessWindow: DefaultFreshnessWindow}, nil
}

// SetFreshnessWindow overrides DefaultFreshnessWindow.
func (c *Cache) SetFreshnessWindow(d time.Duration) { c.freshnessWindow = d }

// Close flushes and closes the underlying bbolt handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached Entry for hash, if present and not older than the
// freshness window. The second return value is false in every other case
// (absent, stale, or unreadable).
func (c *Cache) Get(hash string) (Entry, bool, error) {
	var entry Entry
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(hash))
		if data == nil {
			return nil
		}
		if jerr := json.Unmarshal(data, &entry); jerr != nil {
			return jerr
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	if !found {
		return Entry{}, false, nil
	}
	if time.Since(entry.ScannedAt) > c.freshnessWindow {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put upserts the Entry for its FileInfo's content hash.
func (c *Cache) Put(entry Entry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, berr := tx.CreateBucketIfNotExists([]byte(bucketName))
		if berr != nil {
			return berr
		}
		return bucket.Put([]byte(entry.FileInfo.SHA256Hash), encoded)
	})
}
