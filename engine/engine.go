// Caninana
// Copyright (c) 2026, Caninana contributors

// Package engine selects candidate signatures for a file's type, drives the
// Aho-Corasick matcher against its content, and aggregates the result into
// a ScanResult. Grounded on signature_engine.cpp's Scan method.
package engine

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/caninana/caninana/cerrors"
	"github.com/caninana/caninana/fileanalyzer"
	"github.com/caninana/caninana/filetype"
	"github.com/caninana/caninana/logging"
	"github.com/caninana/caninana/matcher"
	"github.com/caninana/caninana/monitor"
	"github.com/caninana/caninana/scancache"
	"github.com/caninana/caninana/scanresult"
	"github.com/caninana/caninana/signature"
)

// ScanTimeout is the fixed per-scan deadline enforced against the matcher.
const ScanTimeout = 30 * time.Second

// timeoutSignatureName is the synthetic detection name reported when a scan
// times out, in place of any real signature name.
const timeoutSignatureName = "Error.ScanTimeoutExceeded"

// timeoutSeverity is the fixed severity reported on a timed-out scan.
const timeoutSeverity = 8

// Status is the outcome of a single scan.
type Status = scanresult.Status

const (
	// Complete means the scan finished without the deadline firing.
	Complete = scanresult.Complete
	// TimeoutError means the deadline fired before EOF was reached.
	TimeoutError = scanresult.TimeoutError
)

// ScanResult is the outcome of Engine.Scan.
type ScanResult = scanresult.Result

// Engine drives signature selection and matching against a signature.Store.
type Engine struct {
	store  *signature.Store
	logger *logging.Logger
}

// New returns an Engine over the given store, logging through logger (or
// logging.Default() if nil).
func New(store *signature.Store, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Scan matches the content read from r against every signature whose
// target type is info.Type or UNKNOWN ("applies to any"), enforcing
// ScanTimeout. It never returns an error: a timeout surfaces as a
// TIMEOUT_ERROR-status ScanResult, and a stream read failure is logged and
// yields a clean COMPLETE-status ScanResult.
func (e *Engine) Scan(r io.Reader, info fileanalyzer.FileInfo) ScanResult {
	candidates := e.collectCandidates(info.Type)

	if len(candidates) == 0 {
		e.logger.Info("SignatureEngine", "Scan completed (no relevant signatures).")
		return ScanResult{Status: Complete}
	}

	automaton := matcher.Build(candidates)
	mon := monitor.New(nil)
	mon.Start()

	timedOut, matched, err := automaton.Scan(r, mon, ScanTimeout)
	if err != nil {
		// A stream read failure outside of the timeout path: treat it the
		// same as a clean-but-incomplete scan rather than inventing a new
		// error channel.
		e.logger.Error("SignatureEngine", "Scan aborted: "+err.Error())
		return ScanResult{Status: Complete}
	}

	if timedOut {
		e.logger.Error("SignatureEngine", "Scan timed out.")
		return ScanResult{
			Status:             TimeoutError,
			ThreatDetected:     true,
			DetectedSignatures: []string{timeoutSignatureName},
			MaxSeverity:        timeoutSeverity,
		}
	}

	if len(matched) == 0 {
		e.logger.Info("SignatureEngine", "Scan completed (clean).")
		return ScanResult{Status: Complete}
	}

	result := ScanResult{Status: Complete, ThreatDetected: true}
	seen := make(map[string]bool)
	// matched is unordered (a set union over the failure chain); walk the
	// candidate list instead, in its original order, and pick up any
	// signature present in matched. Signature pointers are shared between
	// candidates and matched (both trace back to the same backing slice),
	// so plain pointer identity is enough to test membership.
	matchedSet := make(map[*signature.Signature]bool, len(matched))
	for _, m := range matched {
		matchedSet[m] = true
	}
	for _, cand := range candidates {
		if !matchedSet[cand] || seen[cand.Name] {
			continue
		}
		seen[cand.Name] = true
		result.DetectedSignatures = append(result.DetectedSignatures, cand.Name)
		if cand.Severity > result.MaxSeverity {
			result.MaxSeverity = cand.Severity
		}
	}

	e.logger.Critical("SignatureEngine", "Threat detected. Signatures: ["+strings.Join(result.DetectedSignatures, ", ")+"]")
	return result
}

// ScanPath is a convenience wrapper around Scan: it analyzes the file at
// path, consults cache by content hash, and only drives the matcher if the
// cache has no fresh verdict for that hash. A nil cache disables this
// short-circuit entirely. On a miss, the freshly computed verdict is
// recorded back into cache before returning.
func (e *Engine) ScanPath(path string, cache *scancache.Cache) (ScanResult, error) {
	info, err := fileanalyzer.New().Analyze(path)
	if err != nil {
		return ScanResult{}, err
	}

	if cache != nil {
		if entry, hit, _ := cache.Get(info.SHA256Hash); hit {
			return entry.Result, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return ScanResult{}, cerrors.Wrap(cerrors.FileAccess, "failed to open file for scanning: "+path, err)
	}
	defer f.Close()

	result := e.Scan(f, info)

	if cache != nil {
		_ = cache.Put(scancache.Entry{FileInfo: info, Result: result, ScannedAt: time.Now()})
	}

	return result, nil
}

func (e *Engine) collectCandidates(t filetype.FileType) []*signature.Signature {
	sigs := e.store.Signatures()
	added := make(map[int]bool)
	var candidates []*signature.Signature

	for _, idx := range e.store.ByType(t) {
		if !added[idx] {
			added[idx] = true
			candidates = append(candidates, &sigs[idx])
		}
	}
	if t != filetype.UNKNOWN {
		for _, idx := range e.store.ByType(filetype.UNKNOWN) {
			if !added[idx] {
				added[idx] = true
				candidates = append(candidates, &sigs[idx])
			}
		}
	}
	return candidates
}
