// Caninana
// Copyright (c) 2026, Caninana contributors

package fileanalyzer

import (
	"github.com/vimeo/go-magic/magic"
)

// defaultClassifier is the TypeClassifier backed by libmagic via
// github.com/vimeo/go-magic, the same binding registry.MagicFromFile uses.
// Unlike MagicFromFile, which classifies by path, this classifies an
// in-memory sample so the caller controls exactly how much of the file is
// read before a verdict is needed.
type defaultClassifier struct{}

// Classify opens a fresh magic cookie per call, mirroring MagicFromFile's
// open/load/close-per-invocation style: the cookie is cheap relative to a
// full file scan and this keeps the classifier free of shared mutable
// state.
func (defaultClassifier) Classify(sample []byte) (string, error) {
	cookie := magic.Open(magic.MAGIC_MIME_TYPE | magic.MAGIC_ERROR)
	defer magic.Close(cookie)

	if ret := magic.Load(cookie, ""); ret != 0 {
		return "", nil
	}
	return magic.Buffer(cookie, sample), nil
}
