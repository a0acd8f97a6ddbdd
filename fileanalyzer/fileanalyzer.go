// Caninana
// Copyright (c) 2026, Caninana contributors

// Package fileanalyzer streams a file once (plus a small initial peek) to
// produce the FileInfo that drives signature selection: type, size,
// extension, and a SHA-256 content fingerprint. It is grounded on
// registry/util.go's CalculateBasicHashes and MagicFromFile, adapted to a
// single SHA-256 digest plus in-memory magic classification.
package fileanalyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caninana/caninana/cerrors"
	"github.com/caninana/caninana/filetype"
)

const (
	peekSize  = 8192
	chunkSize = 8192
)

// emptySHA256 is the canonical SHA-256 digest of the empty byte string.
const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// FileInfo is the immutable result of analyzing a file. Once produced it is
// never mutated; engine.Engine only reads it.
type FileInfo struct {
	Type       filetype.FileType
	Extension  string
	Size       uint64
	SHA256Hash string
}

// TypeClassifier turns an initial byte sample into a MIME-like description
// string, the same contract libmagic exposes. The default implementation is
// backed by github.com/vimeo/go-magic.
type TypeClassifier interface {
	Classify(sample []byte) (string, error)
}

// Hasher computes a streaming content digest. The default implementation
// wraps crypto/sha256.
type Hasher interface {
	io.Writer
	SumHex() string
}

type sha256Hasher struct {
	h interface {
		io.Writer
		Sum([]byte) []byte
	}
}

// NewSHA256Hasher returns the default Hasher capability.
func NewSHA256Hasher() Hasher {
	return &sha256Hasher{h: sha256.New()}
}

func (s *sha256Hasher) Write(p []byte) (int, error) { return s.h.Write(p) }
func (s *sha256Hasher) SumHex() string              { return hex.EncodeToString(s.h.Sum(nil)) }

// Analyzer produces FileInfo values for paths on disk.
type Analyzer struct {
	classifier TypeClassifier
	newHasher  func() Hasher
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClassifier overrides the default magic-based TypeClassifier.
func WithClassifier(c TypeClassifier) Option {
	return func(a *Analyzer) { a.classifier = c }
}

// WithHasher overrides the default SHA-256 Hasher factory.
func WithHasher(newHasher func() Hasher) Option {
	return func(a *Analyzer) { a.newHasher = newHasher }
}

// New returns an Analyzer using the default magic classifier and SHA-256
// hasher unless overridden by opts.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier: defaultClassifier{},
		newHasher:  NewSHA256Hasher,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reads metadata and content of path to produce a FileInfo. It opens
// the file once and reads it in two sequential passes: first to peek the
// first 8 KiB for type classification, then (rewound) to stream the full
// content through the hasher. Memory use is bounded by chunkSize regardless of file size.
func (a *Analyzer) Analyze(path string) (FileInfo, error) {
	var info FileInfo

	st, err := os.Stat(path)
	if err != nil {
		return info, cerrors.Wrap(cerrors.FileAccess, "failed to get file size for "+path, err)
	}
	info.Size = uint64(st.Size())
	info.Extension = filepath.Ext(path)

	if info.Size == 0 {
		info.Type = filetype.UNKNOWN
		info.SHA256Hash = emptySHA256
		return info, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return info, cerrors.Wrap(cerrors.FileAccess, "failed to open file for analysis: "+path, err)
	}
	defer f.Close()

	peek := make([]byte, peekSize)
	n, err := io.ReadFull(f, peek)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return info, cerrors.Wrap(cerrors.FileAccess, "failed to read file for analysis: "+path, err)
	}
	info.Type = a.identifyType(peek[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, cerrors.Wrap(cerrors.FileAccess, "failed to rewind file for analysis: "+path, err)
	}
	hash, err := a.hashStream(f)
	if err != nil {
		return info, cerrors.Wrap(cerrors.FileAccess, "failed to hash file: "+path, err)
	}
	info.SHA256Hash = hash

	return info, nil
}

func (a *Analyzer) identifyType(sample []byte) filetype.FileType {
	if len(sample) == 0 {
		return filetype.UNKNOWN
	}
	desc, err := a.classifier.Classify(sample)
	if err != nil || desc == "" {
		return filetype.UNKNOWN
	}
	switch {
	case containsAny(desc, "executable", "x-dosexec", "x-pie-executable", "x-elf"):
		return filetype.EXECUTABLE
	case containsAny(desc, "x-python", "x-shellscript"):
		return filetype.SCRIPT
	case containsAny(desc, "pdf", "word", "rtf"):
		return filetype.DOCUMENT
	case containsAny(desc, "zip", "rar", "x-7z-compressed", "x-tar"):
		return filetype.ARCHIVE
	case strings.HasPrefix(desc, "image/"):
		return filetype.IMAGE
	default:
		return filetype.UNKNOWN
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (a *Analyzer) hashStream(r io.Reader) (string, error) {
	h := a.newHasher()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return h.SumHex(), nil
}
