// Caninana
// Copyright (c) 2026, Caninana contributors

// Package cerrors defines the tagged error taxonomy shared across the
// scanning core. Components raise a *cerrors.Error so that callers (and
// language bindings built on top of this package) can branch on Kind instead
// of string-matching error messages.
package cerrors

import "fmt"

// Kind identifies the category of a core error.
type Kind int

const (
	// FileAccess covers a missing path, permission denial, a failed metadata
	// read, or a temp-file that could not be opened.
	FileAccess Kind = iota
	// DatabaseParse covers a signature database that is not valid JSON or is
	// missing the required top-level structure.
	DatabaseParse
	// Initialization covers a quarantine directory or ledger that could not
	// be created.
	Initialization
	// Quarantine covers any failure during quarantine or restore once the
	// pre-checks for that operation have already passed.
	Quarantine
)

func (k Kind) String() string {
	switch k {
	case FileAccess:
		return "FileAccessError"
	case DatabaseParse:
		return "DatabaseParseError"
	case Initialization:
		return "InitializationError"
	case Quarantine:
		return "QuarantineError"
	default:
		return "UnknownError"
	}
}

// Error is the tagged error value raised by the file analyzer, signature
// store, quarantine manager, and updater. The updater reports network and
// download failures as FileAccess and a downloaded database that fails
// validation as DatabaseParse; there is no separate kind for runtime
// failures.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}
