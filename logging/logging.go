// Caninana
// Copyright (c) 2026, Caninana contributors

// Package logging provides the process-wide audit sink used by every
// component of the scanning core. It wraps sirupsen/logrus the way
// plugins/yarascanner's yLogger does, but pins the rendered line format to
// a fixed "[timestamp] [level] [component] message" layout and adds an
// explicit mutex so concurrent writers never interleave a partial line.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Level is one of the four severities the core speaks.
type Level int

const (
	// INFO reports routine, expected outcomes.
	INFO Level = iota
	// WARNING reports a recoverable anomaly (e.g. a file was quarantined).
	WARNING
	// ERROR reports a failed operation (e.g. a scan timed out).
	ERROR
	// CRITICAL reports a detected threat, or a failure that leaves the
	// system in a degraded but not incorrect state (e.g. a ledger rewrite
	// failed after a restore).
	CRITICAL
)

func (l Level) String() string {
	switch l {
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// lineFormatter renders "[<local-timestamp>] [<LEVEL>] [<component>] <msg>\n".
type lineFormatter struct{}

func (lineFormatter) Format(entry *log.Entry) ([]byte, error) {
	levelStr, _ := entry.Data["caninana_level"].(string)
	if levelStr == "" {
		levelStr = "INFO"
	}
	component, _ := entry.Data["component"].(string)
	line := fmt.Sprintf("[%s] [%s] [%s] %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), levelStr, component, entry.Message)
	return []byte(line), nil
}

// Logger is the mutex-guarded, append-only sink. Its zero value is not
// usable; construct one with Open.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	logger *log.Logger
}

// DefaultPath returns the user-data-directory log path used when no
// explicit path is given: "$HOME/.caninana/caninana.log" or its platform
// equivalent. It falls back to the current directory if no home directory
// can be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "caninana.log")
	}
	return filepath.Join(home, ".caninana", "caninana.log")
}

// Open opens (creating as needed) an append-mode sink at path. If the file
// cannot be opened, the Logger degrades to the process's standard error
// without returning an error: logging must never be the reason a scan
// fails.
func Open(path string) *Logger {
	l := &Logger{logger: log.New()}
	l.logger.SetFormatter(lineFormatter{})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr == nil {
			l.file = f
			l.logger.SetOutput(f)
			return l
		}
	}
	l.logger.SetOutput(os.Stderr)
	return l
}

// OpenDefault opens the logger at DefaultPath().
func OpenDefault() *Logger {
	return Open(DefaultPath())
}

// Log appends a single line to the sink. Concurrent calls from different
// goroutines never interleave: the whole format-and-write sequence is
// guarded by mu.
func (l *Logger) Log(level Level, component, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.WithFields(log.Fields{
		"caninana_level": level.String(),
		"component":      component,
	}).Log(toLogrusLevel(level), message)
}

func (l *Logger) Info(component, message string)     { l.Log(INFO, component, message) }
func (l *Logger) Warning(component, message string)  { l.Log(WARNING, component, message) }
func (l *Logger) Error(component, message string)    { l.Log(ERROR, component, message) }
func (l *Logger) Critical(component, message string) { l.Log(CRITICAL, component, message) }

func toLogrusLevel(level Level) log.Level {
	switch level {
	case INFO:
		return log.InfoLevel
	case WARNING:
		return log.WarnLevel
	case ERROR, CRITICAL:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Close flushes and closes the underlying sink, if it owns a file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Writer exposes the raw sink, e.g. for a caller that wants to tee other
// output to the same destination.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns a process-wide Logger, opened lazily on first use against
// DefaultPath(). Components that are not explicitly handed a *Logger use
// this one, while still allowing explicit dependency injection in tests.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = OpenDefault()
	})
	return defaultLog
}
