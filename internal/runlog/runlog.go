// Package runlog provides per-run append-only audit logs under
// runtime/runs/<run-id>/. Logging is best effort: failures to write never
// propagate to callers.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// RunDir returns the runtime directory for a run id.
func RunDir(root, runID string) string {
	return filepath.Join(root, "runtime", "runs", runID)
}

// Logger appends timestamped lines to a single log file within a run
// directory. A zero-value Logger is a no-op.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New creates a logger for the named file (e.g. "git.log") under the run
// directory, creating parent directories as needed. Returns a no-op logger
// when the directory cannot be created.
func New(root, runID, name string) *Logger {
	dir := RunDir(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Logger{}
	}
	return &Logger{path: filepath.Join(dir, name)}
}

// Nop returns a no-op logger for tests or when logging is disabled.
func Nop() *Logger {
	return &Logger{}
}

// Log appends one timestamped line. Best effort.
func (l *Logger) Log(format string, args ...interface{}) {
	if l == nil || l.path == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(f, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), msg)
}

// Path returns the log file path, or empty for a no-op logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// ErrorLog writes failure lines to runtime/runs/<run-id>/errors.log in the
// form "[timestamp] CODE RECOVERABLE|FATAL | message".
type ErrorLog struct {
	logger *Logger
}

// NewErrorLog creates the errors.log writer for a run.
func NewErrorLog(root, runID string) *ErrorLog {
	return &ErrorLog{logger: New(root, runID, "errors.log")}
}

// Record appends one failure line derived from the error's kind.
func (e *ErrorLog) Record(err error) {
	if e == nil || err == nil {
		return
	}
	sev := "FATAL"
	if errkind.IsRecoverable(err) {
		sev = "RECOVERABLE"
	}
	e.logger.Log("%s %s | %s", errkind.CodeOf(err), sev, err.Error())
}

// RecordCode appends one failure line with an explicit code and severity.
func (e *ErrorLog) RecordCode(code string, recoverable bool, message string) {
	if e == nil {
		return
	}
	sev := "FATAL"
	if recoverable {
		sev = "RECOVERABLE"
	}
	e.logger.Log("%s %s | %s", code, sev, message)
}
