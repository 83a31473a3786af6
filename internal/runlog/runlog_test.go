package runlog

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

func TestLoggerAppendsTimestampedLines(t *testing.T) {
	root := t.TempDir()
	l := New(root, "run-1", "git.log")

	l.Log("[checkout] checkout develop [SUCCESS] [3ms]")
	l.Log("[merge] feature into develop [FAILED: conflict] [12ms]")

	data, err := os.ReadFile(filepath.Join(root, "runtime", "runs", "run-1", "git.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	linePattern := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z\] \[`)
	for _, line := range lines {
		if !linePattern.MatchString(line) {
			t.Errorf("line missing timestamp prefix: %q", line)
		}
	}
	if !strings.HasSuffix(lines[0], "[SUCCESS] [3ms]") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestNopLoggerWritesNothing(t *testing.T) {
	l := Nop()
	l.Log("discarded")
	if l.Path() != "" {
		t.Errorf("nop path = %q, want empty", l.Path())
	}

	var nilLogger *Logger
	nilLogger.Log("also discarded") // must not panic
}

func TestRunDir(t *testing.T) {
	got := RunDir("/work/proj", "run-9")
	want := filepath.Join("/work/proj", "runtime", "runs", "run-9")
	if got != want {
		t.Errorf("RunDir = %q, want %q", got, want)
	}
}

func TestErrorLogFormat(t *testing.T) {
	root := t.TempDir()
	e := NewErrorLog(root, "run-2")

	e.Record(errkind.Errorf(errkind.ProcessTimeout, "lint step exceeded 60s"))
	e.Record(errkind.Errorf(errkind.InvalidInput, "empty branch"))
	e.RecordCode("GIT_CONFLICT", true, "merge left 2 files conflicted")
	e.Record(nil)
	e.Record(errors.New("no kind attached"))

	data, err := os.ReadFile(filepath.Join(root, "runtime", "runs", "run-2", "errors.log"))
	if err != nil {
		t.Fatalf("read errors.log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	if !strings.Contains(lines[0], "PROCESS_TIMEOUT RECOVERABLE | ") {
		t.Errorf("recoverable line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "INVALID_INPUT FATAL | ") {
		t.Errorf("fatal line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "GIT_CONFLICT RECOVERABLE | merge left 2 files conflicted") {
		t.Errorf("explicit-code line = %q", lines[2])
	}
	if !strings.Contains(lines[3], "UNKNOWN FATAL | no kind attached") {
		t.Errorf("unknown-kind line = %q", lines[3])
	}
}
