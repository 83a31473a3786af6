// Package exec provides an interface for external command execution.
package exec

import (
	"context"
	"time"
)

// Request describes one command execution.
type Request struct {
	// Name is the command to run.
	Name string
	// Args are the command arguments.
	Args []string
	// Dir is the working directory; empty means the process default.
	Dir string
	// Env holds additional environment entries of form KEY=VALUE,
	// appended to the inherited environment.
	Env []string
	// Timeout bounds the execution; zero means no additional deadline.
	Timeout time.Duration
}

// Result captures the outcome of one command execution.
type Result struct {
	// ExitCode is the process exit code; -1 when the process did not run.
	ExitCode int
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
	// Duration is the wall-clock execution time.
	Duration time.Duration
}

// ProcessRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type ProcessRunner interface {
	// Run executes a command and returns its result. A non-zero exit code
	// is reported through both the result and a non-nil error; timeouts
	// surface as a recoverable errkind.ProcessTimeout.
	Run(ctx context.Context, req Request) (*Result, error)
}
