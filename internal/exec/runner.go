package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// ExecRunner implements ProcessRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its result.
func (r *ExecRunner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Name == "" {
		return nil, errkind.Errorf(errkind.InvalidInput, "command name is empty")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := osexec.CommandContext(runCtx, req.Name, req.Args...)
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return res, errkind.Errorf(errkind.ProcessTimeout, "%s timed out after %s", req.Name, req.Timeout)
		}
		return res, fmt.Errorf("%s %v: %w", req.Name, req.Args, err)
	}
	return res, nil
}

// Verify ExecRunner implements ProcessRunner at compile time.
var _ ProcessRunner = (*ExecRunner)(nil)
