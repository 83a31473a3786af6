// Package errkind defines the typed error categories surfaced by the core.
// Internal handlers return these kinds wrapped with context; public
// boundaries translate them into result values.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind struct {
	code        string
	recoverable bool
}

// Error implements the error interface.
func (k *Kind) Error() string { return k.code }

// Code returns the machine-readable category code.
func (k *Kind) Code() string { return k.code }

// Recoverable reports whether a retry may succeed for this category.
func (k *Kind) Recoverable() bool { return k.recoverable }

// Error categories surfaced by the core.
var (
	// InvalidInput indicates a malformed or missing required argument.
	InvalidInput = &Kind{"INVALID_INPUT", false}

	// DecompositionError wraps decomposer failures surfaced to the manager.
	DecompositionError = &Kind{"DECOMPOSITION_ERROR", false}
	// ParseError indicates the adapter response could not be parsed.
	ParseError = &Kind{"PARSE_ERROR", false}
	// ValidationError indicates a decomposed entry failed validation.
	ValidationError = &Kind{"VALIDATION_ERROR", false}
	// InsufficientSubtasks indicates fewer sub-tasks than the configured minimum.
	InsufficientSubtasks = &Kind{"INSUFFICIENT_SUBTASKS", false}

	// AIError indicates an adapter call failed.
	AIError = &Kind{"AI_ERROR", true}
	// AdapterConnectionError indicates the adapter backend is unreachable.
	AdapterConnectionError = &Kind{"ADAPTER_CONNECTION_ERROR", true}
	// AdapterTimeout indicates the adapter call timed out.
	AdapterTimeout = &Kind{"ADAPTER_TIMEOUT", true}
	// AdapterFallback indicates a fallback adapter was used.
	AdapterFallback = &Kind{"ADAPTER_FALLBACK", true}

	// WorkerNotFound indicates an unknown worker id.
	WorkerNotFound = &Kind{"WORKER_NOT_FOUND", false}
	// NoCurrentTask indicates a worker has no active sub-task.
	NoCurrentTask = &Kind{"NO_CURRENT_TASK", false}
	// AssignmentError indicates a sub-task could not be assigned.
	AssignmentError = &Kind{"ASSIGNMENT_ERROR", true}
	// CommunicationError indicates a bus send or poll failed.
	CommunicationError = &Kind{"COMMUNICATION_ERROR", true}

	// GitConflict indicates an unresolved merge conflict.
	GitConflict = &Kind{"GIT_CONFLICT", true}
	// KnownHostsInvalid indicates host-key validation failed.
	KnownHostsInvalid = &Kind{"KNOWN_HOSTS_INVALID", false}
	// MergeRejectedProtected indicates a direct merge into a protected branch.
	MergeRejectedProtected = &Kind{"MERGE_REJECTED_PROTECTED", false}
	// PRNotApproved indicates a merge attempt on an un-approved pull request.
	PRNotApproved = &Kind{"PR_NOT_APPROVED", false}
	// PRNotFound indicates an unknown pull request id.
	PRNotFound = &Kind{"PR_NOT_FOUND", false}

	// QualityGateFailure records an observed quality gate failure.
	QualityGateFailure = &Kind{"QUALITY_GATE_FAILURE", true}

	// ProcessTimeout indicates an external command exceeded its deadline.
	ProcessTimeout = &Kind{"PROCESS_TIMEOUT", true}
)

// Errorf wraps a kind with formatted context. The kind is recoverable via
// errors.Is and CodeOf on the returned error.
func Errorf(kind *Kind, format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...)
}

// Wrap attaches a kind to an existing error.
func Wrap(kind *Kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// CodeOf extracts the category code from an error chain.
// Returns "UNKNOWN" when no kind is present.
func CodeOf(err error) string {
	var k *Kind
	if errors.As(err, &k) {
		return k.code
	}
	return "UNKNOWN"
}

// IsRecoverable reports whether the error chain carries a recoverable kind.
func IsRecoverable(err error) bool {
	var k *Kind
	if errors.As(err, &k) {
		return k.recoverable
	}
	return false
}
