// Package apperrors provides the structured error taxonomy shared by every command.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation           = errors.New("validation error")
	ErrDependency           = errors.New("dependency error")
	ErrRemoteOperation      = errors.New("remote operation failed")
	ErrConvergenceTimeout   = errors.New("convergence timeout")
	ErrConfirmationDeclined = errors.New("confirmation declined")
)

// Error carries the identifying context of a fatal condition.
type Error struct {
	Sentinel  error  // Wrapped sentinel for errors.Is() classification
	Message   string // Human-readable message
	Op        string // Operation that failed (e.g., "supervisor.start")
	Field     string // For validation errors (e.g., "jobs.master.hdfs_root")
	Role      string
	TaskID    int
	Host      string
	LastState string // Last observed run state for convergence timeouts
	Cause     error
}

// Error returns the message followed by the (role, task, host) context when present.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Role != "" {
		fmt.Fprintf(&b, " [role=%s task=%d host=%s]", e.Role, e.TaskID, e.Host)
	}
	return b.String()
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a configuration field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Validationf is Validation with a formatted message.
func Validationf(field, format string, args ...any) error {
	return Validation(field, fmt.Sprintf(format, args...))
}

// Dependency creates an error for a missing or malformed dependent service reference.
func Dependency(resource, message string) error {
	return &Error{
		Sentinel: ErrDependency,
		Message:  fmt.Sprintf("%s: %s", resource, message),
		Field:    resource,
	}
}

// Remote wraps a failed supervisor or external call for a single task.
func Remote(op, role string, taskID int, host string, cause error) error {
	return &Error{
		Sentinel: ErrRemoteOperation,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Role:     role,
		TaskID:   taskID,
		Host:     host,
		Cause:    cause,
	}
}

// Timeout reports a convergence poll that gave up while the task was still in lastState.
func Timeout(op, role string, taskID int, host, lastState string) error {
	return &Error{
		Sentinel:  ErrConvergenceTimeout,
		Message:   fmt.Sprintf("%s: gave up waiting, last observed state %s", op, lastState),
		Op:        op,
		Role:      role,
		TaskID:    taskID,
		Host:      host,
		LastState: lastState,
	}
}

// Declined reports a confirmation that was refused or could not be asked.
func Declined(action, reason string) error {
	return &Error{
		Sentinel: ErrConfirmationDeclined,
		Message:  fmt.Sprintf("%s not confirmed: %s", action, reason),
		Op:       action,
	}
}
