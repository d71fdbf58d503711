// Package errors provides the error taxonomy and exit codes for the contract pipeline.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Fatal means a required input is missing or unparsable; the stage aborts without output.
	Fatal
	// Recoverable is a per-item failure (one file, one artifact); processing continues.
	Recoverable
	// Policy is a reported issue that fails the run only under a strict flag.
	Policy
	// Cancelled means the user aborted the run (EOF or interrupt at the confirmation gate).
	Cancelled
)

// Exit codes returned by the CLI.
const (
	ExitOK           = 0
	ExitFatal        = 1
	ExitStrictIssues = 2
	ExitBreaking     = 3
	ExitCancelled    = 130
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	case Policy:
		return "policy"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PipelineError represents a categorized pipeline error.
type PipelineError struct {
	Type    ErrorType
	Stage   string
	Path    string
	Message string
	Cause   error
	// Code is the exit code for Policy errors; other types derive theirs from Type.
	Code int
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	where := e.Stage
	if e.Path != "" {
		where = fmt.Sprintf("%s (%s)", e.Stage, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error in %s: %s: %v", e.Type, where, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Type, where, e.Message)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(errType ErrorType, stage, path, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Stage:   stage,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// NewFatalError creates an error for a missing or unparsable required input.
func NewFatalError(stage, path, message string, cause error) *PipelineError {
	return NewPipelineError(Fatal, stage, path, message, cause)
}

// NewRecoverableError creates a per-item error.
func NewRecoverableError(stage, path, message string, cause error) *PipelineError {
	return NewPipelineError(Recoverable, stage, path, message, cause)
}

// NewPolicyError creates a strict-mode violation carrying its exit code.
func NewPolicyError(stage, message string, code int) *PipelineError {
	err := NewPipelineError(Policy, stage, "", message, nil)
	err.Code = code
	return err
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(stage string, cause error) *PipelineError {
	return NewPipelineError(Cancelled, stage, "", "run aborted by user", cause)
}

// Categorize wraps a generic error read from path into a PipelineError.
// Missing files and context cancellation are recognized; everything else is fatal.
func Categorize(err error, stage, path string) *PipelineError {
	if err == nil {
		return nil
	}

	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(stage, err)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewFatalError(stage, path, "required input not found", err)
	}

	return NewFatalError(stage, path, "operation failed", err)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Type
	}
	return Unknown
}

// IsFatal reports whether err aborts the stage.
func IsFatal(err error) bool {
	return GetErrorType(err) == Fatal
}

// IsPolicy reports whether err is a strict-mode violation.
func IsPolicy(err error) bool {
	return GetErrorType(err) == Policy
}

// IsCancelled reports whether err is a user abort.
func IsCancelled(err error) bool {
	return GetErrorType(err) == Cancelled || errors.Is(err, context.Canceled)
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		switch pipeErr.Type {
		case Policy:
			if pipeErr.Code != 0 {
				return pipeErr.Code
			}
			return ExitStrictIssues
		case Cancelled:
			return ExitCancelled
		}
		return ExitFatal
	}

	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	return ExitFatal
}
