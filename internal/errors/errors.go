// Package errors provides the error taxonomy used across the release
// orchestrator. It extends Go's standard error handling with structured
// error codes and context preservation, following the error model used
// throughout the Catalyst Forge platform.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error condition raised by the
// orchestrator. Codes are string-based for debuggability and natural JSON
// serialization.
type ErrorCode string

const (
	// Configuration errors (spec §7 ConfigError).

	// CodeUnknownStep indicates a steps-table key is not one of the nine
	// canonical pipeline stages.
	CodeUnknownStep ErrorCode = "UNKNOWN_STEP"

	// CodeUnknownPlugin indicates a PluginId referenced from steps or cfg
	// has no entry in the plugins table.
	CodeUnknownPlugin ErrorCode = "UNKNOWN_PLUGIN"

	// CodeUnsupportedLocation indicates a plugin location other than
	// "builtin" was configured.
	CodeUnsupportedLocation ErrorCode = "UNSUPPORTED_LOCATION"

	// CodeBindingIllegalForStep indicates a non-singleton binding was used
	// on a singleton-only step.
	CodeBindingIllegalForStep ErrorCode = "BINDING_ILLEGAL_FOR_STEP"

	// CodeDuplicateBinding indicates a step was bound more than once in
	// the configuration document.
	CodeDuplicateBinding ErrorCode = "DUPLICATE_BINDING"

	// Resolution errors (spec §7 ResolutionError).

	// CodeMissingCapability indicates a plugin was bound to a step it does
	// not implement.
	CodeMissingCapability ErrorCode = "PLUGIN_MISSING_CAPABILITY"

	// CodeSingletonStepCannotShare indicates a Shared binding was used on
	// a singleton-only step.
	CodeSingletonStepCannotShare ErrorCode = "SINGLETON_STEP_CANNOT_SHARE"

	// CodeDiscoverIllegalForSingleton indicates Discover was used on a
	// singleton-only step.
	CodeDiscoverIllegalForSingleton ErrorCode = "DISCOVER_ILLEGAL_FOR_SINGLETON"

	// Planning errors (spec §7 PlanError).

	// CodeCycle indicates the dependency graph for a step's plugin list
	// contains a cycle.
	CodeCycle ErrorCode = "DEPENDENCY_CYCLE"

	// CodeUnsatisfiedRequirement indicates a plugin's required key is
	// neither already in the state store nor produced earlier in the
	// step.
	CodeUnsatisfiedRequirement ErrorCode = "UNSATISFIED_REQUIREMENT"

	// Plugin/runtime errors (spec §7 PluginError / CancellationError).

	// CodeBadConfig indicates a plugin rejected its configuration
	// subtable during configure().
	CodeBadConfig ErrorCode = "BAD_PLUGIN_CONFIG"

	// CodePluginFailed indicates a plugin's run_step handler returned
	// Failed.
	CodePluginFailed ErrorCode = "PLUGIN_FAILED"

	// CodeCancelled indicates a cooperative cancellation was observed and
	// honored between plugin invocations.
	CodeCancelled ErrorCode = "CANCELLED"

	// Infrastructure errors, used by built-in plugins.

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeExecutionFailed indicates a subprocess invocation failed.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeInvalidInput indicates caller-supplied input was invalid or
	// malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInternal indicates an internal invariant was violated.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is the structured error type returned by every package in the
// orchestrator. It carries an ErrorCode for programmatic branching, a
// human-readable message, optional structured context, and an optional
// wrapped cause.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any, enabling errors.Is/As to see
// through this error to its underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, &Error{Code: CodeCycle}) works for sentinel-style checks.
func (e *Error) Is(target error) bool {
	var te *Error
	if !As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message, preserving the
// original error as the Cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithContext wraps an existing error with a code, message, and
// structured context, preserving the original error as the Cause.
func WrapWithContext(cause error, code ErrorCode, message string, context map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Context: context, Cause: cause}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an *Error,
// returning the code "UNKNOWN" otherwise.
func CodeOf(err error) ErrorCode {
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return "UNKNOWN"
}

// Is is a re-export of the standard library's errors.Is for convenience so
// callers only need to import this package.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is a re-export of the standard library's errors.As for convenience.
func As(err error, target interface{}) bool { return errors.As(err, target) }
