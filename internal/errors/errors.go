// Package errors provides centralized error definitions and error handling utilities
// for DevBoot. It defines the supervisor's error taxonomy, typed errors with
// context builders, and classification helpers.
//
// # Error Types
//
// Domain-specific errors carry supervisor context:
//   - ProjectError: an operation on a project failed (state mismatch, store failure)
//   - LaunchError: a shell session could not be spawned
//   - IOError: exporting or writing data failed
//
// Semantic errors represent common conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input
//
// # Usage
//
//	err := errors.NewLaunchError("shell not found", execErr).
//	    WithProjectID(id).
//	    WithShell("/bin/zsh")
//
//	if errors.Is(err, errors.ErrLaunchFailed) { ... }
//
//	var launchErr *errors.LaunchError
//	if errors.As(err, &launchErr) { ... }
//
// Every typed error matches its sentinel with errors.Is, so callers that only
// care about the category (the HTTP layer, the CLI) never need the concrete type.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers need only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrProjectNotFound indicates that no project has the requested id.
	ErrProjectNotFound = New("project not found")
	// ErrAlreadyRunning indicates that the project already has a live session
	// or a pending restart.
	ErrAlreadyRunning = New("project already running")
	// ErrNotRunning indicates that the project has no live session.
	ErrNotRunning = New("project not running")
	// ErrLaunchFailed indicates that a shell session could not be spawned.
	ErrLaunchFailed = New("launch failed")
	// ErrRestartLimitExceeded indicates that the automatic restart budget is
	// spent. It is reported through crash events, never returned to callers.
	ErrRestartLimitExceeded = New("restart limit exceeded")
	// ErrIO indicates a failed read or write outside the process pipes.
	ErrIO = New("i/o failure")
	// ErrInvalidInput indicates that a request failed validation.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// DevBootError is implemented by every typed error in this package.
type DevBootError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	sentinel   error
	severity   Severity
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// Is matches the error's own sentinel first, then anything in the cause chain.
func (e *baseError) Is(target error) bool {
	if e.sentinel != nil && target == e.sentinel {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatWithContext renders "<kind> [k=v, ...]: message: cause".
func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ProjectError represents a failed operation on a project.
//
// Example:
//
//	err := errors.NewProjectError("cannot send input", errors.ErrNotRunning).
//	    WithProjectID("4f1c...")
//	fmt.Println(err) // "project error [project=4f1c...]: cannot send input: project not running"
type ProjectError struct {
	baseError
	ProjectID string
	State     string
}

// NewProjectError creates a new ProjectError.
func NewProjectError(message string, cause error) *ProjectError {
	return &ProjectError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithProjectID adds a project ID to the error context.
func (e *ProjectError) WithProjectID(id string) *ProjectError {
	e.ProjectID = id
	return e
}

// WithState records the lifecycle state observed when the error occurred.
func (e *ProjectError) WithState(state string) *ProjectError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *ProjectError) WithSeverity(s Severity) *ProjectError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ProjectError) Error() string {
	var parts []string
	if e.ProjectID != "" {
		parts = append(parts, "project="+e.ProjectID)
	}
	if e.State != "" {
		parts = append(parts, "state="+e.State)
	}
	return formatWithContext("project error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ProjectError) Is(target error) bool {
	if _, ok := target.(*ProjectError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LaunchError represents a shell session that could not be spawned: the shell
// binary is missing, the working directory is invalid, or the OS refused.
//
// Example:
//
//	err := errors.NewLaunchError("working directory does not exist", statErr).
//	    WithPath("/srv/api")
type LaunchError struct {
	baseError
	ProjectID string
	Path      string
	Shell     string
}

// NewLaunchError creates a new LaunchError. It always matches ErrLaunchFailed.
func NewLaunchError(message string, cause error) *LaunchError {
	return &LaunchError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			sentinel:   ErrLaunchFailed,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithProjectID adds a project ID to the error context.
func (e *LaunchError) WithProjectID(id string) *LaunchError {
	e.ProjectID = id
	return e
}

// WithPath adds the working directory to the error context.
func (e *LaunchError) WithPath(path string) *LaunchError {
	e.Path = path
	return e
}

// WithShell adds the shell binary to the error context.
func (e *LaunchError) WithShell(shell string) *LaunchError {
	e.Shell = shell
	return e
}

// Error returns the formatted error message.
func (e *LaunchError) Error() string {
	var parts []string
	if e.ProjectID != "" {
		parts = append(parts, "project="+e.ProjectID)
	}
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	if e.Shell != "" {
		parts = append(parts, "shell="+e.Shell)
	}
	return formatWithContext("launch error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *LaunchError) Is(target error) bool {
	if _, ok := target.(*LaunchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IOError represents a failed export or write. It always matches ErrIO.
type IOError struct {
	baseError
	Path string
}

// NewIOError creates a new IOError.
func NewIOError(message string, cause error) *IOError {
	return &IOError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			sentinel:   ErrIO,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath adds the file path to the error context.
func (e *IOError) WithPath(path string) *IOError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *IOError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return formatWithContext("io error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *IOError) Is(target error) bool {
	if _, ok := target.(*IOError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
// A NotFoundError for resource type "project" matches ErrProjectNotFound.
//
// Example:
//
//	err := errors.NewNotFoundError("project", "api")
//	fmt.Println(err) // "project 'api' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	var sentinel error
	if resourceType == "project" {
		sentinel = ErrProjectNotFound
	}
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			sentinel:   sentinel,
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input. It always matches ErrInvalidInput.
//
// Example:
//
//	err := errors.NewValidationError("must not be empty").WithField("path")
//	fmt.Println(err) // "validation error: path: must not be empty"
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			sentinel:   ErrInvalidInput,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField sets the field that failed validation.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error: ")
	if e.Field != "" {
		sb.WriteString(e.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(e.message)
	if e.Value != nil {
		fmt.Fprintf(&sb, " (got: %v)", e.Value)
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end
// users. Sentinels of the supervisor taxonomy are user-facing even when
// wrapped with fmt.Errorf.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var typed DevBootError
	if As(err, &typed) {
		return typed.IsUserFacing()
	}

	for _, sentinel := range []error{
		ErrProjectNotFound, ErrAlreadyRunning, ErrNotRunning,
		ErrLaunchFailed, ErrInvalidInput,
	} {
		if Is(err, sentinel) {
			return true
		}
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement DevBootError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var typed DevBootError
	if As(err, &typed) {
		return typed.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
