// Package errors provides structured error types and exit codes for shimbuild.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess          = 0 // Success, including "nothing to do"
	ExitRuntimeError     = 1 // Build failed (compile, link, verification)
	ExitConfigError      = 2 // Invalid configuration or malformed compile database
	ExitEnvironmentError = 3 // Missing compile database, shim unavailable, lock held
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindValidation
	KindEnvironment
	KindMalformedInput
	KindTaskFailure
	KindTimeout
	KindThresholdAbort
	KindCompileFailures
	KindObjectCountShortfall
	KindLinkStage
	KindMissingArtifact
)

var kindNames = map[ErrorKind]string{
	KindRuntime:              "runtime",
	KindConfig:               "config",
	KindNotFound:             "not found",
	KindValidation:           "validation",
	KindEnvironment:          "environment",
	KindMalformedInput:       "malformed input",
	KindTaskFailure:          "task failure",
	KindTimeout:              "timeout",
	KindThresholdAbort:       "threshold abort",
	KindCompileFailures:      "compile failures",
	KindObjectCountShortfall: "object count shortfall",
	KindLinkStage:            "link stage failure",
	KindMissingArtifact:      "missing artifact",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// BuildError is the base error type for shimbuild.
type BuildError struct {
	Kind    ErrorKind
	Message string
	Stage   string // Link stage name if applicable
	Output  string // Compile output if applicable
	Cause   error  // Underlying error
}

func (e *BuildError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
	}
	if e.Output != "" {
		return fmt.Sprintf("%s: %s", e.Output, e.Message)
	}
	return e.Message
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *BuildError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation, KindMalformedInput:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	default:
		return ExitRuntimeError
	}
}

// New creates a new runtime error.
func New(message string) *BuildError {
	return &BuildError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Newf creates a new runtime error with formatting.
func Newf(format string, args ...interface{}) *BuildError {
	return New(fmt.Sprintf(format, args...))
}

// Config creates a new configuration error.
func Config(message string) *BuildError {
	return &BuildError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *BuildError {
	return Config(fmt.Sprintf(format, args...))
}

// Environment creates a new environment error.
func Environment(message string) *BuildError {
	return &BuildError{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// Environmentf creates a new environment error with formatting.
func Environmentf(format string, args ...interface{}) *BuildError {
	return Environment(fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *BuildError {
	return &BuildError{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// WrapKind wraps an error with additional context and an explicit kind.
func WrapKind(kind ErrorKind, err error, message string) *BuildError {
	return &BuildError{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// Kindf creates an error of the given kind with formatting.
func Kindf(kind ErrorKind, format string, args ...interface{}) *BuildError {
	return &BuildError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// MalformedInput creates an error for an unreadable compile database.
func MalformedInput(source string, cause error) *BuildError {
	return &BuildError{
		Kind:    KindMalformedInput,
		Message: fmt.Sprintf("malformed compile database %s: %v", source, cause),
		Cause:   cause,
	}
}

// Timeout creates an error for an external process that exceeded its deadline.
func Timeout(what string, limit fmt.Stringer) *BuildError {
	return &BuildError{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("%s timed out after %s", what, limit),
	}
}

// StageError creates an error for a failed link stage.
func StageError(stage, message string) *BuildError {
	return &BuildError{
		Kind:    KindLinkStage,
		Stage:   stage,
		Message: message,
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *BuildError {
	return &BuildError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// KindOf returns the kind of the first BuildError in the chain.
// The second result is false when err carries no BuildError.
func KindOf(err error) (ErrorKind, bool) {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.Kind, true
	}
	return KindRuntime, false
}

// Is reports whether err carries a BuildError of the given kind.
func Is(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool {
	return Is(err, KindTimeout)
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.ExitCode()
	}
	return ExitRuntimeError
}
