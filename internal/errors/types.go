// Package errors defines the typed errors raised while configuring, discovering,
// compiling and watching template sources.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeDiscovery ErrorType = "discovery"
	ErrorTypeCompile   ErrorType = "compile"
	ErrorTypeWatch     ErrorType = "watch"
)

// Stage names the step of a compile task that failed.
type Stage string

const (
	StageRead    Stage = "read"
	StageCompile Stage = "compile"
	StageWrite   Stage = "write"
)

// TorxError is a structured error type with context.
type TorxError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
	Stage    Stage
}

// Error implements the error interface.
func (e *TorxError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath+":")
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TorxError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TorxError) Is(target error) bool {
	var t *TorxError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// Common error codes.
const (
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeSourceMissing   = "ERR_SOURCE_MISSING"
	ErrCodeListDirectory   = "ERR_LIST_DIRECTORY"
	ErrCodeCompileFailed   = "ERR_COMPILE_FAILED"
	ErrCodeWatchFailed     = "ERR_WATCH_FAILED"
	ErrCodeWatchSubscribe  = "ERR_WATCH_SUBSCRIBE"
	ErrCodeCommandRejected = "ERR_COMMAND_REJECTED"
)

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TorxError {
	return &TorxError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewDiscoveryError creates an error for a directory that could not be listed.
func NewDiscoveryError(dir string, cause error) *TorxError {
	return &TorxError{
		Type:     ErrorTypeDiscovery,
		Code:     ErrCodeListDirectory,
		Message:  "could not list directory",
		Cause:    cause,
		FilePath: dir,
	}
}

// NewCompileError creates an error for one source file whose read, compile
// or write step failed.
func NewCompileError(sourcePath string, stage Stage, cause error) *TorxError {
	var message string
	switch stage {
	case StageRead:
		message = "could not read source"
	case StageWrite:
		message = "could not write output"
	default:
		message = "compilation failed"
	}

	return &TorxError{
		Type:     ErrorTypeCompile,
		Code:     ErrCodeCompileFailed,
		Message:  message,
		Cause:    cause,
		FilePath: sourcePath,
		Stage:    stage,
	}
}

// NewWatchError creates an error for a failed filesystem subscription.
func NewWatchError(dir string, cause error) *TorxError {
	return &TorxError{
		Type:     ErrorTypeWatch,
		Code:     ErrCodeWatchFailed,
		Message:  "file watcher failed",
		Cause:    cause,
		FilePath: dir,
	}
}

// NewSubscriptionError creates an error for an event stream that failed
// after the watch started.
func NewSubscriptionError(dir string, cause error) *TorxError {
	return &TorxError{
		Type:     ErrorTypeWatch,
		Code:     ErrCodeWatchSubscribe,
		Message:  "file event subscription failed",
		Cause:    cause,
		FilePath: dir,
	}
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsDiscoveryError checks if an error came from source discovery.
func IsDiscoveryError(err error) bool {
	return hasType(err, ErrorTypeDiscovery)
}

// IsCompileError checks if an error came from a compile task.
func IsCompileError(err error) bool {
	return hasType(err, ErrorTypeCompile)
}

// IsWatchError checks if an error came from the watch subscription.
func IsWatchError(err error) bool {
	return hasType(err, ErrorTypeWatch)
}

// PathOf returns the file path attached to err, or "" if there is none.
func PathOf(err error) string {
	var te *TorxError
	if errors.As(err, &te) {
		return te.FilePath
	}

	return ""
}

func hasType(err error, t ErrorType) bool {
	var te *TorxError
	if errors.As(err, &te) {
		return te.Type == t
	}

	return false
}
