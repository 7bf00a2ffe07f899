// Package hserrors provides the structured error types used across headswap.
//
// The rewrite engine itself cannot fail; these types classify failures of
// its collaborators so callers can tell them apart with errors.Is and
// errors.As:
//
//   - ParseError: markup that could not be parsed
//   - ConfigError: invalid configuration, including an unusable header fragment
//   - IOError: unreadable or unwritable files and backup failures
package hserrors

import (
	"errors"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrParse indicates a parsing failure occurred.
	ErrParse = errors.New("parse error")

	// ErrConfig indicates invalid configuration.
	ErrConfig = errors.New("configuration error")

	// ErrIO indicates a filesystem failure.
	ErrIO = errors.New("io error")
)

// ParseError represents markup that could not be parsed.
type ParseError struct {
	// Path is the file being parsed, if known
	Path string
	// Message describes the failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ConfigError represents invalid configuration or a header fragment that
// cannot be used as a replacement.
type ConfigError struct {
	// Field names the offending option, e.g. "header_file" or "selector"
	Field string
	// Message describes the problem
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " in " + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// IOError represents a failed filesystem operation.
type IOError struct {
	// Op is the operation that failed, e.g. "read", "write", "backup"
	Op string
	// Path is the file or directory involved
	Path string
	// Cause is the underlying error
	Cause error
}

// Error returns a human-readable error message.
func (e *IOError) Error() string {
	msg := "io error"
	if e.Op != "" {
		msg = e.Op + " failed"
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *IOError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
