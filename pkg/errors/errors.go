// Package errors provides structured error handling for cubeconv with
// subsystem categorization, key-value context and stack traces.
//
// # Overview
//
// Every fatal condition of a conversion run is reported as an *Error whose
// Type names the subsystem that failed:
//
//   - input: a cubemap face or remap table could not be read or decoded
//   - device: the device rejected an allocation, submission or mapping
//   - output: an output directory or file could not be created or written
//   - config: the configuration is invalid
//   - invariant: an internal ordering or capacity invariant was violated
//   - internal: anything else
//
// The library never exits the process. Errors travel up to cmd/cubeconv,
// which logs them and exits non-zero.
//
// # Basic Usage
//
//	err := errors.New(errors.ErrorTypeInput, "missing cubemap face").
//	    WithDetail("path", path).
//	    WithDetail("face", 3)
//
//	if err := os.MkdirAll(dir, 0o755); err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeOutput, "failed to create output directory").
//	        WithDetail("dir", dir)
//	}
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Add details before
// sharing an error across goroutines.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the subsystem an error originated in.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeInput represents unreadable or malformed input data
	ErrorTypeInput ErrorType = "input"
	// ErrorTypeDevice represents device allocation, submission and mapping errors
	ErrorTypeDevice ErrorType = "device"
	// ErrorTypeOutput represents output directory and file errors
	ErrorTypeOutput ErrorType = "output"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInvariant represents violated pipeline invariants
	ErrorTypeInvariant ErrorType = "invariant"
	// ErrorTypeCanceled represents a run stopped by its caller
	ErrorTypeCanceled ErrorType = "canceled"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: the subsystem that failed
//   - Message: human-readable error description
//   - Cause: the underlying error, if any
//   - Details: key-value pairs providing additional context
//   - Stack: call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface. Details are not part of the message;
// loggers render them through Fields.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. It can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Describe renders the message followed by the details in key order, e.g.
// "output: failed to write image (path=/out/image/camera00/00000003.png)".
func (e *Error) Describe() string {
	if len(e.Details) == 0 {
		return e.Error()
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
	}
	b.WriteString(")")
	return b.String()
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already an *Error its stack trace is preserved. Returns nil for a nil error.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if any *Error in the chain is of the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost *Error in the chain, or
// ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsFatal reports whether err should abort a run. Every error except a
// caller-requested cancellation is fatal; there is no recoverable class.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsType(err, ErrorTypeCanceled)
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
