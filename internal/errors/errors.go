package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Store errors - checkpoint could not be read
	ErrorTypeStore
	// Fetch errors - commit source failures (rate limit, not found, network, malformed)
	ErrorTypeFetch
	// Detect errors - commit history anomalies
	ErrorTypeDetect
	// Notify errors - notification transport failures
	ErrorTypeNotify
	// Persist errors - checkpoint write failures
	ErrorTypePersist
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - recorded, run result unaffected
	SeverityLow Severity = iota
	// SeverityMedium - run completed with a partial failure
	SeverityMedium
	// SeverityHigh - run aborted before any state mutation
	SeverityHigh
	// SeverityCritical - process cannot start
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Stage returns the run stage this error belongs to
func (e *Error) Stage() string {
	return e.Type.String()
}

// IsFatal returns true if this error aborts the run
func (e *Error) IsFatal() bool {
	return e.Severity >= SeverityHigh
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		e.Severity,
		e.Type,
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

// String returns the stage name used in run results
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "config"
	case ErrorTypeStore:
		return "read"
	case ErrorTypeFetch:
		return "fetch"
	case ErrorTypeDetect:
		return "detect"
	case ErrorTypeNotify:
		return "notify"
	case ErrorTypePersist:
		return "persist"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// StoreError wraps a checkpoint read failure
func StoreError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStore, SeverityHigh, message)
}

// FetchError wraps a commit source failure
func FetchError(err error, message string) *Error {
	return Wrap(err, ErrorTypeFetch, SeverityHigh, message)
}

// EmptyHistoryError reports a commit source that returned no commits
func EmptyHistoryError(err error, path string) *Error {
	return Wrap(err, ErrorTypeDetect, SeverityHigh, fmt.Sprintf("no commits found for %s", path))
}

// NotifyError wraps a notification failure. Notification is best-effort.
func NotifyError(err error, message string) *Error {
	return Wrap(err, ErrorTypeNotify, SeverityLow, message)
}

// PersistError wraps a checkpoint write failure. The next run may re-notify.
func PersistError(err error, message string) *Error {
	return Wrap(err, ErrorTypePersist, SeverityMedium, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// StageOf returns the run stage an error was raised in
func StageOf(err error) string {
	return GetType(err).String()
}
