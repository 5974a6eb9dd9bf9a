package utils

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorSeverity represents the severity level of an error.
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "critical"
	}
}

// ErrorCategory represents the category of an error. Trimmed to the kinds
// this engine actually produces: rebase outcomes that escape as genuine
// bugs rather than values, cache-layer failures, and input validation at
// the stredit/rebase boundary.
type ErrorCategory int

const (
	CategoryRebase ErrorCategory = iota
	CategoryCache
	CategoryValidation
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryRebase:
		return "rebase"
	case CategoryCache:
		return "cache"
	default:
		return "validation"
	}
}

// ErrorContext provides additional context for errors.
type ErrorContext struct {
	Component string
	Operation string
	DocID     string
	Resource  string
	Metadata  map[string]interface{}
}

// StructuredError represents a standardized error with rich context.
type StructuredError struct {
	Code        string
	Message     string
	Severity    ErrorSeverity
	Category    ErrorCategory
	Context     *ErrorContext
	RootCause   error
	StackTrace  string
	Timestamp   int64
	Recoverable bool
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.RootCause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.RootCause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for compatibility with errors.Is/As.
func (e *StructuredError) Unwrap() error {
	return e.RootCause
}

// NewStructuredError creates a new structured error, capturing a stack
// trace for medium-severity-or-worse errors.
func NewStructuredError(code, message string, severity ErrorSeverity, category ErrorCategory, rootCause error) *StructuredError {
	err := &StructuredError{
		Code:        code,
		Message:     message,
		Severity:    severity,
		Category:    category,
		RootCause:   rootCause,
		Timestamp:   time.Now().Unix(),
		Recoverable: true,
	}
	if severity >= SeverityMedium {
		err.StackTrace = captureStackTrace()
	}
	return err
}

// NewRebaseError wraps an unexpected internal rebase failure (an
// OutcomeError / internal-error outcome): never surfaced to a caller as
// anything but a retryable "no suggestion available".
func NewRebaseError(operation string, rootCause error) *StructuredError {
	return NewStructuredError(
		"REBASE_ERROR",
		fmt.Sprintf("rebase failed unexpectedly during %s", operation),
		SeverityHigh,
		CategoryRebase,
		rootCause,
	).WithContext(&ErrorContext{Operation: operation})
}

// NewCacheError wraps an unexpected next-edit cache failure: any exception
// during rebase reports as a cache miss, never propagates.
func NewCacheError(operation, docID string, rootCause error) *StructuredError {
	return NewStructuredError(
		"CACHE_ERROR",
		fmt.Sprintf("next-edit cache error during %s", operation),
		SeverityMedium,
		CategoryCache,
		rootCause,
	).WithContext(&ErrorContext{Operation: operation, DocID: docID})
}

// NewValidationError reports a precondition violation at the stredit/rebase
// boundary (e.g. overlapping replacements passed to StringEdit construction).
func NewValidationError(field, reason string) *StructuredError {
	return NewStructuredError(
		"VALIDATION_ERROR",
		fmt.Sprintf("validation failed for %s: %s", field, reason),
		SeverityLow,
		CategoryValidation,
		nil,
	).WithContext(&ErrorContext{Resource: field})
}

// WithContext replaces the error's context wholesale.
func (e *StructuredError) WithContext(ctx *ErrorContext) *StructuredError {
	e.Context = ctx
	return e
}

// WithComponent records which component raised the error.
func (e *StructuredError) WithComponent(component string) *StructuredError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.Component = component
	return e
}

// WithDocID records the document the error pertains to.
func (e *StructuredError) WithDocID(docID string) *StructuredError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	e.Context.DocID = docID
	return e
}

// WithMetadata attaches an arbitrary key/value pair to the error's context.
func (e *StructuredError) WithMetadata(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = &ErrorContext{}
	}
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]interface{})
	}
	e.Context.Metadata[key] = value
	return e
}

// MakeUnrecoverable marks the error as unrecoverable.
func (e *StructuredError) MakeUnrecoverable() *StructuredError {
	e.Recoverable = false
	return e
}

// IsRecoverable reports whether the error can be recovered from.
func (e *StructuredError) IsRecoverable() bool {
	return e.Recoverable
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// IsCriticalError reports whether err is a StructuredError of critical
// severity.
func IsCriticalError(err error) bool {
	if structuredErr, ok := err.(*StructuredError); ok {
		return structuredErr.Severity >= SeverityCritical
	}
	return false
}

// FormatError formats an error for diagnostic display (tracer/log lines).
func FormatError(err error) string {
	structuredErr, ok := err.(*StructuredError)
	if !ok {
		return err.Error()
	}

	parts := []string{fmt.Sprintf("Error [%s]: %s", structuredErr.Code, structuredErr.Message)}
	if structuredErr.Context != nil {
		if structuredErr.Context.Component != "" {
			parts = append(parts, fmt.Sprintf("Component: %s", structuredErr.Context.Component))
		}
		if structuredErr.Context.Operation != "" {
			parts = append(parts, fmt.Sprintf("Operation: %s", structuredErr.Context.Operation))
		}
		if structuredErr.Context.DocID != "" {
			parts = append(parts, fmt.Sprintf("DocID: %s", structuredErr.Context.DocID))
		}
	}
	if structuredErr.RootCause != nil {
		parts = append(parts, fmt.Sprintf("Root Cause: %v", structuredErr.RootCause))
	}
	return strings.Join(parts, " | ")
}
