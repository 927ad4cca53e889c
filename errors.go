package greq

import (
	"errors"
	"fmt"
	"maps"
)

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryValidation covers problems detected while building a request.
	CategoryValidation ErrorCategory = "validation"
	CategoryEncoding   ErrorCategory = "encoding"
	CategoryConfig     ErrorCategory = "config"

	// CategoryNetwork covers failures talking to the remote side.
	CategoryNetwork  ErrorCategory = "network"
	CategoryAuth     ErrorCategory = "auth"
	CategoryNotFound ErrorCategory = "not_found"
	CategoryStatus   ErrorCategory = "status"

	// CategoryDecode covers response handling errors.
	CategoryDecode       ErrorCategory = "decode"
	CategoryBodyConsumed ErrorCategory = "body_consumed"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Error is the classified error returned by every greq operation.
type Error struct {
	category  ErrorCategory
	message   string
	cause     error
	context   ErrorContext
	retryable bool
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.category, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.category, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Category returns the error category.
func (e *Error) Category() ErrorCategory { return e.category }

// Message returns the error message without the cause.
func (e *Error) Message() string { return e.message }

// Context returns the structured context attached to the error.
func (e *Error) Context() ErrorContext { return e.context }

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool { return e.retryable }

// Is matches errors of the same category and message, so sentinel values
// such as ErrBodyConsumed work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// ErrorBuilder provides a fluent API for creating Error values.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{category: category, message: message, context: make(ErrorContext)}}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

// WithCause sets the underlying cause.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.cause = cause
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// Retryable marks the error as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	b.err.retryable = true
	return b
}

// Build creates the final Error.
func (b *ErrorBuilder) Build() *Error {
	out := b.err
	out.context = maps.Clone(b.err.context)
	return &out
}

// Convenience constructors for common error patterns

func validationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }

func encodingError(message string) *ErrorBuilder { return NewError(CategoryEncoding, message) }

func networkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

func authError(message string) *ErrorBuilder { return NewError(CategoryAuth, message) }

func decodeError(message string) *ErrorBuilder { return NewError(CategoryDecode, message) }

// ErrBodyConsumed is returned when a response body is read a second time.
var ErrBodyConsumed = NewError(CategoryBodyConsumed, "body has already been read").Build()

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCategory checks if an error in the chain belongs to a category.
func HasCategory(err error, category ErrorCategory) bool {
	if e, ok := AsError(err); ok {
		return e.category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal.
func GetCategory(err error) ErrorCategory {
	if e, ok := AsError(err); ok {
		return e.category
	}
	return CategoryInternal
}
