package optimization

import (
	"errors"
	"fmt"
)

// Kind classifies an optimization error.
type Kind int

const (
	// KindUnknown is the zero value and matches no sentinel.
	KindUnknown Kind = iota
	// KindValidation marks malformed, duplicate or out-of-range waypoint data.
	KindValidation
	// KindConfiguration marks invalid strategy parameters.
	KindConfiguration
	// KindComputation marks a degenerate numeric state such as a zero-cost route.
	KindComputation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindConfiguration:
		return "configuration error"
	case KindComputation:
		return "computation error"
	default:
		return "optimization error"
	}
}

// Sentinels for errors.Is matching against an Error's Kind.
var (
	ErrValidation    = &Error{Kind: KindValidation, Message: KindValidation.String()}
	ErrConfiguration = &Error{Kind: KindConfiguration, Message: KindConfiguration.String()}
	ErrComputation   = &Error{Kind: KindComputation, Message: KindComputation.String()}
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Kind is the error class.
	Kind Kind
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrValidation)
// holds for every validation failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind != KindUnknown && e.Kind == t.Kind
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewValidationError reports bad waypoint data.
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConfigurationError reports invalid strategy parameters.
func NewConfigurationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewComputationError reports a degenerate numeric state.
func NewComputationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindComputation, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsOptimizationError finds the first *Error in err's chain.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
