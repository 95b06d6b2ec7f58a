// Package qerrors provides the classified error type shared by the qbraid-go
// packages. Domain errors (unsupported program types, missing conversion
// paths, failed hops, compilation failures) carry a stable code so callers
// and the CLI can react to them without string matching.
package qerrors

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error.
type Class string

const (
	// ClassInvalid indicates the caller supplied something the SDK cannot
	// handle. Examples: unknown program type, bad configuration.
	ClassInvalid Class = "invalid"

	// ClassUnavailable indicates a capability needed for the request is
	// missing. Examples: no conversion route, optional extra not installed.
	ClassUnavailable Class = "unavailable"

	// ClassPermanent indicates an operation ran and failed.
	// Examples: a converter raised, a predicate rejected a circuit.
	ClassPermanent Class = "permanent"
)

// Coded is implemented by every error that exposes a stable error code.
type Coded interface {
	error
	Code() string
}

// Error represents a classified error with context.
type Error struct {
	// Class is the error classification.
	Class Class `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// ErrCode is an optional error code for programmatic handling.
	ErrCode string `json:"code,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the error code.
func (e *Error) Code() string {
	return e.ErrCode
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.ErrCode == t.ErrCode
}

// New creates a classified error.
func New(class Class, message string, err error) *Error {
	return &Error{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// NewInvalid creates a new invalid-input error.
func NewInvalid(message string, err error) *Error {
	return New(ClassInvalid, message, err)
}

// NewUnavailable creates a new unavailable error.
func NewUnavailable(message string, err error) *Error {
	return New(ClassUnavailable, message, err)
}

// NewPermanent creates a new permanent error.
func NewPermanent(message string, err error) *Error {
	return New(ClassPermanent, message, err)
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.ErrCode = code
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first coded error in the chain, or
// ErrCodeInternal when none carries one.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var c Coded
	if errors.As(err, &c) && c.Code() != "" {
		return c.Code()
	}
	return ErrCodeInternal
}

// ClassOf returns the class of the first classified error in the chain.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	switch CodeOf(err) {
	case ErrCodeUnsupportedProgram, ErrCodeInvalidConverter, ErrCodeDuplicateConversion, ErrCodeProgramTypeMismatch:
		return ClassInvalid
	case ErrCodePathNotFound:
		return ClassUnavailable
	default:
		return ClassPermanent
	}
}

// IsInvalid returns true if the error is classified as invalid input.
func IsInvalid(err error) bool {
	return err != nil && ClassOf(err) == ClassInvalid
}

// IsUnavailable returns true if the error is classified as unavailable.
func IsUnavailable(err error) bool {
	return err != nil && ClassOf(err) == ClassUnavailable
}

// Error codes.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeUnsupportedProgram  = "UNSUPPORTED_PROGRAM_TYPE"
	ErrCodePathNotFound        = "CONVERSION_PATH_NOT_FOUND"
	ErrCodeExecutionFailed     = "CONVERSION_EXECUTION_FAILED"
	ErrCodeDuplicateConversion = "DUPLICATE_CONVERSION"
	ErrCodeInvalidConverter    = "INVALID_CONVERTER"
	ErrCodePolicyDenied        = "CONVERSION_POLICY_DENIED"
	ErrCodeCompilation         = "COMPILATION_ERROR"
	ErrCodeProgramTypeMismatch = "PROGRAM_TYPE_MISMATCH"
	ErrCodePluginFailed        = "PLUGIN_FAILED"
	ErrCodeUnsupportedFeature  = "UNSUPPORTED_FEATURE"
)
