// Package core provides shared error and HTTP utilities for the osmgender pipeline.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode defines standard error codes for the pipeline
type ErrorCode string

// Standard error codes
const (
	// Stage prerequisite errors
	ErrMissingDocument ErrorCode = "MISSING_DOCUMENT"
	ErrParseError      ErrorCode = "PARSE_ERROR"

	// Data errors
	ErrAmbiguousMapping  ErrorCode = "AMBIGUOUS_MAPPING"
	ErrInvalidConfig     ErrorCode = "INVALID_CONFIG"
	ErrInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"
	ErrNotFound          ErrorCode = "NOT_FOUND"

	// MCP tool errors
	ErrInvalidArguments ErrorCode = "INVALID_ARGUMENTS"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded error carrying enough context to tell the operator
// which earlier stage has to be re-run.
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Path     string    `json:"path,omitempty"`
	Guidance string    `json:"guidance,omitempty"`
	cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if e.Guidance != "" {
		msg += ". " + e.Guidance
	}
	return msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new Error with a formatted message
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithPath records the file the error is about
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// Wrap attaches an underlying cause
func (e *Error) Wrap(err error) *Error {
	e.cause = err
	return e
}

// IsCode reports whether err (or anything it wraps) is an *Error with code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// ToMCPResult returns the error as a tool error result whose text is the
// JSON form of e.
func (e *Error) ToMCPResult() *mcp.CallToolResult {
	raw, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(string(raw))
}

// MissingDocument reports a prerequisite file that an earlier stage should have produced.
func MissingDocument(path, stage string, err error) *Error {
	return NewError(ErrMissingDocument, "file doesn't exist or is not readable").
		WithPath(path).
		WithGuidance(fmt.Sprintf("You maybe need to run %q command first", stage)).
		Wrap(err)
}

// ParseFailure reports a prerequisite file that exists but can't be decoded.
func ParseFailure(path string, err error) *Error {
	return NewError(ErrParseError, "can't read document").
		WithPath(path).
		Wrap(err)
}

type statusError struct {
	code     ErrorCode
	guidance string
}

// statusErrors classifies the failed statuses of Overpass and Wikidata.
var statusErrors = map[int]statusError{
	http.StatusBadRequest:          {ErrServiceUnavailable, "Overpass rejected the query. Check the overpass section of the city config."},
	http.StatusNotFound:            {ErrNotFound, ""},
	http.StatusRequestTimeout:      {ErrServiceTimeout, "Raise overpass.timeout in the city config or retry off-peak."},
	http.StatusTooManyRequests:     {ErrRateLimit, "All query slots are taken. Lower the request rate or wait for a slot."},
	http.StatusInternalServerError: {ErrInternalError, "The service failed. This is usually temporary."},
	http.StatusGatewayTimeout:      {ErrServiceTimeout, "Raise overpass.timeout in the city config or retry off-peak."},
}

// ServiceError classifies a failed response of service.
func ServiceError(service string, statusCode int, message string) *Error {
	se, ok := statusErrors[statusCode]
	if !ok {
		se = statusError{ErrServiceUnavailable, "Retry later."}
	}
	return Errorf(se.code, "%s: %s", service, message).WithGuidance(se.guidance)
}
