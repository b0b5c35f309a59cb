// Package errors provides error kinds shared by the services and their RFC 7807 rendering
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Standard error functions
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Kind    string `json:"kind" validate:"required"`
	Field   string `json:"field" validate:"required"`
	Message string `json:"message,omitempty"`
}

func (f *FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Field, f.Kind, f.Message)
}

func NewFieldError(kind, field, reason string) FieldError {
	return FieldError{Kind: kind, Field: field, Message: reason}
}

// StatusCode represents an HTTP status code error
type StatusCode int

// Error implements error
func (status StatusCode) Error() string {
	return http.StatusText(int(status))
}

func Status(code int) *Error {
	return (&Error{cause: StatusCode(code)}).Reason(http.StatusText(code))
}

var (
	Invalid      *Error = Status(http.StatusBadRequest)
	Unauthorized *Error = Status(http.StatusUnauthorized)
	Forbidden    *Error = Status(http.StatusForbidden)
	NotFound     *Error = Status(http.StatusNotFound)
	Conflict     *Error = Status(http.StatusConflict)
	Unavailable  *Error = Status(http.StatusServiceUnavailable)
	TooMany      *Error = Status(http.StatusTooManyRequests)
)

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`
	// Fields used when there's validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	cause error
}

var _ error = (*Error)(nil)

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

// Reason returns a copy of the error with kind set to given value
func (e *Error) Reason(kind string) *Error {
	err := *e
	err.Kind = kind
	return &err
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the cause set.
// The status code of the original cause is kept reachable through the wrapped chain.
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = Join(e.cause, cause)
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// WithFields returns a copy of error carrying fields.
func (e *Error) WithFields(fields []FieldError) *Error {
	newError := *e
	newError.Fields = fields
	return &newError
}

// WithField returns a copy of error with the field appended.
func (e *Error) WithField(kind, field, message string) *Error {
	newError := *e
	newError.Fields = append(append([]FieldError(nil), e.Fields...), NewFieldError(kind, field, message))
	return &newError
}

// Is implements the needed interface for errors.Is
// It checks kind and status code for equality
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// HTTPStatus returns the status code carried by err, or 500 when err has none.
func HTTPStatus(err error) int {
	var status StatusCode
	if As(err, &status) {
		return int(status)
	}
	return http.StatusInternalServerError
}

// Problem type URIs
const (
	TypeValidationError = "https://catalogue.example.org/problems/validation-error"
	TypeUnauthorized    = "https://catalogue.example.org/problems/unauthorized"
	TypeForbidden       = "https://catalogue.example.org/problems/forbidden"
	TypeNotFound        = "https://catalogue.example.org/problems/not-found"
	TypeConflict        = "https://catalogue.example.org/problems/conflict"
	TypeUnavailable     = "https://catalogue.example.org/problems/service-unavailable"
	TypeTooMany         = "https://catalogue.example.org/problems/too-many-requests"
	TypeInternalError   = "https://catalogue.example.org/problems/internal-error"
)

// Problem titles
const (
	TitleValidationError = "Validation Error"
	TitleUnauthorized    = "Unauthorized"
	TitleForbidden       = "Forbidden"
	TitleNotFound        = "Not Found"
	TitleConflict        = "Conflict"
	TitleUnavailable     = "Service Unavailable"
	TitleTooMany         = "Too Many Requests"
	TitleInternalError   = "Internal Server Error"
)

// ValidationError represents a validation error for RFC 7807
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	TraceID  string                 `json:"trace_id,omitempty"`
	Errors   []ValidationError      `json:"errors,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// AddValidationError adds a single validation error
func (p *ProblemDetails) AddValidationError(field, message, code string) *ProblemDetails {
	p.Errors = append(p.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	return p
}

// WithExtra adds extra fields to the problem details (they will be serialized at the top level)
func (p *ProblemDetails) WithExtra(key string, value interface{}) *ProblemDetails {
	if p.Extra == nil {
		p.Extra = make(map[string]interface{})
	}
	p.Extra[key] = value
	return p
}

// MarshalJSON implements custom JSON marshaling to include extra fields at the top level
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{})
	result["type"] = p.Type
	result["title"] = p.Title
	result["status"] = p.Status
	if p.Detail != "" {
		result["detail"] = p.Detail
	}
	if p.Instance != "" {
		result["instance"] = p.Instance
	}
	if p.TraceID != "" {
		result["trace_id"] = p.TraceID
	}
	if len(p.Errors) > 0 {
		result["errors"] = p.Errors
	}

	for k, v := range p.Extra {
		result[k] = v
	}

	return json.Marshal(result)
}

// NewProblemDetails creates a generic problem details with all fields
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// NewNotFoundError creates a not found error problem
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, TitleNotFound, http.StatusNotFound, detail, instance)
}

// NewInternalError creates an internal server error problem
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}

// ToProblemDetails converts any error to RFC 7807 ProblemDetails.
// Errors without a status code become internal errors and their message is not exposed.
func ToProblemDetails(err error, instance string) *ProblemDetails {
	var pd *ProblemDetails
	if As(err, &pd) {
		return pd
	}

	var e *Error
	if !As(err, &e) {
		return NewInternalError("An unexpected error occurred", instance)
	}

	var problemType, title string
	status := HTTPStatus(e)
	switch status {
	case http.StatusBadRequest:
		problemType, title = TypeValidationError, TitleValidationError
	case http.StatusUnauthorized:
		problemType, title = TypeUnauthorized, TitleUnauthorized
	case http.StatusForbidden:
		problemType, title = TypeForbidden, TitleForbidden
	case http.StatusNotFound:
		problemType, title = TypeNotFound, TitleNotFound
	case http.StatusConflict:
		problemType, title = TypeConflict, TitleConflict
	case http.StatusServiceUnavailable:
		problemType, title = TypeUnavailable, TitleUnavailable
	case http.StatusTooManyRequests:
		problemType, title = TypeTooMany, TitleTooMany
	default:
		return NewInternalError("An unexpected error occurred", instance)
	}

	pd = NewProblemDetails(problemType, title, status, e.Message, instance)
	for _, field := range e.Fields {
		pd.AddValidationError(field.Field, field.Message, field.Kind)
	}
	return pd
}
