package api

import (
	"net/http"
	"strings"
)

// ErrorType is the category in the "type" field of an error body.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeProviderError  ErrorType = "provider_error"
	ErrorTypeServerError    ErrorType = "server_error"
)

// Status returns the HTTP status an error of type t is reported with.
// Unknown types map to 500.
func (t ErrorType) Status() int {
	switch t {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeProviderError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// APIError is the error shape clients see, both as a JSON response body
// and as the payload of an SSE error frame. Code carries the vendor status
// for provider errors; Param names the offending input field.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	b.WriteString(": " + e.Message)
	if e.Param != "" {
		b.WriteString(" (param: " + e.Param + ")")
	}
	return b.String()
}

// Is matches any *APIError of the same type, so
// errors.Is(err, &APIError{Type: ErrorTypeInvalidRequest}) tests the category.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Type == e.Type
}

// ErrorResponse is the top-level JSON error body.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError reports input that failed validation.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewForbiddenError reports a request rejected by the login gate.
func NewForbiddenError(message string) *APIError {
	return &APIError{Type: ErrorTypeForbidden, Message: message}
}

// NewNotFoundError reports an unknown route.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewServerError reports an internal failure. The message must not carry
// internal error text.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// NewProviderError reports a vendor failure; code is the vendor's status.
func NewProviderError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeProviderError, Code: code, Message: message}
}
