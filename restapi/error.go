/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import "fmt"

// Error is the body of an error response: {"error": {"domain": ..., "code": ..., "context": {...}}}.
// Context is a part of the public contract (e.g. "retryAfter" for rejected requests);
// Debug carries details for operators only (e.g. the instance that rejected the request).
type Error struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
	Debug   map[string]interface{} `json:"debug,omitempty"`
}

// Error codes and messages. Variables, so a service may use its own wording.
var (
	ErrCodeInternal         = "internalError"
	ErrCodeNotFound         = "notFound"
	ErrCodeMethodNotAllowed = "methodNotAllowed"
	ErrCodeTooManyRequests  = "tooManyRequests"

	ErrMessageInternal         = "Internal error."
	ErrMessageNotFound         = "Not found."
	ErrMessageMethodNotAllowed = "Method not allowed."
)

// NewError creates a new Error with specified params.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// NewInternalError creates a new internal error with specified domain.
func NewInternalError(domain string) *Error {
	return NewError(domain, ErrCodeInternal, ErrMessageInternal)
}

// Error implements the error interface, so *Error may be returned and logged as a regular error.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Domain, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Domain, e.Code, e.Message)
}

// AddContext sets the public context field and returns e for chaining.
func (e *Error) AddContext(field string, value interface{}) *Error {
	e.Context = setField(e.Context, field, value)
	return e
}

// AddDebug sets the debug field and returns e for chaining.
func (e *Error) AddDebug(field string, value interface{}) *Error {
	e.Debug = setField(e.Debug, field, value)
	return e
}

func setField(m map[string]interface{}, field string, value interface{}) map[string]interface{} {
	if m == nil {
		m = make(map[string]interface{}, 1)
	}
	m[field] = value
	return m
}
