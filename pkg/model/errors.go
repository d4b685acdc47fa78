package model

import (
	"errors"
	"fmt"
)

// ErrSessionInvalidated is wrapped by every AUTH error. The session store has
// already been cleared by the time a caller sees it.
var ErrSessionInvalidated = errors.New("session invalidated")

// ErrorKind classifies a failed API interaction.
type ErrorKind string

const (
	// KindAuth is a 401 from a protected endpoint.
	KindAuth ErrorKind = "AUTH"
	// KindRejected is any other 4xx; Detail holds the server's message.
	KindRejected ErrorKind = "REJECTED"
	// KindServer is a 5xx.
	KindServer ErrorKind = "SERVER"
	// KindNetwork means no response arrived at all.
	KindNetwork ErrorKind = "NETWORK"
	// KindDecode is a malformed token or a response of the wrong shape.
	KindDecode ErrorKind = "DECODE"
	// KindInvalid is a request refused before dispatch.
	KindInvalid ErrorKind = "INVALID"
)

// APIError is the error type returned by the API client.
type APIError struct {
	Kind    ErrorKind    `json:"kind"`
	Status  int          `json:"status,omitempty"`
	Message string       `json:"message"`
	Detail  string       `json:"detail,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("%s (%d): %s: %s", e.Kind, e.Status, e.Message, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	if e.Kind == KindAuth {
		return ErrSessionInvalidated
	}
	return e.Err
}

// UserMessage is the text a front end shows next to the form that failed:
// the server's detail when it sent one, otherwise fallback.
func (e *APIError) UserMessage(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Kind == KindInvalid && len(e.Fields) > 0 {
		return e.Fields[0].Message
	}
	if e.Kind == KindNetwork {
		return "Server is unreachable, try again later"
	}
	return fallback
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an INVALID error with field details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Kind: KindInvalid, Message: msg, Fields: details}
}

// NewDecodeError creates a DECODE error.
func NewDecodeError(format string, args ...any) *APIError {
	return &APIError{Kind: KindDecode, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not an *APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsSessionError reports whether err forces re-authentication: a 401 or an
// undecodable token.
func IsSessionError(err error) bool {
	if errors.Is(err, ErrSessionInvalidated) {
		return true
	}
	return KindOf(err) == KindDecode && errors.Is(err, ErrMalformedToken)
}

// ErrMalformedToken marks a bearer token that cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")
