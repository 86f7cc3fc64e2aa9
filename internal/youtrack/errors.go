package youtrack

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code classifies a client failure
type Code string

const (
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	CodeAuth       Code = "auth_error"
	CodeTransport  Code = "transport_error"
)

// Error is a classified failure from the YouTrack client. Status is the
// HTTP status that produced it, or 0 for local and network failures.
type Error struct {
	Code    Code
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the failure class of err. Errors that did not come from
// this package count as transport failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeTransport
}

// statusError maps an HTTP error response to a classified Error.
// YouTrack error bodies are JSON ({"error": ..., "error_description": ...});
// anything else is used verbatim.
func statusError(status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))

	var wire struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		msg = wire.Error
		if wire.Description != "" {
			msg = wire.Error + ": " + wire.Description
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	code := CodeTransport
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = CodeAuth
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = CodeValidation
	}

	return &Error{Code: code, Status: status, Message: msg}
}
