package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes shared by the chat and HTTP surfaces.
const (
	CodeParse                  = "PARSE_ERROR"
	CodeIncompleteForm         = "INCOMPLETE_FORM"
	CodeValidation             = "VALIDATION_FAILED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeStore                  = "STORE_ERROR"
	CodeTransport              = "TRANSPORT_ERROR"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so sentinel-style
// checks like errors.Is(err, ErrNotFound) work across instances.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrParse                  = &DomainError{Code: CodeParse}
	ErrIncompleteForm         = &DomainError{Code: CodeIncompleteForm}
	ErrUnauthorized           = &DomainError{Code: CodeUnauthorized}
	ErrInvalidStateTransition = &DomainError{Code: CodeInvalidStateTransition}
	ErrNotFound               = &DomainError{Code: CodeNotFound}
	ErrStore                  = &DomainError{Code: CodeStore}
	ErrTransport              = &DomainError{Code: CodeTransport}
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewParseError(message string) error {
	return NewDomainError(CodeParse, message, http.StatusBadRequest, nil)
}

// NewIncompleteForm reports the submission labels that were absent or empty.
func NewIncompleteForm(missing []string) error {
	return NewDomainError(CodeIncompleteForm,
		"incomplete form: missing "+strings.Join(missing, ", "),
		http.StatusBadRequest,
		map[string]any{"missing": missing})
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition reports a command that is valid but not allowed for the ticket's state.
func NewInvalidTransition(ticketNumber, status string) error {
	return NewDomainError(CodeInvalidStateTransition,
		"cannot act on ticket in its current state",
		http.StatusConflict,
		map[string]any{"ticket_number": ticketNumber, "status": status})
}

func NewStoreError(err error) error {
	return &DomainError{
		Code:       CodeStore,
		Message:    "record store failure",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewTransportError(err error) error {
	return &DomainError{
		Code:       CodeTransport,
		Message:    "chat transport failure",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus == 0 {
			copied := *domainErr
			copied.HTTPStatus = http.StatusInternalServerError
			return &copied
		}
		return domainErr
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
