package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the relay core and its HTTP surface.
const (
	CodeUnresolved          = "UNRESOLVED"
	CodeTicketClosed        = "TICKET_CLOSED"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeDeliveryFailure     = "DELIVERY_FAILURE"
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInternal            = "INTERNAL_ERROR"
)

var (
	// ErrUnresolved marks an inbound message that does not belong to any ticket.
	ErrUnresolved = NewDomainError(CodeUnresolved, "message not correlated to a ticket", http.StatusNotFound, nil)
	// ErrTicketClosed marks an event addressed to a ticket in the terminal state.
	ErrTicketClosed = NewDomainError(CodeTicketClosed, "ticket is closed", http.StatusConflict, nil)
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

// Is matches domain errors by code so wrapped sentinels compare equal.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
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

// NewConstraintViolation reports a uniqueness or foreign key failure raised by the store.
func NewConstraintViolation(constraint string, err error) error {
	return &DomainError{
		Code:       CodeConstraintViolation,
		Message:    "constraint violation",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"constraint": constraint},
		Err:        err,
	}
}

// NewDeliveryFailure wraps a send rejected by the chat platform.
func NewDeliveryFailure(err error) error {
	return &DomainError{
		Code:       CodeDeliveryFailure,
		Message:    "message not delivered",
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

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func IsUnresolved(err error) bool          { return hasCode(err, CodeUnresolved) }
func IsTicketClosed(err error) bool        { return hasCode(err, CodeTicketClosed) }
func IsConstraintViolation(err error) bool { return hasCode(err, CodeConstraintViolation) }
func IsDeliveryFailure(err error) bool     { return hasCode(err, CodeDeliveryFailure) }
func IsNotFound(err error) bool            { return hasCode(err, CodeNotFound) }
func IsValidation(err error) bool          { return hasCode(err, CodeValidation) }
func IsForbidden(err error) bool           { return hasCode(err, CodeForbidden) }

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
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
