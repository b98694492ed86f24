package service

import (
	"errors"
	"fmt"
)

const (
	// ErrInternalServerError means that an internal server error has occurred.
	ErrInternalServerError = "internal_server_error"
	// ErrEntityNotFound means that an identity, service or app is not known to the broker.
	ErrEntityNotFound = "entity_not_found"
	// ErrBadParameter means that provided parameter does not match declared.
	ErrBadParameter = "bad_parameter"
	// ErrUnavailable means that no node could take the request right now.
	ErrUnavailable = "unavailable"
	// ErrUnauthenticated means that a signature or token did not verify.
	ErrUnauthenticated = "unauthenticated"
)

var (
	// ErrNoProvider is wrapped by RequestService and RequestCommonInstance when no node admitted the request.
	ErrNoProvider = errors.New("no provider with spare capacity")
	// ErrConnClosed is returned by a connection's Send and Call once the connection is gone.
	ErrConnClosed = errors.New("connection closed")
	// ErrCallTimeout is returned by Node when a nested call did not complete within the call timeout.
	ErrCallTimeout = errors.New("nested call timed out")
)

// CenterError represents an error within the context of the center broker.
type CenterError struct {
	// Code is a machine-readable code.
	Code string `json:"code,omitempty"`
	// Message is a human-readable message.
	Message string `json:"message"`
	// Inner is a wrapped error that is never shown to API consumers.
	Inner error `json:"-"`
}

// NewCenterError creates a new CenterError.
func NewCenterError(code string, message string, inner error) *CenterError {
	return &CenterError{
		Code:    code,
		Message: message,
		Inner:   inner,
	}
}

func NewInternalServerError(message string, inner error) *CenterError {
	return newOrInner(ErrInternalServerError, message, inner)
}

func NewEntityNotFoundError(message string, inner error) *CenterError {
	return newOrInner(ErrEntityNotFound, message, inner)
}

func NewBadParameterError(message string, inner error) *CenterError {
	return newOrInner(ErrBadParameter, message, inner)
}

func NewUnavailableError(message string, inner error) *CenterError {
	return newOrInner(ErrUnavailable, message, inner)
}

func NewUnauthenticatedError(message string, inner error) *CenterError {
	return newOrInner(ErrUnauthenticated, message, inner)
}

// newOrInner keeps an already classified inner error instead of wrapping it a second time.
func newOrInner(code string, message string, inner error) *CenterError {
	if centerInner := ToCenterError(inner); centerInner != nil {
		return centerInner
	}
	return NewCenterError(code, message, inner)
}

func (e CenterError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Inner)
	}

	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// Unwrap the error returning the error's reason.
func (e CenterError) Unwrap() error {
	return e.Inner
}

// ToCenterError returns a pointer to a center error, or nil if it is not a center error.
func ToCenterError(err error) *CenterError {
	var e *CenterError
	if errors.As(err, &e) {
		return e
	}

	return nil
}

// ToCenterErrorCode returns the code of the error, if available.
func ToCenterErrorCode(err error) string {
	if centerErr := ToCenterError(err); centerErr != nil {
		return centerErr.Code
	}
	return ""
}

func IsCenterError(err error, code string) bool {
	if centerErr := ToCenterError(err); centerErr != nil {
		return centerErr.Code == code
	}
	return false
}

func IsInternalServerError(err error) bool {
	return IsCenterError(err, ErrInternalServerError)
}

func IsEntityNotFoundError(err error) bool {
	return IsCenterError(err, ErrEntityNotFound)
}

func IsBadParameterError(err error) bool {
	return IsCenterError(err, ErrBadParameter)
}

func IsUnavailableError(err error) bool {
	return IsCenterError(err, ErrUnavailable)
}

func IsUnauthenticatedError(err error) bool {
	return IsCenterError(err, ErrUnauthenticated)
}
