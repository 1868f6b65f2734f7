package entity

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation                 = errors.New("validation failed")
	ErrNotFound                   = errors.New("not found")
	ErrNotAuthorized              = errors.New("not authorized")
	ErrAuthRequired               = errors.New("authentication required")
	ErrInvalidCredential          = errors.New("invalid credential")
	ErrDuplicateRegistration      = errors.New("already registered for this event")
	ErrCapacityExceeded           = errors.New("event is full")
	ErrRegistrationClosed         = errors.New("registration is closed")
	ErrRegistrationPaused         = errors.New("registration is paused")
	ErrNotEntitled                = errors.New("plan does not allow this")
	ErrNotIssued                  = errors.New("ticket is not issued")
	ErrTicketNotPending           = errors.New("ticket is not pending")
	ErrTicketCheckedIn            = errors.New("ticket is already checked in")
	ErrAmountMismatch             = errors.New("amount mismatch")
	ErrMissingUTR                 = errors.New("missing transaction reference")
	ErrProofAlreadyVerified       = errors.New("payment proof is already verified")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e ValidationError) Error() string {
	return e.Message
}

func (e ValidationError) Unwrap() error {
	return ErrValidation
}

type AmountMismatchError struct {
	Expected decimal.Decimal
	Claimed  decimal.Decimal
}

func (e AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %s, got %s", e.Expected.StringFixed(2), e.Claimed.StringFixed(2))
}

func (e AmountMismatchError) Unwrap() error {
	return ErrAmountMismatch
}

type NotEntitledError struct {
	Feature Feature
	Reason  string
}

func (e NotEntitledError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("plan does not allow %s", e.Feature)
	}
	return fmt.Sprintf("plan does not allow %s: %s", e.Feature, e.Reason)
}

func (e NotEntitledError) Unwrap() error {
	return ErrNotEntitled
}
