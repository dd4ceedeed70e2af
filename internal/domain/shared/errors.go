// Package shared contains identifiers, errors and events used across the
// progression domain packages. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrNotFound: unknown user, course or module.
	ErrNotFound = errors.New("entity not found")

	// ErrNotEnrolled: the operation requires an enrollment for (user, course).
	ErrNotEnrolled = errors.New("not enrolled")

	// ErrInsufficientFunds: a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidInput: malformed command (non-positive amount, zero id, ...).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInfrastructure: the record store is unavailable or timed out.
	// This is the only kind eligible for retry.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// DomainError carries the failing domain, operation and kind.
type DomainError struct {
	Domain  string // e.g. "wallet", "reward", "progress"
	Op      string // e.g. "Credit", "Grant"
	Kind    error  // one of the Err* kinds above
	Message string
	Err     error // underlying cause, optional
}

// Error implements error.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the cause, or the kind when there is no cause.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a DomainError without a cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError creates a DomainError around a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Infrastructure wraps a store failure. A nil err stays nil.
func Infrastructure(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	if IsInfrastructure(err) {
		return err
	}
	return WrapError(domain, op, ErrInfrastructure, "record store failure", err)
}

// Predeclared errors.
var (
	ErrCourseNotFound = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrModuleNotFound = NewDomainError("course", "FindModule", ErrNotFound, "module not found")
	ErrNotBonusModule = NewDomainError("course", "FindBonusModule", ErrNotFound, "module is not a bonus module")
	ErrNonPositive    = NewDomainError("wallet", "Validate", ErrInvalidInput, "amount must be positive")
	ErrNoFunds        = NewDomainError("wallet", "Debit", ErrInsufficientFunds, "balance too low")
)

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientFunds reports whether err denotes a denied debit.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsInfrastructure reports whether err is a store failure.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}

// IsRetryable reports whether the operation that produced err may be retried.
func IsRetryable(err error) bool {
	return IsInfrastructure(err)
}
