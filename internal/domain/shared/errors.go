// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrCapacity     = errors.New("capacity exceeded")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "group", "activity"
	Op      string // Operation that failed, e.g., "Record", "Share"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Activity domain errors
var (
	ErrInvalidDuration        = NewDomainError("activity", "Validate", ErrValueOutOfRange, "duration must be greater than zero")
	ErrDurationTooLarge       = NewDomainError("activity", "Validate", ErrValueOutOfRange, "duration exceeds 4294967295 minutes")
	ErrInvalidCategory        = NewDomainError("activity", "Validate", ErrInvalidInput, "unknown activity category")
	ErrNotesTooLong           = NewDomainError("activity", "Validate", ErrValueOutOfRange, "notes exceed maximum length")
	ErrInvalidUserID          = NewDomainError("activity", "Validate", ErrInvalidID, "invalid user ID")
	ErrSessionAlreadyRecorded = NewDomainError("activity", "Record", ErrAlreadyExists, "session already recorded at this timestamp")
)

// Progress domain errors
var (
	ErrAchievementNotFound = NewDomainError("progress", "FindAchievement", ErrNotFound, "achievement not found")
	ErrCapacityExceeded    = NewDomainError("progress", "Append", ErrCapacity, "bounded list capacity exceeded")
	ErrDuplicateAward      = NewDomainError("progress", "Award", ErrAlreadyExists, "milestone already awarded")
	ErrInvalidMilestone    = NewDomainError("progress", "Validate", ErrInvalidInput, "milestone description does not fit")
	ErrInvalidDay          = NewDomainError("progress", "Apply", ErrValueOutOfRange, "day index must be positive")
	ErrAggregateMismatch   = NewDomainError("progress", "Apply", ErrInvalidInput, "aggregate belongs to another user")
)

// Group domain errors
var (
	ErrGroupNotFound  = NewDomainError("group", "Find", ErrNotFound, "group not found")
	ErrAlreadyMember  = NewDomainError("group", "AddMember", ErrAlreadyExists, "user is already a member")
	ErrNotMember      = NewDomainError("group", "CheckMember", ErrForbidden, "user is not a member")
	ErrNotAuthorized  = NewDomainError("group", "Authorize", ErrForbidden, "not authorized")
	ErrInvalidGroupID = NewDomainError("group", "Validate", ErrInvalidID, "invalid group ID")
	ErrEmptyGroupName = NewDomainError("group", "Validate", ErrEmptyValue, "group name cannot be empty")
)

// Sharing errors
var (
	ErrInvalidSignature = NewDomainError("sharing", "Verify", ErrInvalidInput, "attestation signature mismatch")
	ErrSigningDisabled  = NewDomainError("sharing", "Verify", ErrInvalidState, "attestation signing is not configured")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsForbidden checks if the error is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
}

// IsCapacity checks if a bounded collection would overflow.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
