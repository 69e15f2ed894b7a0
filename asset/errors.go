/*
errors.go - Centralized error types for the asset engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Workflow packages wrap these errors with context; callers classify them
  with errors.Is / errors.As or the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Not found - asset, transfer, ledger period missing
  2. Ledger - period already posted (a no-op skip, not a user error)
  3. Lifecycle - invalid state transitions
  4. Invariant - writes that would break the financial invariant set
  5. Calculator - unsupported depreciation method
  6. Store - uniqueness and optimistic concurrency failures

PROPAGATION:
  Lifecycle, invariant and validation errors are recoverable by the caller.
  Inside a depreciation run they are recorded per asset and the run carries
  on. Only persistence failures abort a run.

SEE ALSO:
  - invariants.go: Returns InvariantError / TransitionError
  - depreciation/calculator.go: Returns UnsupportedMethodError
*/
package asset

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAssetNotFound is returned when an asset doesn't exist or was soft deleted.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrTransferNotFound is returned when a transfer doesn't exist.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrLedgerEntryNotFound is returned when a ledger period doesn't exist.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	// ErrAlreadyPosted is returned when a period is already in the ledger
	// for an asset. Runs treat it as a skip.
	ErrAlreadyPosted = errors.New("period already posted")

	// ErrInvalidLifecycleTransition is returned for state machine violations.
	ErrInvalidLifecycleTransition = errors.New("invalid lifecycle transition")

	// ErrUnsupportedMethod is returned by the calculator for methods it
	// cannot compute.
	ErrUnsupportedMethod = errors.New("unsupported depreciation method")

	// ErrInvariantViolation is returned when a write would break the
	// financial invariant set.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDepreciationLocked is returned when depreciation parameters are
	// changed after a period has been posted.
	ErrDepreciationLocked = errors.New("depreciation parameters locked after posting")

	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateAssetCode is returned when an asset code is reused within a facility.
	ErrDuplicateAssetCode = errors.New("duplicate asset code")

	// ErrDuplicateSerialNumber is returned when a serial number is reused.
	ErrDuplicateSerialNumber = errors.New("duplicate serial number")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrRunInProgress is returned when another run holds the facility+period lock.
	ErrRunInProgress = errors.New("depreciation run already in progress")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvariantError names the rule a write would have broken.
type InvariantError struct {
	AssetID AssetID
	Rule    string
	Detail  string
}

func (e *InvariantError) Error() string {
	if e.AssetID == "" {
		return fmt.Sprintf("invariant violation: %s: %s", e.Rule, e.Detail)
	}
	return fmt.Sprintf("invariant violation on asset %s: %s: %s", e.AssetID, e.Rule, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// TransitionError describes a rejected state change.
type TransitionError struct {
	Entity string // "asset" or "transfer"
	ID     string
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidLifecycleTransition }

// UnsupportedMethodError is returned for declared-but-unimplemented or
// unknown depreciation methods.
type UnsupportedMethodError struct {
	Method Method
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported depreciation method %q", e.Method)
}

func (e *UnsupportedMethodError) Unwrap() error { return ErrUnsupportedMethod }

// ValidationError points at a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrRunInProgress)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrTransferNotFound) ||
		errors.Is(err, ErrLedgerEntryNotFound)
}

// IsConflict returns true for uniqueness and concurrency conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPosted) ||
		errors.Is(err, ErrDuplicateAssetCode) ||
		errors.Is(err, ErrDuplicateSerialNumber) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrRunInProgress)
}

// IsClientError returns true if the error is due to invalid client input
// or a request the current state does not allow.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidLifecycleTransition) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrUnsupportedMethod) ||
		errors.Is(err, ErrDepreciationLocked)
}

// IsAssetLevel returns true for errors that concern one asset's data rather
// than the persistence layer. A depreciation run records these per asset
// and keeps going.
func IsAssetLevel(err error) bool {
	return IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrConcurrentModification)
}
