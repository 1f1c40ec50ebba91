package bytebank

import (
	"errors"
	"fmt"

	"github.com/xraph/bytebank/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("bytebank: not found")
	ErrAlreadyExists = errors.New("bytebank: already exists")
	ErrInvalidInput  = errors.New("bytebank: invalid input")

	// Lookup errors
	ErrUserNotFound    = errors.New("bytebank: user not found")
	ErrWalletNotFound  = errors.New("bytebank: wallet not found")
	ErrEntryNotFound   = errors.New("bytebank: entry not found")
	ErrIdentifierTaken = errors.New("bytebank: email or mobile already registered")

	// Ledger errors
	ErrInvalidAmount       = errors.New("bytebank: amount must be a positive number of megabytes")
	ErrInvalidSource       = errors.New("bytebank: invalid source")
	ErrSelfTransfer        = errors.New("bytebank: cannot transfer to yourself")
	ErrInsufficientQuota   = errors.New("bytebank: insufficient daily quota")
	ErrInsufficientBalance = errors.New("bytebank: insufficient wallet balance")
	ErrRecipientNotFound   = errors.New("bytebank: recipient not found")

	// Store errors
	ErrPersistenceFailure = errors.New("bytebank: persistence failure")
	ErrStoreClosed        = errors.New("bytebank: store is closed")
	ErrMigrationFailed    = errors.New("bytebank: migration failed")

	// Locking errors
	ErrLockUnavailable = errors.New("bytebank: user lock unavailable")
)

// ErrorKind is the coarse classification handed to presentation layers.
type ErrorKind string

const (
	KindNone                        ErrorKind = ""
	KindInvalidAmount               ErrorKind = "InvalidAmount"
	KindInsufficientQuota           ErrorKind = "InsufficientQuota"
	KindInsufficientBalance         ErrorKind = "InsufficientBalance"
	KindRecipientNotFound           ErrorKind = "RecipientNotFound"
	KindSelfTransferOrInvalidSource ErrorKind = "SelfTransferOrInvalidSource"
	KindPersistenceFailure          ErrorKind = "PersistenceFailure"
	KindNotFound                    ErrorKind = "NotFound"
	KindInvalidInput                ErrorKind = "InvalidInput"
	KindUnknown                     ErrorKind = "Unknown"
)

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var verr ValidationError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInsufficientQuota):
		return KindInsufficientQuota
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrRecipientNotFound):
		return KindRecipientNotFound
	case errors.Is(err, ErrSelfTransfer), errors.Is(err, ErrInvalidSource):
		return KindSelfTransferOrInvalidSource
	case IsRetryable(err):
		return KindPersistenceFailure
	case IsNotFound(err):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrIdentifierTaken), errors.As(err, &verr):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bytebank: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// ShortfallError reports a rejected request against a pool that was too
// small. It unwraps to ErrInsufficientQuota or ErrInsufficientBalance.
type ShortfallError struct {
	Err       error
	Requested types.Megabytes
	Available types.Megabytes
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%s: requested %s, available %s", e.Err, e.Requested, e.Available)
}

func (e *ShortfallError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "bytebank: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("bytebank: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e when it holds errors and nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrRecipientNotFound)
}

// IsInsufficient returns true if the request was larger than its pool.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientQuota) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceFailure) ||
		errors.Is(err, ErrLockUnavailable)
}

// isDomainError reports errors raised by ledger rules rather than storage.
// These pass through a unit of work unwrapped.
func isDomainError(err error) bool {
	var verr ValidationError
	return IsNotFound(err) ||
		IsInsufficient(err) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSource) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrIdentifierTaken) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrPersistenceFailure) ||
		errors.As(err, &verr)
}
