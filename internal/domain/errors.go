package domain

import (
	"errors"

	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

var (
	// ErrInvalidAmount indicates a missing, malformed or non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates that the balance cannot cover amount and fee.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSelfTransfer indicates a transfer to the sender's own wallet.
	ErrSelfTransfer = errors.New("cannot transfer to your own wallet")
	// ErrRecipientNotFound indicates that no account owns the recipient wallet.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists indicates that the owner already has an account.
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrConflict indicates that a balance changed between read and commit.
	ErrConflict = errors.New("balance changed concurrently")
	// ErrLockTimeout indicates that an account lock was not acquired in time.
	ErrLockTimeout = errors.New("account lock timeout")
	// ErrTransferAborted indicates that the commit retry budget is exhausted.
	ErrTransferAborted = errors.New("transaction aborted after repeated conflicts")
	// ErrInvalidSort indicates a sort field outside the allow-list.
	ErrInvalidSort = errors.New("invalid sort")
	// ErrInvalidFilter indicates a malformed history filter.
	ErrInvalidFilter = errors.New("invalid filter")
)

// ErrorKind is a stable machine readable error category.
type ErrorKind string

// Error kinds.
const (
	KindValidation        ErrorKind = "validation"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindSelfTransfer      ErrorKind = "self_transfer"
	KindRecipientNotFound ErrorKind = "recipient_not_found"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindLockTimeout       ErrorKind = "lock_timeout"
	KindTransferAborted   ErrorKind = "transfer_aborted"
	KindAlreadyExists     ErrorKind = "already_exists"
	KindInternal          ErrorKind = "internal"
)

// KindOf returns the category of err.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidSort),
		errors.Is(err, ErrInvalidFilter),
		errors.Is(err, moneypkg.ErrInvalidMoney):
		return KindValidation
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, moneypkg.ErrNegativeResult):
		return KindInsufficientFunds
	case errors.Is(err, ErrSelfTransfer):
		return KindSelfTransfer
	case errors.Is(err, ErrRecipientNotFound):
		return KindRecipientNotFound
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccountAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrLockTimeout):
		return KindLockTimeout
	case errors.Is(err, ErrTransferAborted):
		return KindTransferAborted
	}

	return KindInternal
}

// IsRetryable reports whether the whole command may be retried by the caller.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindLockTimeout, KindTransferAborted:
		return true
	}

	return false
}
