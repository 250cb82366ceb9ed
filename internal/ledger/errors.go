package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Error is a typed ledger failure. Code is the stable taxonomy name surfaced to
// callers, metrics and CLI output; Msg is the human readable description.
type Error struct {
	Code string
	Msg  string
}

// NewError returns a sentinel error with the given taxonomy code.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func (e *Error) Error() string {
	return e.Msg
}

const (
	CodeOK            = "OK"
	CodeTransferError = "TransferError"
	CodeCanceled      = "Canceled"
	CodeInternal      = "Internal"
)

// Host level failures shared by every program.
var (
	ErrNotFound      = NewError("NotFound", "account not found")
	ErrAlreadyExists = NewError("AlreadyExists", "account already exists")
	ErrKeyNotLocked  = NewError("KeyNotLocked", "account accessed without holding its lock")
	ErrReadOnly      = NewError("ReadOnly", "write attempted in a read-only view")
	ErrConflict      = NewError("Conflict", "concurrent update conflict")

	ErrInsufficientFunds   = NewError("InsufficientFunds", "insufficient funds")
	ErrOverflow            = NewError("Overflow", "arithmetic overflow")
	ErrInvalidAmount       = NewError("InvalidAmount", "amount must be greater than zero")
	ErrInvalidArgument     = NewError("InvalidArgument", "invalid argument")
	ErrInvalidTokenAccount = NewError("InvalidTokenAccount", "token account does not match owner or mint")
	ErrUnknownOp           = NewError("UnknownOp", "unknown operation")
)

// Causes carried by a TransferError.
var (
	ErrInsufficientBalance = NewError("InsufficientBalance", "source balance is insufficient")
	ErrUnauthorized        = NewError("Unauthorized", "authority is not entitled to debit the source account")
	ErrMintMismatch        = NewError("MintMismatch", "source and destination hold different mints")
)

// TransferError is returned by the token transfer primitive. A failed transfer
// never leaves a partial debit or credit behind.
type TransferError struct {
	From   Address
	To     Address
	Amount uint64
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %d from %s to %s failed: %v", e.Amount, e.From, e.To, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Invalidf wraps ErrInvalidArgument with detail.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CodeOf maps an error onto its taxonomy code. Transfer failures report
// TransferError regardless of their cause.
func CodeOf(err error) string {
	if err == nil {
		return CodeOK
	}

	var te *TransferError
	if errors.As(err, &te) {
		return CodeTransferError
	}

	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeInternal
}
