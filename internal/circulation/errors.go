package circulation

import (
	"errors"
	"fmt"
)

// ErrBorrow is the root of every loan guard failure.
var ErrBorrow = errors.New("borrow error")

var (
	ErrAlreadyBorrowed   = fmt.Errorf("%w: item is already borrowed", ErrBorrow)
	ErrAccessionMismatch = fmt.Errorf("%w: accession numbers do not match", ErrBorrow)
	ErrNotBorrowed       = fmt.Errorf("%w: item is not borrowed by this user", ErrBorrow)
	ErrItemNotFound      = fmt.Errorf("%w: item not found", ErrBorrow)
	ErrBorrowerNotFound  = fmt.Errorf("%w: borrower not found", ErrBorrow)
	ErrBorrowerInactive  = fmt.Errorf("%w: borrower account is inactive", ErrBorrow)
	ErrItemUnavailable   = fmt.Errorf("%w: item is not available for borrowing", ErrBorrow)
	ErrLoanLimitReached  = fmt.Errorf("%w: borrower has reached the loan limit", ErrBorrow)
)

// ErrInvalidRequest marks malformed arguments. It is not a guard failure.
var ErrInvalidRequest = errors.New("invalid loan request")

// Message returns the text shown to a patron for a loan failure.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyBorrowed):
		return "That item is already borrowed."
	case errors.Is(err, ErrAccessionMismatch):
		return "Accession numbers do not match."
	case errors.Is(err, ErrNotBorrowed):
		return "You have not borrowed that item."
	case errors.Is(err, ErrItemNotFound):
		return "No item with that accession number."
	case errors.Is(err, ErrItemUnavailable):
		return "That item cannot be borrowed."
	case errors.Is(err, ErrLoanLimitReached):
		return "You have borrowed the maximum number of items."
	case errors.Is(err, ErrBorrowerInactive), errors.Is(err, ErrBorrowerNotFound):
		return "Your account cannot borrow items."
	case errors.Is(err, ErrInvalidRequest):
		return "Please enter an accession number."
	default:
		return "Something went wrong. Please try again."
	}
}
