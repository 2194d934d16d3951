// Package circulation implements the loan lifecycle: lending an item to a
// borrower and taking it back.
//
// # Rules
//
//	GIVEN: an item and a borrower
//	WHEN:  Borrow is called with the accession code read off the copy
//	THEN:  an active loan is created and the item status becomes "borrowed"
//	ERROR: ErrAlreadyBorrowed   if the item already has an active loan
//	ERROR: ErrAccessionMismatch if the supplied code differs from the stored one
//	ERROR: ErrItemUnavailable   if the item is lost, discarded, quarantined
//	                            or shelved where borrowing is prevented
//	ERROR: ErrLoanLimitReached  if the borrower already holds the maximum
//
//	WHEN:  Unborrow is called by the holder with the accession code
//	THEN:  the loan is archived as a LoanRecord and the item is available again
//	ERROR: ErrNotBorrowed       if there is no loan or it belongs to someone else
//	ERROR: ErrAccessionMismatch if the supplied code differs from the stored one
//
// Every guard error wraps ErrBorrow, so callers can test for the whole family
// with errors.Is(err, ErrBorrow).
//
// # Atomicity
//
// The Service holds no locks of its own. A Store runs each operation as one
// database transaction and must leave state untouched on any error. The
// gorm-backed Store lives in internal/database/loans.
package circulation
