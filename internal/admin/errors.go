package admin

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrUnknownResource = errors.New("unknown resource")
	ErrReadOnly        = errors.New("resource is read-only")
	ErrDuplicate       = errors.New("a record with that value already exists")
	ErrInvalidPayload  = errors.New("invalid JSON payload")

	// ErrNotAllowed is the root of every back office rule violation.
	ErrNotAllowed = errors.New("change not allowed")
)

var (
	ErrSetBorrowed       = fmt.Errorf("%w: items are marked borrowed only by lending them", ErrNotAllowed)
	ErrClearBorrowed     = fmt.Errorf("%w: a borrowed item is released only by returning it", ErrNotAllowed)
	ErrDeleteBorrowed    = fmt.Errorf("%w: a borrowed item cannot be deleted", ErrNotAllowed)
	ErrAccessionBorrowed = fmt.Errorf("%w: the accession of a borrowed item cannot change", ErrNotAllowed)
	ErrBorrowerHasLoans  = fmt.Errorf("%w: the borrower still has items on loan", ErrNotAllowed)
)

// ValidationError lists field problems keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func inUse(what string) error {
	return fmt.Errorf("%w: still used by %s", ErrNotAllowed, what)
}

func fromValidator(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}
