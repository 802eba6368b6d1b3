// Package merrors defines the error taxonomy shared across the matching
// core: validation failures, not-found lookups, and internal consistency
// violations. Callers compare against the sentinels with errors.Is.
package merrors

import "errors"

var (
	// ErrInvalidOrder marks a malformed order: bad quantity, missing
	// price on a Limit/IOC/FOK, unknown order type, or empty symbol.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrDuplicateOrder marks an order id already registered on a book.
	ErrDuplicateOrder = errors.New("duplicate order")

	// ErrOrderNotFound marks a cancel/query against an id that is not
	// resting on the book (or an unknown symbol).
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidFill marks an internal consistency violation applying a
	// fill. Should be unreachable in correct code.
	ErrInvalidFill = errors.New("invalid fill")

	// ErrInvalidTrade marks a Trade constructed with a non-positive
	// price/quantity, negative fees, or an empty symbol.
	ErrInvalidTrade = errors.New("invalid trade")
)
