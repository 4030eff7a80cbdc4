package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the custody ledger
// return these (optionally wrapped) so services can translate them into
// domain errors with the right code.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: write collided with a uniqueness constraint
// - ErrInvalidState: record in wrong status for the requested mutation
// - ErrInsufficientFunds: account balance cannot cover the debit
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, wrong code), use pkg/domain-errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("unavailable")
)
