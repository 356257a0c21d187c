package status

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyFinalized  = errors.New("transaction is already finalized")
	ErrConflict          = errors.New("concurrent modification detected")
	ErrCreditPending     = errors.New("balance credit pending reconciliation")

	ErrRefundNotAllowed = errors.New("only successful transactions can be refunded")
	ErrDeleteProcessed  = errors.New("cannot delete a processed transaction")
)

// NotFound wraps ErrNotFound with the entity name so callers can still
// match with errors.Is.
func NotFound(entity string) error {
	return fmt.Errorf("%s: %w", entity, ErrNotFound)
}

// InvalidInput wraps ErrInvalidInput with the validation reason.
func InvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// Repository wraps a persistence failure without losing the original error.
func Repository(op string, err error) error {
	return fmt.Errorf("repository %s: %w", op, err)
}
