package types

import (
	"errors"
	"fmt"
)

// ErrUnknownStock is returned when a referenced stock code does not exist.
// Direct submissions fail on it; bulk ingestion skips the offending row.
var ErrUnknownStock = errors.New("unknown stock code")

// ValidationError rejects bad input before any state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvariantViolation signals a matching defect, such as a filled quantity
// exceeding the requested quantity or a cleared order being re-matched. It is
// always fatal to the current pass and never silently corrected.
type InvariantViolation struct {
	OrderID string
	Reason  string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation on order %s: %s", e.OrderID, e.Reason)
}

// SettlementError wraps a persistence fault raised while folding a trade into
// a portfolio. It aborts the remainder of the current order's matching.
type SettlementError struct {
	TradeID string
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed for trade %s: %v", e.TradeID, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
