package matching

import (
	"fmt"

	"github.com/greatxam/stock-trading-go/internal/types"
)

// Remaining returns the unfilled quantity of an order given the summed
// quantity of its executed trades. A negative remainder means the matcher has
// over-filled the order; that is never clamped, it fails fast so the defect
// surfaces at the point of corruption.
func Remaining(order *types.Transaction, filled int64) (int64, error) {
	remaining := order.Quantity - filled
	if remaining < 0 {
		return 0, &types.InvariantViolation{
			OrderID: order.ID,
			Reason:  fmt.Sprintf("filled quantity %d exceeds requested %d", filled, order.Quantity),
		}
	}
	return remaining, nil
}

// StatusFor derives an order's status from its filled quantity. Status is
// CLEARED iff the order is fully filled; it is never set ad hoc by the matcher.
func StatusFor(order *types.Transaction, filled int64) string {
	if filled == order.Quantity {
		return types.StatusCleared
	}
	return types.StatusPending
}
