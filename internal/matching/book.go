package matching

import (
	"sort"

	"github.com/greatxam/stock-trading-go/internal/types"
)

// Candidates returns the resting counter-orders an incoming order may trade
// against, in price-time priority: best price first, oldest first among equal
// prices. Candidates are PENDING standing orders on the same stock, opposite
// side, excluding the incoming account (no self-trading), whose price crosses
// the incoming price. The result is re-evaluated fresh on every call because
// the book changes between orders within a pass.
func (d *Database) Candidates(incoming *types.Transaction) ([]types.Transaction, error) {
	counterSide := types.SideSell
	if incoming.Type == types.SideSell {
		counterSide = types.SideBuy
	}

	var resting []types.Transaction
	err := d.db.
		Where("is_order = ? AND status = ?", true, types.StatusPending).
		Where("stock_id = ? AND type = ? AND user_id <> ?",
			incoming.StockID, counterSide, incoming.UserID).
		Find(&resting).Error
	if err != nil {
		return nil, err
	}

	// Price comparisons and ordering happen here rather than in SQL so the
	// decimal values are compared numerically.
	candidates := resting[:0]
	for _, order := range resting {
		if crosses(incoming, &order) {
			candidates = append(candidates, order)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		cmp := candidates[i].Price.Cmp(candidates[j].Price)
		if cmp != 0 {
			if incoming.Type == types.SideSell {
				// Incoming sell matches the highest-paying buy first.
				return cmp > 0
			}
			return cmp < 0
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	return candidates, nil
}

// crosses reports whether a resting order's price is compatible with the
// incoming order: a resting buy must pay at least the incoming sell price, a
// resting sell must ask at most the incoming buy price.
func crosses(incoming, resting *types.Transaction) bool {
	if incoming.Type == types.SideSell {
		return resting.Price.Cmp(incoming.Price) >= 0
	}
	return resting.Price.Cmp(incoming.Price) <= 0
}
