package migrations

import (
	"gorm.io/gorm"
)

// AddTransactionIndexes creates the composite indexes the matching pass and
// reporting reads depend on
func AddTransactionIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for the standing-order scan of a matching pass
		`CREATE INDEX IF NOT EXISTS idx_transactions_book
		 ON transactions(stock_id, is_order, status, type)`,

		// Index for created_at timestamp (priority tie-break ordering)
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at
		 ON transactions(created_at)`,

		// Index for filled-quantity sums over an order's trade set
		`CREATE INDEX IF NOT EXISTS idx_transactions_order_id
		 ON transactions(order_id)`,

		// Composite index for own-account order and trade listings
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_is_order
		 ON transactions(user_id, is_order)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
