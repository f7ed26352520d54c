package trading

import (
	"errors"
	"time"

	"github.com/greatxam/stock-trading-go/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetStockByCode(code string) (*types.Stock, error) {
	var stock types.Stock
	if err := d.db.Where("code = ?", code).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrUnknownStock
		}
		return nil, err
	}
	return &stock, nil
}

func (d *Database) CreateOrder(order *types.Transaction) error {
	return d.db.Create(order).Error
}

// CreateOrderWithIdempotency creates a new order and idempotency record in a transaction
func (d *Database) CreateOrderWithIdempotency(order *types.Transaction, idempotencyKey string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		record := types.IdempotencyRecord{
			IdempotencyKey: idempotencyKey,
			ResourceID:     order.ID,
			ResourceType:   "order",
			ExpiresAt:      time.Now().Add(24 * time.Hour),
		}

		return tx.Create(&record).Error
	})
}

// GetIdempotencyRecord retrieves an idempotency record by key
func (d *Database) GetIdempotencyRecord(key string) (*types.IdempotencyRecord, error) {
	var record types.IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) listTransactions(userID string, isOrder bool) ([]types.Transaction, error) {
	query := d.db.Where("is_order = ?", isOrder).Order("created_at desc")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var records []types.Transaction
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListOrders returns the account's standing and cleared orders, newest first.
// An empty userID returns every account's orders.
func (d *Database) ListOrders(userID string) ([]types.Transaction, error) {
	return d.listTransactions(userID, true)
}

// ListTrades returns the account's execution records, newest first. An empty
// userID returns every account's trades.
func (d *Database) ListTrades(userID string) ([]types.Transaction, error) {
	return d.listTransactions(userID, false)
}

func (d *Database) getTransaction(id, userID string, isOrder bool) (*types.Transaction, error) {
	query := d.db.Where("id = ? AND is_order = ?", id, isOrder)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var record types.Transaction
	if err := query.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) GetOrder(id, userID string) (*types.Transaction, error) {
	return d.getTransaction(id, userID, true)
}

func (d *Database) GetTrade(id, userID string) (*types.Transaction, error) {
	return d.getTransaction(id, userID, false)
}

// FilledQuantity sums the executed trade quantities linked to an order.
func (d *Database) FilledQuantity(orderID string) (int64, error) {
	var filled int64
	err := d.db.Model(&types.Transaction{}).
		Where("order_id = ? AND is_order = ?", orderID, false).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&filled).Error
	if err != nil {
		return 0, err
	}
	return filled, nil
}
