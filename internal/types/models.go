package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction statuses
const (
	StatusPending = "PENDING"
	StatusCleared = "CLEARED"
)

// Stock is a tradable instrument. Price is the last-traded price and is only
// written by the matching engine when a trade clears.
type Stock struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	Code      string          `gorm:"uniqueIndex;size:4" json:"code"`
	Name      string          `gorm:"uniqueIndex" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is the single record shape behind both standing orders and
// executed trades. IsOrder discriminates the two views: an order is a standing
// intent that starts PENDING and flips to CLEARED once fully filled; a trade is
// an immutable CLEARED execution record linked to the order it satisfies via
// OrderID.
type Transaction struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	Type      string          `json:"type"`   // BUY or SELL
	Status    string          `json:"status"` // PENDING or CLEARED
	IsOrder   bool            `json:"is_order"`
	StockID   string          `gorm:"index" json:"stock_id"`
	UserID    string          `gorm:"index" json:"user_id"`
	OrderID   string          `gorm:"index" json:"order_id,omitempty"` // set on trades only
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewOrder returns a standing order intent. Orders always start PENDING.
func NewOrder(userID, stockID, side string, quantity int64, price decimal.Decimal) *Transaction {
	return &Transaction{
		ID:       uuid.New().String(),
		Type:     side,
		Status:   StatusPending,
		IsOrder:  true,
		StockID:  stockID,
		UserID:   userID,
		Quantity: quantity,
		Price:    price,
		Amount:   price.Mul(decimal.NewFromInt(quantity)),
	}
}

// NewTrade returns an execution record against the given order. Trades are
// always CLEARED, carry the order's side, account and stock, and are never
// mutated after creation.
func NewTrade(order *Transaction, quantity int64, price decimal.Decimal) *Transaction {
	return &Transaction{
		ID:       uuid.New().String(),
		Type:     order.Type,
		Status:   StatusCleared,
		IsOrder:  false,
		StockID:  order.StockID,
		UserID:   order.UserID,
		OrderID:  order.ID,
		Quantity: quantity,
		Price:    price,
		Amount:   price.Mul(decimal.NewFromInt(quantity)),
	}
}

// IsTrade reports whether the record is an execution record rather than a
// standing order.
func (t *Transaction) IsTrade() bool {
	return !t.IsOrder
}

// IdempotencyRecord ties an Idempotency-Key header value to the resource it
// created so a repeated submission returns the original resource.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Portfolio is the aggregate holding for one account and stock pair. It is
// created on the first cleared trade and only ever mutated additively by the
// settlement projector.
type Portfolio struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	UserID       string          `gorm:"uniqueIndex:idx_portfolios_user_stock" json:"user_id"`
	StockID      string          `gorm:"uniqueIndex:idx_portfolios_user_stock" json:"stock_id"`
	TotalShares  int64           `json:"total_shares"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	AveragePrice decimal.Decimal `gorm:"type:decimal(12,2)" json:"average_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
