package matching

import (
	"errors"

	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// PendingOrders returns all standing orders awaiting matching, oldest first.
// An empty stockCode selects every stock.
func (d *Database) PendingOrders(stockCode string) ([]types.Transaction, error) {
	query := d.db.
		Where("is_order = ? AND status = ?", true, types.StatusPending).
		Order("created_at asc")

	if stockCode != "" {
		stock, err := d.GetStockByCode(stockCode)
		if err != nil {
			return nil, err
		}
		query = query.Where("stock_id = ?", stock.ID)
	}

	var orders []types.Transaction
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) GetOrder(id string) (*types.Transaction, error) {
	var order types.Transaction
	if err := d.db.Where("id = ? AND is_order = ?", id, true).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
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

func (d *Database) CreateTrade(trade *types.Transaction) error {
	return d.db.Create(trade).Error
}

func (d *Database) UpdateOrderStatus(order *types.Transaction) error {
	return d.db.Model(&types.Transaction{}).
		Where("id = ?", order.ID).
		Update("status", order.Status).Error
}

// UpdateStockPrice records the last-traded price on the stock. Nothing else in
// the system writes this field.
func (d *Database) UpdateStockPrice(stockID string, price decimal.Decimal) error {
	return d.db.Model(&types.Stock{}).
		Where("id = ?", stockID).
		Update("price", price).Error
}
