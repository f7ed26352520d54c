package portfolio

import (
	"errors"

	"github.com/greatxam/stock-trading-go/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetByUserAndStock(userID, stockID string) (*types.Portfolio, error) {
	var p types.Portfolio
	if err := d.db.Where("user_id = ? AND stock_id = ?", userID, stockID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (d *Database) ListByUser(userID string) ([]types.Portfolio, error) {
	var portfolios []types.Portfolio
	if err := d.db.Where("user_id = ?", userID).Find(&portfolios).Error; err != nil {
		return nil, err
	}
	return portfolios, nil
}

func (d *Database) ListAll() ([]types.Portfolio, error) {
	var portfolios []types.Portfolio
	if err := d.db.Find(&portfolios).Error; err != nil {
		return nil, err
	}
	return portfolios, nil
}

func (d *Database) Save(p *types.Portfolio) error {
	return d.db.Save(p).Error
}

func (d *Database) GetStock(stockID string) (*types.Stock, error) {
	var stock types.Stock
	if err := d.db.Where("id = ?", stockID).First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}
