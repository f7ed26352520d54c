package stocks

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

func (d *Database) Create(stock *types.Stock) error {
	return d.db.Create(stock).Error
}

func (d *Database) Save(stock *types.Stock) error {
	return d.db.Save(stock).Error
}

func (d *Database) GetByCode(code string) (*types.Stock, error) {
	var stock types.Stock
	if err := d.db.Where("code = ?", code).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrUnknownStock
		}
		return nil, err
	}
	return &stock, nil
}

func (d *Database) List() ([]types.Stock, error) {
	var stocks []types.Stock
	if err := d.db.Order("name asc").Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}
