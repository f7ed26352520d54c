package database

import (
	"fmt"

	"github.com/greatxam/stock-trading-go/internal/database/migrations"
	"github.com/greatxam/stock-trading-go/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection for the given
// sqlite DSN
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core schemas
	err = db.AutoMigrate(
		&types.Stock{},
		&types.Transaction{},
		&types.Portfolio{},
		&types.IdempotencyRecord{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddTransactionIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
