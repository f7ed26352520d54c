package trading

import (
	"fmt"
	"strings"
	"testing"

	"github.com/greatxam/stock-trading-go/internal/database"
	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func seedStock(t *testing.T, db *gorm.DB, code string) *types.Stock {
	t.Helper()
	stock := &types.Stock{
		ID:   "stock-" + code,
		Code: code,
		Name: "Test " + code,
	}
	require.NoError(t, db.Create(stock).Error)
	return stock
}

func TestSubmitOrder_CreatesPendingOrder(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	stock := seedStock(t, db, "ACME")

	order, err := service.SubmitOrder("account-x", "ACME", types.SideBuy, 10, decimal.RequireFromString("99.50"))
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, types.StatusPending, order.Status)
	assert.True(t, order.IsOrder)
	assert.Equal(t, stock.ID, order.StockID)
	assert.Empty(t, order.OrderID)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("995.00")),
		"expected 995.00, got %s", order.Amount)

	stored, err := service.db.GetOrder(order.ID, "account-x")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, types.StatusPending, stored.Status)
}

func TestSubmitOrder_Validation(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	seedStock(t, db, "ACME")

	cases := []struct {
		name     string
		side     string
		quantity int64
		price    string
		field    string
	}{
		{"bad side", "HOLD", 10, "100.00", "side"},
		{"lowercase side", "buy", 10, "100.00", "side"},
		{"zero quantity", types.SideBuy, 0, "100.00", "quantity"},
		{"negative quantity", types.SideBuy, -5, "100.00", "quantity"},
		{"zero price", types.SideBuy, 10, "0", "price"},
		{"negative price", types.SideBuy, 10, "-1.00", "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.SubmitOrder("account-x", "ACME", tc.side, tc.quantity, decimal.RequireFromString(tc.price))
			var verr *types.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	var n int64
	require.NoError(t, db.Model(&types.Transaction{}).Count(&n).Error)
	assert.Equal(t, int64(0), n, "rejected orders must not be persisted")
}

func TestSubmitOrder_UnknownStock(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	_, err := service.SubmitOrder("account-x", "ZZZZ", types.SideBuy, 10, decimal.RequireFromString("100.00"))
	assert.ErrorIs(t, err, types.ErrUnknownStock)
}

func TestSubmitOrderIdempotent_RepeatKeyReturnsExistingOrder(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	seedStock(t, db, "ACME")

	first, err := service.SubmitOrderIdempotent("account-x", "ACME", types.SideBuy, 10,
		decimal.RequireFromString("100.00"), "key-1")
	require.NoError(t, err)

	second, err := service.SubmitOrderIdempotent("account-x", "ACME", types.SideBuy, 10,
		decimal.RequireFromString("100.00"), "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var n int64
	require.NoError(t, db.Model(&types.Transaction{}).Where("is_order = ?", true).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	var record types.IdempotencyRecord
	require.NoError(t, db.Where("idempotency_key = ?", "key-1").First(&record).Error)
	assert.Equal(t, first.ID, record.ResourceID)
	assert.Equal(t, "order", record.ResourceType)
}

func TestSubmitOrderIdempotent_DistinctKeysCreateDistinctOrders(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	seedStock(t, db, "ACME")

	first, err := service.SubmitOrderIdempotent("account-x", "ACME", types.SideBuy, 10,
		decimal.RequireFromString("100.00"), "key-1")
	require.NoError(t, err)
	second, err := service.SubmitOrderIdempotent("account-x", "ACME", types.SideBuy, 10,
		decimal.RequireFromString("100.00"), "key-2")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestListOrders_ScopesToAccount(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	seedStock(t, db, "ACME")

	_, err := service.SubmitOrder("account-x", "ACME", types.SideBuy, 10, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	_, err = service.SubmitOrder("account-y", "ACME", types.SideSell, 5, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	mine, err := service.ListOrders("account-x")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "account-x", mine[0].UserID)
	assert.Equal(t, int64(0), mine[0].FilledQuantity)
	assert.Equal(t, int64(10), mine[0].RemainingQuantity)

	// An empty account filter is the staff view: everything.
	all, err := service.ListOrders("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOrderView_ReportsFillProgress(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	stock := seedStock(t, db, "ACME")

	order, err := service.SubmitOrder("account-x", "ACME", types.SideBuy, 10, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	trade := types.NewTrade(order, 4, decimal.RequireFromString("100.00"))
	require.NoError(t, db.Create(trade).Error)

	view, err := service.GetOrder(order.ID, "account-x")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, int64(4), view.FilledQuantity)
	assert.Equal(t, int64(6), view.RemainingQuantity)
	assert.Equal(t, stock.ID, view.StockID)
}

func TestGetOrder_OtherAccountGetsNothing(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	seedStock(t, db, "ACME")

	order, err := service.SubmitOrder("account-x", "ACME", types.SideBuy, 10, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	view, err := service.GetOrder(order.ID, "account-y")
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestListTrades_ExcludesOrders(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)
	seedStock(t, db, "ACME")

	order, err := service.SubmitOrder("account-x", "ACME", types.SideBuy, 10, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	trade := types.NewTrade(order, 10, decimal.RequireFromString("100.00"))
	require.NoError(t, db.Create(trade).Error)

	trades, err := service.ListTrades("account-x")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, trade.ID, trades[0].ID)
	assert.False(t, trades[0].IsOrder)
	assert.Equal(t, types.StatusCleared, trades[0].Status)
	assert.Equal(t, order.ID, trades[0].OrderID)
}
