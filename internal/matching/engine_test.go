package matching

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/greatxam/stock-trading-go/internal/database"
	"github.com/greatxam/stock-trading-go/internal/portfolio"
	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a fresh in-memory database named after the test so state
// never leaks between tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

// newTestEngine wires the engine with the real portfolio projector, the same
// wiring the server uses.
func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewEngine(db, portfolio.NewService(db).Settle), db
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

func seedOrder(t *testing.T, db *gorm.DB, userID string, stock *types.Stock, side string, quantity int64, price string, at time.Time) *types.Transaction {
	t.Helper()
	order := types.NewOrder(userID, stock.ID, side, quantity, decimal.RequireFromString(price))
	order.CreatedAt = at
	require.NoError(t, db.Create(order).Error)
	return order
}

func reload(t *testing.T, db *gorm.DB, id string) *types.Transaction {
	t.Helper()
	var record types.Transaction
	require.NoError(t, db.First(&record, "id = ?", id).Error)
	return &record
}

func tradesFor(t *testing.T, db *gorm.DB, orderID string) []types.Transaction {
	t.Helper()
	var trades []types.Transaction
	require.NoError(t, db.
		Where("order_id = ? AND is_order = ?", orderID, false).
		Order("created_at asc").
		Find(&trades).Error)
	return trades
}

func countTrades(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&types.Transaction{}).Where("is_order = ?", false).Count(&n).Error)
	return n
}

func TestMatchOrder_NoCrossingCandidates(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	seedOrder(t, db, "seller", stock, types.SideSell, 10, "105.00", now)
	buy := seedOrder(t, db, "buyer", stock, types.SideBuy, 10, "100.00", now.Add(time.Second))

	pairs, err := engine.MatchOrder(buy)
	require.NoError(t, err)
	assert.Equal(t, 0, pairs)
	assert.Equal(t, int64(0), countTrades(t, db))
	assert.Equal(t, types.StatusPending, reload(t, db, buy.ID).Status)
}

func TestMatchOrder_EqualQuantitiesBothClear(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	sell := seedOrder(t, db, "seller", stock, types.SideSell, 10, "100.00", now)
	buy := seedOrder(t, db, "buyer", stock, types.SideBuy, 10, "100.00", now.Add(time.Second))

	pairs, err := engine.MatchOrder(buy)
	require.NoError(t, err)
	assert.Equal(t, 1, pairs)

	assert.Equal(t, types.StatusCleared, reload(t, db, buy.ID).Status)
	assert.Equal(t, types.StatusCleared, reload(t, db, sell.ID).Status)

	// Both legs carry the full quantity: neither remainder was read after the
	// other leg's mutation.
	buyTrades := tradesFor(t, db, buy.ID)
	sellTrades := tradesFor(t, db, sell.ID)
	require.Len(t, buyTrades, 1)
	require.Len(t, sellTrades, 1)
	assert.Equal(t, int64(10), buyTrades[0].Quantity)
	assert.Equal(t, int64(10), sellTrades[0].Quantity)
}

func TestRunPass_PartialFillIncomingRemains(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	buy := seedOrder(t, db, "account-x", stock, types.SideBuy, 20, "100.00", now)
	sell := seedOrder(t, db, "account-y", stock, types.SideSell, 10, "100.00", now.Add(time.Second))

	require.NoError(t, engine.RunPass(""))

	buyAfter := reload(t, db, buy.ID)
	sellAfter := reload(t, db, sell.ID)
	assert.Equal(t, types.StatusPending, buyAfter.Status)
	assert.Equal(t, types.StatusCleared, sellAfter.Status)

	buyTrades := tradesFor(t, db, buy.ID)
	require.Len(t, buyTrades, 1)
	assert.Equal(t, int64(10), buyTrades[0].Quantity)
	assert.True(t, buyTrades[0].Price.Equal(decimal.RequireFromString("100.00")))

	filled, err := NewDatabase(db).FilledQuantity(buy.ID)
	require.NoError(t, err)
	remaining, err := Remaining(buyAfter, filled)
	require.NoError(t, err)
	assert.Equal(t, int64(10), remaining)
}

func TestRunPass_RestingPriceGoverns(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	buy := seedOrder(t, db, "account-x", stock, types.SideBuy, 10, "105.00", now)
	sell := seedOrder(t, db, "account-y", stock, types.SideSell, 10, "100.00", now.Add(time.Second))

	require.NoError(t, engine.RunPass(""))

	assert.Equal(t, types.StatusCleared, reload(t, db, buy.ID).Status)
	assert.Equal(t, types.StatusCleared, reload(t, db, sell.ID).Status)

	// The aggressor is the earlier buy, so the resting sell's price governs.
	for _, trade := range append(tradesFor(t, db, buy.ID), tradesFor(t, db, sell.ID)...) {
		assert.True(t, trade.Price.Equal(decimal.RequireFromString("100.00")),
			"expected execution at 100.00, got %s", trade.Price)
	}
}

func TestRunPass_PriceTimePriority(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	sellY := seedOrder(t, db, "account-y", stock, types.SideSell, 5, "100.00", now)
	sellZ := seedOrder(t, db, "account-z", stock, types.SideSell, 5, "100.00", now.Add(time.Second))
	buyX := seedOrder(t, db, "account-x", stock, types.SideBuy, 10, "100.00", now.Add(2*time.Second))

	require.NoError(t, engine.RunPass(""))

	assert.Equal(t, types.StatusCleared, reload(t, db, sellY.ID).Status)
	assert.Equal(t, types.StatusCleared, reload(t, db, sellZ.ID).Status)
	assert.Equal(t, types.StatusCleared, reload(t, db, buyX.ID).Status)

	// Two trade pairs, the earlier sell filled before the later one.
	buyTrades := tradesFor(t, db, buyX.ID)
	require.Len(t, buyTrades, 2)
	assert.Equal(t, int64(4), countTrades(t, db))
	require.Len(t, tradesFor(t, db, sellY.ID), 1)
	require.Len(t, tradesFor(t, db, sellZ.ID), 1)
}

func TestRunPass_NoSelfTrade(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	seedOrder(t, db, "account-x", stock, types.SideBuy, 10, "100.00", now)
	seedOrder(t, db, "account-x", stock, types.SideSell, 10, "100.00", now.Add(time.Second))

	require.NoError(t, engine.RunPass(""))

	assert.Equal(t, int64(0), countTrades(t, db))
}

func TestRunPass_IdempotentRePass(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	seedOrder(t, db, "account-x", stock, types.SideBuy, 20, "100.00", now)
	seedOrder(t, db, "account-y", stock, types.SideSell, 10, "100.00", now.Add(time.Second))

	require.NoError(t, engine.RunPass(""))
	before := countTrades(t, db)

	require.NoError(t, engine.RunPass(""))
	assert.Equal(t, before, countTrades(t, db), "second pass with no new orders must not trade")
}

func TestRunPass_UpdatesLastTradedPrice(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	seedOrder(t, db, "account-x", stock, types.SideBuy, 10, "105.00", now)
	seedOrder(t, db, "account-y", stock, types.SideSell, 10, "101.50", now.Add(time.Second))

	require.NoError(t, engine.RunPass(""))

	var after types.Stock
	require.NoError(t, db.First(&after, "id = ?", stock.ID).Error)
	assert.True(t, after.Price.Equal(decimal.RequireFromString("101.50")))
}

func TestRunPass_ScopedToStock(t *testing.T) {
	engine, db := newTestEngine(t)
	acme := seedStock(t, db, "ACME")
	wile := seedStock(t, db, "WILE")
	now := time.Now()

	seedOrder(t, db, "account-x", acme, types.SideBuy, 10, "100.00", now)
	seedOrder(t, db, "account-y", acme, types.SideSell, 10, "100.00", now.Add(time.Second))
	seedOrder(t, db, "account-x", wile, types.SideBuy, 10, "100.00", now)
	seedOrder(t, db, "account-y", wile, types.SideSell, 10, "100.00", now.Add(time.Second))

	require.NoError(t, engine.RunPass("ACME"))

	assert.Equal(t, int64(2), countTrades(t, db), "only the scoped stock may trade")
}

func TestRunPass_UnknownStockCode(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.RunPass("ZZZZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnknownStock)
}

func TestRunPass_OverfilledOrderFailsFast(t *testing.T) {
	engine, db := newTestEngine(t)
	stock := seedStock(t, db, "ACME")
	now := time.Now()

	// Corrupt book: a pending order whose trade set already exceeds its
	// requested quantity, plus a crossing candidate to force a match step.
	buy := seedOrder(t, db, "account-x", stock, types.SideBuy, 5, "100.00", now)
	rogue := types.NewTrade(buy, 10, decimal.RequireFromString("100.00"))
	require.NoError(t, db.Create(rogue).Error)
	seedOrder(t, db, "account-y", stock, types.SideSell, 5, "100.00", now.Add(time.Second))

	err := engine.RunPass("")
	require.Error(t, err)

	var violation *types.InvariantViolation
	assert.ErrorAs(t, err, &violation)
}
