package trading

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/greatxam/stock-trading-go/internal/auth"
	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/greatxam/stock-trading-go/pkg/response"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles order intake and the order/trade read projections
type Service struct {
	db *Database
}

// NewService creates a new trading service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// SubmitOrder validates and creates a PENDING standing order. Side must be BUY
// or SELL, quantity and price must be positive and the stock code must exist.
// Rejected input never mutates state.
func (s *Service) SubmitOrder(userID, stockCode, side string, quantity int64, price decimal.Decimal) (*types.Transaction, error) {
	if side != types.SideBuy && side != types.SideSell {
		return nil, &types.ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if quantity <= 0 {
		return nil, &types.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if price.Sign() <= 0 {
		return nil, &types.ValidationError{Field: "price", Reason: "must be positive"}
	}

	stock, err := s.db.GetStockByCode(stockCode)
	if err != nil {
		return nil, err
	}

	order := types.NewOrder(userID, stock.ID, side, quantity, price)
	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// SubmitOrderIdempotent creates an order unless the idempotency key has been
// seen before, in which case the previously created order is returned.
func (s *Service) SubmitOrderIdempotent(userID, stockCode, side string, quantity int64, price decimal.Decimal, idempotencyKey string) (*types.Transaction, error) {
	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err != nil {
		return nil, err
	}
	if record != nil && record.ExpiresAt.After(time.Now()) {
		existing, err := s.db.GetOrder(record.ResourceID, userID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if side != types.SideBuy && side != types.SideSell {
		return nil, &types.ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if quantity <= 0 {
		return nil, &types.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if price.Sign() <= 0 {
		return nil, &types.ValidationError{Field: "price", Reason: "must be positive"}
	}

	stock, err := s.db.GetStockByCode(stockCode)
	if err != nil {
		return nil, err
	}

	order := types.NewOrder(userID, stock.ID, side, quantity, price)
	if err := s.db.CreateOrderWithIdempotency(order, idempotencyKey); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderView is an order enriched with its filled and remaining quantities.
type OrderView struct {
	types.Transaction
	FilledQuantity    int64 `json:"filled_quantity"`
	RemainingQuantity int64 `json:"remaining_quantity"`
}

func (s *Service) orderView(order *types.Transaction) (*OrderView, error) {
	filled, err := s.db.FilledQuantity(order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderView{
		Transaction:       *order,
		FilledQuantity:    filled,
		RemainingQuantity: order.Quantity - filled,
	}, nil
}

// ListOrders returns the account's orders with fill progress.
func (s *Service) ListOrders(userID string) ([]OrderView, error) {
	orders, err := s.db.ListOrders(userID)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		view, err := s.orderView(&orders[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// GetOrder returns one of the account's orders with fill progress, or nil.
func (s *Service) GetOrder(orderID, userID string) (*OrderView, error) {
	order, err := s.db.GetOrder(orderID, userID)
	if err != nil || order == nil {
		return nil, err
	}
	return s.orderView(order)
}

// ListTrades returns the account's execution records. Trades are read-only.
func (s *Service) ListTrades(userID string) ([]types.Transaction, error) {
	return s.db.ListTrades(userID)
}

// GetTrade returns one of the account's execution records, or nil.
func (s *Service) GetTrade(tradeID, userID string) (*types.Transaction, error) {
	return s.db.GetTrade(tradeID, userID)
}

// GinHandlers contains HTTP handlers for trading endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trading endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// OrderRequest is the order intake payload.
type OrderRequest struct {
	StockCode string          `json:"stock_code" binding:"required"`
	Side      string          `json:"side" binding:"required"`
	Quantity  int64           `json:"quantity" binding:"required"`
	Price     decimal.Decimal `json:"price" binding:"required"`
}

func callerID(c *gin.Context) (string, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}
	userID := auth.GetUserID(claims)
	if userID == "" {
		response.Unauthorized(c, "Invalid user ID in token")
		return "", false
	}
	return userID, true
}

// scopeID returns the account filter for list reads: staff callers see every
// account.
func scopeID(c *gin.Context) (string, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}
	if auth.IsStaff(claims) {
		return "", true
	}
	userID := auth.GetUserID(claims)
	if userID == "" {
		response.Unauthorized(c, "Invalid user ID in token")
		return "", false
	}
	return userID, true
}

// CreateOrderHandler handles POST requests to create new orders
// Requires a valid JWT token and idempotency key in headers
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		userID, ok := callerID(c)
		if !ok {
			return
		}

		var req OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.SubmitOrderIdempotent(
			userID, req.StockCode, req.Side, req.Quantity, req.Price, idempotencyKey)
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET requests for the caller's orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := scopeID(c)
		if !ok {
			return
		}

		orders, err := h.service.ListOrders(userID)
		response.Handle(c, orders, err)
	}
}

// GetOrderHandler handles GET requests for a single order
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := scopeID(c)
		if !ok {
			return
		}

		orderID := c.Param("order_id")
		order, err := h.service.GetOrder(orderID, userID)
		if err == nil && order == nil {
			response.NotFound(c, "Order not found")
			return
		}
		response.Handle(c, order, err)
	}
}

// ListTradesHandler handles GET requests for the caller's trades
func (h *GinHandlers) ListTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := scopeID(c)
		if !ok {
			return
		}

		trades, err := h.service.ListTrades(userID)
		response.Handle(c, trades, err)
	}
}

// GetTradeHandler handles GET requests for a single trade
// URL parameter: trade_id
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := scopeID(c)
		if !ok {
			return
		}

		tradeID := c.Param("trade_id")
		trade, err := h.service.GetTrade(tradeID, userID)
		if err == nil && trade == nil {
			response.NotFound(c, "Trade not found")
			return
		}
		response.Handle(c, trade, err)
	}
}

// BulkOrderHandler handles POST requests carrying a CSV order file in the
// request body. Rows that fail validation are skipped, not fatal.
func (h *GinHandlers) BulkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		orders, err := h.service.BulkSubmit(userID, c.Request.Body)
		response.Handle(c, orders, err)
	}
}
