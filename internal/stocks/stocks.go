package stocks

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/greatxam/stock-trading-go/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages the tradable instruments. Stocks are created and renamed by
// staff; their price is only ever moved by the matching engine.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

func validate(code, name string, price decimal.Decimal) error {
	if code == "" || len(code) > 4 {
		return &types.ValidationError{Field: "code", Reason: "must be 1 to 4 characters"}
	}
	if name == "" {
		return &types.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if price.Sign() < 0 {
		return &types.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

// CreateStock registers a new tradable instrument with its listing price.
func (s *Service) CreateStock(code, name string, price decimal.Decimal) (*types.Stock, error) {
	if err := validate(code, name, price); err != nil {
		return nil, err
	}

	stock := &types.Stock{
		ID:    uuid.New().String(),
		Code:  code,
		Name:  name,
		Price: price,
	}
	if err := s.db.Create(stock); err != nil {
		return nil, err
	}

	log.Info().
		Str("stock_id", stock.ID).
		Str("code", stock.Code).
		Str("component", "stocks").
		Msg("stock created")

	return stock, nil
}

// RenameStock updates a stock's display name. The price field is owned by the
// matching engine and is deliberately not writable here.
func (s *Service) RenameStock(code, name string) (*types.Stock, error) {
	stock, err := s.db.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &types.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	stock.Name = name
	if err := s.db.Save(stock); err != nil {
		return nil, err
	}
	return stock, nil
}

// GetStock returns the stock with the given code.
func (s *Service) GetStock(code string) (*types.Stock, error) {
	return s.db.GetByCode(code)
}

// ListStocks returns all stocks ordered by name.
func (s *Service) ListStocks() ([]types.Stock, error) {
	return s.db.List()
}

// GinHandlers contains HTTP handlers for stock endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// StockRequest is the stock create/update payload.
type StockRequest struct {
	Code  string          `json:"code" binding:"required"`
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

// CreateStockHandler handles POST requests to register stocks. Staff only.
func (h *GinHandlers) CreateStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		stock, err := h.service.CreateStock(req.Code, req.Name, req.Price)
		response.Handle(c, stock, err)
	}
}

// RenameStockHandler handles PUT requests to rename a stock. Staff only.
// URL parameter: code
func (h *GinHandlers) RenameStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		stock, err := h.service.RenameStock(c.Param("code"), req.Name)
		response.Handle(c, stock, err)
	}
}

// GetStockHandler handles GET requests for a single stock
// URL parameter: code
func (h *GinHandlers) GetStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stock, err := h.service.GetStock(c.Param("code"))
		response.Handle(c, stock, err)
	}
}

// ListStocksHandler handles GET requests for all stocks
func (h *GinHandlers) ListStocksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stocks, err := h.service.ListStocks()
		response.Handle(c, stocks, err)
	}
}
