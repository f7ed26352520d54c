package portfolio

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greatxam/stock-trading-go/internal/auth"
	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/greatxam/stock-trading-go/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service projects cleared trades into per-account holdings
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Apply folds a cleared trade into the owning account's portfolio and returns
// the updated portfolio. Standing orders and non-cleared records are a no-op;
// only execution records move holdings.
//
// The average price update is (previous average + trade price) / 2. That is an
// exponential smoothing rule, not a quantity-weighted cost basis, and readers
// of AveragePrice must not treat it as one.
func (s *Service) Apply(trade *types.Transaction) (*types.Portfolio, error) {
	return s.apply(s.db, trade)
}

// Settle is the post-match hook wired into the matching engine. It applies the
// trade inside the caller's transaction so the projection commits atomically
// with the trade itself.
func (s *Service) Settle(tx *gorm.DB, trade *types.Transaction) error {
	_, err := s.apply(NewDatabase(tx), trade)
	return err
}

func (s *Service) apply(db *Database, trade *types.Transaction) (*types.Portfolio, error) {
	if trade.IsOrder || trade.Status != types.StatusCleared {
		return db.GetByUserAndStock(trade.UserID, trade.StockID)
	}

	logger := log.With().
		Str("trade_id", trade.ID).
		Str("user_id", trade.UserID).
		Str("stock_id", trade.StockID).
		Str("component", "portfolio").
		Logger()

	p, err := db.GetByUserAndStock(trade.UserID, trade.StockID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &types.Portfolio{
			ID:      uuid.New().String(),
			UserID:  trade.UserID,
			StockID: trade.StockID,
		}
	}

	p.TotalShares += trade.Quantity
	p.Amount = p.Amount.Add(trade.Price.Mul(decimal.NewFromInt(trade.Quantity)))
	p.AveragePrice = p.AveragePrice.Add(trade.Price).Div(decimal.NewFromInt(2))

	if err := db.Save(p); err != nil {
		return nil, err
	}

	logger.Debug().
		Int64("total_shares", p.TotalShares).
		Str("amount", p.Amount.String()).
		Str("average_price", p.AveragePrice.String()).
		Msg("portfolio updated")

	return p, nil
}

// View is a portfolio projection enriched with the market value of the
// holding at the stock's last-traded price.
type View struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	StockCode    string          `json:"stock_code"`
	TotalShares  int64           `json:"total_shares"`
	Amount       decimal.Decimal `json:"amount"`
	AveragePrice decimal.Decimal `json:"average_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
}

// ListViews returns the account's portfolios with market values computed as
// total shares times the stock's last-traded price.
func (s *Service) ListViews(userID string) ([]View, error) {
	portfolios, err := s.db.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.views(portfolios)
}

// ListAllViews returns every account's portfolios, for staff reporting.
func (s *Service) ListAllViews() ([]View, error) {
	portfolios, err := s.db.ListAll()
	if err != nil {
		return nil, err
	}
	return s.views(portfolios)
}

func (s *Service) views(portfolios []types.Portfolio) ([]View, error) {
	views := make([]View, 0, len(portfolios))
	for _, p := range portfolios {
		stock, err := s.db.GetStock(p.StockID)
		if err != nil {
			return nil, err
		}
		views = append(views, View{
			ID:           p.ID,
			UserID:       p.UserID,
			StockCode:    stock.Code,
			TotalShares:  p.TotalShares,
			Amount:       p.Amount,
			AveragePrice: p.AveragePrice,
			MarketValue:  stock.Price.Mul(decimal.NewFromInt(p.TotalShares)),
		})
	}
	return views, nil
}

// GinHandlers contains HTTP handlers for portfolio endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListPortfoliosHandler handles GET requests for the caller's holdings. Staff
// callers see every account.
func (h *GinHandlers) ListPortfoliosHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		if auth.IsStaff(claims) {
			views, err := h.service.ListAllViews()
			response.Handle(c, views, err)
			return
		}

		userID := auth.GetUserID(claims)
		if userID == "" {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		views, err := h.service.ListViews(userID)
		response.Handle(c, views, err)
	}
}
