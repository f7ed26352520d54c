package matching

import (
	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SettleFunc folds an executed trade into the owning account's portfolio. It
// runs synchronously inside the match step's transaction so a partial crash
// cannot leave a trade without its position update.
type SettleFunc func(tx *gorm.DB, trade *types.Transaction) error

// Engine pairs incoming orders against resting counter-orders under price-time
// priority and owns every mutation of order status and filled quantity.
type Engine struct {
	conn   *gorm.DB
	db     *Database
	settle SettleFunc
}

func NewEngine(conn *gorm.DB, settle SettleFunc) *Engine {
	return &Engine{
		conn:   conn,
		db:     NewDatabase(conn),
		settle: settle,
	}
}

// MatchOrder matches the incoming order candidate-by-candidate until it is
// fully filled or candidates are exhausted. It returns the number of trade
// pairs generated.
func (e *Engine) MatchOrder(incoming *types.Transaction) (int, error) {
	logger := log.With().
		Str("order_id", incoming.ID).
		Str("stock_id", incoming.StockID).
		Str("side", incoming.Type).
		Str("component", "matching_engine").
		Logger()

	candidates, err := e.db.Candidates(incoming)
	if err != nil {
		return 0, err
	}

	if len(candidates) == 0 {
		logger.Debug().Msg("no crossing candidates, order rests on book")
		return 0, nil
	}

	logger.Debug().Int("candidates", len(candidates)).Msg("matching against candidates")

	pairs := 0
	for i := range candidates {
		done, err := e.matchStep(incoming, &candidates[i])
		if err != nil {
			return pairs, err
		}
		pairs++
		if done {
			break
		}
	}

	logger.Info().
		Int("trade_pairs", pairs).
		Str("status", incoming.Status).
		Msg("order matched")

	return pairs, nil
}

// matchStep executes one match between the incoming order and a single resting
// candidate. The whole step is one transaction: both trades, both status
// updates, both portfolio projections and the last-traded price move commit or
// roll back together. It reports whether the incoming order is satisfied.
func (e *Engine) matchStep(incoming, candidate *types.Transaction) (bool, error) {
	var done bool

	err := e.conn.Transaction(func(tx *gorm.DB) error {
		step := NewDatabase(tx)

		// Both remainders are snapshotted before any mutation so neither trade
		// leg can see a double-discounted value.
		filledIn, err := step.FilledQuantity(incoming.ID)
		if err != nil {
			return err
		}
		remainingIn, err := Remaining(incoming, filledIn)
		if err != nil {
			return err
		}
		if remainingIn <= 0 {
			return &types.InvariantViolation{
				OrderID: incoming.ID,
				Reason:  "pending order has no remaining quantity",
			}
		}

		filledC, err := step.FilledQuantity(candidate.ID)
		if err != nil {
			return err
		}
		remainingC, err := Remaining(candidate, filledC)
		if err != nil {
			return err
		}
		if remainingC <= 0 {
			return &types.InvariantViolation{
				OrderID: candidate.ID,
				Reason:  "pending order has no remaining quantity",
			}
		}

		quantity := remainingIn
		if remainingC < remainingIn {
			quantity = remainingC
		}

		// The resting order's price governs the execution, not the aggressor's.
		price := candidate.Price

		tradeIn := types.NewTrade(incoming, quantity, price)
		tradeC := types.NewTrade(candidate, quantity, price)

		if err := step.CreateTrade(tradeIn); err != nil {
			return err
		}
		if err := step.CreateTrade(tradeC); err != nil {
			return err
		}

		incoming.Status = StatusFor(incoming, filledIn+quantity)
		candidate.Status = StatusFor(candidate, filledC+quantity)

		if err := step.UpdateOrderStatus(incoming); err != nil {
			return err
		}
		if err := step.UpdateOrderStatus(candidate); err != nil {
			return err
		}

		if err := e.settle(tx, tradeIn); err != nil {
			return &types.SettlementError{TradeID: tradeIn.ID, Err: err}
		}
		if err := e.settle(tx, tradeC); err != nil {
			return &types.SettlementError{TradeID: tradeC.ID, Err: err}
		}

		if err := step.UpdateStockPrice(incoming.StockID, price); err != nil {
			return err
		}

		log.Debug().
			Str("incoming_order_id", incoming.ID).
			Str("candidate_order_id", candidate.ID).
			Int64("quantity", quantity).
			Str("price", price.String()).
			Str("incoming_status", incoming.Status).
			Str("candidate_status", candidate.Status).
			Msg("match step committed")

		done = remainingIn <= remainingC
		return nil
	})

	return done, err
}
