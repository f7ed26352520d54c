package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RunPass drives the matcher across every standing order for the given stock
// code, or all stocks when the code is empty. Orders are consumed strictly in
// creation order, so earlier submissions always get first opportunity as the
// aggressor. Orders cleared earlier in the same pass are skipped by the status
// check. A failure aborts the pass; completed match steps stay committed and a
// re-run is safe because cleared orders fall out of the PENDING filter.
func (e *Engine) RunPass(stockCode string) error {
	logger := log.With().
		Str("component", "matching_pass").
		Str("stock_code", stockCode).
		Logger()

	orders, err := e.db.PendingOrders(stockCode)
	if err != nil {
		return fmt.Errorf("failed to select standing orders: %w", err)
	}

	logger.Info().Int("standing_orders", len(orders)).Msg("starting matching pass")

	matched := 0
	skipped := 0
	pairs := 0
	for i := range orders {
		// Re-read the status: this order may have been filled as a resting
		// candidate earlier in this pass.
		current, err := e.db.GetOrder(orders[i].ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				skipped++
				continue
			}
			return fmt.Errorf("failed to reload order %s: %w", orders[i].ID, err)
		}
		if current.Status != types.StatusPending {
			skipped++
			continue
		}

		n, err := e.MatchOrder(current)
		if err != nil {
			logger.Error().Err(err).
				Str("order_id", current.ID).
				Msg("matching pass aborted")
			return err
		}
		if n > 0 {
			matched++
			pairs += n
		}
	}

	logger.Info().
		Int("standing_orders", len(orders)).
		Int("matched_orders", matched).
		Int("skipped_orders", skipped).
		Int("trade_pairs", pairs).
		Msg("matching pass completed")

	return nil
}

// Processor runs matching passes on a fixed interval, standing in for the
// scheduled-job collaborator. Passes are serialized behind a mutex so no two
// passes ever touch the same order book concurrently.
type Processor struct {
	engine   *Engine
	interval time.Duration
	mu       sync.Mutex
}

func NewProcessor(engine *Engine, interval time.Duration) *Processor {
	return &Processor{
		engine:   engine,
		interval: interval,
	}
}

// Start begins the matching pass loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "matching_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting matching processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down matching processor")
			return
		case <-ticker.C:
			if err := p.RunOnce(""); err != nil {
				logger.Error().Err(err).Msg("matching pass failed")
			}
		}
	}
}

// RunOnce executes a single serialized pass. The scheduling collaborator may
// simply call it again after a failure; already-cleared orders are excluded by
// the status filter.
func (p *Processor) RunOnce(stockCode string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.RunPass(stockCode)
}
