package trading

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/greatxam/stock-trading-go/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Bulk order files carry the columns TYPE,STOCK,QUANTITY,PRICE. TYPE is a
// case-sensitive label mapped to the order side.
var bulkTypes = map[string]string{
	"Buy":  types.SideBuy,
	"Sell": types.SideSell,
}

// BulkSubmit reads CSV order rows and creates an order per valid row. Rows
// with an unknown stock code, a malformed type or bad numbers are logged and
// skipped; they never fail the batch. Returns the successfully created orders.
func (s *Service) BulkSubmit(userID string, r io.Reader) ([]types.Transaction, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("component", "bulk_orders").
		Logger()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	var orders []types.Transaction
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			logger.Warn().Err(err).Int("row", row).Msg("skipping malformed csv row")
			continue
		}

		// Tolerate a leading header row.
		if row == 1 && record[0] == "TYPE" {
			continue
		}

		side, ok := bulkTypes[record[0]]
		if !ok {
			logger.Warn().Int("row", row).Str("type", record[0]).Msg("skipping row with unknown type")
			continue
		}

		quantity, err := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64)
		if err != nil {
			logger.Warn().Err(err).Int("row", row).Msg("skipping row with malformed quantity")
			continue
		}

		price, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil {
			logger.Warn().Err(err).Int("row", row).Msg("skipping row with malformed price")
			continue
		}

		order, err := s.SubmitOrder(userID, record[1], side, quantity, price)
		if err != nil {
			logger.Warn().Err(err).
				Int("row", row).
				Str("stock_code", record[1]).
				Msg("skipping rejected row")
			continue
		}
		orders = append(orders, *order)
	}

	logger.Info().
		Int("rows", row).
		Int("orders_created", len(orders)).
		Msg("bulk order file processed")

	return orders, nil
}

// ProcessBulkDirectory walks the bulk drop directory. Each subdirectory is
// named after the owning account and holds that account's CSV files; every
// file is ingested and then deleted.
func (s *Service) ProcessBulkDirectory(root string) error {
	logger := log.With().Str("dir", root).Str("component", "bulk_orders").Logger()

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		userID := entry.Name()
		userDir := filepath.Join(root, userID)

		files, err := os.ReadDir(userDir)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("failed to read account directory")
			continue
		}

		for _, f := range files {
			if f.IsDir() || !strings.Contains(strings.ToUpper(f.Name()), "CSV") {
				continue
			}
			path := filepath.Join(userDir, f.Name())

			file, err := os.Open(path)
			if err != nil {
				logger.Error().Err(err).Str("file", path).Msg("failed to open bulk file")
				continue
			}

			_, err = s.BulkSubmit(userID, file)
			file.Close()
			if err != nil {
				logger.Error().Err(err).Str("file", path).Msg("failed to ingest bulk file")
				continue
			}

			if err := os.Remove(path); err != nil {
				logger.Error().Err(err).Str("file", path).Msg("failed to remove ingested bulk file")
			}
		}
	}

	return nil
}

// BulkProcessor ingests dropped order files on a fixed interval, standing in
// for the scheduled-job collaborator.
type BulkProcessor struct {
	service  *Service
	dir      string
	interval time.Duration
}

func NewBulkProcessor(service *Service, dir string, interval time.Duration) *BulkProcessor {
	return &BulkProcessor{
		service:  service,
		dir:      dir,
		interval: interval,
	}
}

// Start begins the bulk ingestion loop
func (p *BulkProcessor) Start(ctx context.Context) {
	logger := log.With().Str("component", "bulk_processor").Logger()
	logger.Info().Str("dir", p.dir).Dur("interval", p.interval).Msg("starting bulk processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down bulk processor")
			return
		case <-ticker.C:
			if err := p.service.ProcessBulkDirectory(p.dir); err != nil {
				logger.Error().Err(err).Msg("bulk ingestion failed")
			}
		}
	}
}
