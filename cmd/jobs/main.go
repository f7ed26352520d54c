package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greatxam/stock-trading-go/internal/database"
	"github.com/greatxam/stock-trading-go/internal/matching"
	"github.com/greatxam/stock-trading-go/internal/portfolio"
	"github.com/greatxam/stock-trading-go/internal/trading"
)

// init configures the logger for job runs with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main runs one scheduled job and exits. The scheduler (cron or similar)
// invokes this binary; re-running a failed matching pass is safe because
// cleared orders are excluded by the status filter.
//
// Usage:
//
//	jobs -task match [-stock CODE]
//	jobs -task bulk -dir /path/to/drop
func main() {
	task := flag.String("task", "", "job to run: match or bulk")
	stockCode := flag.String("stock", "", "stock code to scope a matching pass (optional)")
	bulkDir := flag.String("dir", "", "bulk order drop directory")
	dbPath := flag.String("db", "trading.db", "sqlite database path")
	flag.Parse()

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	switch *task {
	case "match":
		portfolioService := portfolio.NewService(db)
		engine := matching.NewEngine(db, portfolioService.Settle)
		if err := engine.RunPass(*stockCode); err != nil {
			log.Fatal().Err(err).Msg("matching pass failed")
		}

	case "bulk":
		if *bulkDir == "" {
			log.Fatal().Msg("bulk task requires -dir")
		}
		tradingService := trading.NewService(db)
		if err := tradingService.ProcessBulkDirectory(*bulkDir); err != nil {
			log.Fatal().Err(err).Msg("bulk ingestion failed")
		}

	default:
		log.Fatal().Str("task", *task).Msg("unknown task, expected match or bulk")
	}
}
