package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/greatxam/stock-trading-go/internal/auth"
	"github.com/greatxam/stock-trading-go/internal/database"
	"github.com/greatxam/stock-trading-go/internal/matching"
	"github.com/greatxam/stock-trading-go/internal/portfolio"
	"github.com/greatxam/stock-trading-go/internal/stocks"
	"github.com/greatxam/stock-trading-go/internal/trading"
	"github.com/greatxam/stock-trading-go/pkg/middleware"
	"github.com/greatxam/stock-trading-go/pkg/response"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// main initializes and runs the trading API server with graceful shutdown support
// It sets up all required services, database connections, and API routes
func main() {
	// Initialize database
	db, err := database.NewDatabase(envOr("DB_PATH", "trading.db"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := envOr("JWT_SECRET", "stock-trading-secret-key")

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	authService.RegisterStaffCredentials(auth.TestAdminKey, auth.TestAdminSecret)

	stocksService := stocks.NewService(db)
	stocksHandlers := stocks.NewGinHandlers(stocksService)

	tradingService := trading.NewService(db)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	portfolioService := portfolio.NewService(db)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)

	engine := matching.NewEngine(db, portfolioService.Settle)

	// Create and start the matching pass processor
	matchInterval, err := strconv.Atoi(envOr("MATCH_INTERVAL", "60"))
	if err != nil || matchInterval <= 0 {
		zlog.Fatal().Msg("MATCH_INTERVAL must be a positive number of seconds")
	}
	matchProcessor := matching.NewProcessor(engine, time.Duration(matchInterval)*time.Second)

	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go matchProcessor.Start(processorCtx)

	// Bulk order ingestion runs only when a drop directory is configured
	if bulkDir := os.Getenv("BULK_DIR"); bulkDir != "" {
		bulkProcessor := trading.NewBulkProcessor(tradingService, bulkDir, time.Duration(matchInterval)*time.Second)
		go bulkProcessor.Start(processorCtx)
	}

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, stocksHandlers, tradingHandlers, portfolioHandlers, matchProcessor)

	// Get port from env otherwise it's 8080
	port := envOr("PORT", "8080")

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Stock routes: Readable by any account, writable by staff
// - Order/trade/portfolio routes: Protected by JWT authentication, own-account scoped
// - Internal routes: Staff-triggered matching pass
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	stocksHandlers *stocks.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
	matchProcessor *matching.Processor,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Stock routes
		stocksGroup := v1.Group("/stocks")
		stocksGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			stocksGroup.GET("", stocksHandlers.ListStocksHandler())
			stocksGroup.GET("/:code", stocksHandlers.GetStockHandler())
			stocksGroup.POST("", middleware.StaffOnly(), stocksHandlers.CreateStockHandler())
			stocksGroup.PUT("/:code", middleware.StaffOnly(), stocksHandlers.RenameStockHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", tradingHandlers.CreateOrderHandler())
			orders.POST("/bulk", tradingHandlers.BulkOrderHandler())
			orders.GET("", tradingHandlers.ListOrdersHandler())
			orders.GET("/:order_id", tradingHandlers.GetOrderHandler())
		}

		// Trade routes (read-only)
		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(jwtSecret))
		{
			trades.GET("", tradingHandlers.ListTradesHandler())
			trades.GET("/:trade_id", tradingHandlers.GetTradeHandler())
		}

		// Portfolio routes
		portfolios := v1.Group("/portfolios")
		portfolios.Use(middleware.JWTAuth(jwtSecret))
		{
			portfolios.GET("", portfolioHandlers.ListPortfoliosHandler())
		}

		// Internal routes: trigger a matching pass out of schedule
		internal := v1.Group("/internal")
		internal.Use(middleware.JWTAuth(jwtSecret), middleware.StaffOnly())
		{
			internal.POST("/match", func(c *gin.Context) {
				if err := matchProcessor.RunOnce(c.Query("stock")); err != nil {
					response.Handle(c, nil, err)
					return
				}
				response.Success(c, gin.H{"message": "matching pass completed"})
			})
		}
	}
}
