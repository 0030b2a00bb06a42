package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sportsbook-betting-core/internal/gateway/handler"
	"github.com/sportsbook-betting-core/internal/gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	walletHandler *handler.WalletHandler,
	betHandler *handler.BetHandler,
	settlementHandler *handler.SettlementHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Wallet operations
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", walletHandler.Create)
			wallets.GET("/:userId", walletHandler.GetBalance)
			wallets.POST("/:userId/deposits", walletHandler.Deposit)
			wallets.POST("/:userId/withdrawals", walletHandler.Withdraw)
			wallets.GET("/:userId/transactions", walletHandler.GetTransactions)
		}

		// Bet operations
		bets := v1.Group("/bets")
		{
			bets.POST("", betHandler.Place)
			bets.GET("/:id", betHandler.GetByID)
			bets.GET("/:id/cashout", betHandler.QuoteCashout)
			bets.POST("/:id/cashout", betHandler.Cashout)
		}
		v1.GET("/users/:userId/bets", betHandler.GetByUserID)

		// Settlement operations: writes are enqueued, reads are served from
		// the record store
		settlements := v1.Group("/settlements")
		{
			settlements.POST("/events/:id", settlementHandler.SettleEvent)
			settlements.POST("/markets/:id", settlementHandler.SettleMarket)
			settlements.POST("/markets/:id/void", settlementHandler.VoidMarket)
			settlements.POST("/:id/retry", settlementHandler.Retry)
			settlements.GET("/:id", settlementHandler.GetByID)
			settlements.GET("/markets/:id", settlementHandler.GetByMarketID)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
