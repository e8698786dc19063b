package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unifarm-balance-ledger/internal/api_gateway/handler"
	"github.com/unifarm-balance-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	walletHandler *handler.WalletHandler,
	transactionHandler *handler.TransactionHandler,
	boostHandler *handler.BoostHandler,
	auditHandler *handler.AuditHandler,
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
			wallets.GET("/:user_id", walletHandler.GetByUserID)
			wallets.GET("/:user_id/history", transactionHandler.GetHistory)
			wallets.POST("/:user_id/withdrawals", transactionHandler.Withdraw)
			wallets.POST("/:user_id/boosts", boostHandler.Purchase)
			wallets.GET("/:user_id/boosts", boostHandler.GetPosition)
			wallets.DELETE("/:user_id/boosts", boostHandler.Deactivate)
			wallets.POST("/:user_id/audit", auditHandler.AuditUser)
		}

		// Asynchronous deposit intake
		deposits := v1.Group("/deposits")
		{
			deposits.POST("", transactionHandler.SubmitDeposit)
		}

		// Boost catalog
		boosts := v1.Group("/boosts")
		{
			boosts.GET("/packages", boostHandler.ListPackages)
		}

		// Reconciliation operations
		auditGroup := v1.Group("/audit")
		{
			auditGroup.GET("/flags", auditHandler.ListFlags)
			auditGroup.POST("/flags/resolve", auditHandler.ResolveFlag)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
