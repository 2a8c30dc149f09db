package routes

import (
	"net/http"

	"kudos-backend/handlers"
	"kudos-backend/metrics"
	"kudos-backend/middleware"
	"kudos-backend/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the services the HTTP layer is built on.
type Deps struct {
	DB           *gorm.DB
	Ledger       *services.LedgerService
	Recognitions *services.RecognitionService
	Redemptions  *services.RedemptionService
	Leaderboard  *services.LeaderboardService
	Catalog      *services.GormCatalog
	RateLimiter  *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	// Initialize handlers
	recognitionHandler := &handlers.RecognitionHandler{Service: deps.Recognitions}
	redemptionHandler := &handlers.RedemptionHandler{Service: deps.Redemptions}
	balanceHandler := &handlers.BalanceHandler{Ledger: deps.Ledger}
	leaderboardHandler := &handlers.LeaderboardHandler{Service: deps.Leaderboard}
	rewardHandler := &handlers.RewardHandler{Catalog: deps.Catalog}

	r.Use(metrics.Middleware())

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limit = deps.RateLimiter.Middleware()
	}

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		api.GET("/rewards", rewardHandler.GetRewards)
	}

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		// Recognition routes
		protected.POST("/recognitions", limit, recognitionHandler.SendRecognition)
		protected.GET("/recognitions", recognitionHandler.ListRecognitions)

		// Redemption routes
		protected.POST("/redemptions", limit, redemptionHandler.RequestRedemption)
		protected.GET("/redemptions", redemptionHandler.ListRedemptions)
		protected.GET("/redemptions/transitions", redemptionHandler.GetTransitions)
		protected.GET("/redemptions/:id", redemptionHandler.GetRedemption)

		// Balance routes
		protected.GET("/balances/:userId", balanceHandler.GetBalance)
		protected.GET("/balances/:userId/history", balanceHandler.GetHistory)
	}

	// Admin routes (require admin role)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		// Redemption workflow
		admin.PUT("/redemptions/:id/approve", limit, redemptionHandler.ApproveRedemption)
		admin.PUT("/redemptions/:id/reject", limit, redemptionHandler.RejectRedemption)
		admin.PUT("/redemptions/:id/fulfill", limit, redemptionHandler.FulfillRedemption)

		// Ledger maintenance
		admin.POST("/balances/:userId/adjustments", limit, balanceHandler.AdjustBalance)
		admin.GET("/balances/:userId/audit", balanceHandler.AuditBalance)
		admin.POST("/recognitions/:id/credit", limit, recognitionHandler.RetryCredit)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			sqlDB, err := deps.DB.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
