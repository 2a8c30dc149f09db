package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kudos-backend/cache"
	"kudos-backend/config"
	"kudos-backend/database"
	"kudos-backend/firebase"
	"kudos-backend/middleware"
	"kudos-backend/routes"
	"kudos-backend/services"
	"kudos-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		logrus.Fatal("Error loading .env file: ", err)
	}

	cfg := config.Load()
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	// Validate critical environment variables
	if err := cfg.Validate(log); err != nil {
		log.Fatal("Environment validation failed: ", err)
	}

	// Initialize database
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	if cfg.CatalogSeedFile != "" {
		n, err := database.SeedCatalog(db, cfg.CatalogSeedFile)
		if err != nil {
			log.WithError(err).Warn("Could not seed reward catalog")
		} else {
			log.WithField("items", n).Info("Reward catalog seeded")
		}
	}

	ctx := context.Background()

	var leaderboardCache services.LeaderboardCache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, leaderboard will not be cached")
		} else {
			defer client.Close()
			leaderboardCache = cache.NewLeaderboardCache(client, cfg.LeaderboardCacheTTL)
		}
	}

	// Push notifications fall back to the log when Firebase cannot start.
	var notifier services.Notifier = &services.LogNotifier{Log: log}
	if cfg.GoogleCredentials != "" {
		app, err := firebase.NewApp(ctx, cfg.GoogleCredentials, log)
		if err == nil {
			var push *firebase.PushNotifier
			if push, err = firebase.NewPushNotifier(ctx, app, log); err == nil {
				notifier = push
			}
		}
		if err != nil {
			log.WithError(err).Warn("Firebase messaging unavailable, notifications will only be logged")
		}
	}
	dispatcher := services.NewDispatcher(notifier, cfg.NotificationQueueSize, cfg.NotificationWorkers, log)

	ledger := services.NewLedgerService(db, log)
	catalog := services.NewGormCatalog(db)
	recognitions := services.NewRecognitionService(db, ledger, dispatcher, log)
	recognitions.AllowSelfRecognition = cfg.AllowSelfRecognition
	recognitions.MaxPoints = cfg.MaxRecognitionPoints
	redemptions := services.NewRedemptionService(db, ledger, catalog, dispatcher, log)
	leaderboard := services.NewLeaderboardService(db, leaderboardCache, log)

	// Setup Gin router
	r := gin.Default()

	// CORS configuration - filter out empty strings from AllowOrigins
	var origins []string
	for _, o := range []string{cfg.FrontendURL, cfg.AdminURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
		log.Warn("No CORS origins configured, defaulting to http://localhost:3000")
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Setup routes
	routes.SetupRoutes(r, routes.Deps{
		DB:           db,
		Ledger:       ledger,
		Recognitions: recognitions,
		Redemptions:  redemptions,
		Leaderboard:  leaderboard,
		Catalog:      catalog,
		RateLimiter:  middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Run server in a goroutine
	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}

	// Deliver queued notifications before the process exits
	dispatcher.Close()

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			log.WithError(err).Error("Error closing database connection")
		} else {
			log.Info("Database connection closed")
		}
	}

	log.Info("Server exited gracefully")
}
