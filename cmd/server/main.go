package main

import (
	"context" // context package is needed for Redis operations

	"cointrader/internal/api"     // Custom package for API handlers
	"cointrader/internal/cache"   // Custom package for Redis caching
	"cointrader/internal/config"  // Custom package for configuration
	"cointrader/internal/db"      // Custom package for migrations
	"cointrader/internal/engine"  // Trade engine
	"cointrader/internal/pricing" // Quote source client
	"cointrader/internal/store"   // Account store

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate schema: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wire the components: store -> quote client -> engine -> router
	accounts := store.New(gdb)
	quotes := pricing.NewClient(cfg.QuoteURL, cfg.VSCurrency, cfg.QuoteTimeout)
	trades := engine.New(accounts, quotes)
	cch := cache.New(redisClient)

	r := api.NewRouter(cfg, accounts, trades, quotes, cch) // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	logrus.Infof("Server running on %s", cfg.AppPort) // Log server start
	if err := r.Run(":" + cfg.AppPort); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}
