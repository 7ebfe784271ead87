package api

import (
	"cointrader/internal/cache"      // Redis cache wrapper
	"cointrader/internal/config"     // Configuration
	"cointrader/internal/domain"     // Trade sides
	"cointrader/internal/engine"     // Trade engine
	"cointrader/internal/middleware" // Bearer-token guard
	"cointrader/internal/pricing"    // Quote client
	"cointrader/internal/store"      // Account store

	"github.com/gin-gonic/gin" // Gin web framework
)

// NewRouter wires every route onto a gin engine. Protected routes run
// the bearer guard before any business logic.
func NewRouter(cfg *config.Config, s *store.Store, eng *engine.Engine, quotes *pricing.Client, cch *cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Public routes
	r.POST("/register", RegisterHandler(s, cfg))                     // Registration endpoint
	r.POST("/login", LoginHandler(s, cfg.JWTSecret, cfg.TokenTTL))   // Login endpoint
	r.GET("/price", PriceHandler(quotes, cch, cfg.TrackedCoins))     // Tracked-coin quotes

	// Protected routes (bearer token required)
	authed := r.Group("/")
	authed.Use(middleware.BearerAuth(cfg.JWTSecret))
	authed.GET("/balance", BalanceHandler(s, cch))                    // Cash balance + holdings
	authed.GET("/trades", TradesHandler(s, cch))                      // Trade history
	authed.POST("/deposit", DepositHandler(s, cch))                   // Fund the cash balance
	authed.POST("/buy", TradeHandler(eng, cch, domain.SideBuy))       // Buy endpoint
	authed.POST("/sell", TradeHandler(eng, cch, domain.SideSell))     // Sell endpoint

	return r
}
