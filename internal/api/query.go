package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Query string conversion
	"time"     // Cache TTLs

	"cointrader/internal/cache"   // Redis read-through cache
	"cointrader/internal/domain"  // Domain models and errors
	"cointrader/internal/pricing" // Quote source client
	"cointrader/internal/store"   // Account store

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/shopspring/decimal"
)

const (
	balanceCacheTTL = 60 * time.Second // Balance view freshness window
	priceCacheTTL   = 10 * time.Second // Quote view freshness window
	tradesCacheTTL  = 60 * time.Second // History page freshness window
)

// BalanceResponse is the authenticated user's cash balance plus every
// coin holding
type BalanceResponse struct {
	Balance  decimal.Decimal            `json:"balance"`  // Cash balance
	Holdings map[string]decimal.Decimal `json:"holdings"` // Coin id -> amount held
}

// BalanceHandler returns the cash balance and holdings for the
// authenticated user, cached briefly in Redis
func BalanceHandler(s *store.Store, cch *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFrom(c) // Get userID from context
		if !ok {
			respondError(c, domain.ErrInvalidToken, "Unauthorized")
			return
		}
		ctx := c.Request.Context()
		cacheKey := cache.BalanceKey(userID)
		var resp BalanceResponse
		// Try to get from cache
		if found, err := cch.Get(ctx, cacheKey, &resp); err == nil && found {
			c.JSON(http.StatusOK, resp)
			return
		}
		// If not in cache, fetch from DB
		user, err := s.FindUser(userID)
		if err != nil {
			respondError(c, err, "User not found")
			return
		}
		wallets, err := s.Wallets(userID)
		if err != nil {
			respondError(c, err, "")
			return
		}
		resp = BalanceResponse{Balance: user.Balance, Holdings: map[string]decimal.Decimal{}}
		for _, w := range wallets {
			resp.Holdings[w.CoinID] = w.Amount
		}
		_ = cch.Set(ctx, cacheKey, resp, balanceCacheTTL) // Cache the view
		c.JSON(http.StatusOK, resp)
	}
}

// PriceHandler returns current quotes for the tracked coin set. Read
// from the quote source at most once per TTL; no side effects.
func PriceHandler(quotes *pricing.Client, cch *cache.Cache, trackedCoins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var prices map[string]pricing.Quote
		// Try to get from cache
		if found, err := cch.Get(ctx, cache.PriceKey(), &prices); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"prices": prices})
			return
		}
		prices, err := quotes.Prices(ctx, trackedCoins)
		if err != nil {
			respondError(c, err, "Quote source unavailable")
			return
		}
		_ = cch.Set(ctx, cache.PriceKey(), prices, priceCacheTTL) // Cache the quotes
		c.JSON(http.StatusOK, gin.H{"prices": prices})
	}
}

// tradesPage is the cached shape of one history page
type tradesPage struct {
	Trades     []domain.Trade `json:"trades"`      // One page of trade records
	Page       int            `json:"page"`        // Current page
	PageSize   int            `json:"page_size"`   // Page size
	Total      int64          `json:"total"`       // Total trades
	TotalPages int            `json:"total_pages"` // Total pages
}

// TradesHandler returns the authenticated user's trade history, newest
// first, paginated
func TradesHandler(s *store.Store, cch *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFrom(c) // Get userID from context
		if !ok {
			respondError(c, domain.ErrInvalidToken, "Unauthorized")
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		ctx := c.Request.Context()
		cacheKey := cache.TradesKey(userID, page, pageSize)
		var resp tradesPage
		// Try to get from cache
		if found, err := cch.Get(ctx, cacheKey, &resp); err == nil && found {
			c.JSON(http.StatusOK, resp)
			return
		}
		trades, total, err := s.Trades(userID, page, pageSize)
		if err != nil {
			respondError(c, err, "")
			return
		}
		resp = tradesPage{
			Trades:     trades,
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		}
		_ = cch.Set(ctx, cacheKey, resp, tradesCacheTTL) // Cache the page
		c.JSON(http.StatusOK, resp)
	}
}
