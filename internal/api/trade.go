package api

import (
	"net/http" // HTTP status codes
	"time"     // Timestamps for logging

	"cointrader/internal/cache"  // Redis cache invalidation
	"cointrader/internal/domain" // Domain models and errors
	"cointrader/internal/engine" // Trade engine
	"cointrader/internal/store"  // Account store

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus" // Logging library
)

// TradeRequest represents a buy or sell request
type TradeRequest struct {
	Coin   string          `json:"coin" binding:"required"`   // Coin identifier
	Amount decimal.Decimal `json:"amount" binding:"required"` // Coin quantity, must be positive
}

// DepositRequest represents a deposit request
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"` // Deposit amount
}

// TradeHandler executes a trade on the given side for the authenticated
// user. Shared by the /buy and /sell routes.
func TradeHandler(eng *engine.Engine, cch *cache.Cache, side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFrom(c) // Get userID from context
		if !ok {
			respondError(c, domain.ErrInvalidToken, "Unauthorized")
			return
		}
		var req TradeRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.ErrValidation, "Invalid request")
			return
		}
		// The engine re-validates shape; this keeps the error message crisp
		if !req.Amount.IsPositive() {
			respondError(c, domain.ErrValidation, "Amount must be positive")
			return
		}
		confirmation, err := eng.Execute(c.Request.Context(), userID, req.Coin, side, req.Amount)
		if err != nil {
			respondError(c, err, err.Error())
			return
		}
		// The committed trade stales out this user's cached views
		if err := cch.Invalidate(c.Request.Context(), cache.UserKeys(userID)...); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("Cache invalidation failed")
		}
		// Return the confirmation record
		c.JSON(http.StatusOK, gin.H{
			"side":        confirmation.Trade.Side,
			"coin":        confirmation.Trade.CoinID,
			"amount":      confirmation.Trade.Amount,
			"price":       confirmation.Trade.Price,
			"total_value": confirmation.Trade.TotalValue,
			"balance":     confirmation.Balance,
			"reference":   confirmation.Trade.Reference,
		})
	}
}

// DepositHandler credits the authenticated user's cash balance
func DepositHandler(s *store.Store, cch *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFrom(c) // Get userID from context
		if !ok {
			respondError(c, domain.ErrInvalidToken, "Unauthorized")
			return
		}
		var req DepositRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			respondError(c, domain.ErrValidation, "Invalid amount")
			return
		}
		user, err := s.WithContext(c.Request.Context()).Deposit(userID, req.Amount)
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"amount":  req.Amount.String(),
				"error":   err.Error(),
			}).Error("Deposit failed")
			respondError(c, err, "Deposit failed")
			return
		}
		// Log successful deposit
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"amount":    req.Amount.String(),
			"type":      "deposit",
			"timestamp": time.Now().Format(time.RFC3339),
		}).Info("Deposit applied")
		// Invalidate this user's cached views
		_ = cch.Invalidate(c.Request.Context(), cache.UserKeys(userID)...)
		// Return success response
		c.JSON(http.StatusOK, gin.H{
			"message": "Deposit successful",
			"balance": user.Balance,
		})
	}
}
