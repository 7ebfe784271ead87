package domain

import "github.com/shopspring/decimal"

// Wallet Model: one row per (user, coin) holding
type Wallet struct {
	ID     uint            `gorm:"primaryKey"`                             // Primary key
	UserID uint            `gorm:"uniqueIndex:idx_user_coin;not null"`     // Foreign key to User
	CoinID string          `gorm:"uniqueIndex:idx_user_coin;not null"`     // Coin identifier (e.g. "bitcoin")
	Amount decimal.Decimal `gorm:"type:decimal(32,12);not null;default:0"` // Amount held, never negative
}
