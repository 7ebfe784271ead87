package domain

import "github.com/shopspring/decimal"

// User Model
type User struct {
	ID       uint            `gorm:"primaryKey"`                             // Primary key
	Username string          `gorm:"unique;not null"`                        // Unique username
	Password string          `gorm:"not null"`                               // Hashed password (bcrypt)
	Balance  decimal.Decimal `gorm:"type:decimal(32,12);not null;default:0"` // Cash balance in the settlement currency
	Version  uint            `gorm:"not null;default:0"`                     // Optimistic-lock stamp, bumped on every balance commit
	Wallets  []Wallet        `gorm:"constraint:OnUpdate:CASCADE;"`           // One-to-many relationship with Wallet
}
