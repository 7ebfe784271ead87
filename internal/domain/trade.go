package domain

import "github.com/shopspring/decimal"

// Trade side
const (
	SideBuy  = "buy"  // Cash out, coins in
	SideSell = "sell" // Coins out, cash in
)

// Trade Model: persisted confirmation record, one per executed trade
type Trade struct {
	ID         uint            `gorm:"primaryKey"`                    // Primary key
	UserID     uint            `gorm:"index;not null"`                // Foreign key to User
	CoinID     string          `gorm:"not null"`                      // Coin identifier
	Side       string          `gorm:"not null"`                      // buy or sell
	Amount     decimal.Decimal `gorm:"type:decimal(32,12);not null"`  // Coin amount traded
	Price      decimal.Decimal `gorm:"type:decimal(32,12);not null"`  // Unit price at execution
	TotalValue decimal.Decimal `gorm:"type:decimal(32,12);not null"`  // Price * amount, settlement currency
	Reference  string          `gorm:"size:36;uniqueIndex;not null"`  // External reference (UUID)
	CreatedAt  int64           `gorm:"autoCreateTime:milli"`          // Timestamp of execution in milliseconds
}

// Confirmation is what the engine hands back to the API layer: the
// persisted trade plus the balance it left behind.
type Confirmation struct {
	Trade   Trade           `json:"trade"`   // The committed trade record
	Balance decimal.Decimal `json:"balance"` // Cash balance after the commit
}
