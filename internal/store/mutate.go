package store

import (
	"cointrader/internal/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade-commit primitives. These are meant to run inside Atomically so
// a balance mutation and its paired wallet mutation land together or
// not at all.

// CompareAndSwapBalance writes a new balance only if the row still
// carries the version the caller validated against. A miss means a
// concurrent trade committed first: ErrStorageConflict, caller retries
// from a fresh read.
func (s *Store) CompareAndSwapBalance(userID uint, expectedVersion uint, newBalance decimal.Decimal) error {
	res := s.db.Model(&domain.User{}).
		Where("id = ? AND version = ?", userID, expectedVersion).
		Updates(map[string]any{
			"balance": newBalance,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "swap balance")
	}
	if res.RowsAffected == 0 {
		return domain.ErrStorageConflict
	}
	return nil
}

// ApplyWalletDelta adjusts one (user, coin) holding by delta, creating
// the row at zero on first buy. Negative deltas are guarded in SQL so a
// holding can never be driven below zero even under a race.
func (s *Store) ApplyWalletDelta(userID uint, coinID string, delta decimal.Decimal) error {
	if delta.IsNegative() {
		res := s.db.Model(&domain.Wallet{}).
			Where("user_id = ? AND coin_id = ? AND amount >= ?", userID, coinID, delta.Neg()).
			Update("amount", gorm.Expr("amount + ?", delta))
		if res.Error != nil {
			return errors.Wrap(res.Error, "decrement wallet")
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientHoldings
		}
		return nil
	}
	// Lazy creation: first buy of a coin starts the row at zero
	wallet, err := s.GetWallet(userID, coinID)
	if errors.Is(err, domain.ErrNotFound) {
		wallet = &domain.Wallet{UserID: userID, CoinID: coinID, Amount: decimal.Zero}
		if err := s.db.Create(wallet).Error; err != nil {
			return errors.Wrap(err, "create wallet")
		}
	} else if err != nil {
		return err
	}
	res := s.db.Model(&domain.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("amount", gorm.Expr("amount + ?", delta))
	if res.Error != nil {
		return errors.Wrap(res.Error, "increment wallet")
	}
	return nil
}

// RecordTrade persists the confirmation record
func (s *Store) RecordTrade(trade *domain.Trade) error {
	if err := s.db.Create(trade).Error; err != nil {
		return errors.Wrap(err, "record trade")
	}
	return nil
}
