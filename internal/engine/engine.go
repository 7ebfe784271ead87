package engine

import (
	"context"
	"time"

	"cointrader/internal/domain"
	"cointrader/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// QuoteSource is the external price collaborator. The engine only needs
// one spot price per trade.
type QuoteSource interface {
	Price(ctx context.Context, coinID string) (decimal.Decimal, error)
}

const (
	maxCommitAttempts = 3                     // Bounded retries on optimistic-lock misses
	conflictBackoff   = 10 * time.Millisecond // Pause between attempts
)

// Engine executes trades: quote, validate, commit. All mutations to a
// user's balance and wallets go through here and nowhere else.
type Engine struct {
	store  *store.Store
	quotes QuoteSource
}

// New creates a trade engine on the given store and quote source
func New(s *store.Store, quotes QuoteSource) *Engine {
	return &Engine{store: s, quotes: quotes}
}

// Execute runs one trade for userID: side is domain.SideBuy or
// domain.SideSell, amount is the coin quantity. The quote call happens
// before any lock is taken; validation and the paired balance+wallet
// mutation happen inside a single transaction against the latest
// committed state, retried on version conflicts.
func (e *Engine) Execute(ctx context.Context, userID uint, coinID, side string, amount decimal.Decimal) (*domain.Confirmation, error) {
	// Input validation, before any I/O
	if coinID == "" {
		return nil, errors.Wrap(domain.ErrValidation, "coin is required")
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, errors.Wrapf(domain.ErrValidation, "unknown side %q", side)
	}
	if !amount.IsPositive() {
		return nil, errors.Wrap(domain.ErrValidation, "amount must be positive")
	}

	// Quote outside the transaction; a slow source must not extend any lock
	price, err := e.quotes.Price(ctx, coinID)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, errors.Wrapf(domain.ErrQuoteUnavailable, "non-positive price for %q", coinID)
	}
	totalValue := price.Mul(amount) // Decimal arithmetic, no float drift

	var confirmation *domain.Confirmation
	for attempt := 1; ; attempt++ {
		confirmation, err = e.commit(ctx, userID, coinID, side, amount, price, totalValue)
		if !errors.Is(err, domain.ErrStorageConflict) {
			break
		}
		// Another trade for this user won the version race; re-validate
		// against the fresh state a bounded number of times
		if attempt == maxCommitAttempts {
			logrus.WithFields(logrus.Fields{
				"user_id":  userID,
				"coin":     coinID,
				"attempts": attempt,
			}).Warn("Trade commit gave up after repeated conflicts")
			break
		}
		time.Sleep(conflictBackoff)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"coin":        coinID,
		"side":        side,
		"amount":      amount.String(),
		"total_value": totalValue.String(),
		"reference":   confirmation.Trade.Reference,
	}).Info("Trade executed")
	return confirmation, nil
}

// commit validates against the latest committed state and applies the
// balance and wallet mutations as one transaction. Both land or neither
// does; a cancelled ctx aborts before anything is written.
func (e *Engine) commit(ctx context.Context, userID uint, coinID, side string, amount, price, totalValue decimal.Decimal) (*domain.Confirmation, error) {
	var confirmation *domain.Confirmation
	err := e.store.WithContext(ctx).Atomically(func(tx *store.Store) error {
		user, err := tx.FindUser(userID)
		if err != nil {
			return err
		}

		var newBalance decimal.Decimal
		switch side {
		case domain.SideBuy:
			if user.Balance.LessThan(totalValue) {
				return domain.ErrInsufficientFunds
			}
			newBalance = user.Balance.Sub(totalValue)
		case domain.SideSell:
			wallet, err := tx.GetWallet(userID, coinID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrInsufficientHoldings
			} else if err != nil {
				return err
			}
			if wallet.Amount.LessThan(amount) {
				return domain.ErrInsufficientHoldings
			}
			newBalance = user.Balance.Add(totalValue)
		}

		// Balance first: the version CAS is what serializes concurrent
		// trades for one user
		if err := tx.CompareAndSwapBalance(userID, user.Version, newBalance); err != nil {
			return err
		}
		walletDelta := amount
		if side == domain.SideSell {
			walletDelta = amount.Neg()
		}
		if err := tx.ApplyWalletDelta(userID, coinID, walletDelta); err != nil {
			return err
		}

		trade := domain.Trade{
			UserID:     userID,
			CoinID:     coinID,
			Side:       side,
			Amount:     amount,
			Price:      price,
			TotalValue: totalValue,
			Reference:  uuid.NewString(),
		}
		if err := tx.RecordTrade(&trade); err != nil {
			return err
		}
		confirmation = &domain.Confirmation{Trade: trade, Balance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmation, nil
}
