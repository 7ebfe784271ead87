package store

import (
	"context" // Request-scoped cancellation

	"cointrader/internal/domain" // Importing domain models

	"github.com/pkg/errors"      // Error wrapping
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// Store is the account store: users, wallets and trade records on one
// gorm handle. Atomically hands out a Store bound to a transaction so
// the engine can commit a balance delta and a wallet delta as one unit.
type Store struct {
	db *gorm.DB // Database handle (or an open transaction)
}

// New creates a Store on the given database handle
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithContext returns a Store whose operations, including any
// transaction opened by Atomically, run under ctx
func (s *Store) WithContext(ctx context.Context) *Store {
	return &Store{db: s.db.WithContext(ctx)}
}

// Atomically runs fn against a Store bound to a single transaction.
// fn returning an error rolls everything back.
func (s *Store) Atomically(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateUser registers a new user with a bcrypt-hashed password and the
// configured starting balance. Returns ErrDuplicateUser if the username
// is already taken.
func (s *Store) CreateUser(username, rawPassword string, initialBalance decimal.Decimal) (*domain.User, error) {
	// Hash the password; plaintext never touches the database
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	user := domain.User{Username: username, Password: string(hash), Balance: initialBalance}
	if err := s.db.Create(&user).Error; err != nil {
		// Creation fails on the unique username index; confirm before blaming the caller
		var existing domain.User
		if lookupErr := s.db.Where("username = ?", username).First(&existing).Error; lookupErr == nil {
			return nil, domain.ErrDuplicateUser
		}
		return nil, errors.Wrap(err, "create user")
	}
	return &user, nil
}

// FindUser fetches a user by ID
func (s *Store) FindUser(id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

// FindUserByUsername fetches a user by username
func (s *Store) FindUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "find user by username")
	}
	return &user, nil
}

// VerifyCredential checks a raw password against the stored bcrypt hash.
// Unknown username and wrong password both come back as
// ErrInvalidCredentials so the two cases are indistinguishable upstream.
func (s *Store) VerifyCredential(username, rawPassword string) (*domain.User, error) {
	user, err := s.FindUserByUsername(username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	// One-way comparison, never equality on plaintext
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(rawPassword)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetWallet fetches one (user, coin) holding. ErrNotFound when the user
// never bought this coin.
func (s *Store) GetWallet(userID uint, coinID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := s.db.Where("user_id = ? AND coin_id = ?", userID, coinID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "get wallet")
	}
	return &wallet, nil
}

// Wallets lists all holdings for a user
func (s *Store) Wallets(userID uint) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	if err := s.db.Where("user_id = ?", userID).Order("coin_id").Find(&wallets).Error; err != nil {
		return nil, errors.Wrap(err, "list wallets")
	}
	return wallets, nil
}

// Deposit credits the user's cash balance atomically and returns the
// refreshed user record. amount must already be validated positive.
// The delta is applied in SQL against the committed row, never from a
// snapshot read, so it composes with a trade committing concurrently;
// the version bump sends any in-flight trade CAS back to re-validate.
func (s *Store) Deposit(userID uint, amount decimal.Decimal) (*domain.User, error) {
	var user *domain.User
	err := s.Atomically(func(tx *Store) error {
		res := tx.db.Model(&domain.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"balance": gorm.Expr("balance + ?", amount),
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "apply deposit")
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		var err error
		user, err = tx.FindUser(userID)
		return err
	})
	return user, err
}

// Trades returns one page of the user's trade history, newest first,
// along with the total count for pagination.
func (s *Store) Trades(userID uint, page, pageSize int) ([]domain.Trade, int64, error) {
	var total int64
	if err := s.db.Model(&domain.Trade{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count trades")
	}
	var trades []domain.Trade
	offset := (page - 1) * pageSize // Calculate offset
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(pageSize).
		Find(&trades).Error; err != nil {
		return nil, 0, errors.Wrap(err, "fetch trades")
	}
	return trades, total, nil
}
