package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"cointrader/internal/db"
	"cointrader/internal/domain"
	"cointrader/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeQuotes is a canned quote source
type fakeQuotes struct {
	price  decimal.Decimal
	err    error
	called bool
}

func (f *fakeQuotes) Price(ctx context.Context, coinID string) (decimal.Decimal, error) {
	f.called = true
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

func newTestDB(t *testing.T) (*gorm.DB, *store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // sqlite allows a single writer
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb, store.New(gdb)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	_, s := newTestDB(t)
	return s
}

func seedUser(t *testing.T, s *store.Store, balance string) *domain.User {
	t.Helper()
	user, err := s.CreateUser("trader", "password1", decimal.RequireFromString(balance))
	require.NoError(t, err)
	return user
}

func requireState(t *testing.T, s *store.Store, userID uint, balance string, coinID, holding string) {
	t.Helper()
	user, err := s.FindUser(userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString(balance)),
		"balance = %s, want %s", user.Balance, balance)
	if coinID == "" {
		return
	}
	wallet, err := s.GetWallet(userID, coinID)
	if holding == "" {
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return
	}
	require.NoError(t, err)
	assert.True(t, wallet.Amount.Equal(decimal.RequireFromString(holding)),
		"holding = %s, want %s", wallet.Amount, holding)
}

func TestBuyDebitsBalanceAndCreditsWallet(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "1000")
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(50000)})

	conf, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideBuy, decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	assert.Equal(t, domain.SideBuy, conf.Trade.Side)
	assert.True(t, conf.Trade.TotalValue.Equal(decimal.NewFromInt(500)))
	assert.True(t, conf.Balance.Equal(decimal.NewFromInt(500)))
	assert.NotEmpty(t, conf.Trade.Reference)
	requireState(t, s, user.ID, "500", "bitcoin", "0.01")
}

func TestBuyFailsOnInsufficientFunds(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "100")
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(50000)})

	_, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideBuy, decimal.RequireFromString("0.01"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	requireState(t, s, user.ID, "100", "bitcoin", "")
}

func TestSellFailsOnInsufficientHoldings(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "0")
	require.NoError(t, s.ApplyWalletDelta(user.ID, "bitcoin", decimal.RequireFromString("0.005")))
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(50000)})

	_, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideSell, decimal.RequireFromString("0.01"))
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	requireState(t, s, user.ID, "0", "bitcoin", "0.005")
}

func TestSellWithoutWalletFails(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "0")
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(100)})

	_, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideSell, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
}

func TestRejectsInvalidInputWithoutQuoteCall(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "1000")
	quotes := &fakeQuotes{price: decimal.NewFromInt(100)}
	eng := New(s, quotes)
	ctx := context.Background()

	cases := []struct {
		name   string
		coin   string
		side   string
		amount decimal.Decimal
	}{
		{"zero amount", "bitcoin", domain.SideBuy, decimal.Zero},
		{"negative amount", "bitcoin", domain.SideBuy, decimal.NewFromInt(-1)},
		{"empty coin", "", domain.SideBuy, decimal.NewFromInt(1)},
		{"unknown side", "bitcoin", "short", decimal.NewFromInt(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.Execute(ctx, user.ID, tc.coin, tc.side, tc.amount)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	assert.False(t, quotes.called, "validation failures must not reach the quote source")
	requireState(t, s, user.ID, "1000", "bitcoin", "")
}

func TestQuoteFailureLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "1000")
	eng := New(s, &fakeQuotes{err: errors.Wrap(domain.ErrQuoteUnavailable, "timeout")})

	_, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideBuy, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	requireState(t, s, user.ID, "1000", "bitcoin", "")
}

func TestBuyThenSellRoundTripRestoresBalance(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "1000")
	eng := New(s, &fakeQuotes{price: decimal.RequireFromString("50000")})
	ctx := context.Background()
	amount := decimal.RequireFromString("0.013")

	_, err := eng.Execute(ctx, user.ID, "bitcoin", domain.SideBuy, amount)
	require.NoError(t, err)
	_, err = eng.Execute(ctx, user.ID, "bitcoin", domain.SideSell, amount)
	require.NoError(t, err)

	// No spread: buying and selling the same amount at the same price is
	// exactly neutral
	requireState(t, s, user.ID, "1000", "bitcoin", "0")
}

func TestConcurrentBuysNeverOverspend(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "100")
	// Each buy costs exactly balance/N
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(20)})
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Execute(ctx, user.ID, "bitcoin", domain.SideBuy, decimal.NewFromInt(1))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}
	assert.LessOrEqual(t, successes, n)

	user2, err := s.FindUser(user.ID)
	require.NoError(t, err)
	assert.False(t, user2.Balance.IsNegative(), "balance went negative: %s", user2.Balance)
	// Spent exactly 20 per success
	assert.True(t, user2.Balance.Equal(decimal.NewFromInt(int64(100-20*successes))),
		"balance = %s after %d successes", user2.Balance, successes)
}

// conflictEveryUserUpdate bumps the user's version on the same
// transaction right before each balance CAS, so the swap always misses.
// remaining caps how many commits get sabotaged.
func conflictEveryUserUpdate(t *testing.T, gdb *gorm.DB, userID uint, remaining int32) {
	t.Helper()
	count := remaining
	err := gdb.Callback().Update().Before("gorm:update").Register("version_conflict", func(db *gorm.DB) {
		if _, ok := db.Statement.Model.(*domain.User); !ok {
			return
		}
		if atomic.AddInt32(&count, -1) < 0 {
			return
		}
		_, err := db.Statement.ConnPool.ExecContext(db.Statement.Context,
			"UPDATE users SET version = version + 1 WHERE id = ?", userID)
		assert.NoError(t, err)
	})
	require.NoError(t, err)
}

func TestCommitRetriesAfterVersionConflict(t *testing.T) {
	gdb, s := newTestDB(t)
	user := seedUser(t, s, "100")
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(20)})

	// The first attempt loses the version race; the rollback discards
	// the sabotage, so the retry validates fresh state and commits
	conflictEveryUserUpdate(t, gdb, user.ID, 1)

	conf, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideBuy, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, conf.Balance.Equal(decimal.NewFromInt(80)))
	requireState(t, s, user.ID, "80", "bitcoin", "1")
}

func TestConflictRetryExhaustionSurfaces(t *testing.T) {
	gdb, s := newTestDB(t)
	user := seedUser(t, s, "100")
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(20)})

	// Every attempt conflicts; after the bounded retries the conflict
	// surfaces and nothing is committed
	conflictEveryUserUpdate(t, gdb, user.ID, 1<<30)

	_, err := eng.Execute(context.Background(), user.ID, "bitcoin", domain.SideBuy, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrStorageConflict)
	requireState(t, s, user.ID, "100", "bitcoin", "")
}

// cancellingQuotes cancels the request context while quoting, before
// the commit step runs
type cancellingQuotes struct {
	cancel context.CancelFunc
	price  decimal.Decimal
}

func (c *cancellingQuotes) Price(ctx context.Context, coinID string) (decimal.Decimal, error) {
	c.cancel()
	return c.price, nil
}

func TestCancelledContextAbortsBeforeCommit(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "1000")
	ctx, cancel := context.WithCancel(context.Background())
	eng := New(s, &cancellingQuotes{cancel: cancel, price: decimal.NewFromInt(50000)})

	_, err := eng.Execute(ctx, user.ID, "bitcoin", domain.SideBuy, decimal.RequireFromString("0.01"))
	require.Error(t, err)
	requireState(t, s, user.ID, "1000", "bitcoin", "")
}

func TestDepositsComposeWithConcurrentTrades(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "1000")
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(20)})
	ctx := context.Background()

	// Interleaved buys and deposits: every debit and credit must land
	// exactly once, none overwritten by a stale snapshot
	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Execute(ctx, user.ID, "bitcoin", domain.SideBuy, decimal.NewFromInt(1))
			assert.NoError(t, err)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Deposit(user.ID, decimal.NewFromInt(5))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 1000 - 6*20 + 6*5
	requireState(t, s, user.ID, "910", "bitcoin", "6")
}

func TestConcurrentBuysStopAtZero(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "100")
	// Each buy costs half the starting balance: only two can win
	eng := New(s, &fakeQuotes{price: decimal.NewFromInt(50)})
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Execute(ctx, user.ID, "bitcoin", domain.SideBuy, decimal.NewFromInt(1))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 2, successes)
	requireState(t, s, user.ID, "0", "bitcoin", "2")
}
