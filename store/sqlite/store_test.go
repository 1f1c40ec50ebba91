package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	bytebankstore "github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
	"github.com/xraph/bytebank/wallet"
)

// openStore opens a migrated store on a fresh database file.
func openStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, filepath.Join(t.TempDir(), "bytebank.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove open: %v", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := openStore(t)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRunInTx(t *testing.T) {
	s := openStore(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	newUser := func(email string) *account.User {
		return &account.User{
			Entity:        types.NewEntity(now),
			ID:            id.NewUserID(),
			Email:         email,
			DailyQuotaMB:  1024,
			LastUsageDate: types.Day(now),
		}
	}
	newWallet := func(userID id.UserID, balance types.Megabytes) *wallet.Wallet {
		return &wallet.Wallet{
			Entity:    types.NewEntity(now),
			ID:        id.NewWalletID(),
			UserID:    userID,
			BalanceMB: balance,
		}
	}

	t.Run("rolls back on error", func(t *testing.T) {
		u := newUser("asha@example.com")
		boom := errors.New("boom")

		err := s.RunInTx(ctx, func(ctx context.Context, tx bytebankstore.Store) error {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			if err := tx.CreateWallet(ctx, newWallet(u.ID, 10)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the unit error, got %v", err)
		}

		if _, err := s.GetUser(ctx, u.ID); !errors.Is(err, bytebank.ErrUserNotFound) {
			t.Errorf("user survived rollback: %v", err)
		}
		if _, err := s.GetWalletByUser(ctx, u.ID); !errors.Is(err, bytebank.ErrWalletNotFound) {
			t.Errorf("wallet survived rollback: %v", err)
		}
	})

	t.Run("commits on success", func(t *testing.T) {
		u := newUser("ben@example.com")

		err := s.RunInTx(ctx, func(ctx context.Context, tx bytebankstore.Store) error {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			// Nested units join the enclosing transaction.
			return tx.RunInTx(ctx, func(ctx context.Context, tx bytebankstore.Store) error {
				return tx.CreateWallet(ctx, newWallet(u.ID, 25))
			})
		})
		if err != nil {
			t.Fatal(err)
		}

		w, err := s.GetWalletByUser(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if w.BalanceMB != 25 {
			t.Errorf("balance: got %d, want 25", w.BalanceMB)
		}
	})

	t.Run("identifiers stay unique", func(t *testing.T) {
		if err := s.CreateUser(ctx, newUser("ben@example.com")); !errors.Is(err, bytebank.ErrIdentifierTaken) {
			t.Errorf("expected ErrIdentifierTaken, got %v", err)
		}
	})
}

func TestBankOnSQLite(t *testing.T) {
	s := openStore(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	bank := bytebank.New(s,
		bytebank.WithClock(bytebank.ClockFunc(func() time.Time { return now })),
		bytebank.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := bank.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	asha := &account.User{Name: "Asha", Email: "asha@example.com", DailyQuotaMB: 1024}
	ben := &account.User{Name: "Ben", Mobile: "+15550100"}
	for _, u := range []*account.User{asha, ben} {
		if err := bank.RegisterUser(ctx, u); err != nil {
			t.Fatalf("register %s: %v", u.Name, err)
		}
	}

	if _, err := bank.Consume(ctx, asha.ID, 200, bytebank.SourceDaily); err != nil {
		t.Fatalf("daily consume: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := bank.Purchase(ctx, asha.ID, 500); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := bank.Consume(ctx, asha.ID, 100, bytebank.SourceWallet); err != nil {
		t.Fatalf("wallet consume: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := bank.Transfer(ctx, asha.ID, "+1 555-0100", 150); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	_, err := bank.Consume(ctx, asha.ID, 1000, bytebank.SourceWallet)
	if !errors.Is(err, bytebank.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	w, err := s.GetWalletByUser(ctx, asha.ID)
	if err != nil {
		t.Fatal(err)
	}
	if w.BalanceMB != 250 || w.TotalPurchasedMB != 500 || w.TotalUsedMB != 100 {
		t.Errorf("sender wallet: %+v", w)
	}

	lots, err := s.ListEntries(ctx, ben.ID, entry.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(lots) != 1 || lots[0].AmountMB != 150 || lots[0].Source != entry.SourcePurchased {
		t.Errorf("receiver lots: %+v", lots)
	}

	txns, err := bank.RecentTransactions(ctx, asha.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	kinds := make([]transaction.Kind, len(txns))
	for i, tx := range txns {
		kinds[i] = tx.Kind
	}
	want := []transaction.Kind{transaction.KindTransfer, transaction.KindUsage, transaction.KindPurchase}
	if len(kinds) != len(want) {
		t.Fatalf("transactions: got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("transaction %d: got %s, want %s", i, kinds[i], want[i])
		}
	}

	// Next day: the unused 824 MB of quota rolls into the wallet.
	now = now.Add(24 * time.Hour)
	sum, err := bank.Summary(ctx, asha.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Wallet.BalanceMB != 1074 || sum.TotalActiveMB != 1074 {
		t.Errorf("after rollover: balance %d active %d", sum.Wallet.BalanceMB, sum.TotalActiveMB)
	}
	if sum.UsedTodayMB != 0 {
		t.Errorf("day counter not reset: %d", sum.UsedTodayMB)
	}
}
