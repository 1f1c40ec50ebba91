package bytebank_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

func TestConsumeDaily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 1024)

	res, err := f.bank.Consume(ctx, u.ID, 300, bytebank.SourceDaily)
	if err != nil {
		t.Fatal(err)
	}
	if res.UsedFromQuota != 300 || res.UsedFromWallet != 0 || res.Transaction != nil {
		t.Errorf("unexpected result %+v", res)
	}

	got := f.user(t, u.ID)
	if got.UsedTodayMB != 300 || got.TotalUsedMB != 300 {
		t.Errorf("user: used today %s, total %s", got.UsedTodayMB, got.TotalUsedMB)
	}
	if n := len(f.txns(t, u.ID)); n != 0 {
		t.Errorf("daily usage must not write transactions, got %d", n)
	}
}

func TestConsumeDailyInsufficientQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 1024)

	if _, err := f.bank.Consume(ctx, u.ID, 724, bytebank.SourceDaily); err != nil {
		t.Fatal(err)
	}
	before := f.user(t, u.ID)

	_, err := f.bank.Consume(ctx, u.ID, 500, bytebank.SourceDaily)
	if !errors.Is(err, bytebank.ErrInsufficientQuota) {
		t.Fatalf("expected ErrInsufficientQuota, got %v", err)
	}
	var short *bytebank.ShortfallError
	if !errors.As(err, &short) || short.Requested != 500 || short.Available != 300 {
		t.Errorf("unexpected shortfall %+v", short)
	}
	if bytebank.KindOf(err) != bytebank.KindInsufficientQuota {
		t.Errorf("kind: got %s", bytebank.KindOf(err))
	}

	after := f.user(t, u.ID)
	if after.UsedTodayMB != before.UsedTodayMB || after.TotalUsedMB != before.TotalUsedMB {
		t.Error("rejected consume mutated the user")
	}
}

func TestConsumeWalletDepletesOldestExpiringFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 0)

	late := f.seedLot(t, u.ID, 80, entry.SourcePurchased, 10*24*time.Hour)
	f.seedLot(t, u.ID, 50, entry.SourceEarned, 2*24*time.Hour)

	res, err := f.bank.Consume(ctx, u.ID, 60, bytebank.SourceWallet)
	if err != nil {
		t.Fatal(err)
	}
	if res.UsedFromWallet != 60 || res.Transaction == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Transaction.Note != transaction.NoteWalletUsage || res.Transaction.SenderID != u.ID || !res.Transaction.ReceiverID.IsNil() {
		t.Errorf("unexpected transaction %+v", res.Transaction)
	}

	lots := f.entries(t, u.ID)
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot left, got %d", len(lots))
	}
	if lots[0].ID != late.ID || lots[0].AmountMB != 70 {
		t.Errorf("remaining lot: got %s %s, want %s 70 MB", lots[0].ID, lots[0].AmountMB, late.ID)
	}

	w := f.wallet(t, u.ID)
	if w.BalanceMB != 70 || w.TotalUsedMB != 60 {
		t.Errorf("wallet: balance %s used %s", w.BalanceMB, w.TotalUsedMB)
	}
	if got := f.user(t, u.ID).TotalUsedMB; got != 60 {
		t.Errorf("user total used: got %s", got)
	}
}

func TestConsumeWalletKeepsBalanceAndLotsInStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 0)

	f.seedLot(t, u.ID, 120, entry.SourcePurchased, 20*24*time.Hour)
	f.seedLot(t, u.ID, 30, entry.SourceEarned, 24*time.Hour)

	beforeLots := entry.Total(f.entries(t, u.ID))
	beforeBal := f.wallet(t, u.ID).BalanceMB

	const amount = types.Megabytes(45)
	if _, err := f.bank.Consume(ctx, u.ID, amount, bytebank.SourceWallet); err != nil {
		t.Fatal(err)
	}

	if got := entry.Total(f.entries(t, u.ID)); got != beforeLots-amount {
		t.Errorf("active total: got %s, want %s", got, beforeLots-amount)
	}
	if got := f.wallet(t, u.ID).BalanceMB; got != beforeBal-amount {
		t.Errorf("balance: got %s, want %s", got, beforeBal-amount)
	}
}

func TestConsumeWalletInsufficientBalance(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, bytebank.WithPlugin(rec))
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 0)
	f.seedLot(t, u.ID, 40, entry.SourcePurchased, 5*24*time.Hour)

	_, err := f.bank.Consume(ctx, u.ID, 41, bytebank.SourceWallet)
	if !errors.Is(err, bytebank.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !bytebank.IsInsufficient(err) {
		t.Error("IsInsufficient should report true")
	}
	if !rec.seen("insufficient") {
		t.Error("insufficient funds hook did not fire")
	}

	if w := f.wallet(t, u.ID); w.BalanceMB != 40 || w.TotalUsedMB != 0 {
		t.Errorf("wallet mutated: %+v", w)
	}
	if lots := f.entries(t, u.ID); len(lots) != 1 || lots[0].AmountMB != 40 {
		t.Error("lots mutated")
	}
	if f.user(t, u.ID).TotalUsedMB != 0 {
		t.Error("user mutated")
	}
}

func TestConsumeRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "asha@example.com", 0)

	tests := []struct {
		name   string
		amount types.Megabytes
		source bytebank.UsageSource
		want   error
		kind   bytebank.ErrorKind
	}{
		{"zero amount", 0, bytebank.SourceDaily, bytebank.ErrInvalidAmount, bytebank.KindInvalidAmount},
		{"negative amount", -5, bytebank.SourceWallet, bytebank.ErrInvalidAmount, bytebank.KindInvalidAmount},
		{"unknown source", 10, "roaming", bytebank.ErrInvalidSource, bytebank.KindSelfTransferOrInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bank.Consume(context.Background(), u.ID, tt.amount, tt.source)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got := bytebank.KindOf(err); got != tt.kind {
				t.Errorf("kind: got %s, want %s", got, tt.kind)
			}
		})
	}
}

func TestConsumeRollsBackOnStoreFailure(t *testing.T) {
	var faulty *faultyStore
	f := newFixtureWithStore(t, func(s store.Store) store.Store {
		faulty = &faultyStore{Store: s, failOn: "AppendTransaction"}
		return faulty
	})
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 0)
	f.seedLot(t, u.ID, 50, entry.SourceEarned, 2*24*time.Hour)
	f.seedLot(t, u.ID, 80, entry.SourcePurchased, 10*24*time.Hour)

	faulty.armed.Store(true)
	_, err := f.bank.Consume(ctx, u.ID, 60, bytebank.SourceWallet)
	if !errors.Is(err, bytebank.ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
	if !errors.Is(err, errDiskFull) {
		t.Error("the store error should stay in the chain")
	}
	if !bytebank.IsRetryable(err) {
		t.Error("persistence failures are retryable")
	}

	if w := f.wallet(t, u.ID); w.BalanceMB != 130 || w.TotalUsedMB != 0 {
		t.Errorf("wallet not rolled back: %+v", w)
	}
	if got := entry.Total(f.entries(t, u.ID)); got != 130 {
		t.Errorf("lots not rolled back: total %s", got)
	}
	if len(f.entries(t, u.ID)) != 2 {
		t.Error("exhausted lot deletion not rolled back")
	}
	if f.user(t, u.ID).TotalUsedMB != 0 {
		t.Error("user not rolled back")
	}
}

func TestConcurrentWalletConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "asha@example.com", 0)
	f.seedLot(t, u.ID, 100, entry.SourcePurchased, 10*24*time.Hour)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.bank.Consume(ctx, u.ID, 10, bytebank.SourceWallet); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, bytebank.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("expected 10 successful consumes, got %d", succeeded)
	}
	if w := f.wallet(t, u.ID); w.BalanceMB != 0 || w.TotalUsedMB != 100 {
		t.Errorf("wallet: %+v", w)
	}
	if n := len(f.entries(t, u.ID)); n != 0 {
		t.Errorf("expected all lots spent, %d left", n)
	}
}
