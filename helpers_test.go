package bytebank_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/store/memory"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
	"github.com/xraph/bytebank/wallet"
)

var epoch = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	bank  *bytebank.Bank
	store store.Store
	mem   *memory.Store
	clock *testClock
}

func newFixture(t *testing.T, opts ...bytebank.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil, opts...)
}

// newFixtureWithStore wraps the memory store with wrap when it is non-nil.
func newFixtureWithStore(t *testing.T, wrap func(store.Store) store.Store, opts ...bytebank.Option) *fixture {
	t.Helper()

	mem := memory.New()
	var s store.Store = mem
	if wrap != nil {
		s = wrap(mem)
	}
	clock := &testClock{t: epoch}

	base := []bytebank.Option{
		bytebank.WithClock(clock),
		bytebank.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return &fixture{
		bank:  bytebank.New(s, append(base, opts...)...),
		store: s,
		mem:   mem,
		clock: clock,
	}
}

func (f *fixture) register(t *testing.T, email string, quota types.Megabytes) *account.User {
	t.Helper()
	u := &account.User{Name: email, Email: email, DailyQuotaMB: quota}
	if err := f.bank.RegisterUser(context.Background(), u); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

// seedLot stores a lot expiring expiresIn from now and credits the wallet.
func (f *fixture) seedLot(t *testing.T, userID id.UserID, amount int64, source entry.Source, expiresIn time.Duration) *entry.Entry {
	t.Helper()
	ctx := context.Background()

	now := f.clock.Now()
	e := entry.New(userID, types.MB(amount), source, now.Add(expiresIn-source.Lifetime()))
	if err := f.mem.CreateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	w := f.wallet(t, userID)
	w.Credit(e.AmountMB, source == entry.SourcePurchased)
	if err := f.mem.UpdateWallet(ctx, w); err != nil {
		t.Fatal(err)
	}
	return e
}

func (f *fixture) user(t *testing.T, userID id.UserID) *account.User {
	t.Helper()
	u, err := f.mem.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) wallet(t *testing.T, userID id.UserID) *wallet.Wallet {
	t.Helper()
	w, err := f.mem.GetWalletByUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (f *fixture) entries(t *testing.T, userID id.UserID) []*entry.Entry {
	t.Helper()
	es, err := f.mem.ListEntries(context.Background(), userID, entry.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	return es
}

func (f *fixture) txns(t *testing.T, userID id.UserID) []*transaction.Transaction {
	t.Helper()
	ts, err := f.mem.ListTransactions(context.Background(), userID, transaction.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

// ──────────────────────────────────────────────────
// Fault injection
// ──────────────────────────────────────────────────

var errDiskFull = errors.New("disk full")

// faultyStore fails the named write inside units of work once armed.
type faultyStore struct {
	store.Store
	failOn string
	armed  atomic.Bool
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &faultyTx{Store: tx, parent: f})
	})
}

type faultyTx struct {
	store.Store
	parent *faultyStore
}

func (f *faultyTx) fail(method string) bool {
	return f.parent.armed.Load() && f.parent.failOn == method
}

func (f *faultyTx) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	if f.fail("AppendTransaction") {
		return errDiskFull
	}
	return f.Store.AppendTransaction(ctx, t)
}

func (f *faultyTx) UpdateWallet(ctx context.Context, w *wallet.Wallet) error {
	if f.fail("UpdateWallet") {
		return errDiskFull
	}
	return f.Store.UpdateWallet(ctx, w)
}

func (f *faultyTx) CreateEntry(ctx context.Context, e *entry.Entry) error {
	if f.fail("CreateEntry") {
		return errDiskFull
	}
	return f.Store.CreateEntry(ctx, e)
}

// ──────────────────────────────────────────────────
// Recording plugin
// ──────────────────────────────────────────────────

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) seen(e string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

func (r *recorder) OnUserRegistered(context.Context, *account.User) error {
	r.add("registered")
	return nil
}

func (r *recorder) OnRolloverApplied(context.Context, id.UserID, types.Megabytes) error {
	r.add("rollover")
	return nil
}

func (r *recorder) OnPurchased(context.Context, *entry.Entry) error {
	r.add("purchased")
	return nil
}

func (r *recorder) OnUsageConsumed(context.Context, id.UserID, types.Megabytes, string) error {
	r.add("consumed")
	return nil
}

func (r *recorder) OnTransferred(context.Context, *transaction.Transaction) error {
	r.add("transferred")
	return nil
}

func (r *recorder) OnInsufficientFunds(context.Context, id.UserID, string, types.Megabytes, types.Megabytes) error {
	r.add("insufficient")
	return nil
}

func (r *recorder) OnEntriesExpired(context.Context, id.UserID, int, types.Megabytes) error {
	r.add("expired")
	return nil
}

func (r *recorder) OnSweepCompleted(context.Context, int, int, time.Duration) error {
	r.add("sweep")
	return nil
}
