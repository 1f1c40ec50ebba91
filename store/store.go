package store

import (
	"context"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/wallet"
)

// Store is the unified storage interface for all ByteBank entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// User methods
	CreateUser(ctx context.Context, u *account.User) error
	GetUser(ctx context.Context, userID id.UserID) (*account.User, error)
	GetUserByEmail(ctx context.Context, email string) (*account.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (*account.User, error)
	UpdateUser(ctx context.Context, u *account.User) error
	ListUsers(ctx context.Context, opts account.ListOpts) ([]*account.User, error)

	// Wallet methods
	CreateWallet(ctx context.Context, w *wallet.Wallet) error
	GetWalletByUser(ctx context.Context, userID id.UserID) (*wallet.Wallet, error)
	UpdateWallet(ctx context.Context, w *wallet.Wallet) error

	// Entry methods
	CreateEntry(ctx context.Context, e *entry.Entry) error
	UpdateEntry(ctx context.Context, e *entry.Entry) error
	DeleteEntry(ctx context.Context, entryID id.EntryID) error
	ListEntries(ctx context.Context, userID id.UserID, opts entry.ListOpts) ([]*entry.Entry, error)

	// Transaction methods
	AppendTransaction(ctx context.Context, t *transaction.Transaction) error
	ListTransactions(ctx context.Context, userID id.UserID, opts transaction.ListOpts) ([]*transaction.Transaction, error)

	// RunInTx runs fn as one atomic unit. Every write made through tx is
	// committed when fn returns nil and discarded otherwise. tx must not be
	// used after fn returns.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that the entity stores are covered.
var (
	_ account.Store     = Store(nil)
	_ wallet.Store      = Store(nil)
	_ entry.Store       = Store(nil)
	_ transaction.Store = Store(nil)
)
