// Package bytebank provides a prepaid data-quota wallet engine for Go
// applications.
//
// ByteBank is designed as a library, not a service. Import it into the
// application that owns routing and authentication and call the engine with
// an explicit user ID. It provides:
//
//   - A daily data quota that rolls unused megabytes into the wallet
//   - Expiring lots (entries): earned lots last 7 days, purchased lots 30
//   - Wallet consumption that spends lots oldest-expiring first
//   - Purchases and user-to-user transfers that carry their lots along
//   - An append-only transaction history for every balance change
//   - Per-user locking, in process or across instances through Redis
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/bytebank"
//	    "github.com/xraph/bytebank/store/memory"
//	)
//
//	b := bytebank.New(memory.New(),
//	    bytebank.WithSweepInterval(time.Hour),
//	)
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Stop()
//
//	u := &account.User{Name: "Asha", Email: "asha@example.com"}
//	if err := b.RegisterUser(ctx, u); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Buy 500 MB, then spend 120 MB of it.
//	b.Purchase(ctx, u.ID, bytebank.MB(500))
//	b.Consume(ctx, u.ID, bytebank.MB(120), bytebank.SourceWallet)
//
// # Units of work
//
// Every operation first rolls the user's day over and prunes expired lots,
// committed on its own, and then runs as a single store.RunInTx unit. If
// the store fails part way the unit is rolled back and the error matches
// ErrPersistenceFailure, for which IsRetryable reports true. Plugin hooks
// run only after a unit commits.
//
// # Errors
//
// Ledger rule violations are sentinel errors (ErrInvalidAmount,
// ErrInsufficientQuota, ErrInsufficientBalance, ErrRecipientNotFound,
// ErrSelfTransfer, ErrInvalidSource). KindOf maps any error to a coarse
// ErrorKind for presentation layers.
//
// # Stores
//
// store/memory is for tests and demos. store/sqlite, store/postgres and
// store/mongo persist through Grove.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	usr_01h2xcejqtf2nbrexx3vqjhp41   // User ID
//	wal_01h2xcejqtf2nbrexx3vqjhp41   // Wallet ID
//	dent_01h455vb4pex5vsknk084sn02q  // Data entry ID
//	txn_01h455vb4pex5vsknk084sn02q   // Transaction ID
package bytebank
