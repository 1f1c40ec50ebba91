// Package plugin provides an extensible plugin system for ByteBank.
// Plugins can hook into various lifecycle events to extend functionality.
// Ledger hooks fire only after the unit of work they describe has committed.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, bank interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserRegistered is called after a user and their wallet are created.
type OnUserRegistered interface {
	Plugin
	OnUserRegistered(ctx context.Context, u *account.User) error
}

// OnRolloverApplied is called when a user's day is rolled over. leftover
// is zero when the whole quota had been used.
type OnRolloverApplied interface {
	Plugin
	OnRolloverApplied(ctx context.Context, userID id.UserID, leftover types.Megabytes) error
}

// ──────────────────────────────────────────────────
// Entry hooks
// ──────────────────────────────────────────────────

// OnEntryCreated is called when a lot is credited directly.
type OnEntryCreated interface {
	Plugin
	OnEntryCreated(ctx context.Context, e *entry.Entry) error
}

// OnEntriesExpired is called when expired lots are pruned.
type OnEntriesExpired interface {
	Plugin
	OnEntriesExpired(ctx context.Context, userID id.UserID, count int, forfeited types.Megabytes) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnUsageConsumed is called after usage is charged to a pool.
type OnUsageConsumed interface {
	Plugin
	OnUsageConsumed(ctx context.Context, userID id.UserID, amount types.Megabytes, source string) error
}

// OnPurchased is called after a purchased lot is credited.
type OnPurchased interface {
	Plugin
	OnPurchased(ctx context.Context, e *entry.Entry) error
}

// OnTransferred is called after balance moves between two users.
type OnTransferred interface {
	Plugin
	OnTransferred(ctx context.Context, t *transaction.Transaction) error
}

// OnInsufficientFunds is called when a request is rejected because its
// pool is too small.
type OnInsufficientFunds interface {
	Plugin
	OnInsufficientFunds(ctx context.Context, userID id.UserID, source string, requested, available types.Megabytes) error
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted is called after a background sweep.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, rolledOver, expired int, elapsed time.Duration) error
}
