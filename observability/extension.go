// Package observability provides a metrics extension for ByteBank that records
// ledger event counts through a MetricFactory such as the forge app metrics.
package observability

import (
	"context"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/plugin"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnUserRegistered    = (*MetricsExtension)(nil)
	_ plugin.OnRolloverApplied   = (*MetricsExtension)(nil)
	_ plugin.OnEntryCreated      = (*MetricsExtension)(nil)
	_ plugin.OnEntriesExpired    = (*MetricsExtension)(nil)
	_ plugin.OnUsageConsumed     = (*MetricsExtension)(nil)
	_ plugin.OnPurchased         = (*MetricsExtension)(nil)
	_ plugin.OnTransferred       = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientFunds = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a ByteBank plugin to track data flows automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	UsersRegistered  Counter
	RolloversApplied Counter
	RolloverMB       Counter

	// Entry metrics
	EntriesCreated Counter
	EntriesExpired Counter
	ForfeitedMB    Counter

	// Usage metrics
	DailyUsageMB  Counter
	WalletUsageMB Counter
	UsageSize     Histogram

	// Wallet metrics
	Purchases     Counter
	PurchasedMB   Counter
	Transfers     Counter
	TransferredMB Counter

	// Rejection metrics
	InsufficientQuota   Counter
	InsufficientBalance Counter

	// Sweep metrics
	Sweeps       Counter
	SweepLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		UsersRegistered:  factory.Counter("bytebank.users.registered"),
		RolloversApplied: factory.Counter("bytebank.rollover.applied"),
		RolloverMB:       factory.Counter("bytebank.rollover.mb"),

		EntriesCreated: factory.Counter("bytebank.entries.created"),
		EntriesExpired: factory.Counter("bytebank.entries.expired"),
		ForfeitedMB:    factory.Counter("bytebank.entries.forfeited_mb"),

		DailyUsageMB:  factory.Counter("bytebank.usage.daily_mb"),
		WalletUsageMB: factory.Counter("bytebank.usage.wallet_mb"),
		UsageSize:     factory.Histogram("bytebank.usage.size_mb"),

		Purchases:     factory.Counter("bytebank.wallet.purchases"),
		PurchasedMB:   factory.Counter("bytebank.wallet.purchased_mb"),
		Transfers:     factory.Counter("bytebank.wallet.transfers"),
		TransferredMB: factory.Counter("bytebank.wallet.transferred_mb"),

		InsufficientQuota:   factory.Counter("bytebank.rejected.quota"),
		InsufficientBalance: factory.Counter("bytebank.rejected.balance"),

		Sweeps:       factory.Counter("bytebank.sweep.runs"),
		SweepLatency: factory.Histogram("bytebank.sweep.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserRegistered implements plugin.OnUserRegistered.
func (m *MetricsExtension) OnUserRegistered(_ context.Context, _ *account.User) error {
	m.UsersRegistered.Inc()
	return nil
}

// OnRolloverApplied implements plugin.OnRolloverApplied.
func (m *MetricsExtension) OnRolloverApplied(_ context.Context, _ id.UserID, leftover types.Megabytes) error {
	m.RolloversApplied.Inc()
	m.RolloverMB.Add(float64(leftover))
	return nil
}

// ──────────────────────────────────────────────────
// Entry hooks
// ──────────────────────────────────────────────────

// OnEntryCreated implements plugin.OnEntryCreated.
func (m *MetricsExtension) OnEntryCreated(_ context.Context, _ *entry.Entry) error {
	m.EntriesCreated.Inc()
	return nil
}

// OnEntriesExpired implements plugin.OnEntriesExpired.
func (m *MetricsExtension) OnEntriesExpired(_ context.Context, _ id.UserID, count int, forfeited types.Megabytes) error {
	m.EntriesExpired.Add(float64(count))
	m.ForfeitedMB.Add(float64(forfeited))
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnUsageConsumed implements plugin.OnUsageConsumed.
func (m *MetricsExtension) OnUsageConsumed(_ context.Context, _ id.UserID, amount types.Megabytes, source string) error {
	if source == "wallet" {
		m.WalletUsageMB.Add(float64(amount))
	} else {
		m.DailyUsageMB.Add(float64(amount))
	}
	m.UsageSize.Observe(float64(amount))
	return nil
}

// OnPurchased implements plugin.OnPurchased.
func (m *MetricsExtension) OnPurchased(_ context.Context, e *entry.Entry) error {
	m.Purchases.Inc()
	m.PurchasedMB.Add(float64(e.AmountMB))
	return nil
}

// OnTransferred implements plugin.OnTransferred.
func (m *MetricsExtension) OnTransferred(_ context.Context, t *transaction.Transaction) error {
	m.Transfers.Inc()
	m.TransferredMB.Add(float64(t.AmountMB))
	return nil
}

// OnInsufficientFunds implements plugin.OnInsufficientFunds.
func (m *MetricsExtension) OnInsufficientFunds(_ context.Context, _ id.UserID, source string, _, _ types.Megabytes) error {
	if source == "wallet" {
		m.InsufficientBalance.Inc()
	} else {
		m.InsufficientQuota.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, _, _ int, elapsed time.Duration) error {
	m.Sweeps.Inc()
	m.SweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
