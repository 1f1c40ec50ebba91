// Package audithook bridges ByteBank ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/plugin"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnUserRegistered    = (*Extension)(nil)
	_ plugin.OnRolloverApplied   = (*Extension)(nil)
	_ plugin.OnEntryCreated      = (*Extension)(nil)
	_ plugin.OnEntriesExpired    = (*Extension)(nil)
	_ plugin.OnUsageConsumed     = (*Extension)(nil)
	_ plugin.OnPurchased         = (*Extension)(nil)
	_ plugin.OnTransferred       = (*Extension)(nil)
	_ plugin.OnInsufficientFunds = (*Extension)(nil)
	_ plugin.OnSweepCompleted    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ByteBank ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserRegistered implements plugin.OnUserRegistered.
func (e *Extension) OnUserRegistered(ctx context.Context, u *account.User) error {
	return e.record(ctx, ActionUserRegistered, SeverityInfo, OutcomeSuccess,
		ResourceUser, u.ID.String(), CategoryAccount, nil,
		"name", u.Name,
		"daily_quota_mb", u.DailyQuotaMB.Int64(),
	)
}

// OnRolloverApplied implements plugin.OnRolloverApplied.
func (e *Extension) OnRolloverApplied(ctx context.Context, userID id.UserID, leftover types.Megabytes) error {
	return e.record(ctx, ActionRolloverApplied, SeverityInfo, OutcomeSuccess,
		ResourceUser, userID.String(), CategoryUsage, nil,
		"leftover_mb", leftover.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Entry hooks
// ──────────────────────────────────────────────────

// OnEntryCreated implements plugin.OnEntryCreated.
func (e *Extension) OnEntryCreated(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryCreated, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryWallet, nil,
		"user_id", en.UserID.String(),
		"amount_mb", en.AmountMB.Int64(),
		"source", string(en.Source),
		"expiry_date", en.ExpiryDate,
	)
}

// OnEntriesExpired implements plugin.OnEntriesExpired.
func (e *Extension) OnEntriesExpired(ctx context.Context, userID id.UserID, count int, forfeited types.Megabytes) error {
	return e.record(ctx, ActionEntriesExpired, SeverityInfo, OutcomeSuccess,
		ResourceWallet, userID.String(), CategoryWallet, nil,
		"entries", count,
		"forfeited_mb", forfeited.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnUsageConsumed implements plugin.OnUsageConsumed.
func (e *Extension) OnUsageConsumed(ctx context.Context, userID id.UserID, amount types.Megabytes, source string) error {
	return e.record(ctx, ActionUsageConsumed, SeverityInfo, OutcomeSuccess,
		ResourceUser, userID.String(), CategoryUsage, nil,
		"amount_mb", amount.Int64(),
		"source", source,
	)
}

// OnPurchased implements plugin.OnPurchased.
func (e *Extension) OnPurchased(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionDataPurchased, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryWallet, nil,
		"user_id", en.UserID.String(),
		"amount_mb", en.AmountMB.Int64(),
		"expiry_date", en.ExpiryDate,
	)
}

// OnTransferred implements plugin.OnTransferred.
func (e *Extension) OnTransferred(ctx context.Context, t *transaction.Transaction) error {
	return e.record(ctx, ActionDataTransferred, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, t.ID.String(), CategoryWallet, nil,
		"sender_id", t.SenderID.String(),
		"receiver_id", t.ReceiverID.String(),
		"amount_mb", t.AmountMB.Int64(),
	)
}

// OnInsufficientFunds implements plugin.OnInsufficientFunds.
func (e *Extension) OnInsufficientFunds(ctx context.Context, userID id.UserID, source string, requested, available types.Megabytes) error {
	return e.record(ctx, ActionInsufficientFunds, SeverityWarning, OutcomeFailure,
		ResourceUser, userID.String(), CategoryUsage, nil,
		"source", source,
		"requested_mb", requested.Int64(),
		"available_mb", available.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, rolledOver, expired int, elapsed time.Duration) error {
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSweep, "", CategoryMaintenance, nil,
		"rolled_over", rolledOver,
		"expired", expired,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
