package audithook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
)

type captured struct {
	events []*AuditEvent
	err    error
}

func (c *captured) Record(_ context.Context, event *AuditEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func TestRecordsInsufficientFundsAsFailure(t *testing.T) {
	rec := &captured{}
	ext := New(rec)
	userID := id.NewUserID()

	if err := ext.OnInsufficientFunds(context.Background(), userID, "wallet", 500, 120); err != nil {
		t.Fatalf("OnInsufficientFunds: %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Action != ActionInsufficientFunds || evt.Outcome != OutcomeFailure || evt.Severity != SeverityWarning {
		t.Errorf("unexpected event: %+v", evt)
	}
	if evt.ResourceID != userID.String() {
		t.Errorf("resource id: got %q, want %q", evt.ResourceID, userID)
	}
	if evt.Metadata["requested_mb"] != int64(500) || evt.Metadata["available_mb"] != int64(120) {
		t.Errorf("metadata: %v", evt.Metadata)
	}
}

func TestEntryEventsCarryLotDetails(t *testing.T) {
	rec := &captured{}
	ext := New(rec)
	lot := entry.New(id.NewUserID(), 300, entry.SourceEarned, time.Now())

	_ = ext.OnEntryCreated(context.Background(), lot)
	_ = ext.OnPurchased(context.Background(), lot)

	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
	if rec.events[0].Action != ActionEntryCreated || rec.events[1].Action != ActionDataPurchased {
		t.Errorf("actions: %s, %s", rec.events[0].Action, rec.events[1].Action)
	}
	if rec.events[0].Metadata["source"] != "earned" {
		t.Errorf("source: %v", rec.events[0].Metadata["source"])
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &captured{}
	ext := New(rec, WithEnabledActions(ActionSweepCompleted))
	ctx := context.Background()

	_ = ext.OnUsageConsumed(ctx, id.NewUserID(), 10, "daily")
	_ = ext.OnSweepCompleted(ctx, 3, 1, time.Second)

	if len(rec.events) != 1 || rec.events[0].Action != ActionSweepCompleted {
		t.Errorf("only the sweep should be recorded, got %d events", len(rec.events))
	}
}

func TestDisabledActionsFilter(t *testing.T) {
	rec := &captured{}
	ext := New(rec, WithDisabledActions(ActionRolloverApplied))
	ctx := context.Background()

	_ = ext.OnRolloverApplied(ctx, id.NewUserID(), 100)
	_ = ext.OnEntriesExpired(ctx, id.NewUserID(), 2, 50)

	if len(rec.events) != 1 || rec.events[0].Action != ActionEntriesExpired {
		t.Errorf("rollover should be skipped, got %d events", len(rec.events))
	}
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	rec := &captured{err: errors.New("backend down")}
	ext := New(rec, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnRolloverApplied(context.Background(), id.NewUserID(), 0); err != nil {
		t.Errorf("recorder failures must not surface, got %v", err)
	}
}
