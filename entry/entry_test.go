package entry

import (
	"testing"
	"time"

	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/types"
)

var now = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func lot(amount int64, expiresIn time.Duration) *Entry {
	e := New(id.NewUserID(), 0, SourcePurchased, now.Add(expiresIn-PurchasedLifetime))
	e.AmountMB = types.MB(amount)
	return e
}

func TestNewExpiryBySource(t *testing.T) {
	user := id.NewUserID()
	tests := []struct {
		source Source
		want   time.Time
	}{
		{SourceEarned, now.AddDate(0, 0, 7)},
		{SourcePurchased, now.AddDate(0, 0, 30)},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			e := New(user, 100, tt.source, now)
			if !e.ExpiryDate.Equal(tt.want) {
				t.Errorf("expiry: got %v, want %v", e.ExpiryDate, tt.want)
			}
			if e.ID.Prefix() != id.PrefixEntry {
				t.Errorf("unexpected ID prefix %q", e.ID.Prefix())
			}
		})
	}
}

func TestSourceIsValid(t *testing.T) {
	if !SourceEarned.IsValid() || !SourcePurchased.IsValid() {
		t.Error("known sources must be valid")
	}
	if Source("gifted").IsValid() {
		t.Error("unknown source must be invalid")
	}
}

func TestIsActiveBoundary(t *testing.T) {
	e := lot(10, 0)
	if e.IsActive(now) {
		t.Error("a lot expiring exactly now is not active")
	}
	if !e.IsActive(now.Add(-time.Nanosecond)) {
		t.Error("a lot expiring after now is active")
	}
}

func TestDaysLeftFloors(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{72 * time.Hour, 3},
		{95 * time.Hour, 3},
		{96 * time.Hour, 4},
		{time.Hour, 0},
		{-time.Hour, -1},
	}
	for _, tt := range tests {
		if got := lot(1, tt.in).DaysLeft(now); got != tt.want {
			t.Errorf("DaysLeft(%v): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExpiringSoon(t *testing.T) {
	soon := lot(10, 2*24*time.Hour)
	edge := lot(10, 3*24*time.Hour+23*time.Hour)
	later := lot(10, 4*24*time.Hour)

	got := ExpiringSoon([]*Entry{soon, edge, later}, now, DefaultExpiringSoonDays)
	if len(got) != 2 || got[0] != soon || got[1] != edge {
		t.Fatalf("unexpected selection: %d entries", len(got))
	}
}

func TestDepleteOldestExpiringFirst(t *testing.T) {
	first := lot(50, 2*24*time.Hour)
	second := lot(80, 10*24*time.Hour)

	// Pass them out of order; Deplete sorts by expiry.
	d := Deplete([]*Entry{second, first}, 60)

	if first.AmountMB != 0 || second.AmountMB != 70 {
		t.Fatalf("amounts after deplete: first=%d second=%d", first.AmountMB, second.AmountMB)
	}
	if len(d.Exhausted) != 1 || d.Exhausted[0] != first {
		t.Errorf("expected first lot exhausted, got %d", len(d.Exhausted))
	}
	if len(d.Updated) != 1 || d.Updated[0] != second {
		t.Errorf("expected second lot updated, got %d", len(d.Updated))
	}
	if len(d.Portions) != 2 || d.Portions[0].Amount != 50 || d.Portions[1].Amount != 10 {
		t.Errorf("unexpected portions: %+v", d.Portions)
	}
	if d.Unbacked != 0 {
		t.Errorf("unexpected unbacked amount %d", d.Unbacked)
	}
}

func TestDepleteUnbacked(t *testing.T) {
	only := lot(30, 24*time.Hour)
	d := Deplete([]*Entry{only}, 45)

	if d.Unbacked != 15 {
		t.Errorf("unbacked: got %d, want 15", d.Unbacked)
	}
	if Total([]*Entry{only}) != 0 {
		t.Error("lot should be drained")
	}
}

func TestDepleteExactAmountLeavesLaterLotsAlone(t *testing.T) {
	a := lot(40, 24*time.Hour)
	b := lot(40, 48*time.Hour)
	d := Deplete([]*Entry{a, b}, 40)

	if b.AmountMB != 40 {
		t.Errorf("second lot touched: %d", b.AmountMB)
	}
	if len(d.Portions) != 1 {
		t.Errorf("expected one portion, got %d", len(d.Portions))
	}
}

func TestSplitKeepsDates(t *testing.T) {
	src := New(id.NewUserID(), 100, SourceEarned, now.Add(-48*time.Hour))
	receiver := id.NewUserID()

	moved := src.Split(receiver, 25, now)
	if moved.UserID != receiver || moved.AmountMB != 25 {
		t.Fatalf("unexpected split: %+v", moved)
	}
	if moved.Source != src.Source || !moved.AddedOn.Equal(src.AddedOn) || !moved.ExpiryDate.Equal(src.ExpiryDate) {
		t.Error("split must preserve source and dates")
	}
	if moved.ID == src.ID {
		t.Error("split must get a new ID")
	}
}

func TestListOptsMatches(t *testing.T) {
	active := lot(1, time.Hour)
	expired := lot(1, -time.Hour)

	if !(ListOpts{ActiveAt: now}).Matches(active) || (ListOpts{ActiveAt: now}).Matches(expired) {
		t.Error("ActiveAt filter mismatch")
	}
	if (ListOpts{ExpiredAt: now}).Matches(active) || !(ListOpts{ExpiredAt: now}).Matches(expired) {
		t.Error("ExpiredAt filter mismatch")
	}
	if !(ListOpts{}).Matches(active) {
		t.Error("empty opts should match everything")
	}
}
