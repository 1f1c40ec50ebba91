package entry

import (
	"time"

	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/types"
)

type Source string

const (
	SourceEarned    Source = "earned"
	SourcePurchased Source = "purchased"
)

// Lifetimes of a lot, counted from AddedOn.
const (
	EarnedLifetime    = 7 * 24 * time.Hour
	PurchasedLifetime = 30 * 24 * time.Hour
)

// DefaultExpiringSoonDays is the horizon used by dashboards.
const DefaultExpiringSoonDays = 3

const day = 24 * time.Hour

// IsValid reports whether s is a known source.
func (s Source) IsValid() bool {
	return s == SourceEarned || s == SourcePurchased
}

// Lifetime returns how long a lot from this source stays spendable.
func (s Source) Lifetime() time.Duration {
	if s == SourceEarned {
		return EarnedLifetime
	}
	return PurchasedLifetime
}

// Entry is an expiring lot of data owned by one user. AmountMB is what is
// left of it; the lot is deleted once that reaches zero or it expires.
type Entry struct {
	types.Entity
	ID         id.EntryID      `json:"id"`
	UserID     id.UserID       `json:"user_id"`
	AmountMB   types.Megabytes `json:"amount_mb"`
	Source     Source          `json:"source"`
	AddedOn    time.Time       `json:"added_on"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

// New builds a fresh lot whose expiry follows from its source.
func New(userID id.UserID, amount types.Megabytes, source Source, addedOn time.Time) *Entry {
	addedOn = addedOn.UTC()
	return &Entry{
		Entity:     types.NewEntity(addedOn),
		ID:         id.NewEntryID(),
		UserID:     userID,
		AmountMB:   amount,
		Source:     source,
		AddedOn:    addedOn,
		ExpiryDate: addedOn.Add(source.Lifetime()),
	}
}

// Split carves amount off e into a new lot for another user. The new lot
// keeps the source and both dates of the original.
func (e *Entry) Split(owner id.UserID, amount types.Megabytes, now time.Time) *Entry {
	return &Entry{
		Entity:     types.NewEntity(now),
		ID:         id.NewEntryID(),
		UserID:     owner,
		AmountMB:   amount,
		Source:     e.Source,
		AddedOn:    e.AddedOn,
		ExpiryDate: e.ExpiryDate,
	}
}

// IsActive reports whether the lot expires strictly after now.
func (e *Entry) IsActive(now time.Time) bool {
	return e.ExpiryDate.After(now)
}

// DaysLeft returns whole days until expiry, floored (negative once expired).
func (e *Entry) DaysLeft(now time.Time) int {
	d := e.ExpiryDate.Sub(now)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// Total sums the remaining amounts.
func Total(entries []*Entry) types.Megabytes {
	var total types.Megabytes
	for _, e := range entries {
		total += e.AmountMB
	}
	return total
}

// ExpiringSoon keeps entries with at most horizonDays whole days left.
func ExpiringSoon(entries []*Entry, now time.Time, horizonDays int) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.DaysLeft(now) <= horizonDays {
			out = append(out, e)
		}
	}
	return out
}
