package entry

import (
	"context"
	"time"

	"github.com/xraph/bytebank/id"
)

type Store interface {
	CreateEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, entryID id.EntryID) error
	ListEntries(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Entry, error)
}

// ListOpts filters a user's lots. Results are ordered oldest-expiring first.
// ActiveAt keeps lots expiring after it; ExpiredAt keeps lots expiring at or
// before it. Zero values disable the filter.
type ListOpts struct {
	ActiveAt  time.Time
	ExpiredAt time.Time
	Limit     int
}

// Matches applies the filters to a single lot.
func (o ListOpts) Matches(e *Entry) bool {
	if !o.ActiveAt.IsZero() && !e.ExpiryDate.After(o.ActiveAt) {
		return false
	}
	if !o.ExpiredAt.IsZero() && e.ExpiryDate.After(o.ExpiredAt) {
		return false
	}
	return true
}
