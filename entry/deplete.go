package entry

import (
	"cmp"
	"slices"

	"github.com/xraph/bytebank/types"
)

// Portion is the part of one lot taken by a Deplete call.
type Portion struct {
	Entry  *Entry
	Amount types.Megabytes
}

// Draw describes the outcome of Deplete.
type Draw struct {
	// Portions lists what was taken, in the order it was taken.
	Portions []Portion
	// Updated holds lots that were partly consumed and must be saved.
	Updated []*Entry
	// Exhausted holds lots that reached zero and must be deleted.
	Exhausted []*Entry
	// Unbacked is the part of the request no lot could cover.
	Unbacked types.Megabytes
}

// SortByExpiry orders lots oldest-expiring first. Ties fall back to
// AddedOn and then ID so the order is deterministic.
func SortByExpiry(lots []*Entry) {
	slices.SortStableFunc(lots, func(a, b *Entry) int {
		if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
			return c
		}
		if c := a.AddedOn.Compare(b.AddedOn); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

// Deplete draws amount from lots oldest-expiring first, decrementing
// AmountMB in place. The input slice is not reordered.
func Deplete(lots []*Entry, amount types.Megabytes) Draw {
	ordered := slices.Clone(lots)
	SortByExpiry(ordered)

	var d Draw
	remaining := amount
	for _, lot := range ordered {
		if lot.AmountMB <= 0 {
			d.Exhausted = append(d.Exhausted, lot)
			continue
		}
		if remaining <= 0 {
			break
		}
		take := types.Min(lot.AmountMB, remaining)
		lot.AmountMB -= take
		remaining -= take
		d.Portions = append(d.Portions, Portion{Entry: lot, Amount: take})
		if lot.AmountMB == 0 {
			d.Exhausted = append(d.Exhausted, lot)
		} else {
			d.Updated = append(d.Updated, lot)
		}
	}
	d.Unbacked = remaining
	return d
}
