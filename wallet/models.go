package wallet

import (
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/types"
)

// Wallet is the durable balance of one user. BalanceMB never goes negative;
// the Total* counters only ever grow.
type Wallet struct {
	types.Entity
	ID               id.WalletID     `json:"id"`
	UserID           id.UserID       `json:"user_id"`
	BalanceMB        types.Megabytes `json:"balance_mb"`
	TotalPurchasedMB types.Megabytes `json:"total_purchased_mb"`
	TotalUsedMB      types.Megabytes `json:"total_used_mb"`
	TotalExpiredMB   types.Megabytes `json:"total_expired_mb"`
}

// CanCredit reports whether the balance can grow by amount without
// overflowing.
func (w *Wallet) CanCredit(amount types.Megabytes) bool {
	return w.BalanceMB.CanAdd(amount)
}

// Credit adds amount to the balance. Purchases also count toward
// TotalPurchasedMB. Callers check CanCredit first; the lifetime counters
// saturate instead of wrapping.
func (w *Wallet) Credit(amount types.Megabytes, purchased bool) {
	w.BalanceMB += amount
	if purchased {
		w.TotalPurchasedMB = w.TotalPurchasedMB.SatAdd(amount)
	}
}

// CanDebit reports whether the balance covers amount.
func (w *Wallet) CanDebit(amount types.Megabytes) bool {
	return amount <= w.BalanceMB
}

// Debit removes amount from the balance without touching the counters.
// Callers check CanDebit first.
func (w *Wallet) Debit(amount types.Megabytes) {
	w.BalanceMB = w.BalanceMB.Sub(amount)
}

// Use debits amount as consumption.
func (w *Wallet) Use(amount types.Megabytes) {
	w.Debit(amount)
	w.TotalUsedMB = w.TotalUsedMB.SatAdd(amount)
}

// Forfeit debits expired data and returns how much was actually removed.
func (w *Wallet) Forfeit(amount types.Megabytes) types.Megabytes {
	taken := types.Min(amount, w.BalanceMB)
	w.BalanceMB -= taken
	w.TotalExpiredMB = w.TotalExpiredMB.SatAdd(taken)
	return taken
}
