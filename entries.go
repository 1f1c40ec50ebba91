package bytebank

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
	"github.com/xraph/bytebank/wallet"
)

// ──────────────────────────────────────────────────
// Entry lifecycle
// ──────────────────────────────────────────────────

// CreateEntry credits a new lot to the user's wallet and records a credit
// transaction.
func (b *Bank) CreateEntry(ctx context.Context, userID id.UserID, amount types.Megabytes, source entry.Source) (*entry.Entry, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	unlock, err := b.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := b.now()
	var e *entry.Entry
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		e, _, err = b.creditTx(ctx, tx, credit{
			userID: userID,
			amount: amount,
			source: source,
			at:     now,
			kind:   transaction.KindCredit,
			note:   transaction.CreditNote(string(source)),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("entry created",
		"user_id", userID.String(),
		"amount_mb", amount.Int64(),
		"source", string(source),
	)
	b.plugins.EmitEntryCreated(ctx, e)
	return e, nil
}

// ActiveEntries returns the user's unexpired lots, oldest-expiring first.
func (b *Bank) ActiveEntries(ctx context.Context, userID id.UserID, now time.Time) ([]*entry.Entry, error) {
	entries, err := b.store.ListEntries(ctx, userID, entry.ListOpts{ActiveAt: now})
	if err != nil {
		return nil, b.storeErr(err)
	}
	entry.SortByExpiry(entries)
	return entries, nil
}

// ExpiringSoon returns active lots within the configured horizon.
func (b *Bank) ExpiringSoon(ctx context.Context, userID id.UserID, now time.Time) ([]*entry.Entry, error) {
	entries, err := b.ActiveEntries(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	return entry.ExpiringSoon(entries, now, b.expiringSoonDays), nil
}

// CleanupExpired deletes the user's lots that expired at or before now and
// forfeits what was left of them. It returns the number of lots deleted.
func (b *Bank) CleanupExpired(ctx context.Context, userID id.UserID, now time.Time) (int, error) {
	unlock, err := b.lockUsers(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var res expiryResult
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		res, err = b.cleanupTx(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return 0, err
	}

	b.emitExpired(ctx, userID, res)
	return res.count, nil
}

// CleanupAllExpired prunes expired lots for every user and returns the
// total number deleted. Failures for individual users are collected and
// do not stop the run.
func (b *Bank) CleanupAllExpired(ctx context.Context) (int, error) {
	total := 0
	var errs MultiError

	err := b.eachUser(ctx, func(u *account.User) {
		n, err := b.CleanupExpired(ctx, u.ID, b.now())
		if err != nil {
			b.logger.Warn("cleanup failed", "user_id", u.ID.String(), "error", err)
			errs.Add(fmt.Errorf("user %s: %w", u.ID, err))
			return
		}
		total += n
	})
	if err != nil {
		return total, err
	}
	return total, errs.ErrOrNil()
}

// ──────────────────────────────────────────────────
// Unit-of-work primitives
// ──────────────────────────────────────────────────

// credit describes a lot credited by the system.
type credit struct {
	userID id.UserID
	amount types.Megabytes
	source entry.Source
	at     time.Time
	kind   transaction.Kind
	note   string
}

// creditTx persists a new lot, grows the wallet and appends the matching
// transaction. It must run inside a unit.
func (b *Bank) creditTx(ctx context.Context, tx store.Store, c credit) (*entry.Entry, *transaction.Transaction, error) {
	w, err := b.walletTx(ctx, tx, c.userID)
	if err != nil {
		return nil, nil, err
	}
	if !w.CanCredit(c.amount) {
		return nil, nil, balanceOverflow(c.amount, w.BalanceMB)
	}

	e := entry.New(c.userID, c.amount, c.source, c.at)
	if err := tx.CreateEntry(ctx, e); err != nil {
		return nil, nil, err
	}

	w.Credit(c.amount, c.source == entry.SourcePurchased)
	w.Touch(b.now())
	if err := tx.UpdateWallet(ctx, w); err != nil {
		return nil, nil, err
	}

	t := transaction.New(id.Nil, c.userID, c.amount, c.kind, c.note, c.at)
	if err := tx.AppendTransaction(ctx, t); err != nil {
		return nil, nil, err
	}
	return e, t, nil
}

// walletTx loads the user's wallet, creating it on first access.
func (b *Bank) walletTx(ctx context.Context, tx store.Store, userID id.UserID) (*wallet.Wallet, error) {
	w, err := tx.GetWalletByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	w = &wallet.Wallet{
		Entity: types.NewEntity(b.now()),
		ID:     id.NewWalletID(),
		UserID: userID,
	}
	if err := tx.CreateWallet(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

type expiryResult struct {
	count     int
	forfeited types.Megabytes
}

// cleanupTx deletes expired lots and forfeits their remaining amounts.
func (b *Bank) cleanupTx(ctx context.Context, tx store.Store, userID id.UserID, now time.Time) (expiryResult, error) {
	var res expiryResult

	expired, err := tx.ListEntries(ctx, userID, entry.ListOpts{ExpiredAt: now})
	if err != nil {
		return res, err
	}
	if len(expired) == 0 {
		return res, nil
	}

	for _, e := range expired {
		if err := tx.DeleteEntry(ctx, e.ID); err != nil {
			return res, err
		}
	}
	res.count = len(expired)

	remaining := entry.Total(expired)
	if remaining <= 0 {
		return res, nil
	}

	w, err := b.walletTx(ctx, tx, userID)
	if err != nil {
		return res, err
	}
	res.forfeited = w.Forfeit(remaining)
	if res.forfeited <= 0 {
		return res, nil
	}
	w.Touch(b.now())
	if err := tx.UpdateWallet(ctx, w); err != nil {
		return res, err
	}

	t := transaction.New(userID, id.Nil, res.forfeited, transaction.KindExpiry, transaction.NoteExpired, now)
	if err := tx.AppendTransaction(ctx, t); err != nil {
		return res, err
	}
	return res, nil
}

// applyDraw persists the lot changes of an entry.Deplete call.
func applyDraw(ctx context.Context, tx store.Store, d entry.Draw) error {
	for _, e := range d.Exhausted {
		if err := tx.DeleteEntry(ctx, e.ID); err != nil {
			return err
		}
	}
	for _, e := range d.Updated {
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bank) emitExpired(ctx context.Context, userID id.UserID, res expiryResult) {
	if res.count == 0 {
		return
	}
	b.logger.Debug("expired entries pruned",
		"user_id", userID.String(),
		"count", res.count,
		"amount_mb", res.forfeited.Int64(),
	)
	b.plugins.EmitEntriesExpired(ctx, userID, res.count, res.forfeited)
}

// storeErr classifies an error returned outside a unit.
func (b *Bank) storeErr(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}
