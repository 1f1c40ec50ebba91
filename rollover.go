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
)

// ──────────────────────────────────────────────────
// Daily rollover
// ──────────────────────────────────────────────────

// ApplyRollover closes out the user's previous usage day. The unused part
// of the quota becomes an earned lot and the day counter resets. It is a
// no-op when the user has already been rolled over for today's calendar day,
// in which case the returned entry is nil. A nil entry is also returned when
// the whole quota had been used.
func (b *Bank) ApplyRollover(ctx context.Context, userID id.UserID, today time.Time) (*entry.Entry, error) {
	unlock, err := b.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var res rolloverResult
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		res, err = b.rolloverTx(ctx, tx, u, today)
		return err
	})
	if err != nil {
		return nil, err
	}

	b.emitRollover(ctx, userID, res)
	return res.entry, nil
}

// RolloverAll applies rollover to every user and returns how many were
// rolled over. Failures for individual users are collected and do not stop
// the run.
func (b *Bank) RolloverAll(ctx context.Context) (int, error) {
	rolled := 0
	var errs MultiError

	err := b.eachUser(ctx, func(u *account.User) {
		today := b.now()
		if !u.NeedsRollover(today) {
			return
		}
		if _, err := b.ApplyRollover(ctx, u.ID, today); err != nil {
			b.logger.Warn("rollover failed", "user_id", u.ID.String(), "error", err)
			errs.Add(fmt.Errorf("user %s: %w", u.ID, err))
			return
		}
		rolled++
	})
	if err != nil {
		return rolled, err
	}
	return rolled, errs.ErrOrNil()
}

type rolloverResult struct {
	applied  bool
	leftover types.Megabytes
	entry    *entry.Entry
}

// rolloverTx is the rollover body; it must run inside a unit.
func (b *Bank) rolloverTx(ctx context.Context, tx store.Store, u *account.User, today time.Time) (rolloverResult, error) {
	var res rolloverResult
	if !u.NeedsRollover(today) {
		return res, nil
	}

	res.applied = true
	res.leftover = u.RemainingToday()
	if res.leftover > 0 {
		w, err := b.walletTx(ctx, tx, u.ID)
		if err != nil {
			return res, err
		}
		// A full wallet keeps only what still fits.
		res.leftover = types.Min(res.leftover, w.BalanceMB.Headroom())
	}
	if res.leftover > 0 {
		e, _, err := b.creditTx(ctx, tx, credit{
			userID: u.ID,
			amount: res.leftover,
			source: entry.SourceEarned,
			at:     today,
			kind:   transaction.KindRollover,
			note:   transaction.NoteRollover,
		})
		if err != nil {
			return res, err
		}
		res.entry = e
	}

	u.UsedTodayMB = 0
	u.LastUsageDate = types.Day(today)
	u.Touch(b.now())
	if err := tx.UpdateUser(ctx, u); err != nil {
		return res, err
	}
	return res, nil
}

func (b *Bank) emitRollover(ctx context.Context, userID id.UserID, res rolloverResult) {
	if !res.applied {
		return
	}
	b.logger.Info("rollover applied",
		"user_id", userID.String(),
		"amount_mb", res.leftover.Int64(),
	)
	b.plugins.EmitRolloverApplied(ctx, userID, res.leftover)
}

// refresh brings a user up to date before an operation reads their state:
// the day is rolled over and expired lots are pruned, committed together.
// Callers hold the user's lock.
func (b *Bank) refresh(ctx context.Context, userID id.UserID) error {
	now := b.now()

	var (
		rolled  rolloverResult
		expired expiryResult
	)
	err := b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if rolled, err = b.rolloverTx(ctx, tx, u, now); err != nil {
			return err
		}
		expired, err = b.cleanupTx(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return err
	}

	b.emitRollover(ctx, userID, rolled)
	b.emitExpired(ctx, userID, expired)
	return nil
}

// eachUser pages through all users in ID order.
func (b *Bank) eachUser(ctx context.Context, fn func(u *account.User)) error {
	opts := account.ListOpts{Limit: b.sweepBatchSize}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		users, err := b.store.ListUsers(ctx, opts)
		if err != nil {
			return b.storeErr(err)
		}
		for _, u := range users {
			fn(u)
		}
		if len(users) < opts.Limit {
			return nil
		}
		opts.After = users[len(users)-1].ID
	}
}
