package bytebank

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

// UsageSource selects the pool a Consume call draws from.
type UsageSource string

const (
	// SourceDaily charges today's quota.
	SourceDaily UsageSource = "daily"
	// SourceWallet charges the wallet balance, spending lots oldest-expiring first.
	SourceWallet UsageSource = "wallet"
)

// IsValid reports whether s is a known pool.
func (s UsageSource) IsValid() bool {
	return s == SourceDaily || s == SourceWallet
}

// ConsumeResult reports how a usage event was charged.
type ConsumeResult struct {
	UsedFromQuota  types.Megabytes          `json:"used_from_quota_mb"`
	UsedFromWallet types.Megabytes          `json:"used_from_wallet_mb"`
	Transaction    *transaction.Transaction `json:"transaction,omitempty"`
}

// Consume charges amount to exactly one pool. A request larger than its
// pool is rejected with a *ShortfallError and changes nothing.
func (b *Bank) Consume(ctx context.Context, userID id.UserID, amount types.Megabytes, source UsageSource) (*ConsumeResult, error) {
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

	if err := b.refresh(ctx, userID); err != nil {
		return nil, err
	}

	now := b.now()
	res := &ConsumeResult{}
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		switch source {
		case SourceDaily:
			if remaining := u.RemainingToday(); amount > remaining {
				return &ShortfallError{Err: ErrInsufficientQuota, Requested: amount, Available: remaining}
			}
			u.UsedTodayMB += amount
			res.UsedFromQuota = amount

		case SourceWallet:
			w, err := b.walletTx(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !w.CanDebit(amount) {
				return &ShortfallError{Err: ErrInsufficientBalance, Requested: amount, Available: w.BalanceMB}
			}

			lots, err := tx.ListEntries(ctx, userID, entry.ListOpts{ActiveAt: now})
			if err != nil {
				return err
			}
			draw := entry.Deplete(lots, amount)
			if draw.Unbacked > 0 {
				b.logger.Warn("wallet balance not backed by entries",
					"user_id", userID.String(),
					"amount_mb", draw.Unbacked.Int64(),
				)
			}
			for _, e := range draw.Updated {
				e.Touch(now)
			}
			if err := applyDraw(ctx, tx, draw); err != nil {
				return err
			}

			w.Use(amount)
			w.Touch(now)
			if err := tx.UpdateWallet(ctx, w); err != nil {
				return err
			}

			t := transaction.New(userID, id.Nil, amount, transaction.KindUsage, transaction.NoteWalletUsage, now)
			if err := tx.AppendTransaction(ctx, t); err != nil {
				return err
			}
			res.UsedFromWallet = amount
			res.Transaction = t
		}

		u.TotalUsedMB = u.TotalUsedMB.SatAdd(amount)
		u.Touch(now)
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		var short *ShortfallError
		if errors.As(err, &short) {
			b.plugins.EmitInsufficientFunds(ctx, userID, string(source), short.Requested, short.Available)
		}
		return nil, err
	}

	b.logger.Debug("usage consumed",
		"user_id", userID.String(),
		"amount_mb", amount.Int64(),
		"source", string(source),
	)
	b.plugins.EmitUsageConsumed(ctx, userID, amount, string(source))
	return res, nil
}
