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

// Purchase credits a purchased lot that expires after thirty days.
func (b *Bank) Purchase(ctx context.Context, userID id.UserID, amount types.Megabytes) (*entry.Entry, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
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
	var e *entry.Entry
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		e, _, err = b.creditTx(ctx, tx, credit{
			userID: userID,
			amount: amount,
			source: entry.SourcePurchased,
			at:     now,
			kind:   transaction.KindPurchase,
			note:   transaction.PurchaseNote(amount),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("data purchased",
		"user_id", userID.String(),
		"amount_mb", amount.Int64(),
	)
	b.plugins.EmitPurchased(ctx, e)
	return e, nil
}

// Transfer moves amount from the sender's wallet to the user identified by
// receiverIdentifier (an email address or a mobile number). The sender's
// lots move with the balance, oldest-expiring first, keeping their source
// and expiry.
func (b *Bank) Transfer(ctx context.Context, senderID id.UserID, receiverIdentifier string, amount types.Megabytes) (*transaction.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	receiver, err := b.FindUser(ctx, receiverIdentifier)
	if err != nil {
		if IsNotFound(err) || errors.Is(err, ErrInvalidInput) {
			return nil, fmt.Errorf("%w: %q", ErrRecipientNotFound, receiverIdentifier)
		}
		return nil, err
	}
	if receiver.ID == senderID {
		return nil, ErrSelfTransfer
	}
	receiverID := receiver.ID

	unlock, err := b.lockUsers(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := b.refresh(ctx, senderID); err != nil {
		return nil, err
	}
	if err := b.refresh(ctx, receiverID); err != nil {
		return nil, err
	}

	now := b.now()
	var t *transaction.Transaction
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		from, err := b.walletTx(ctx, tx, senderID)
		if err != nil {
			return err
		}
		if !from.CanDebit(amount) {
			return &ShortfallError{Err: ErrInsufficientBalance, Requested: amount, Available: from.BalanceMB}
		}
		to, err := b.walletTx(ctx, tx, receiverID)
		if err != nil {
			return err
		}
		if !to.CanCredit(amount) {
			return balanceOverflow(amount, to.BalanceMB)
		}

		lots, err := tx.ListEntries(ctx, senderID, entry.ListOpts{ActiveAt: now})
		if err != nil {
			return err
		}
		draw := entry.Deplete(lots, amount)
		if draw.Unbacked > 0 {
			b.logger.Warn("transferred balance not backed by entries",
				"user_id", senderID.String(),
				"amount_mb", draw.Unbacked.Int64(),
			)
		}
		for _, e := range draw.Updated {
			e.Touch(now)
		}
		if err := applyDraw(ctx, tx, draw); err != nil {
			return err
		}
		for _, p := range draw.Portions {
			if err := tx.CreateEntry(ctx, p.Entry.Split(receiverID, p.Amount, now)); err != nil {
				return err
			}
		}

		from.Debit(amount)
		from.Touch(now)
		if err := tx.UpdateWallet(ctx, from); err != nil {
			return err
		}
		to.Credit(amount, false)
		to.Touch(now)
		if err := tx.UpdateWallet(ctx, to); err != nil {
			return err
		}

		t = transaction.New(senderID, receiverID, amount, transaction.KindTransfer, transaction.NoteTransfer, now)
		return tx.AppendTransaction(ctx, t)
	})
	if err != nil {
		var short *ShortfallError
		if errors.As(err, &short) {
			b.plugins.EmitInsufficientFunds(ctx, senderID, string(SourceWallet), short.Requested, short.Available)
		}
		return nil, err
	}

	b.logger.Debug("data transferred",
		"user_id", senderID.String(),
		"receiver_id", receiverID.String(),
		"amount_mb", amount.Int64(),
	)
	b.plugins.EmitTransferred(ctx, t)
	return t, nil
}
