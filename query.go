package bytebank

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
	"github.com/xraph/bytebank/wallet"
)

// Transaction history paging.
const (
	DefaultTransactionLimit = 10
	MaxTransactionLimit     = 200
)

// ──────────────────────────────────────────────────
// Users
// ──────────────────────────────────────────────────

// RegisterUser creates a user together with an empty wallet. At least one
// of Email and Mobile is required; both are normalised and must be unused.
// A zero DailyQuotaMB gets the engine default.
func (b *Bank) RegisterUser(ctx context.Context, u *account.User) error {
	u.Normalize()
	if u.Email == "" && u.Mobile == "" {
		return ValidationError{Field: "email", Message: "an email or a mobile number is required"}
	}
	if u.DailyQuotaMB < 0 || u.DailyQuotaMB > MaxAmount {
		return ValidationError{Field: "daily_quota_mb", Message: "must be between 0 and MaxAmount"}
	}

	var keys []string
	if u.Email != "" {
		keys = append(keys, "email:"+u.Email)
	}
	if u.Mobile != "" {
		keys = append(keys, "mobile:"+u.Mobile)
	}
	unlock, err := b.lockKeys(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	now := b.now()
	if u.ID.IsNil() {
		u.ID = id.NewUserID()
	}
	if u.DailyQuotaMB == 0 {
		u.DailyQuotaMB = b.defaultQuota
	}
	u.Entity = types.NewEntity(now)
	u.UsedTodayMB = 0
	u.TotalUsedMB = 0
	u.LastUsageDate = types.Day(now)

	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		if err := identifierFree(ctx, tx, u); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		_, err := b.walletTx(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return err
	}

	b.logger.Info("user registered",
		"user_id", u.ID.String(),
		"daily_quota_mb", u.DailyQuotaMB.Int64(),
	)
	b.plugins.EmitUserRegistered(ctx, u)
	return nil
}

func identifierFree(ctx context.Context, tx store.Store, u *account.User) error {
	if u.Email != "" {
		if _, err := tx.GetUserByEmail(ctx, u.Email); err == nil {
			return ErrIdentifierTaken
		} else if !IsNotFound(err) {
			return err
		}
	}
	if u.Mobile != "" {
		if _, err := tx.GetUserByMobile(ctx, u.Mobile); err == nil {
			return ErrIdentifierTaken
		} else if !IsNotFound(err) {
			return err
		}
	}
	return nil
}

// GetUser retrieves a user by ID.
func (b *Bank) GetUser(ctx context.Context, userID id.UserID) (*account.User, error) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		return nil, b.storeErr(err)
	}
	return u, nil
}

// FindUser looks a user up by email when identifier contains "@", and by
// mobile number otherwise.
func (b *Bank) FindUser(ctx context.Context, identifier string) (*account.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ValidationError{Field: "identifier", Message: "must not be empty"}
	}

	var (
		u   *account.User
		err error
	)
	if account.IsEmail(identifier) {
		u, err = b.store.GetUserByEmail(ctx, account.NormalizeEmail(identifier))
	} else {
		mobile := account.NormalizeMobile(identifier)
		if mobile == "" {
			return nil, ValidationError{Field: "identifier", Message: "not an email address or mobile number"}
		}
		u, err = b.store.GetUserByMobile(ctx, mobile)
	}
	if err != nil {
		return nil, b.storeErr(err)
	}
	return u, nil
}

// SetDailyQuota changes a user's daily allowance. The current day is rolled
// over first so the old quota still applies to it.
func (b *Bank) SetDailyQuota(ctx context.Context, userID id.UserID, mb types.Megabytes) error {
	if mb < 0 || mb > MaxAmount {
		return ValidationError{Field: "daily_quota_mb", Message: "must be between 0 and MaxAmount"}
	}

	unlock, err := b.lockUsers(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := b.refresh(ctx, userID); err != nil {
		return err
	}

	return b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u.DailyQuotaMB = mb
		u.Touch(b.now())
		return tx.UpdateUser(ctx, u)
	})
}

// ──────────────────────────────────────────────────
// Wallets and history
// ──────────────────────────────────────────────────

// GetOrCreateWallet returns the user's wallet, creating an empty one on
// first access.
func (b *Bank) GetOrCreateWallet(ctx context.Context, userID id.UserID) (*wallet.Wallet, error) {
	unlock, err := b.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var w *wallet.Wallet
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		w, err = b.walletTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// RecentTransactions returns the user's transactions, newest first.
func (b *Bank) RecentTransactions(ctx context.Context, userID id.UserID, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	limit = min(limit, MaxTransactionLimit)

	txns, err := b.store.ListTransactions(ctx, userID, transaction.ListOpts{Limit: limit})
	if err != nil {
		return nil, b.storeErr(err)
	}
	return txns, nil
}

// Summary is a user's dashboard.
type Summary struct {
	User             *account.User              `json:"user"`
	Wallet           *wallet.Wallet             `json:"wallet"`
	ActiveEntries    []*entry.Entry             `json:"active_entries"`
	TotalActiveMB    types.Megabytes            `json:"total_active_mb"`
	ExpiringSoon     []*entry.Entry             `json:"expiring_soon"`
	RemainingTodayMB types.Megabytes            `json:"remaining_today_mb"`
	UsedTodayMB      types.Megabytes            `json:"used_today_mb"`
	TotalUsedMB      types.Megabytes            `json:"total_used_mb"`
	Recent           []*transaction.Transaction `json:"recent"`
	AsOf             time.Time                  `json:"as_of"`
}

// Summary refreshes the user and returns their dashboard.
func (b *Bank) Summary(ctx context.Context, userID id.UserID) (*Summary, error) {
	unlock, err := b.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := b.refresh(ctx, userID); err != nil {
		return nil, err
	}

	now := b.now()
	s := &Summary{AsOf: now}
	err = b.unit(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if s.User, err = tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if s.Wallet, err = b.walletTx(ctx, tx, userID); err != nil {
			return err
		}
		s.ActiveEntries, err = tx.ListEntries(ctx, userID, entry.ListOpts{ActiveAt: now})
		return err
	})
	if err != nil {
		return nil, err
	}

	entry.SortByExpiry(s.ActiveEntries)
	s.TotalActiveMB = entry.Total(s.ActiveEntries)
	s.ExpiringSoon = entry.ExpiringSoon(s.ActiveEntries, now, b.expiringSoonDays)
	s.RemainingTodayMB = s.User.RemainingToday()
	s.UsedTodayMB = s.User.UsedTodayMB
	s.TotalUsedMB = s.User.TotalUsedMB

	if s.Recent, err = b.RecentTransactions(ctx, userID, DefaultTransactionLimit); err != nil {
		return nil, err
	}
	return s, nil
}
