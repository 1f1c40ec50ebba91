package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
	"github.com/xraph/bytebank/wallet"
)

// Timestamps are TEXT in a fixed-width UTC layout so that string order is
// time order and range filters can compare columns directly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:bytebank_users"`

	ID            string `grove:"id,pk"`
	Name          string `grove:"name"`
	Email         string `grove:"email"`
	Mobile        string `grove:"mobile"`
	DailyQuotaMB  int64  `grove:"daily_quota_mb"`
	UsedTodayMB   int64  `grove:"used_today_mb"`
	LastUsageDate string `grove:"last_usage_date"`
	TotalUsedMB   int64  `grove:"total_used_mb"`
	CreatedAt     string `grove:"created_at"`
	UpdatedAt     string `grove:"updated_at"`
}

func toUserModel(u *account.User) *userModel {
	return &userModel{
		ID:            u.ID.String(),
		Name:          u.Name,
		Email:         u.Email,
		Mobile:        u.Mobile,
		DailyQuotaMB:  u.DailyQuotaMB.Int64(),
		UsedTodayMB:   u.UsedTodayMB.Int64(),
		LastUsageDate: types.DayKey(u.LastUsageDate),
		TotalUsedMB:   u.TotalUsedMB.Int64(),
		CreatedAt:     formatTime(u.CreatedAt),
		UpdatedAt:     formatTime(u.UpdatedAt),
	}
}

func fromUserModel(m *userModel) (*account.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, err
	}
	lastUsage, err := types.ParseDayKey(m.LastUsageDate)
	if err != nil {
		return nil, err
	}
	entity, err := entityFrom(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account.User{
		Entity:        entity,
		ID:            userID,
		Name:          m.Name,
		Email:         m.Email,
		Mobile:        m.Mobile,
		DailyQuotaMB:  types.Megabytes(m.DailyQuotaMB),
		UsedTodayMB:   types.Megabytes(m.UsedTodayMB),
		LastUsageDate: lastUsage,
		TotalUsedMB:   types.Megabytes(m.TotalUsedMB),
	}, nil
}

// ==================== Wallet models ====================

type walletModel struct {
	grove.BaseModel `grove:"table:bytebank_wallets"`

	ID               string `grove:"id,pk"`
	UserID           string `grove:"user_id"`
	BalanceMB        int64  `grove:"balance_mb"`
	TotalPurchasedMB int64  `grove:"total_purchased_mb"`
	TotalUsedMB      int64  `grove:"total_used_mb"`
	TotalExpiredMB   int64  `grove:"total_expired_mb"`
	CreatedAt        string `grove:"created_at"`
	UpdatedAt        string `grove:"updated_at"`
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	return &walletModel{
		ID:               w.ID.String(),
		UserID:           w.UserID.String(),
		BalanceMB:        w.BalanceMB.Int64(),
		TotalPurchasedMB: w.TotalPurchasedMB.Int64(),
		TotalUsedMB:      w.TotalUsedMB.Int64(),
		TotalExpiredMB:   w.TotalExpiredMB.Int64(),
		CreatedAt:        formatTime(w.CreatedAt),
		UpdatedAt:        formatTime(w.UpdatedAt),
	}
}

func fromWalletModel(m *walletModel) (*wallet.Wallet, error) {
	walletID, err := id.ParseWalletID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	entity, err := entityFrom(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wallet.Wallet{
		Entity:           entity,
		ID:               walletID,
		UserID:           userID,
		BalanceMB:        types.Megabytes(m.BalanceMB),
		TotalPurchasedMB: types.Megabytes(m.TotalPurchasedMB),
		TotalUsedMB:      types.Megabytes(m.TotalUsedMB),
		TotalExpiredMB:   types.Megabytes(m.TotalExpiredMB),
	}, nil
}

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:bytebank_entries"`

	ID         string `grove:"id,pk"`
	UserID     string `grove:"user_id"`
	AmountMB   int64  `grove:"amount_mb"`
	Source     string `grove:"source"`
	AddedOn    string `grove:"added_on"`
	ExpiryDate string `grove:"expiry_date"`
	CreatedAt  string `grove:"created_at"`
	UpdatedAt  string `grove:"updated_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:         e.ID.String(),
		UserID:     e.UserID.String(),
		AmountMB:   e.AmountMB.Int64(),
		Source:     string(e.Source),
		AddedOn:    formatTime(e.AddedOn),
		ExpiryDate: formatTime(e.ExpiryDate),
		CreatedAt:  formatTime(e.CreatedAt),
		UpdatedAt:  formatTime(e.UpdatedAt),
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	addedOn, err := parseTime(m.AddedOn)
	if err != nil {
		return nil, err
	}
	expiry, err := parseTime(m.ExpiryDate)
	if err != nil {
		return nil, err
	}
	entity, err := entityFrom(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entry.Entry{
		Entity:     entity,
		ID:         entryID,
		UserID:     userID,
		AmountMB:   types.Megabytes(m.AmountMB),
		Source:     entry.Source(m.Source),
		AddedOn:    addedOn,
		ExpiryDate: expiry,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:bytebank_transactions"`

	ID         string  `grove:"id,pk"`
	SenderID   *string `grove:"sender_id"`
	ReceiverID *string `grove:"receiver_id"`
	AmountMB   int64   `grove:"amount_mb"`
	Kind       string  `grove:"kind"`
	Note       string  `grove:"note"`
	Timestamp  string  `grove:"timestamp"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:         t.ID.String(),
		SenderID:   nullableID(t.SenderID),
		ReceiverID: nullableID(t.ReceiverID),
		AmountMB:   t.AmountMB.Int64(),
		Kind:       string(t.Kind),
		Note:       t.Note,
		Timestamp:  formatTime(t.Timestamp),
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	sender, err := parseNullableUser(m.SenderID)
	if err != nil {
		return nil, err
	}
	receiver, err := parseNullableUser(m.ReceiverID)
	if err != nil {
		return nil, err
	}
	ts, err := parseTime(m.Timestamp)
	if err != nil {
		return nil, err
	}
	return &transaction.Transaction{
		ID:         txnID,
		SenderID:   sender,
		ReceiverID: receiver,
		AmountMB:   types.Megabytes(m.AmountMB),
		Kind:       transaction.Kind(m.Kind),
		Note:       m.Note,
		Timestamp:  ts,
	}, nil
}

// ==================== Helpers ====================

func entityFrom(createdAt, updatedAt string) (types.Entity, error) {
	created, err := parseTime(createdAt)
	if err != nil {
		return types.Entity{}, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return types.Entity{}, err
	}
	return types.Entity{CreatedAt: created, UpdatedAt: updated}, nil
}

func nullableID(i id.ID) *string {
	if i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}

func parseNullableUser(s *string) (id.UserID, error) {
	if s == nil {
		return id.Nil, nil
	}
	return id.ParseOptional(*s, id.PrefixUser)
}
