package mongo

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

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:bytebank_users"`

	ID            string    `grove:"id,pk"           bson:"_id"`
	Name          string    `grove:"name"            bson:"name"`
	Email         string    `grove:"email"           bson:"email"`
	Mobile        string    `grove:"mobile"          bson:"mobile"`
	DailyQuotaMB  int64     `grove:"daily_quota_mb"  bson:"daily_quota_mb"`
	UsedTodayMB   int64     `grove:"used_today_mb"   bson:"used_today_mb"`
	LastUsageDate time.Time `grove:"last_usage_date" bson:"last_usage_date"`
	TotalUsedMB   int64     `grove:"total_used_mb"   bson:"total_used_mb"`
	CreatedAt     time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"      bson:"updated_at"`
}

func toUserModel(u *account.User) *userModel {
	return &userModel{
		ID:            u.ID.String(),
		Name:          u.Name,
		Email:         u.Email,
		Mobile:        u.Mobile,
		DailyQuotaMB:  u.DailyQuotaMB.Int64(),
		UsedTodayMB:   u.UsedTodayMB.Int64(),
		LastUsageDate: types.Day(u.LastUsageDate),
		TotalUsedMB:   u.TotalUsedMB.Int64(),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*account.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, err
	}
	return &account.User{
		Entity:        types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:            userID,
		Name:          m.Name,
		Email:         m.Email,
		Mobile:        m.Mobile,
		DailyQuotaMB:  types.Megabytes(m.DailyQuotaMB),
		UsedTodayMB:   types.Megabytes(m.UsedTodayMB),
		LastUsageDate: types.Day(m.LastUsageDate),
		TotalUsedMB:   types.Megabytes(m.TotalUsedMB),
	}, nil
}

// ==================== Wallet models ====================

type walletModel struct {
	grove.BaseModel `grove:"table:bytebank_wallets"`

	ID               string    `grove:"id,pk"              bson:"_id"`
	UserID           string    `grove:"user_id"            bson:"user_id"`
	BalanceMB        int64     `grove:"balance_mb"         bson:"balance_mb"`
	TotalPurchasedMB int64     `grove:"total_purchased_mb" bson:"total_purchased_mb"`
	TotalUsedMB      int64     `grove:"total_used_mb"      bson:"total_used_mb"`
	TotalExpiredMB   int64     `grove:"total_expired_mb"   bson:"total_expired_mb"`
	CreatedAt        time.Time `grove:"created_at"         bson:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"         bson:"updated_at"`
}

func toWalletModel(w *wallet.Wallet) *walletModel {
	return &walletModel{
		ID:               w.ID.String(),
		UserID:           w.UserID.String(),
		BalanceMB:        w.BalanceMB.Int64(),
		TotalPurchasedMB: w.TotalPurchasedMB.Int64(),
		TotalUsedMB:      w.TotalUsedMB.Int64(),
		TotalExpiredMB:   w.TotalExpiredMB.Int64(),
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
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
	return &wallet.Wallet{
		Entity:           types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
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

	ID         string    `grove:"id,pk"       bson:"_id"`
	UserID     string    `grove:"user_id"     bson:"user_id"`
	AmountMB   int64     `grove:"amount_mb"   bson:"amount_mb"`
	Source     string    `grove:"source"      bson:"source"`
	AddedOn    time.Time `grove:"added_on"    bson:"added_on"`
	ExpiryDate time.Time `grove:"expiry_date" bson:"expiry_date"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:         e.ID.String(),
		UserID:     e.UserID.String(),
		AmountMB:   e.AmountMB.Int64(),
		Source:     string(e.Source),
		AddedOn:    e.AddedOn,
		ExpiryDate: e.ExpiryDate,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
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
	return &entry.Entry{
		Entity:     types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:         entryID,
		UserID:     userID,
		AmountMB:   types.Megabytes(m.AmountMB),
		Source:     entry.Source(m.Source),
		AddedOn:    m.AddedOn.UTC(),
		ExpiryDate: m.ExpiryDate.UTC(),
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:bytebank_transactions"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	SenderID   string    `grove:"sender_id"   bson:"sender_id,omitempty"`
	ReceiverID string    `grove:"receiver_id" bson:"receiver_id,omitempty"`
	AmountMB   int64     `grove:"amount_mb"   bson:"amount_mb"`
	Kind       string    `grove:"kind"        bson:"kind"`
	Note       string    `grove:"note"        bson:"note"`
	Timestamp  time.Time `grove:"timestamp"   bson:"timestamp"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:         t.ID.String(),
		SenderID:   t.SenderID.String(),
		ReceiverID: t.ReceiverID.String(),
		AmountMB:   t.AmountMB.Int64(),
		Kind:       string(t.Kind),
		Note:       t.Note,
		Timestamp:  t.Timestamp,
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	sender, err := id.ParseOptional(m.SenderID, id.PrefixUser)
	if err != nil {
		return nil, err
	}
	receiver, err := id.ParseOptional(m.ReceiverID, id.PrefixUser)
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
		Timestamp:  m.Timestamp.UTC(),
	}, nil
}
