package mongo

import (
	"testing"
	"time"

	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/wallet"
)

func TestTransactionModelOmitsSystemParty(t *testing.T) {
	sender := id.NewUserID()
	txn := transaction.New(sender, id.Nil, 250, transaction.KindUsage, transaction.NoteWalletUsage, time.Now())

	m := toTransactionModel(txn)
	if m.ReceiverID != "" {
		t.Errorf("expected empty receiver, got %q", m.ReceiverID)
	}

	got, err := fromTransactionModel(m)
	if err != nil {
		t.Fatalf("fromTransactionModel: %v", err)
	}
	if got.SenderID != sender {
		t.Errorf("sender: got %s, want %s", got.SenderID, sender)
	}
	if !got.ReceiverID.IsNil() {
		t.Errorf("expected nil receiver, got %s", got.ReceiverID)
	}
}

func TestWalletModelRoundTrip(t *testing.T) {
	w := &wallet.Wallet{
		ID:               id.NewWalletID(),
		UserID:           id.NewUserID(),
		BalanceMB:        300,
		TotalPurchasedMB: 1000,
		TotalUsedMB:      600,
		TotalExpiredMB:   100,
	}

	got, err := fromWalletModel(toWalletModel(w))
	if err != nil {
		t.Fatalf("fromWalletModel: %v", err)
	}
	if got.ID != w.ID || got.UserID != w.UserID {
		t.Errorf("ids not preserved: got %s/%s", got.ID, got.UserID)
	}
	if got.BalanceMB != 300 || got.TotalPurchasedMB != 1000 || got.TotalUsedMB != 600 || got.TotalExpiredMB != 100 {
		t.Errorf("amounts not preserved: %+v", got)
	}
}
