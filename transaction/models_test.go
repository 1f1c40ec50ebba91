package transaction

import (
	"testing"
	"time"

	"github.com/xraph/bytebank/id"
)

func TestNotes(t *testing.T) {
	if got := PurchaseNote(100); got != "Bought 100 MB" {
		t.Errorf("PurchaseNote: got %q", got)
	}
	if got := CreditNote("earned"); got != "Credit (earned)" {
		t.Errorf("CreditNote: got %q", got)
	}
}

func TestInvolvesAndDirection(t *testing.T) {
	alice, bob, carol := id.NewUserID(), id.NewUserID(), id.NewUserID()
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		txn      *Transaction
		user     id.UserID
		involved bool
		dir      int64
	}{
		{"transfer sender", New(alice, bob, 40, KindTransfer, NoteTransfer, at), alice, true, -40},
		{"transfer receiver", New(alice, bob, 40, KindTransfer, NoteTransfer, at), bob, true, 40},
		{"bystander", New(alice, bob, 40, KindTransfer, NoteTransfer, at), carol, false, 0},
		{"system credit", New(id.Nil, alice, 824, KindRollover, NoteRollover, at), alice, true, 824},
		{"wallet usage", New(alice, id.Nil, 60, KindUsage, NoteWalletUsage, at), alice, true, -60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.txn.Involves(tt.user); got != tt.involved {
				t.Errorf("Involves: got %v, want %v", got, tt.involved)
			}
			if got := tt.txn.Direction(tt.user); got.Int64() != tt.dir {
				t.Errorf("Direction: got %d, want %d", got, tt.dir)
			}
		})
	}
}
