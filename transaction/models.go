package transaction

import (
	"fmt"
	"time"

	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/types"
)

type Kind string

const (
	KindRollover Kind = "rollover"
	KindCredit   Kind = "credit"
	KindPurchase Kind = "purchase"
	KindUsage    Kind = "usage"
	KindTransfer Kind = "transfer"
	KindExpiry   Kind = "expiry"
)

// Notes written by the engine.
const (
	NoteRollover    = "Rollover"
	NoteWalletUsage = "Wallet usage"
	NoteTransfer    = "Transfer"
	NoteExpired     = "Expired"
)

// PurchaseNote renders the note for a purchase, e.g. "Bought 100 MB".
func PurchaseNote(amount types.Megabytes) string {
	return "Bought " + amount.String()
}

// CreditNote renders the note for a direct lot credit.
func CreditNote(source string) string {
	return fmt.Sprintf("Credit (%s)", source)
}

// Transaction is an append-only audit record. A nil SenderID means the
// system credited the receiver; a nil ReceiverID means the sender's wallet
// was debited with no receiving party.
type Transaction struct {
	ID         id.TransactionID `json:"id"`
	SenderID   id.UserID        `json:"sender_id,omitempty"`
	ReceiverID id.UserID        `json:"receiver_id,omitempty"`
	AmountMB   types.Megabytes  `json:"amount_mb"`
	Kind       Kind             `json:"kind"`
	Note       string           `json:"note"`
	Timestamp  time.Time        `json:"timestamp"`
}

// New stamps a new record.
func New(sender, receiver id.UserID, amount types.Megabytes, kind Kind, note string, at time.Time) *Transaction {
	return &Transaction{
		ID:         id.NewTransactionID(),
		SenderID:   sender,
		ReceiverID: receiver,
		AmountMB:   amount,
		Kind:       kind,
		Note:       note,
		Timestamp:  at.UTC(),
	}
}

// Involves reports whether the user sent or received this transaction.
func (t *Transaction) Involves(userID id.UserID) bool {
	return (!t.SenderID.IsNil() && t.SenderID == userID) ||
		(!t.ReceiverID.IsNil() && t.ReceiverID == userID)
}

// Direction is +amount for credits to userID and -amount for debits.
// Self-addressed records count as zero.
func (t *Transaction) Direction(userID id.UserID) types.Megabytes {
	var d types.Megabytes
	if t.ReceiverID == userID {
		d += t.AmountMB
	}
	if t.SenderID == userID {
		d -= t.AmountMB
	}
	return d
}
