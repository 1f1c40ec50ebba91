package transaction

import (
	"context"

	"github.com/xraph/bytebank/id"
)

// Store is append-only: there is no update or delete.
type Store interface {
	AppendTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Transaction, error)
}

// ListOpts pages through a user's transactions, newest first.
type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
