package wallet

import (
	"context"

	"github.com/xraph/bytebank/id"
)

type Store interface {
	CreateWallet(ctx context.Context, w *Wallet) error
	GetWalletByUser(ctx context.Context, userID id.UserID) (*Wallet, error)
	UpdateWallet(ctx context.Context, w *Wallet) error
}
