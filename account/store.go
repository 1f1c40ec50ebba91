package account

import (
	"context"

	"github.com/xraph/bytebank/id"
)

type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByMobile(ctx context.Context, mobile string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context, opts ListOpts) ([]*User, error)
}

// ListOpts pages through users in ID order. After, when set, starts the
// page strictly after that user, which keeps sweeps stable while rows change.
type ListOpts struct {
	After id.UserID
	Limit int
}
