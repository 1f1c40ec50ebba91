// Package memory is an in-process store.Store for tests and demos.
//
// Entities are copied on the way in and out, so callers never share state
// with the store. RunInTx holds the store's write lock for the whole unit
// and restores a snapshot if the unit fails.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/wallet"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	data   *state
	closed bool
}

func New() *Store {
	return &Store{data: newState()}
}

// User Store implementation
func (s *Store) CreateUser(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.createUser(u)
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.getUser(userID)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.findUser(func(u *account.User) bool { return email != "" && u.Email == email })
}

func (s *Store) GetUserByMobile(_ context.Context, mobile string) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.findUser(func(u *account.User) bool { return mobile != "" && u.Mobile == mobile })
}

func (s *Store) UpdateUser(_ context.Context, u *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.updateUser(u)
}

func (s *Store) ListUsers(_ context.Context, opts account.ListOpts) ([]*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listUsers(opts), nil
}

// Wallet Store implementation
func (s *Store) CreateWallet(_ context.Context, w *wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.createWallet(w)
}

func (s *Store) GetWalletByUser(_ context.Context, userID id.UserID) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.getWallet(userID)
}

func (s *Store) UpdateWallet(_ context.Context, w *wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.updateWallet(w)
}

// Entry Store implementation
func (s *Store) CreateEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.createEntry(e)
}

func (s *Store) UpdateEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.updateEntry(e)
}

func (s *Store) DeleteEntry(_ context.Context, entryID id.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.deleteEntry(entryID)
}

func (s *Store) ListEntries(_ context.Context, userID id.UserID, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listEntries(userID, opts), nil
}

// Transaction Store implementation
func (s *Store) AppendTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.appendTransaction(t)
}

func (s *Store) ListTransactions(_ context.Context, userID id.UserID, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.listTransactions(userID, opts), nil
}

// RunInTx runs fn against an unlocked view of the data while holding the
// write lock, restoring the previous state if fn fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bytebank.ErrStoreClosed
	}

	snap := s.data.snapshot()
	if err := fn(ctx, &txView{data: s.data}); err != nil {
		s.data = snap
		return err
	}
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return bytebank.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// state
// ──────────────────────────────────────────────────

type state struct {
	users   map[string]*account.User
	wallets map[string]*wallet.Wallet // keyed by user ID
	entries map[string]*entry.Entry
	txns    []*transaction.Transaction
}

func newState() *state {
	return &state{
		users:   make(map[string]*account.User),
		wallets: make(map[string]*wallet.Wallet),
		entries: make(map[string]*entry.Entry),
	}
}

// snapshot is shallow: stored values are private copies that are replaced,
// never mutated.
func (d *state) snapshot() *state {
	return &state{
		users:   maps.Clone(d.users),
		wallets: maps.Clone(d.wallets),
		entries: maps.Clone(d.entries),
		txns:    slices.Clone(d.txns),
	}
}

func (d *state) createUser(u *account.User) error {
	if _, exists := d.users[u.ID.String()]; exists {
		return bytebank.ErrAlreadyExists
	}
	if err := d.checkIdentifiers(u); err != nil {
		return err
	}
	cp := *u
	d.users[u.ID.String()] = &cp
	return nil
}

func (d *state) checkIdentifiers(u *account.User) error {
	for _, other := range d.users {
		if other.ID == u.ID {
			continue
		}
		if (u.Email != "" && other.Email == u.Email) || (u.Mobile != "" && other.Mobile == u.Mobile) {
			return bytebank.ErrIdentifierTaken
		}
	}
	return nil
}

func (d *state) getUser(userID id.UserID) (*account.User, error) {
	u, ok := d.users[userID.String()]
	if !ok {
		return nil, bytebank.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *state) findUser(match func(*account.User) bool) (*account.User, error) {
	for _, u := range d.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, bytebank.ErrUserNotFound
}

func (d *state) updateUser(u *account.User) error {
	if _, exists := d.users[u.ID.String()]; !exists {
		return bytebank.ErrUserNotFound
	}
	if err := d.checkIdentifiers(u); err != nil {
		return err
	}
	cp := *u
	d.users[u.ID.String()] = &cp
	return nil
}

func (d *state) listUsers(opts account.ListOpts) []*account.User {
	result := make([]*account.User, 0, len(d.users))
	for _, u := range d.users {
		if !opts.After.IsNil() && u.ID.Compare(opts.After) <= 0 {
			continue
		}
		cp := *u
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *account.User) int { return a.ID.Compare(b.ID) })

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

func (d *state) createWallet(w *wallet.Wallet) error {
	if _, exists := d.wallets[w.UserID.String()]; exists {
		return bytebank.ErrAlreadyExists
	}
	cp := *w
	d.wallets[w.UserID.String()] = &cp
	return nil
}

func (d *state) getWallet(userID id.UserID) (*wallet.Wallet, error) {
	w, ok := d.wallets[userID.String()]
	if !ok {
		return nil, bytebank.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (d *state) updateWallet(w *wallet.Wallet) error {
	existing, ok := d.wallets[w.UserID.String()]
	if !ok || existing.ID != w.ID {
		return bytebank.ErrWalletNotFound
	}
	cp := *w
	d.wallets[w.UserID.String()] = &cp
	return nil
}

func (d *state) createEntry(e *entry.Entry) error {
	if _, exists := d.entries[e.ID.String()]; exists {
		return bytebank.ErrAlreadyExists
	}
	cp := *e
	d.entries[e.ID.String()] = &cp
	return nil
}

func (d *state) updateEntry(e *entry.Entry) error {
	if _, exists := d.entries[e.ID.String()]; !exists {
		return bytebank.ErrEntryNotFound
	}
	cp := *e
	d.entries[e.ID.String()] = &cp
	return nil
}

func (d *state) deleteEntry(entryID id.EntryID) error {
	delete(d.entries, entryID.String())
	return nil
}

func (d *state) listEntries(userID id.UserID, opts entry.ListOpts) []*entry.Entry {
	result := make([]*entry.Entry, 0)
	for _, e := range d.entries {
		if e.UserID == userID && opts.Matches(e) {
			cp := *e
			result = append(result, &cp)
		}
	}
	entry.SortByExpiry(result)

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

func (d *state) appendTransaction(t *transaction.Transaction) error {
	cp := *t
	d.txns = append(d.txns, &cp)
	return nil
}

func (d *state) listTransactions(userID id.UserID, opts transaction.ListOpts) []*transaction.Transaction {
	result := make([]*transaction.Transaction, 0)
	for _, t := range d.txns {
		if !t.Involves(userID) {
			continue
		}
		if opts.Kind != "" && t.Kind != opts.Kind {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	slices.SortStableFunc(result, func(a, b *transaction.Transaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	// Apply limit/offset
	start := min(opts.Offset, len(result))
	end := len(result)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(result))
	}
	return result[start:end]
}

// ──────────────────────────────────────────────────
// txView
// ──────────────────────────────────────────────────

// txView is the store handed to RunInTx callbacks. The caller already holds
// the write lock.
type txView struct {
	data *state
}

var _ store.Store = (*txView)(nil)

func (t *txView) CreateUser(_ context.Context, u *account.User) error { return t.data.createUser(u) }

func (t *txView) GetUser(_ context.Context, userID id.UserID) (*account.User, error) {
	return t.data.getUser(userID)
}

func (t *txView) GetUserByEmail(_ context.Context, email string) (*account.User, error) {
	return t.data.findUser(func(u *account.User) bool { return email != "" && u.Email == email })
}

func (t *txView) GetUserByMobile(_ context.Context, mobile string) (*account.User, error) {
	return t.data.findUser(func(u *account.User) bool { return mobile != "" && u.Mobile == mobile })
}

func (t *txView) UpdateUser(_ context.Context, u *account.User) error { return t.data.updateUser(u) }

func (t *txView) ListUsers(_ context.Context, opts account.ListOpts) ([]*account.User, error) {
	return t.data.listUsers(opts), nil
}

func (t *txView) CreateWallet(_ context.Context, w *wallet.Wallet) error {
	return t.data.createWallet(w)
}

func (t *txView) GetWalletByUser(_ context.Context, userID id.UserID) (*wallet.Wallet, error) {
	return t.data.getWallet(userID)
}

func (t *txView) UpdateWallet(_ context.Context, w *wallet.Wallet) error {
	return t.data.updateWallet(w)
}

func (t *txView) CreateEntry(_ context.Context, e *entry.Entry) error { return t.data.createEntry(e) }

func (t *txView) UpdateEntry(_ context.Context, e *entry.Entry) error { return t.data.updateEntry(e) }

func (t *txView) DeleteEntry(_ context.Context, entryID id.EntryID) error {
	return t.data.deleteEntry(entryID)
}

func (t *txView) ListEntries(_ context.Context, userID id.UserID, opts entry.ListOpts) ([]*entry.Entry, error) {
	return t.data.listEntries(userID, opts), nil
}

func (t *txView) AppendTransaction(_ context.Context, tr *transaction.Transaction) error {
	return t.data.appendTransaction(tr)
}

func (t *txView) ListTransactions(_ context.Context, userID id.UserID, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return t.data.listTransactions(userID, opts), nil
}

// RunInTx joins the enclosing unit.
func (t *txView) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, t)
}

func (t *txView) Migrate(_ context.Context) error { return nil }
func (t *txView) Ping(_ context.Context) error    { return nil }
func (t *txView) Close() error                    { return nil }
