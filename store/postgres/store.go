package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	bytebankstore "github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/wallet"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// compile-time interface check
var _ bytebankstore.Store = (*Store)(nil)

// querier is satisfied by both the database handle and an open transaction.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
	q  querier
	tx *pgdriver.PgTx
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{
		db: db,
		pg: pg,
		q:  pg,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("bytebank/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bytebank/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection. It is a no-op inside a unit of work.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// RunInTx runs fn inside a database transaction. Nested calls join the
// enclosing transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bytebankstore.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bytebank/postgres: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(ctx, &Store{db: s.db, pg: s.pg, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bytebank/postgres: commit: %w", err)
	}
	return nil
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	if err := s.checkIdentifiers(ctx, u); err != nil {
		return err
	}
	_, err := s.q.NewInsert(toUserModel(u)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return bytebank.ErrIdentifierTaken
		}
		return fmt.Errorf("bytebank/postgres: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*account.User, error) {
	return s.findUser(ctx, "id = $1", userID.String())
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	if email == "" {
		return nil, bytebank.ErrUserNotFound
	}
	return s.findUser(ctx, "email = $1", email)
}

func (s *Store) GetUserByMobile(ctx context.Context, mobile string) (*account.User, error) {
	if mobile == "" {
		return nil, bytebank.ErrUserNotFound
	}
	return s.findUser(ctx, "mobile = $1", mobile)
}

func (s *Store) UpdateUser(ctx context.Context, u *account.User) error {
	if err := s.checkIdentifiers(ctx, u); err != nil {
		return err
	}
	res, err := s.q.NewUpdate(toUserModel(u)).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return bytebank.ErrIdentifierTaken
		}
		return fmt.Errorf("bytebank/postgres: update user: %w", err)
	}
	return expectRow(res, bytebank.ErrUserNotFound)
}

func (s *Store) ListUsers(ctx context.Context, opts account.ListOpts) ([]*account.User, error) {
	var models []userModel
	q := s.q.NewSelect(&models)

	if !opts.After.IsNil() {
		q = q.Where("id > $1", opts.After.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bytebank/postgres: list users: %w", err)
	}

	result := make([]*account.User, len(models))
	for i := range models {
		u, err := fromUserModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = u
	}
	return result, nil
}

func (s *Store) findUser(ctx context.Context, where string, arg string) (*account.User, error) {
	m := new(userModel)
	err := s.q.NewSelect(m).Where(where, arg).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bytebank.ErrUserNotFound
		}
		return nil, fmt.Errorf("bytebank/postgres: get user: %w", err)
	}
	return fromUserModel(m)
}

// checkIdentifiers rejects an email or mobile already held by another user.
func (s *Store) checkIdentifiers(ctx context.Context, u *account.User) error {
	for _, probe := range []struct{ column, value string }{
		{"email", u.Email},
		{"mobile", u.Mobile},
	} {
		if probe.value == "" {
			continue
		}
		n, err := s.q.NewSelect(new(userModel)).
			Where(probe.column+" = $1", probe.value).
			Where("id <> $2", u.ID.String()).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("bytebank/postgres: check %s: %w", probe.column, err)
		}
		if n > 0 {
			return bytebank.ErrIdentifierTaken
		}
	}
	return nil
}

// ==================== Wallet Store ====================

func (s *Store) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	_, err := s.q.NewInsert(toWalletModel(w)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return bytebank.ErrAlreadyExists
		}
		return fmt.Errorf("bytebank/postgres: create wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWalletByUser(ctx context.Context, userID id.UserID) (*wallet.Wallet, error) {
	m := new(walletModel)
	err := s.q.NewSelect(m).Where("user_id = $1", userID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bytebank.ErrWalletNotFound
		}
		return nil, fmt.Errorf("bytebank/postgres: get wallet: %w", err)
	}
	return fromWalletModel(m)
}

func (s *Store) UpdateWallet(ctx context.Context, w *wallet.Wallet) error {
	res, err := s.q.NewUpdate(toWalletModel(w)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/postgres: update wallet: %w", err)
	}
	return expectRow(res, bytebank.ErrWalletNotFound)
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	_, err := s.q.NewInsert(toEntryModel(e)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return bytebank.ErrAlreadyExists
		}
		return fmt.Errorf("bytebank/postgres: create entry: %w", err)
	}
	return nil
}

func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	res, err := s.q.NewUpdate(toEntryModel(e)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/postgres: update entry: %w", err)
	}
	return expectRow(res, bytebank.ErrEntryNotFound)
}

// DeleteEntry is idempotent: deleting a missing lot is not an error.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	_, err := s.q.NewDelete((*entryModel)(nil)).
		Where("id = $1", entryID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/postgres: delete entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, userID id.UserID, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.q.NewSelect(&models).Where("user_id = $1", userID.String())

	argIdx := 1
	if !opts.ActiveAt.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("expiry_date > $%d", argIdx), opts.ActiveAt.UTC())
	}
	if !opts.ExpiredAt.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("expiry_date <= $%d", argIdx), opts.ExpiredAt.UTC())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("expiry_date ASC, added_on ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bytebank/postgres: list entries: %w", err)
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Transaction Store ====================

func (s *Store) AppendTransaction(ctx context.Context, t *transaction.Transaction) error {
	_, err := s.q.NewInsert(toTransactionModel(t)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/postgres: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID id.UserID, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.q.NewSelect(&models).
		Where("(sender_id = $1 OR receiver_id = $1)", userID.String())

	if opts.Kind != "" {
		q = q.Where("kind = $2", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bytebank/postgres: list transactions: %w", err)
	}

	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Helpers ====================

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// expectRow returns notFound when an update touched no rows.
func expectRow(res rowsAffecter, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
