package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	bytebankstore "github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/wallet"
)

// Collection name constants.
const (
	colUsers        = "bytebank_users"
	colWallets      = "bytebank_wallets"
	colEntries      = "bytebank_entries"
	colTransactions = "bytebank_transactions"
)

// compile-time interface check
var _ bytebankstore.Store = (*Store)(nil)

// querier is satisfied by both the database handle and an open transaction.
type querier interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
	NewDelete(model any) *mongodriver.DeleteQuery
}

// Store implements store.Store using MongoDB via Grove ORM. Units of work
// run in a multi-document transaction, which needs a replica set.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
	q   querier
	tx  *mongodriver.MongoTx
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{
		db:  db,
		mdb: mdb,
		q:   mdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all bytebank collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bytebank/mongo: migrate %s indexes: %w", col, err)
		}
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

// RunInTx runs fn inside a session transaction. Nested calls join the
// enclosing transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bytebankstore.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	gtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bytebank/mongo: begin: %w", err)
	}
	tx, ok := gtx.Raw().(*mongodriver.MongoTx)
	if !ok {
		_ = gtx.Rollback() //nolint:errcheck // unexpected driver
		return fmt.Errorf("bytebank/mongo: unexpected transaction type %T", gtx.Raw())
	}

	if err := fn(ctx, &Store{db: s.db, mdb: s.mdb, q: tx, tx: tx}); err != nil {
		_ = tx.Rollback() //nolint:errcheck // best-effort
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bytebank/mongo: commit: %w", err)
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
		if mongo.IsDuplicateKeyError(err) {
			return bytebank.ErrIdentifierTaken
		}
		return fmt.Errorf("bytebank/mongo: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*account.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID.String()})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	if email == "" {
		return nil, bytebank.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) GetUserByMobile(ctx context.Context, mobile string) (*account.User, error) {
	if mobile == "" {
		return nil, bytebank.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{"mobile": mobile})
}

func (s *Store) UpdateUser(ctx context.Context, u *account.User) error {
	if err := s.checkIdentifiers(ctx, u); err != nil {
		return err
	}
	m := toUserModel(u)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bytebank.ErrIdentifierTaken
		}
		return fmt.Errorf("bytebank/mongo: update user: %w", err)
	}
	if res.MatchedCount() == 0 {
		return bytebank.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, opts account.ListOpts) ([]*account.User, error) {
	var models []userModel

	filter := bson.M{}
	if !opts.After.IsNil() {
		filter["_id"] = bson.M{"$gt": opts.After.String()}
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bytebank/mongo: list users: %w", err)
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

func (s *Store) findUser(ctx context.Context, filter bson.M) (*account.User, error) {
	var m userModel
	err := s.q.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bytebank.ErrUserNotFound
		}
		return nil, fmt.Errorf("bytebank/mongo: get user: %w", err)
	}
	return fromUserModel(&m)
}

// checkIdentifiers rejects an email or mobile already held by another user.
func (s *Store) checkIdentifiers(ctx context.Context, u *account.User) error {
	var or bson.A
	if u.Email != "" {
		or = append(or, bson.M{"email": u.Email})
	}
	if u.Mobile != "" {
		or = append(or, bson.M{"mobile": u.Mobile})
	}
	if len(or) == 0 {
		return nil
	}

	n, err := s.q.NewFind(new(userModel)).
		Filter(bson.M{"$or": or, "_id": bson.M{"$ne": u.ID.String()}}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/mongo: check identifiers: %w", err)
	}
	if n > 0 {
		return bytebank.ErrIdentifierTaken
	}
	return nil
}

// ==================== Wallet Store ====================

func (s *Store) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	_, err := s.q.NewInsert(toWalletModel(w)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bytebank.ErrAlreadyExists
		}
		return fmt.Errorf("bytebank/mongo: create wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWalletByUser(ctx context.Context, userID id.UserID) (*wallet.Wallet, error) {
	var m walletModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"user_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bytebank.ErrWalletNotFound
		}
		return nil, fmt.Errorf("bytebank/mongo: get wallet: %w", err)
	}
	return fromWalletModel(&m)
}

func (s *Store) UpdateWallet(ctx context.Context, w *wallet.Wallet) error {
	m := toWalletModel(w)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "user_id": m.UserID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/mongo: update wallet: %w", err)
	}
	if res.MatchedCount() == 0 {
		return bytebank.ErrWalletNotFound
	}
	return nil
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	_, err := s.q.NewInsert(toEntryModel(e)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bytebank.ErrAlreadyExists
		}
		return fmt.Errorf("bytebank/mongo: create entry: %w", err)
	}
	return nil
}

func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	m := toEntryModel(e)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/mongo: update entry: %w", err)
	}
	if res.MatchedCount() == 0 {
		return bytebank.ErrEntryNotFound
	}
	return nil
}

// DeleteEntry is idempotent: deleting a missing lot is not an error.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	_, err := s.q.NewDelete((*entryModel)(nil)).
		Filter(bson.M{"_id": entryID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bytebank/mongo: delete entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, userID id.UserID, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel

	filter := bson.M{"user_id": userID.String()}
	expiry := bson.M{}
	if !opts.ActiveAt.IsZero() {
		expiry["$gt"] = opts.ActiveAt.UTC()
	}
	if !opts.ExpiredAt.IsZero() {
		expiry["$lte"] = opts.ExpiredAt.UTC()
	}
	if len(expiry) > 0 {
		filter["expiry_date"] = expiry
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{
			{Key: "expiry_date", Value: 1},
			{Key: "added_on", Value: 1},
			{Key: "_id", Value: 1},
		})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bytebank/mongo: list entries: %w", err)
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
		return fmt.Errorf("bytebank/mongo: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID id.UserID, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel

	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID.String()},
		bson.M{"receiver_id": userID.String()},
	}}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bytebank/mongo: list transactions: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bytebank collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	nonEmpty := func(field string) bson.M {
		return bson.M{field: bson.M{"$gt": ""}}
	}
	return map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("email")),
			},
			{
				Keys:    bson.D{{Key: "mobile", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("mobile")),
			},
		},
		colWallets: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colEntries: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "expiry_date", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}
