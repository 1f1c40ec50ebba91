package bytebank

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/lock"
	"github.com/xraph/bytebank/plugin"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/types"
)

// Bank is the quota wallet engine.
type Bank struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock
	locker  lock.Locker

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	defaultQuota     types.Megabytes
	expiringSoonDays int
	sweepInterval    time.Duration
	sweepBatchSize   int
	skipMigrate      bool
}

// New creates a new Bank instance.
func New(s store.Store, opts ...Option) *Bank {
	b := &Bank{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		clock:            SystemClock,
		locker:           lock.NewLocal(),
		stopChan:         make(chan struct{}),
		defaultQuota:     account.DefaultDailyQuotaMB,
		expiringSoonDays: entry.DefaultExpiringSoonDays,
		sweepBatchSize:   100,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Option configures a Bank instance.
type Option func(*Bank)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bank) {
		b.logger = logger
		b.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(b *Bank) {
		_ = b.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(b *Bank) {
		b.clock = c
	}
}

// WithLocker sets the per-user locker. Use lock.NewRedis when several
// engine instances share one store.
func WithLocker(l lock.Locker) Option {
	return func(b *Bank) {
		b.locker = l
	}
}

// WithDefaultDailyQuota sets the quota given to newly registered users.
func WithDefaultDailyQuota(mb types.Megabytes) Option {
	return func(b *Bank) {
		if mb >= 0 && mb <= MaxAmount {
			b.defaultQuota = mb
		}
	}
}

// WithExpiringSoonDays sets the horizon used by ExpiringSoon and Summary.
func WithExpiringSoonDays(days int) Option {
	return func(b *Bank) {
		if days >= 0 {
			b.expiringSoonDays = days
		}
	}
}

// WithSweepInterval enables the background sweep worker.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Bank) {
		b.sweepInterval = d
	}
}

// WithSweepBatchSize sets how many users a sweep loads per page.
func WithSweepBatchSize(n int) Option {
	return func(b *Bank) {
		if n > 0 {
			b.sweepBatchSize = n
		}
	}
}

// WithoutMigrate makes Start skip store migrations.
func WithoutMigrate() Option {
	return func(b *Bank) {
		b.skipMigrate = true
	}
}

// Store returns the underlying store.
func (b *Bank) Store() store.Store { return b.store }

// Plugins returns the plugin registry.
func (b *Bank) Plugins() *plugin.Registry { return b.plugins }

// Start migrates the store and begins background workers.
func (b *Bank) Start(ctx context.Context) error {
	if !b.skipMigrate {
		if err := b.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	// Initialize plugins
	b.plugins.EmitInit(ctx, b)

	if b.sweepInterval > 0 {
		b.wg.Add(1)
		go b.sweepWorker(ctx)
	}

	b.logger.Info("bytebank started",
		"default_daily_quota_mb", b.defaultQuota.Int64(),
		"expiring_soon_days", b.expiringSoonDays,
		"sweep_interval", b.sweepInterval,
		"sweep_batch_size", b.sweepBatchSize,
	)

	return nil
}

// Stop shuts down the Bank.
func (b *Bank) Stop() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()

	ctx := context.Background()
	b.plugins.EmitShutdown(ctx)

	b.logger.Info("bytebank stopped")
	return b.store.Close()
}

// sweepWorker runs Sweep on every tick until Stop.
func (b *Bank) sweepWorker(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := b.Sweep(ctx); err != nil {
				b.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (b *Bank) now() time.Time {
	return b.clock.Now().UTC()
}

// unit runs fn as one atomic unit of work. Ledger errors come back as-is;
// anything else the store reports is a persistence failure.
func (b *Bank) unit(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	err := b.store.RunInTx(ctx, fn)
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}

// lockUsers holds the per-user locks for the duration of an operation.
func (b *Bank) lockUsers(ctx context.Context, userIDs ...id.UserID) (lock.Unlock, error) {
	keys := make([]string, len(userIDs))
	for i, u := range userIDs {
		keys[i] = "user:" + u.String()
	}
	return b.lockKeys(ctx, keys...)
}

func (b *Bank) lockKeys(ctx context.Context, keys ...string) (lock.Unlock, error) {
	unlock, err := lock.LockAll(ctx, b.locker, keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	return unlock, nil
}

// MaxAmount is the largest amount a single operation accepts (1 EiB).
const MaxAmount types.Megabytes = 1 << 40

// validAmount rejects non-positive amounts and amounts above MaxAmount.
func validAmount(amount types.Megabytes) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount.Int64())
	}
	if amount > MaxAmount {
		return fmt.Errorf("%w: %d exceeds the %d MB limit", ErrInvalidAmount, amount.Int64(), MaxAmount.Int64())
	}
	return nil
}

// balanceOverflow reports a credit the wallet balance cannot hold.
func balanceOverflow(amount, balance types.Megabytes) error {
	return fmt.Errorf("%w: crediting %d MB to a balance of %d MB would overflow",
		ErrInvalidAmount, amount.Int64(), balance.Int64())
}

// ParseAmount parses user input such as "250" (megabytes) or "1.5 GiB".
func ParseAmount(s string) (types.Megabytes, error) {
	mb, err := types.ParseMegabytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if err := validAmount(mb); err != nil {
		return 0, err
	}
	return mb, nil
}
