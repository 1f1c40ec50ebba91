package extension

import (
	"time"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/plugin"
	"github.com/xraph/bytebank/store"
)

// Option configures the ByteBank Forge extension.
type Option func(*Extension)

// WithStore sets the store for the bank engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithBankOption passes a bytebank.Option through to the underlying engine.
func WithBankOption(opt bytebank.Option) Option {
	return func(e *Extension) {
		e.bankOpts = append(e.bankOpts, opt)
	}
}

// WithPlugin registers a bank plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.bankOpts = append(e.bankOpts, bytebank.WithPlugin(p))
	}
}

// WithMetrics registers the observability plugin backed by the app metrics.
func WithMetrics() Option {
	return func(e *Extension) { e.withMetrics = true }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDefaultDailyQuota sets the quota given to newly registered users.
func WithDefaultDailyQuota(mb int64) Option {
	return func(e *Extension) { e.config.DefaultDailyQuotaMB = mb }
}

// WithExpiringSoonDays sets the expiring-soon horizon.
func WithExpiringSoonDays(days int) Option {
	return func(e *Extension) { e.config.ExpiringSoonDays = days }
}

// WithSweepInterval enables the background sweep worker.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithSweepBatchSize sets how many users a sweep loads per page.
func WithSweepBatchSize(n int) Option {
	return func(e *Extension) { e.config.SweepBatchSize = n }
}

// WithRedisLock enables the Redis locker for multi-instance deployments.
func WithRedisLock(addr, password string, db int) Option {
	return func(e *Extension) {
		e.config.RedisAddr = addr
		e.config.RedisPassword = password
		e.config.RedisDB = db
	}
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/sqlite/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
