// Package extension provides the Forge extension adapter for ByteBank.
//
// It implements the forge.Extension interface to integrate ByteBank
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.bytebank" or "bytebank" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/lock"
	"github.com/xraph/bytebank/observability"
	"github.com/xraph/bytebank/store"
	"github.com/xraph/bytebank/store/memory"
	mongostore "github.com/xraph/bytebank/store/mongo"
	pgstore "github.com/xraph/bytebank/store/postgres"
	sqlitestore "github.com/xraph/bytebank/store/sqlite"
	"github.com/xraph/bytebank/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bytebank"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Prepaid data-quota wallet ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts ByteBank as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *bytebank.Bank
	store       store.Store
	redis       *redis.Client
	bankOpts    []bytebank.Option
	useGrove    bool
	withMetrics bool
}

// New creates a new ByteBank Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Bank instance.
// This is nil until Register is called.
func (e *Extension) Engine() *bytebank.Bank { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the bank engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && (e.useGrove || e.config.GroveDatabase != "") {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts := e.buildBankOpts(fapp)

	e.engine = bytebank.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*bytebank.Bank, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("bytebank: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var err error
	if e.engine != nil {
		err = e.engine.Stop()
	}
	if e.redis != nil {
		if cerr := e.redis.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	e.MarkStopped()
	return err
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("bytebank: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// resolveGroveStore picks a store backend for the grove.DB in the container.
func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if e.config.GroveDatabase != "" {
		db, err = vessel.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
	} else {
		db, err = vessel.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("bytebank: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}

	driver := db.Driver().Name()
	e.Logger().Debug("bytebank: using grove store",
		forge.F("database", e.config.GroveDatabase),
		forge.F("driver", driver),
	)

	switch driver {
	case "pg":
		return pgstore.New(db), nil
	case "sqlite":
		return sqlitestore.New(db), nil
	case "mongo":
		return mongostore.New(db), nil
	default:
		return nil, fmt.Errorf("bytebank: unsupported grove driver %q", driver)
	}
}

// buildBankOpts constructs bytebank.Option values from the resolved config.
func (e *Extension) buildBankOpts(fapp forge.App) []bytebank.Option {
	opts := make([]bytebank.Option, 0, len(e.bankOpts)+6)

	opts = append(opts,
		bytebank.WithDefaultDailyQuota(types.Megabytes(e.config.DefaultDailyQuotaMB)),
		bytebank.WithExpiringSoonDays(e.config.ExpiringSoonDays),
		bytebank.WithSweepBatchSize(e.config.SweepBatchSize),
	)
	if e.config.SweepInterval > 0 {
		opts = append(opts, bytebank.WithSweepInterval(e.config.SweepInterval))
	}
	if e.config.DisableMigrate {
		opts = append(opts, bytebank.WithoutMigrate())
	}

	if e.config.RedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{
			Addr:     e.config.RedisAddr,
			Password: e.config.RedisPassword,
			DB:       e.config.RedisDB,
		})
		opts = append(opts, bytebank.WithLocker(lock.NewRedis(e.redis, lock.RedisOptions{
			TTL: e.config.LockTTL,
		})))
		e.Logger().Info("bytebank: redis locker enabled",
			forge.F("addr", e.config.RedisAddr),
			forge.F("lock_ttl", e.config.LockTTL),
		)
	}

	if e.withMetrics {
		m := e.Metrics()
		if m == nil {
			m = fapp.Metrics()
		}
		if m != nil {
			opts = append(opts, bytebank.WithPlugin(observability.NewMetricsExtension(metricFactory{m})))
		}
	}

	// Append any pass-through bank options.
	opts = append(opts, e.bankOpts...)

	return opts
}

// metricFactory adapts forge metrics to observability.MetricFactory.
type metricFactory struct {
	m forge.Metrics
}

func (f metricFactory) Counter(name string) observability.Counter {
	return f.m.Counter(name)
}

func (f metricFactory) Histogram(name string) observability.Histogram {
	return f.m.Histogram(name)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("bytebank: configuration is required but not found in config files; " +
				"ensure 'extensions.bytebank' or 'bytebank' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("bytebank: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("default_daily_quota_mb", e.config.DefaultDailyQuotaMB),
		forge.F("expiring_soon_days", e.config.ExpiringSoonDays),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("sweep_batch_size", e.config.SweepBatchSize),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.bytebank", "bytebank"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("bytebank: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("bytebank: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.DefaultDailyQuotaMB == 0 {
		cfg.DefaultDailyQuotaMB = defaults.DefaultDailyQuotaMB
	}
	if cfg.ExpiringSoonDays == 0 {
		cfg.ExpiringSoonDays = defaults.ExpiringSoonDays
	}
	if cfg.SweepBatchSize == 0 {
		cfg.SweepBatchSize = defaults.SweepBatchSize
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}
	if yamlConfig.RedisAddr == "" && programmaticConfig.RedisAddr != "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
		yamlConfig.RedisPassword = programmaticConfig.RedisPassword
		yamlConfig.RedisDB = programmaticConfig.RedisDB
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.DefaultDailyQuotaMB == 0 && programmaticConfig.DefaultDailyQuotaMB != 0 {
		yamlConfig.DefaultDailyQuotaMB = programmaticConfig.DefaultDailyQuotaMB
	}
	if yamlConfig.ExpiringSoonDays == 0 && programmaticConfig.ExpiringSoonDays != 0 {
		yamlConfig.ExpiringSoonDays = programmaticConfig.ExpiringSoonDays
	}
	if yamlConfig.SweepInterval == 0 && programmaticConfig.SweepInterval != 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}
	if yamlConfig.SweepBatchSize == 0 && programmaticConfig.SweepBatchSize != 0 {
		yamlConfig.SweepBatchSize = programmaticConfig.SweepBatchSize
	}
	if yamlConfig.LockTTL == 0 && programmaticConfig.LockTTL != 0 {
		yamlConfig.LockTTL = programmaticConfig.LockTTL
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
