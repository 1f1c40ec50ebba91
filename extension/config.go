package extension

import "time"

// Config holds the ByteBank extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bytebank" or "bytebank" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DefaultDailyQuotaMB is the quota given to newly registered users
	// (default: 2048).
	DefaultDailyQuotaMB int64 `json:"default_daily_quota_mb" mapstructure:"default_daily_quota_mb" yaml:"default_daily_quota_mb"`

	// ExpiringSoonDays is the horizon for expiring-soon warnings (default: 3).
	ExpiringSoonDays int `json:"expiring_soon_days" mapstructure:"expiring_soon_days" yaml:"expiring_soon_days"`

	// SweepInterval enables the background rollover and expiry sweep.
	// Zero leaves the sweep to an external scheduler.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// SweepBatchSize is the number of users loaded per sweep page (default: 100).
	SweepBatchSize int `json:"sweep_batch_size" mapstructure:"sweep_batch_size" yaml:"sweep_batch_size"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RedisAddr enables the Redis per-user locker when set.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// RedisPassword authenticates against RedisAddr.
	RedisPassword string `json:"redis_password" mapstructure:"redis_password" yaml:"redis_password"`

	// RedisDB selects the Redis logical database.
	RedisDB int `json:"redis_db" mapstructure:"redis_db" yaml:"redis_db"`

	// LockTTL bounds how long a crashed holder can block a user (default: 10s).
	LockTTL time.Duration `json:"lock_ttl" mapstructure:"lock_ttl" yaml:"lock_ttl"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultDailyQuotaMB: 2048,
		ExpiringSoonDays:    3,
		SweepBatchSize:      100,
		LockTTL:             10 * time.Second,
	}
}
