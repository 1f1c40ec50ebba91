// Command bytebank-sweeper runs the daily rollover and expiry sweep against
// a shared store, either on an interval or once.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/bytebank"
	"github.com/xraph/bytebank/lock"
	"github.com/xraph/bytebank/store"
	mongostore "github.com/xraph/bytebank/store/mongo"
	pgstore "github.com/xraph/bytebank/store/postgres"
	sqlitestore "github.com/xraph/bytebank/store/sqlite"
)

func main() {
	configPath := flag.String("config", "bytebank.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bytebank-sweeper:", err)
		os.Exit(1)
	}
	if *once {
		cfg.Sweep.Once = true
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sweeper failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []bytebank.Option{
		bytebank.WithLogger(logger),
		bytebank.WithSweepBatchSize(cfg.Sweep.BatchSize),
	}
	if !cfg.Store.Migrate {
		opts = append(opts, bytebank.WithoutMigrate())
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, bytebank.WithLocker(lock.NewRedis(client, lock.RedisOptions{TTL: cfg.Redis.LockTTL})))
	} else {
		logger.Warn("no redis configured; sweeping with in-process locks only")
	}

	bank := bytebank.New(s, opts...)
	if err := bank.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	defer func() {
		if err := bank.Stop(); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	}()

	if cfg.Sweep.Once {
		return sweepOnce(ctx, bank, logger)
	}

	logger.Info("sweeper started",
		"driver", cfg.Store.Driver,
		"interval", cfg.Sweep.Interval,
		"batch_size", cfg.Sweep.BatchSize,
	)

	ticker := time.NewTicker(cfg.Sweep.Interval)
	defer ticker.Stop()

	if err := sweepOnce(ctx, bank, logger); err != nil {
		logger.Error("sweep failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal")
			return nil
		case <-ticker.C:
			if err := sweepOnce(ctx, bank, logger); err != nil {
				logger.Error("sweep failed", "error", err)
			}
		}
	}
}

func sweepOnce(ctx context.Context, bank *bytebank.Bank, logger *slog.Logger) error {
	report, err := bank.Sweep(ctx)
	if report != nil {
		logger.Info("sweep finished",
			"rolled_over", humanize.Comma(int64(report.RolledOver)),
			"expired", humanize.Comma(int64(report.Expired)),
			"elapsed_ms", report.Elapsed.Milliseconds(),
		)
	}
	return err
}

// openStore opens a grove database for the configured driver and wraps it
// in the matching store.
func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "pg":
		drv := pgdriver.New()
		if err := drv.Open(ctx, cfg.Store.DSN); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, err
		}
		return pgstore.New(db), nil

	case "mongo":
		drv := mongodriver.New()
		var mopts []mongodriver.MongoOption
		if cfg.Store.Database != "" {
			mopts = append(mopts, mongodriver.WithDatabase(cfg.Store.Database))
		}
		if err := drv.Open(ctx, cfg.Store.DSN, mopts...); err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, err
		}
		return mongostore.New(db), nil

	default:
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, cfg.Store.DSN); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, err
		}
		return sqlitestore.New(db), nil
	}
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}
