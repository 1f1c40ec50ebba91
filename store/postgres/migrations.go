package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the ByteBank store.
var Migrations = migrate.NewGroup("bytebank")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bytebank_users",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bytebank_users (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    email           TEXT NOT NULL DEFAULT '',
    mobile          TEXT NOT NULL DEFAULT '',
    daily_quota_mb  BIGINT NOT NULL DEFAULT 0 CHECK (daily_quota_mb >= 0),
    used_today_mb   BIGINT NOT NULL DEFAULT 0,
    last_usage_date DATE NOT NULL DEFAULT CURRENT_DATE,
    total_used_mb   BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bytebank_users_email ON bytebank_users (email) WHERE email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_bytebank_users_mobile ON bytebank_users (mobile) WHERE mobile <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bytebank_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bytebank_wallets",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bytebank_wallets (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL REFERENCES bytebank_users (id),
    balance_mb         BIGINT NOT NULL DEFAULT 0 CHECK (balance_mb >= 0),
    total_purchased_mb BIGINT NOT NULL DEFAULT 0,
    total_used_mb      BIGINT NOT NULL DEFAULT 0,
    total_expired_mb   BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bytebank_wallets_user ON bytebank_wallets (user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bytebank_wallets`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bytebank_entries",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bytebank_entries (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES bytebank_users (id),
    amount_mb   BIGINT NOT NULL DEFAULT 0 CHECK (amount_mb >= 0),
    source      TEXT NOT NULL DEFAULT 'earned',
    added_on    TIMESTAMPTZ NOT NULL,
    expiry_date TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bytebank_entries_user_expiry ON bytebank_entries (user_id, expiry_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bytebank_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bytebank_transactions",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bytebank_transactions (
    id          TEXT PRIMARY KEY,
    sender_id   TEXT,
    receiver_id TEXT,
    amount_mb   BIGINT NOT NULL DEFAULT 0,
    kind        TEXT NOT NULL DEFAULT '',
    note        TEXT NOT NULL DEFAULT '',
    timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bytebank_txns_sender ON bytebank_transactions (sender_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_bytebank_txns_receiver ON bytebank_transactions (receiver_id, timestamp DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bytebank_transactions`)
				return err
			},
		},
	)
}
