// Package dbtest opens throwaway SQLite ledgers that mirror the Postgres schema
// closely enough for repository and service tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
)

// Open creates a file-backed SQLite database under t.TempDir. Writers take the
// database lock at BEGIN so concurrent transactions serialize instead of failing.
func Open(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1", filepath.Join(t.TempDir(), "ledger.db"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db.FromConn(conn), conn
}

// SeedVendor inserts a vendor with an empty wallet.
func SeedVendor(t testing.TB, conn *gorm.DB, currency string) models.Vendor {
	t.Helper()
	account := "acct_" + uuid.NewString()[:8]
	vendor := models.Vendor{
		ID:              uuid.New(),
		Name:            "vendor " + uuid.NewString()[:6],
		Currency:        currency,
		PayoutAccountID: &account,
	}
	if err := conn.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	return vendor
}

var schema = []string{
	`CREATE TABLE vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		payout_account_id TEXT,
		wallet_balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (wallet_balance_cents >= 0),
		wallet_sequence INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE escrow_transactions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		buyer_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL REFERENCES vendors(id),
		currency TEXT NOT NULL,
		payment_reference TEXT,
		amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
		platform_fee_cents INTEGER NOT NULL CHECK (platform_fee_cents >= 0),
		vendor_amount_cents INTEGER NOT NULL CHECK (vendor_amount_cents >= 0),
		fee_rate_percent NUMERIC NOT NULL,
		status TEXT NOT NULL,
		held_at DATETIME NOT NULL,
		released_at DATETIME,
		release_reason TEXT,
		disputed_at DATETIME,
		settled_by TEXT,
		settled_by_role TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (platform_fee_cents + vendor_amount_cents = amount_cents)
	)`,
	`CREATE TABLE wallet_transactions (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL REFERENCES vendors(id),
		sequence INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		balance_after_cents INTEGER NOT NULL CHECK (balance_after_cents >= 0),
		reference_type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		status TEXT NOT NULL,
		note TEXT,
		created_at DATETIME,
		UNIQUE (vendor_id, sequence),
		UNIQUE (reference_type, reference_id, type)
	)`,
	`CREATE TABLE payouts (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL REFERENCES vendors(id),
		amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
		currency TEXT NOT NULL,
		destination TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL,
		provider_reference TEXT,
		failure_reason TEXT,
		requested_by TEXT,
		dispatch_attempts INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME,
		completed_at DATETIME,
		failed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (vendor_id, reference)
	)`,
	`CREATE TABLE disputes (
		id TEXT PRIMARY KEY,
		escrow_id TEXT NOT NULL REFERENCES escrow_transactions(id),
		order_id TEXT NOT NULL,
		filed_by_type TEXT NOT NULL,
		filed_by TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		outcome TEXT,
		resolution TEXT,
		resolved_by TEXT,
		resolved_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX idx_disputes_open_per_escrow ON disputes (escrow_id) WHERE status = 'open'`,
	`CREATE TABLE delivery_status_events (
		id TEXT PRIMARY KEY,
		delivery_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		source TEXT NOT NULL,
		outcome TEXT NOT NULL,
		recipient_name TEXT,
		photo_ref TEXT,
		occurred_at DATETIME NOT NULL,
		created_at DATETIME,
		UNIQUE (delivery_id, status)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE provider_refunds (
		id TEXT PRIMARY KEY,
		escrow_id TEXT NOT NULL UNIQUE REFERENCES escrow_transactions(id),
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		provider TEXT NOT NULL,
		provider_refund_id TEXT NOT NULL,
		provider_status TEXT,
		created_at DATETIME
	)`,
}
