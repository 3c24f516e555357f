package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "escrow_transactions_order_id_key"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg any", err: fmt.Errorf("insert: %w", pgErr), want: true},
		{name: "pg named", err: pgErr, constraint: "escrow_transactions_order_id_key", want: true},
		{name: "pg other constraint", err: pgErr, constraint: "payouts_vendor_reference_key", want: false},
		{name: "pg other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: wallet_transactions.vendor_id, wallet_transactions.sequence"), constraint: "wallet_transactions.sequence", want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}
