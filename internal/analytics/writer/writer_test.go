package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/settlement-engine/internal/analytics/types"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{SettlementTable: "settlement_events"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&fakeInserter{}, Config{SettlementTable: " "}); err == nil {
		t.Fatal("expected error when settlement table missing")
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"escrow_id": "e-1"})
	if err != nil {
		t.Fatalf("unexpected error encoding json: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error for nil json: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	rawMessage := json.RawMessage(`{"payout_id":"p-1"}`)
	nj, err = EncodeJSON(rawMessage)
	if err != nil {
		t.Fatalf("unexpected error encoding raw json: %v", err)
	}
	if nj.JSONVal != string(rawMessage) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "backend busy"),
		nil,
	}

	if err := writer.InsertSettlement(context.Background(), types.SettlementEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected three insert attempts, got %d", len(fake.calls))
	}
	if fake.calls[2].table != "settlement_events" {
		t.Fatalf("expected settlement table on retry, got %s", fake.calls[2].table)
	}
	if len(writer.buffer) != 0 {
		t.Fatal("expected buffer to be empty after success")
	}
}

func TestWriterDoesNotRetryPermanentErrors(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := writer.InsertSettlement(context.Background(), types.SettlementEventRow{EventID: "1"})
	if err == nil {
		t.Fatal("expected error for bad request")
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped googleapi error, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
}

func TestWriterBatching(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.batch = 2

	if err := writer.InsertSettlement(context.Background(), types.SettlementEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no insert before batch full, got %d", len(fake.calls))
	}

	if err := writer.InsertSettlement(context.Background(), types.SettlementEventRow{EventID: "2"}); err != nil {
		t.Fatalf("unexpected error on second insert: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected single insert after batch flush, got %d", len(fake.calls))
	}
	if fake.calls[0].rowCount != 2 {
		t.Fatalf("expected two rows inserted, got %d", fake.calls[0].rowCount)
	}
}

func TestWriterFlush(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.batch = 10
	if err := writer.InsertSettlement(context.Background(), types.SettlementEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected flush to insert once, got %d", len(fake.calls))
	}
	if len(writer.buffer) != 0 {
		t.Fatalf("expected buffer to be empty after flush, got %d", len(writer.buffer))
	}
}

type insertCall struct {
	table    string
	rowCount int
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	index     int
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rowCount: len(rows)})
	var err error
	if f.index < len(f.responses) {
		err = f.responses[f.index]
	}
	f.index++
	return err
}

func newWriterWithFakeInserter(t *testing.T) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	writer, err := New(fake, Config{
		SettlementTable: "settlement_events",
		RetryPolicy:     RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaximumBackoff: 2 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	return writer, fake
}
