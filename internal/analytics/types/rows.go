package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SettlementEventRow mirrors the settlement_events BigQuery schema. Columns that
// do not apply to an aggregate stay NULL.
type SettlementEventRow struct {
	EventID           string             `bigquery:"event_id"`
	EventType         string             `bigquery:"event_type"`
	AggregateType     string             `bigquery:"aggregate_type"`
	AggregateID       string             `bigquery:"aggregate_id"`
	OccurredAt        time.Time          `bigquery:"occurred_at"`
	OrderID           *string            `bigquery:"order_id"`
	EscrowID          *string            `bigquery:"escrow_id"`
	BuyerID           *string            `bigquery:"buyer_id"`
	VendorID          *string            `bigquery:"vendor_id"`
	PayoutID          *string            `bigquery:"payout_id"`
	DisputeID         *string            `bigquery:"dispute_id"`
	Status            *string            `bigquery:"status"`
	AmountCents       *int64             `bigquery:"amount_cents"`
	PlatformFeeCents  *int64             `bigquery:"platform_fee_cents"`
	VendorAmountCents *int64             `bigquery:"vendor_amount_cents"`
	Currency          *string            `bigquery:"currency"`
	Reason            *string            `bigquery:"reason"`
	Payload           cbigquery.NullJSON `bigquery:"payload"`
}
