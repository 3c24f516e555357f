package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// EscrowEvent is the payload for every escrow lifecycle event.
type EscrowEvent struct {
	EscrowID          uuid.UUID          `json:"escrow_id"`
	OrderID           uuid.UUID          `json:"order_id"`
	BuyerID           uuid.UUID          `json:"buyer_id"`
	VendorID          uuid.UUID          `json:"vendor_id"`
	Status            enums.EscrowStatus `json:"status"`
	AmountCents       int64              `json:"amount_cents"`
	PlatformFeeCents  int64              `json:"platform_fee_cents"`
	VendorAmountCents int64              `json:"vendor_amount_cents"`
	Currency          string             `json:"currency"`
	PaymentReference  string             `json:"payment_reference,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

// PayoutEvent is the payload for payout lifecycle events.
type PayoutEvent struct {
	PayoutID          uuid.UUID          `json:"payout_id"`
	VendorID          uuid.UUID          `json:"vendor_id"`
	Status            enums.PayoutStatus `json:"status"`
	AmountCents       int64              `json:"amount_cents"`
	Currency          string             `json:"currency"`
	ProviderReference string             `json:"provider_reference,omitempty"`
	FailureReason     string             `json:"failure_reason,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

// DisputeEvent is the payload for dispute_filed and dispute_resolved.
type DisputeEvent struct {
	DisputeID   uuid.UUID             `json:"dispute_id"`
	EscrowID    uuid.UUID             `json:"escrow_id"`
	OrderID     uuid.UUID             `json:"order_id"`
	FiledByType enums.DisputeParty    `json:"filed_by_type"`
	Status      enums.DisputeStatus   `json:"status"`
	Outcome     *enums.DisputeOutcome `json:"outcome,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
}
