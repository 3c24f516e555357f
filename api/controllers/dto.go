package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

type escrowResponse struct {
	ID                uuid.UUID          `json:"id"`
	OrderID           uuid.UUID          `json:"order_id"`
	BuyerID           uuid.UUID          `json:"buyer_id"`
	VendorID          uuid.UUID          `json:"vendor_id"`
	Currency          string             `json:"currency"`
	AmountCents       int64              `json:"amount_cents"`
	PlatformFeeCents  int64              `json:"platform_fee_cents"`
	VendorAmountCents int64              `json:"vendor_amount_cents"`
	FeeRatePercent    string             `json:"fee_rate_percent"`
	Status            enums.EscrowStatus `json:"status"`
	HeldAt            time.Time          `json:"held_at"`
	ReleasedAt        *time.Time         `json:"released_at,omitempty"`
	ReleaseReason     *string            `json:"release_reason,omitempty"`
	DisputedAt        *time.Time         `json:"disputed_at,omitempty"`
	SettledByRole     *enums.ActorRole   `json:"settled_by_role,omitempty"`
}

func toEscrowResponse(e *models.EscrowTransaction) escrowResponse {
	return escrowResponse{
		ID:                e.ID,
		OrderID:           e.OrderID,
		BuyerID:           e.BuyerID,
		VendorID:          e.VendorID,
		Currency:          e.Currency,
		AmountCents:       e.AmountCents,
		PlatformFeeCents:  e.PlatformFeeCents,
		VendorAmountCents: e.VendorAmountCents,
		FeeRatePercent:    e.FeeRatePercent.String(),
		Status:            e.Status,
		HeldAt:            e.HeldAt,
		ReleasedAt:        e.ReleasedAt,
		ReleaseReason:     e.ReleaseReason,
		DisputedAt:        e.DisputedAt,
		SettledByRole:     e.SettledByRole,
	}
}

type walletEntryResponse struct {
	ID                uuid.UUID                 `json:"id"`
	Sequence          int64                     `json:"sequence"`
	Type              enums.WalletEntryType     `json:"type"`
	AmountCents       int64                     `json:"amount_cents"`
	BalanceAfterCents int64                     `json:"balance_after_cents"`
	ReferenceType     enums.WalletReferenceType `json:"reference_type"`
	ReferenceID       uuid.UUID                 `json:"reference_id"`
	Status            enums.WalletEntryStatus   `json:"status"`
	Note              *string                   `json:"note,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
}

func toWalletEntryResponse(e *models.WalletTransaction) walletEntryResponse {
	return walletEntryResponse{
		ID:                e.ID,
		Sequence:          e.Sequence,
		Type:              e.Type,
		AmountCents:       e.AmountCents,
		BalanceAfterCents: e.BalanceAfterCents,
		ReferenceType:     e.ReferenceType,
		ReferenceID:       e.ReferenceID,
		Status:            e.Status,
		Note:              e.Note,
		CreatedAt:         e.CreatedAt,
	}
}

type payoutResponse struct {
	ID                uuid.UUID          `json:"id"`
	VendorID          uuid.UUID          `json:"vendor_id"`
	AmountCents       int64              `json:"amount_cents"`
	Currency          string             `json:"currency"`
	Destination       json.RawMessage    `json:"destination"`
	Status            enums.PayoutStatus `json:"status"`
	Reference         string             `json:"reference"`
	ProviderReference *string            `json:"provider_reference,omitempty"`
	FailureReason     *string            `json:"failure_reason,omitempty"`
	SubmittedAt       *time.Time         `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	FailedAt          *time.Time         `json:"failed_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

func toPayoutResponse(p *models.Payout) payoutResponse {
	return payoutResponse{
		ID:                p.ID,
		VendorID:          p.VendorID,
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		Destination:       p.Destination,
		Status:            p.Status,
		Reference:         p.Reference,
		ProviderReference: p.ProviderReference,
		FailureReason:     p.FailureReason,
		SubmittedAt:       p.SubmittedAt,
		CompletedAt:       p.CompletedAt,
		FailedAt:          p.FailedAt,
		CreatedAt:         p.CreatedAt,
	}
}

type disputeResponse struct {
	ID          uuid.UUID             `json:"id"`
	EscrowID    uuid.UUID             `json:"escrow_id"`
	OrderID     uuid.UUID             `json:"order_id"`
	FiledByType enums.DisputeParty    `json:"filed_by_type"`
	FiledBy     uuid.UUID             `json:"filed_by"`
	Reason      string                `json:"reason"`
	Status      enums.DisputeStatus   `json:"status"`
	Outcome     *enums.DisputeOutcome `json:"outcome,omitempty"`
	Resolution  *string               `json:"resolution,omitempty"`
	ResolvedAt  *time.Time            `json:"resolved_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func toDisputeResponse(d *models.Dispute) disputeResponse {
	return disputeResponse{
		ID:          d.ID,
		EscrowID:    d.EscrowID,
		OrderID:     d.OrderID,
		FiledByType: d.FiledByType,
		FiledBy:     d.FiledBy,
		Reason:      d.Reason,
		Status:      d.Status,
		Outcome:     d.Outcome,
		Resolution:  d.Resolution,
		ResolvedAt:  d.ResolvedAt,
		CreatedAt:   d.CreatedAt,
	}
}

type deliveryEventResponse struct {
	ID            uuid.UUID             `json:"id"`
	DeliveryID    string                `json:"delivery_id"`
	Status        enums.DeliveryStatus  `json:"status"`
	Source        enums.DeliverySource  `json:"source"`
	Outcome       enums.DeliveryOutcome `json:"outcome"`
	RecipientName *string               `json:"recipient_name,omitempty"`
	PhotoRef      *string               `json:"photo_ref,omitempty"`
	OccurredAt    time.Time             `json:"occurred_at"`
}

func toDeliveryEventResponse(e *models.DeliveryStatusEvent) deliveryEventResponse {
	return deliveryEventResponse{
		ID:            e.ID,
		DeliveryID:    e.DeliveryID,
		Status:        e.Status,
		Source:        e.Source,
		Outcome:       e.Outcome,
		RecipientName: e.RecipientName,
		PhotoRef:      e.PhotoRef,
		OccurredAt:    e.OccurredAt,
	}
}
