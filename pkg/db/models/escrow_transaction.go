package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// EscrowTransaction holds one order's buyer payment until it is released to the
// vendor wallet or refunded. Rows are never deleted.
type EscrowTransaction struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID           uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	VendorID          uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null"`
	Currency          string             `gorm:"column:currency;not null"`
	PaymentReference  *string            `gorm:"column:payment_reference"`
	AmountCents       int64              `gorm:"column:amount_cents;not null"`
	PlatformFeeCents  int64              `gorm:"column:platform_fee_cents;not null"`
	VendorAmountCents int64              `gorm:"column:vendor_amount_cents;not null"`
	FeeRatePercent    decimal.Decimal    `gorm:"column:fee_rate_percent;type:numeric(7,4);not null"`
	Status            enums.EscrowStatus `gorm:"column:status;type:escrow_status_enum;not null"`
	HeldAt            time.Time          `gorm:"column:held_at;not null"`
	ReleasedAt        *time.Time         `gorm:"column:released_at"`
	ReleaseReason     *string            `gorm:"column:release_reason"`
	DisputedAt        *time.Time         `gorm:"column:disputed_at"`
	SettledBy         *uuid.UUID         `gorm:"column:settled_by;type:uuid"`
	SettledByRole     *enums.ActorRole   `gorm:"column:settled_by_role"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (EscrowTransaction) TableName() string { return "escrow_transactions" }
