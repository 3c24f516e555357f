package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Payout is a vendor withdrawal from the wallet to an external account.
type Payout struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID          uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null"`
	AmountCents       int64              `gorm:"column:amount_cents;not null"`
	Currency          string             `gorm:"column:currency;not null"`
	Destination       json.RawMessage    `gorm:"column:destination;type:jsonb;not null"`
	Status            enums.PayoutStatus `gorm:"column:status;type:payout_status_enum;not null"`
	Reference         string             `gorm:"column:reference;not null"`
	ProviderReference *string            `gorm:"column:provider_reference"`
	FailureReason     *string            `gorm:"column:failure_reason"`
	RequestedBy       *uuid.UUID         `gorm:"column:requested_by;type:uuid"`
	DispatchAttempts  int                `gorm:"column:dispatch_attempts;not null;default:0"`
	SubmittedAt       *time.Time         `gorm:"column:submitted_at"`
	CompletedAt       *time.Time         `gorm:"column:completed_at"`
	FailedAt          *time.Time         `gorm:"column:failed_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payout) TableName() string { return "payouts" }
