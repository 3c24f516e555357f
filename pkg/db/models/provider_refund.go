package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderRefund records the buyer refund submitted for a refunded escrow.
type ProviderRefund struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowID         uuid.UUID `gorm:"column:escrow_id;type:uuid;not null;uniqueIndex"`
	AmountCents      int64     `gorm:"column:amount_cents;not null"`
	Currency         string    `gorm:"column:currency;not null"`
	Provider         string    `gorm:"column:provider;not null"`
	ProviderRefundID string    `gorm:"column:provider_refund_id;not null"`
	ProviderStatus   *string   `gorm:"column:provider_status"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProviderRefund) TableName() string { return "provider_refunds" }
