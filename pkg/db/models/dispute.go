package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Dispute is a buyer or vendor claim against an escrow, resolved by an admin.
type Dispute struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowID    uuid.UUID             `gorm:"column:escrow_id;type:uuid;not null"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	FiledByType enums.DisputeParty    `gorm:"column:filed_by_type;type:dispute_party_enum;not null"`
	FiledBy     uuid.UUID             `gorm:"column:filed_by;type:uuid;not null"`
	Reason      string                `gorm:"column:reason;not null"`
	Status      enums.DisputeStatus   `gorm:"column:status;type:dispute_status_enum;not null"`
	Outcome     *enums.DisputeOutcome `gorm:"column:outcome"`
	Resolution  *string               `gorm:"column:resolution"`
	ResolvedBy  *uuid.UUID            `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt  *time.Time            `gorm:"column:resolved_at"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Dispute) TableName() string { return "disputes" }
