package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// DeliveryStatusEvent is the recorded history of courier updates for an order.
// (delivery_id, status) is unique and doubles as the replay key.
type DeliveryStatusEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID    string                `gorm:"column:delivery_id;not null"`
	OrderID       uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	Status        enums.DeliveryStatus  `gorm:"column:status;not null"`
	Source        enums.DeliverySource  `gorm:"column:source;type:delivery_source_enum;not null"`
	Outcome       enums.DeliveryOutcome `gorm:"column:outcome;type:delivery_outcome_enum;not null"`
	RecipientName *string               `gorm:"column:recipient_name"`
	PhotoRef      *string               `gorm:"column:photo_ref"`
	OccurredAt    time.Time             `gorm:"column:occurred_at;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (DeliveryStatusEvent) TableName() string { return "delivery_status_events" }
