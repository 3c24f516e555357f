package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// WalletTransaction is one append-only line of a vendor wallet. Sequence orders
// the vendor's entries and BalanceAfterCents chains them.
type WalletTransaction struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID          uuid.UUID                 `gorm:"column:vendor_id;type:uuid;not null"`
	Sequence          int64                     `gorm:"column:sequence;not null"`
	Type              enums.WalletEntryType     `gorm:"column:type;type:wallet_entry_type_enum;not null"`
	AmountCents       int64                     `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int64                     `gorm:"column:balance_after_cents;not null"`
	ReferenceType     enums.WalletReferenceType `gorm:"column:reference_type;type:wallet_reference_type_enum;not null"`
	ReferenceID       uuid.UUID                 `gorm:"column:reference_id;type:uuid;not null"`
	Status            enums.WalletEntryStatus   `gorm:"column:status;type:wallet_entry_status_enum;not null"`
	Note              *string                   `gorm:"column:note"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }
