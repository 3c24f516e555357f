package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is the settlement view of a marketplace seller. The wallet columns are
// written only by the wallet ledger, in the same transaction as the entry they summarize.
type Vendor struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string    `gorm:"column:name;not null"`
	Currency           string    `gorm:"column:currency;not null"`
	PayoutAccountID    *string   `gorm:"column:payout_account_id"`
	WalletBalanceCents int64     `gorm:"column:wallet_balance_cents;not null;default:0"`
	WalletSequence     int64     `gorm:"column:wallet_sequence;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vendor) TableName() string { return "vendors" }
