package refunds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
)

// Repository persists the provider refunds issued for refunded escrows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.ProviderRefund) error
	FindByEscrow(ctx context.Context, escrowID uuid.UUID) (*models.ProviderRefund, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a refund repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.ProviderRefund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// FindByEscrow returns nil when no refund was recorded for the escrow.
func (r *repository) FindByEscrow(ctx context.Context, escrowID uuid.UUID) (*models.ProviderRefund, error) {
	var refund models.ProviderRefund
	err := r.db.WithContext(ctx).Where("escrow_id = ?", escrowID).First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}
