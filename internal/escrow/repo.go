package escrow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Repository persists escrow transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, escrow *models.EscrowTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.EscrowStatus, updates map[string]any) (bool, error)
	VendorExists(ctx context.Context, vendorID uuid.UUID) (bool, error)
	CloseOpenDisputes(ctx context.Context, escrowID uuid.UUID, updates map[string]any) ([]models.Dispute, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, escrow *models.EscrowTransaction) error {
	return r.db.WithContext(ctx).Create(escrow).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	var escrow models.EscrowTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	var escrow models.EscrowTransaction
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	var escrow models.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

// UpdateStatus applies updates only while the row is still in status from.
// A false result means another writer transitioned the escrow first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.EscrowStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EscrowTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) VendorExists(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Vendor{}).Where("id = ?", vendorID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CloseOpenDisputes locks the escrow's open disputes and marks them resolved
// with updates. It returns the disputes it closed, as loaded before the update.
func (r *repository) CloseOpenDisputes(ctx context.Context, escrowID uuid.UUID, updates map[string]any) ([]models.Dispute, error) {
	var open []models.Dispute
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("escrow_id = ? AND status = ?", escrowID, enums.DisputeStatusOpen).
		Find(&open).Error; err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	updates["status"] = enums.DisputeStatusResolved
	if err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("escrow_id = ? AND status = ?", escrowID, enums.DisputeStatusOpen).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return open, nil
}
