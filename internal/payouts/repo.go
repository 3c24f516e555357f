package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByReference(ctx context.Context, vendorID uuid.UUID, reference string) (*models.Payout, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.PayoutStatus, updates map[string]any) (bool, error)
	RecordDispatchAttempt(ctx context.Context, id uuid.UUID) error
	ListByVendor(ctx context.Context, vendorID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Payout, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Payout, error)
	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByReference(ctx context.Context, vendorID uuid.UUID, reference string) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND reference = ?", vendorID, reference).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

// UpdateStatus applies updates only while the payout is still in from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.PayoutStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RecordDispatchAttempt(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		UpdateColumn("dispatch_attempts", gorm.Expr("dispatch_attempts + 1")).Error
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var payouts []models.Payout
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PayoutStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("id = ?", vendorID).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}
