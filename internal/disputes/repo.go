package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	MarkResolved(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error)
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

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// MarkResolved closes an open dispute. It reports false when the dispute was
// no longer open.
func (r *repository) MarkResolved(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	updates["status"] = enums.DisputeStatusResolved
	res := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, enums.DisputeStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}
