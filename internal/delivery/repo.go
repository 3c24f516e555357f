package delivery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Repository stores the delivery history consumed from couriers and vendors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.DeliveryStatusEvent) error
	FindByReplayKey(ctx context.Context, deliveryID string, status enums.DeliveryStatus) (*models.DeliveryStatusEvent, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusEvent, error)
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

func (r *repository) Insert(ctx context.Context, event *models.DeliveryStatusEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByReplayKey(ctx context.Context, deliveryID string, status enums.DeliveryStatus) (*models.DeliveryStatusEvent, error) {
	var event models.DeliveryStatusEvent
	if err := r.db.WithContext(ctx).
		Where("delivery_id = ? AND status = ?", deliveryID, status).
		First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusEvent, error) {
	var events []models.DeliveryStatusEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC, created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
