package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Repository persists vendor wallets and their ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	LockVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	AdvanceWallet(ctx context.Context, vendorID uuid.UUID, expectedSequence, nextSequence, balanceCents int64) (bool, error)
	InsertEntry(ctx context.Context, entry *models.WalletTransaction) error
	FindEntryByReference(ctx context.Context, refType enums.WalletReferenceType, refID uuid.UUID, entryType enums.WalletEntryType) (*models.WalletTransaction, error)
	FindVendorEntry(ctx context.Context, vendorID, entryID uuid.UUID) (*models.WalletTransaction, error)
	ListEntries(ctx context.Context, vendorID uuid.UUID, limit int, beforeSequence int64) ([]models.WalletTransaction, error)
	ListAllEntries(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error)
	ListVendorIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("id = ?", vendorID).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// LockVendor reads the vendor row with SELECT ... FOR UPDATE. Callers must be
// inside a transaction for the lock to be held.
func (r *repository) LockVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", vendorID).
		First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// AdvanceWallet moves the cached balance and sequence forward only if no other
// writer advanced the sequence since it was read.
func (r *repository) AdvanceWallet(ctx context.Context, vendorID uuid.UUID, expectedSequence, nextSequence, balanceCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ? AND wallet_sequence = ?", vendorID, expectedSequence).
		Updates(map[string]any{
			"wallet_balance_cents": balanceCents,
			"wallet_sequence":      nextSequence,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) InsertEntry(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntryByReference(ctx context.Context, refType enums.WalletReferenceType, refID uuid.UUID, entryType enums.WalletEntryType) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND type = ?", refType, refID, entryType).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindVendorEntry(ctx context.Context, vendorID, entryID uuid.UUID) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", entryID, vendorID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEntries returns the newest entries first. A positive beforeSequence
// continues a listing below that sequence.
func (r *repository) ListEntries(ctx context.Context, vendorID uuid.UUID, limit int, beforeSequence int64) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID)
	if beforeSequence > 0 {
		query = query.Where("sequence < ?", beforeSequence)
	}
	var entries []models.WalletTransaction
	if err := query.Order("sequence DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListAllEntries(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListVendorIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
