package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// Service is the only path that changes a vendor's balance.
type Service interface {
	ApplyEntry(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletTransaction, error)
	Balance(ctx context.Context, vendorID uuid.UUID) (*BalanceView, error)
	ListHistory(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[models.WalletTransaction], error)
	VerifyChain(ctx context.Context, vendorID uuid.UUID) (*Reconciliation, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.WalletTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EntryInput describes one signed ledger line. Credits are positive, debits
// negative, adjustments either but never zero.
type EntryInput struct {
	VendorID      uuid.UUID
	Type          enums.WalletEntryType
	AmountCents   int64
	ReferenceType enums.WalletReferenceType
	ReferenceID   uuid.UUID
	Note          *string
}

// AdjustInput is an admin correction to a vendor wallet.
type AdjustInput struct {
	VendorID    uuid.UUID
	AmountCents int64
	Note        string
	Actor       types.Actor
}

// BalanceView is the cached wallet balance as exposed to vendors.
type BalanceView struct {
	VendorID     uuid.UUID `json:"vendor_id"`
	Currency     string    `json:"currency"`
	BalanceCents int64     `json:"balance_cents"`
	LastSequence int64     `json:"last_sequence"`
}

type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
}

type service struct {
	repo     Repository
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		txRunner: params.TxRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// ApplyEntry appends an entry inside the caller's transaction. The vendor row
// is locked first so balance_after is computed from the committed balance.
func (s *service) ApplyEntry(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet entries require a transaction")
	}
	if err := validateEntry(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	vendor, err := repo.LockVendor(ctx, input.VendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock vendor wallet")
	}

	balanceAfter := vendor.WalletBalanceCents + input.AmountCents
	if balanceAfter < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low").
			WithDetails(map[string]any{
				"balance_cents":   vendor.WalletBalanceCents,
				"requested_cents": -input.AmountCents,
			})
	}

	entry := &models.WalletTransaction{
		ID:                uuid.New(),
		VendorID:          vendor.ID,
		Sequence:          vendor.WalletSequence + 1,
		Type:              input.Type,
		AmountCents:       input.AmountCents,
		BalanceAfterCents: balanceAfter,
		ReferenceType:     input.ReferenceType,
		ReferenceID:       input.ReferenceID,
		Status:            enums.WalletEntryStatusCompleted,
		Note:              input.Note,
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "wallet entry already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet entry")
	}

	advanced, err := repo.AdvanceWallet(ctx, vendor.ID, vendor.WalletSequence, entry.Sequence, balanceAfter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cached wallet balance")
	}
	if !advanced {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrency, "wallet advanced concurrently")
	}

	s.metrics.WalletEntry(string(entry.Type))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"vendor_id":      entry.VendorID.String(),
			"sequence":       entry.Sequence,
			"entry_type":     entry.Type,
			"amount_cents":   entry.AmountCents,
			"balance_after":  entry.BalanceAfterCents,
			"reference_type": entry.ReferenceType,
			"reference_id":   entry.ReferenceID.String(),
		})
		s.logg.Info(logCtx, "wallet entry applied")
	}
	return entry, nil
}

func validateEntry(input EntryInput) error {
	if input.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if input.ReferenceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}
	if !input.ReferenceType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reference type %q", input.ReferenceType))
	}
	switch input.Type {
	case enums.WalletEntryCredit:
		if input.AmountCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidAmount, "credits must be positive")
		}
	case enums.WalletEntryDebit:
		if input.AmountCents >= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidAmount, "debits must be negative")
		}
	case enums.WalletEntryAdjustment:
		if input.AmountCents == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidAmount, "adjustments must be non-zero")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet entry type %q", input.Type))
	}
	return nil
}

func (s *service) Balance(ctx context.Context, vendorID uuid.UUID) (*BalanceView, error) {
	vendor, err := s.findVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return &BalanceView{
		VendorID:     vendor.ID,
		Currency:     vendor.Currency,
		BalanceCents: vendor.WalletBalanceCents,
		LastSequence: vendor.WalletSequence,
	}, nil
}

func (s *service) ListHistory(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[models.WalletTransaction], error) {
	if _, err := s.findVendor(ctx, vendorID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var before int64
	if cursor != nil {
		anchor, err := s.repo.FindVendorEntry(ctx, vendorID, cursor.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "cursor does not match a wallet entry")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve wallet cursor")
		}
		before = anchor.Sequence
	}

	entries, err := s.repo.ListEntries(ctx, vendorID, pagination.LimitWithBuffer(params.Limit), before)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet entries")
	}
	page := pagination.BuildPage(entries, params.Limit, func(entry models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: entry.CreatedAt, ID: entry.ID}
	})
	return &page, nil
}

// Adjust applies an admin correction. The balance may not go negative.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.WalletTransaction, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may adjust wallets")
	}
	if input.Note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment note is required")
	}

	note := input.Note
	var entry *models.WalletTransaction
	err := s.txRunner.WithTx(context.WithoutCancel(ctx), func(tx *gorm.DB) error {
		applied, err := s.ApplyEntry(ctx, tx, EntryInput{
			VendorID:      input.VendorID,
			Type:          enums.WalletEntryAdjustment,
			AmountCents:   input.AmountCents,
			ReferenceType: enums.WalletReferenceManual,
			ReferenceID:   uuid.New(),
			Note:          &note,
		})
		if err != nil {
			return err
		}
		entry = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"vendor_id":    input.VendorID.String(),
			"admin_id":     input.Actor.ID.String(),
			"amount_cents": input.AmountCents,
		})
		s.logg.Warn(logCtx, "manual wallet adjustment recorded")
	}
	return entry, nil
}

func (s *service) findVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	vendor, err := s.repo.FindVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return vendor, nil
}
