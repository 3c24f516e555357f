// Package payouts moves vendor wallet funds to external accounts. The wallet
// debit and the pending payout commit together; the provider is called after.
package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

const maxReferenceLength = 128

type Service interface {
	RequestPayout(ctx context.Context, input RequestInput) (*models.Payout, error)
	Dispatch(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	DispatchPending(ctx context.Context, olderThan time.Time, limit int) (int, error)
	OnProviderCallback(ctx context.Context, input CallbackInput) (*models.Payout, error)
	RecordManualOutcome(ctx context.Context, input ManualOutcomeInput) (*models.Payout, error)
	Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[models.Payout], error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Destination is stored as jsonb on the payout. AccountID defaults to the
// vendor's connected payout account.
type Destination struct {
	AccountID    string `json:"account_id"`
	BankName     string `json:"bank_name,omitempty"`
	AccountName  string `json:"account_name,omitempty"`
	AccountLast4 string `json:"account_last4,omitempty"`
}

type RequestInput struct {
	VendorID    uuid.UUID
	AmountCents int64
	Destination Destination
	Reference   string
	Actor       types.Actor
}

// CallbackInput is a provider-reported payout outcome.
type CallbackInput struct {
	PayoutID          uuid.UUID
	Outcome           enums.PayoutOutcome
	ProviderReference string
	FailureReason     string
}

type ManualOutcomeInput struct {
	PayoutID          uuid.UUID
	Outcome           enums.PayoutOutcome
	ProviderReference string
	Note              string
	Actor             types.Actor
}

type ServiceParams struct {
	Repo           Repository
	Wallet         wallet.Service
	Outbox         outbox.Emitter
	TxRunner       txRunner
	Provider       Provider
	MinPayoutCents int64
	AutoDispatch   bool
	Logger         *logger.Logger
	Metrics        *metrics.SettlementMetrics
}

type service struct {
	repo           Repository
	wallet         wallet.Service
	outbox         outbox.Emitter
	txRunner       txRunner
	provider       Provider
	minPayoutCents int64
	autoDispatch   bool
	logg           *logger.Logger
	metrics        *metrics.SettlementMetrics
	now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:           params.Repo,
		wallet:         params.Wallet,
		outbox:         params.Outbox,
		txRunner:       params.TxRunner,
		provider:       params.Provider,
		minPayoutCents: params.MinPayoutCents,
		autoDispatch:   params.AutoDispatch,
		logg:           params.Logger,
		metrics:        params.Metrics,
		now:            time.Now,
	}, nil
}

// RequestPayout debits the wallet and records a pending payout atomically. A
// reused reference returns the payout created the first time.
func (s *service) RequestPayout(ctx context.Context, input RequestInput) (*models.Payout, error) {
	reference := strings.TrimSpace(input.Reference)
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if reference == "" || len(reference) > maxReferenceLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout reference is required").
			WithDetails(map[string]any{"max_length": maxReferenceLength})
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "payout amount must be positive")
	}

	ctx = context.WithoutCancel(ctx)
	if existing, err := s.existing(ctx, input.VendorID, reference, input.AmountCents); existing != nil || err != nil {
		return existing, err
	}

	vendor, err := s.repo.FindVendor(ctx, input.VendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	// An overdraft is reported as such even when the amount is also below the
	// minimum. ApplyEntry repeats the check under the wallet lock.
	if input.AmountCents > vendor.WalletBalanceCents {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low").
			WithDetails(map[string]any{
				"balance_cents":   vendor.WalletBalanceCents,
				"requested_cents": input.AmountCents,
			})
	}
	if input.AmountCents < s.minPayoutCents {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "payout below minimum").
			WithDetails(map[string]any{"min_payout_cents": s.minPayoutCents})
	}
	destination := input.Destination
	if strings.TrimSpace(destination.AccountID) == "" && vendor.PayoutAccountID != nil {
		destination.AccountID = *vendor.PayoutAccountID
	}
	if strings.TrimSpace(destination.AccountID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout destination account is required")
	}
	rawDestination, err := json.Marshal(destination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payout destination")
	}

	payout := &models.Payout{
		ID:          uuid.New(),
		VendorID:    vendor.ID,
		AmountCents: input.AmountCents,
		Currency:    vendor.Currency,
		Destination: rawDestination,
		Status:      enums.PayoutStatusPending,
		Reference:   reference,
		RequestedBy: input.Actor.IDPtr(),
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payout reference already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		if _, err := s.wallet.ApplyEntry(ctx, tx, wallet.EntryInput{
			VendorID:      payout.VendorID,
			Type:          enums.WalletEntryDebit,
			AmountCents:   -payout.AmountCents,
			ReferenceType: enums.WalletReferencePayout,
			ReferenceID:   payout.ID,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventPayoutRequested, payout, input.Actor)
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			if existing, lookupErr := s.existing(ctx, input.VendorID, reference, input.AmountCents); existing != nil || lookupErr != nil {
				return existing, lookupErr
			}
		}
		return nil, err
	}

	s.metrics.Payout(string(enums.PayoutStatusPending))
	s.logPayout(ctx, payout, "payout requested")

	if !s.autoDispatch || s.provider == nil {
		return payout, nil
	}
	dispatched, err := s.Dispatch(ctx, payout.ID)
	if err != nil {
		// The debit is committed; the dispatch job retries pending payouts.
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"payout_id": payout.ID.String()})
			s.logg.Warn(logCtx, "payout dispatch deferred: "+err.Error())
		}
		return payout, nil
	}
	return dispatched, nil
}

func (s *service) existing(ctx context.Context, vendorID uuid.UUID, reference string, amountCents int64) (*models.Payout, error) {
	payout, err := s.repo.FindByReference(ctx, vendorID, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payout reference")
	}
	if payout.AmountCents != amountCents {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout reference reused with a different amount").
			WithDetails(map[string]any{"payout_id": payout.ID.String()})
	}
	return payout, nil
}

// Dispatch submits a pending payout to the provider. Non-pending payouts are
// returned unchanged.
func (s *service) Dispatch(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if s.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, "payout provider not configured")
	}
	ctx = context.WithoutCancel(ctx)
	payout, err := s.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != enums.PayoutStatusPending {
		return payout, nil
	}

	var destination Destination
	if err := json.Unmarshal(payout.Destination, &destination); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payout destination")
	}
	if err := s.repo.RecordDispatchAttempt(ctx, payout.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispatch attempt")
	}

	result, err := s.provider.Submit(ctx, SubmitRequest{
		PayoutID:    payout.ID,
		VendorID:    payout.VendorID,
		AmountCents: payout.AmountCents,
		Currency:    payout.Currency,
		Destination: destination,
	})
	s.metrics.ProviderCall(s.provider.Name(), "payout_create", err)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "submit payout")
	}

	now := s.now().UTC()
	advanced, err := s.repo.UpdateStatus(ctx, payout.ID, enums.PayoutStatusPending, map[string]any{
		"status":             enums.PayoutStatusProcessing,
		"provider_reference": result.ProviderReference,
		"submitted_at":       now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout processing")
	}
	if !advanced {
		// A callback settled the payout before the submit response arrived.
		return s.Get(ctx, payout.ID)
	}

	ref := result.ProviderReference
	payout.Status = enums.PayoutStatusProcessing
	payout.ProviderReference = &ref
	payout.SubmittedAt = &now
	payout.DispatchAttempts++
	s.metrics.Payout(string(enums.PayoutStatusProcessing))
	s.logPayout(ctx, payout, "payout submitted")
	return payout, nil
}

// DispatchPending resubmits payouts that stayed pending past olderThan.
func (s *service) DispatchPending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	pending, err := s.repo.ListPendingOlderThan(ctx, olderThan, pagination.NormalizeLimit(limit))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payouts")
	}
	var (
		dispatched int
		errs       error
	)
	for _, payout := range pending {
		if ctx.Err() != nil {
			return dispatched, multierr.Append(errs, ctx.Err())
		}
		updated, err := s.Dispatch(ctx, payout.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payout %s: %w", payout.ID, err))
			continue
		}
		if updated.Status != enums.PayoutStatusPending {
			dispatched++
		}
	}
	return dispatched, errs
}

// OnProviderCallback settles a payout. A failure restores the debited funds
// with a compensating credit in the same transaction. Terminal payouts are
// left untouched.
func (s *service) OnProviderCallback(ctx context.Context, input CallbackInput) (*models.Payout, error) {
	return s.settle(ctx, input, types.SystemActor())
}

func (s *service) RecordManualOutcome(ctx context.Context, input ManualOutcomeInput) (*models.Payout, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may record payout outcomes")
	}
	note := strings.TrimSpace(input.Note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required for manual payout outcomes")
	}
	payout, err := s.settle(ctx, CallbackInput{
		PayoutID:          input.PayoutID,
		Outcome:           input.Outcome,
		ProviderReference: input.ProviderReference,
		FailureReason:     note,
	}, input.Actor)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"admin_id":  input.Actor.ID.String(),
			"outcome":   input.Outcome,
		})
		s.logg.Warn(logCtx, "manual payout outcome recorded")
	}
	return payout, nil
}

func (s *service) settle(ctx context.Context, input CallbackInput, actor types.Actor) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if !input.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payout outcome %q", input.Outcome))
	}

	ctx = context.WithoutCancel(ctx)
	var (
		result  *models.Payout
		changed bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.LockByID(ctx, input.PayoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
		}
		if payout.Status.IsTerminal() {
			result = payout
			return nil
		}

		now := s.now().UTC()
		updates := map[string]any{}
		if ref := strings.TrimSpace(input.ProviderReference); ref != "" {
			updates["provider_reference"] = ref
			payout.ProviderReference = &ref
		}
		eventType := enums.EventPayoutCompleted
		switch input.Outcome {
		case enums.PayoutOutcomeSuccess:
			updates["status"] = enums.PayoutStatusCompleted
			updates["completed_at"] = now
			payout.CompletedAt = &now
		case enums.PayoutOutcomeFailure:
			reason := strings.TrimSpace(input.FailureReason)
			if reason == "" {
				reason = "provider reported failure"
			}
			updates["status"] = enums.PayoutStatusFailed
			updates["failed_at"] = now
			updates["failure_reason"] = reason
			payout.FailedAt = &now
			payout.FailureReason = &reason
			eventType = enums.EventPayoutFailed
		}

		advanced, err := repo.UpdateStatus(ctx, payout.ID, payout.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout status")
		}
		if !advanced {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "payout changed concurrently")
		}
		payout.Status = updates["status"].(enums.PayoutStatus)

		if payout.Status == enums.PayoutStatusFailed {
			if _, err := s.wallet.ApplyEntry(ctx, tx, wallet.EntryInput{
				VendorID:      payout.VendorID,
				Type:          enums.WalletEntryCredit,
				AmountCents:   payout.AmountCents,
				ReferenceType: enums.WalletReferencePayout,
				ReferenceID:   payout.ID,
			}); err != nil {
				return err
			}
		}
		if err := s.emit(ctx, tx, eventType, payout, actor); err != nil {
			return err
		}
		result = payout
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"payout_id": result.ID.String(),
				"status":    result.Status,
				"outcome":   input.Outcome,
			})
			s.logg.Info(logCtx, "payout already settled, callback ignored")
		}
		return result, nil
	}
	s.metrics.Payout(string(result.Status))
	s.logPayout(ctx, result, "payout settled")
	return result, nil
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[models.Payout], error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	payouts, err := s.repo.ListByVendor(ctx, vendorID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	page := pagination.BuildPage(payouts, params.Limit, func(p models.Payout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func (s *service) logPayout(ctx context.Context, payout *models.Payout, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payout_id":    payout.ID.String(),
		"vendor_id":    payout.VendorID.String(),
		"status":       payout.Status,
		"amount_cents": payout.AmountCents,
	})
	s.logg.Info(logCtx, msg)
}
