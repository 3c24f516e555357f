package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/internal/fees"
	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// Service owns the escrow lifecycle. Every status change goes through the
// transition table in enums.
type Service interface {
	CreateHold(ctx context.Context, input HoldInput) (*models.EscrowTransaction, error)
	Release(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	Refund(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	MarkDisputed(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	ResolveDispute(ctx context.Context, escrowID uuid.UUID, outcome enums.DisputeOutcome, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	ForceRelease(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	ForceRefund(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	GetByID(ctx context.Context, escrowID uuid.UUID) (*models.EscrowTransaction, error)

	// The Tx variants join a transaction owned by the caller so disputes and
	// delivery events commit together with the escrow change.
	ReleaseTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	MarkDisputedTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	ResolveDisputeTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, outcome enums.DisputeOutcome, reason string, actor types.Actor) (*models.EscrowTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// HoldInput is a confirmed buyer payment for one order.
type HoldInput struct {
	OrderID          uuid.UUID
	BuyerID          uuid.UUID
	VendorID         uuid.UUID
	AmountCents      int64
	Currency         string
	PaymentReference string
	Actor            types.Actor
}

type ServiceParams struct {
	Repo            Repository
	Wallet          wallet.Service
	Outbox          outbox.Emitter
	TxRunner        txRunner
	FeeRate         decimal.Decimal
	DefaultCurrency string
	Logger          *logger.Logger
	Metrics         *metrics.SettlementMetrics
}

type service struct {
	repo            Repository
	wallet          wallet.Service
	outbox          outbox.Emitter
	txRunner        txRunner
	feeRate         decimal.Decimal
	defaultCurrency string
	logg            *logger.Logger
	metrics         *metrics.SettlementMetrics
	now             func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("escrow repository required")
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
	currency := strings.ToUpper(strings.TrimSpace(params.DefaultCurrency))
	if currency == "" {
		currency = string(enums.CurrencyNGN)
	}
	return &service{
		repo:            params.Repo,
		wallet:          params.Wallet,
		outbox:          params.Outbox,
		txRunner:        params.TxRunner,
		feeRate:         params.FeeRate,
		defaultCurrency: currency,
		logg:            params.Logger,
		metrics:         params.Metrics,
		now:             time.Now,
	}, nil
}

func (s *service) CreateHold(ctx context.Context, input HoldInput) (*models.EscrowTransaction, error) {
	if input.OrderID == uuid.Nil || input.BuyerID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order, buyer and vendor ids are required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if !enums.Currency(currency).IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	split, err := fees.ComputeSplit(input.AmountCents, s.feeRate)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if existing, err := s.repo.FindByOrderID(ctx, input.OrderID); err == nil {
		return nil, duplicateEscrow(input.OrderID, existing.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing escrow")
	}

	exists, err := s.repo.VendorExists(ctx, input.VendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
	}

	now := s.now().UTC()
	escrow := &models.EscrowTransaction{
		ID:                uuid.New(),
		OrderID:           input.OrderID,
		BuyerID:           input.BuyerID,
		VendorID:          input.VendorID,
		Currency:          currency,
		AmountCents:       split.AmountCents,
		PlatformFeeCents:  split.PlatformFeeCents,
		VendorAmountCents: split.VendorAmountCents,
		FeeRatePercent:    split.RatePercent,
		Status:            enums.EscrowStatusHeld,
		HeldAt:            now,
	}
	if ref := strings.TrimSpace(input.PaymentReference); ref != "" {
		escrow.PaymentReference = &ref
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, escrow); err != nil {
			if db.IsUniqueViolation(err, "") {
				return duplicateEscrow(input.OrderID, uuid.Nil)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert escrow")
		}
		return s.emit(ctx, tx, enums.EventEscrowHeld, escrow, "", input.Actor)
	})
	if err != nil {
		s.metrics.EscrowTransition("hold", resultLabel(err))
		return nil, err
	}

	s.metrics.EscrowTransition("hold", "ok")
	s.logTransition(ctx, escrow, "hold", "escrow hold created")
	return escrow, nil
}

func duplicateEscrow(orderID, escrowID uuid.UUID) error {
	details := map[string]any{"order_id": orderID.String()}
	if escrowID != uuid.Nil {
		details["escrow_id"] = escrowID.String()
	}
	return pkgerrors.New(pkgerrors.CodeDuplicateEscrow, "escrow already exists for order").WithDetails(details)
}

func (s *service) Release(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	return s.run(ctx, escrowID, enums.EscrowActionRelease, reason, actor)
}

func (s *service) Refund(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	return s.run(ctx, escrowID, enums.EscrowActionRefund, reason, actor)
}

func (s *service) MarkDisputed(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	return s.run(ctx, escrowID, enums.EscrowActionDispute, reason, actor)
}

func (s *service) ResolveDispute(ctx context.Context, escrowID uuid.UUID, outcome enums.DisputeOutcome, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	if !outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid dispute outcome %q", outcome))
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may resolve disputes")
	}
	return s.run(ctx, escrowID, outcome.EscrowAction(), reason, actor)
}

func (s *service) ForceRelease(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may force a release")
	}
	return s.run(ctx, escrowID, enums.EscrowActionRelease, reason, actor)
}

func (s *service) ForceRefund(ctx context.Context, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may force a refund")
	}
	return s.run(ctx, escrowID, enums.EscrowActionRefund, reason, actor)
}

func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	return s.applyRecorded(ctx, tx, escrowID, enums.EscrowActionRelease, reason, actor)
}

func (s *service) MarkDisputedTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	return s.applyRecorded(ctx, tx, escrowID, enums.EscrowActionDispute, reason, actor)
}

func (s *service) ResolveDisputeTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, outcome enums.DisputeOutcome, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	if !outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid dispute outcome %q", outcome))
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may resolve disputes")
	}
	return s.applyRecorded(ctx, tx, escrowID, outcome.EscrowAction(), reason, actor)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	escrow, err := s.repo.FindByOrderID(ctx, orderID)
	return escrow, notFoundOr(err, "load escrow by order")
}

func (s *service) GetByID(ctx context.Context, escrowID uuid.UUID) (*models.EscrowTransaction, error) {
	if escrowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow id is required")
	}
	escrow, err := s.repo.FindByID(ctx, escrowID)
	return escrow, notFoundOr(err, "load escrow")
}

func notFoundOr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// run executes one transition in its own transaction. The transaction is
// detached from caller cancellation so it always reaches commit or rollback.
func (s *service) run(ctx context.Context, escrowID uuid.UUID, action enums.EscrowAction, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	ctx = context.WithoutCancel(ctx)
	var escrow *models.EscrowTransaction
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.apply(ctx, tx, escrowID, action, reason, actor)
		if err != nil {
			return err
		}
		escrow = applied
		return nil
	})
	s.metrics.EscrowTransition(string(action), resultLabel(err))
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, escrow, action.String(), "escrow transitioned")
	return escrow, nil
}

func (s *service) applyRecorded(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, action enums.EscrowAction, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow transition requires a transaction")
	}
	escrow, err := s.apply(ctx, tx, escrowID, action, reason, actor)
	s.metrics.EscrowTransition(string(action), resultLabel(err))
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, escrow, action.String(), "escrow transitioned")
	return escrow, nil
}

// apply locks the escrow, checks the transition table, writes the new status
// under a status precondition and, on release, credits the vendor wallet.
func (s *service) apply(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, action enums.EscrowAction, reason string, actor types.Actor) (*models.EscrowTransaction, error) {
	reason = strings.TrimSpace(reason)
	if escrowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow id is required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	repo := s.repo.WithTx(tx)
	escrow, err := repo.LockByID(ctx, escrowID)
	if err != nil {
		return nil, notFoundOr(err, "lock escrow")
	}

	from := escrow.Status
	next, ok := enums.NextEscrowStatus(from, action)
	if !ok {
		return nil, transitionError(escrow, action)
	}

	now := s.now().UTC()
	updates := map[string]any{
		"status":     next,
		"updated_at": now,
	}
	switch next {
	case enums.EscrowStatusReleased, enums.EscrowStatusRefunded:
		updates["released_at"] = now
		updates["release_reason"] = reason
		updates["settled_by"] = actor.IDPtr()
		updates["settled_by_role"] = actor.RolePtr()
	case enums.EscrowStatusDisputed:
		updates["disputed_at"] = now
	}

	moved, err := repo.UpdateStatus(ctx, escrow.ID, from, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrency, "escrow changed concurrently").
			WithDetails(map[string]any{"escrow_id": escrow.ID.String()})
	}

	escrow.Status = next
	escrow.UpdatedAt = now
	switch next {
	case enums.EscrowStatusReleased, enums.EscrowStatusRefunded:
		escrow.ReleasedAt = &now
		escrow.ReleaseReason = &reason
		escrow.SettledBy = actor.IDPtr()
		escrow.SettledByRole = actor.RolePtr()
	case enums.EscrowStatusDisputed:
		escrow.DisputedAt = &now
	}

	if next == enums.EscrowStatusReleased && escrow.VendorAmountCents > 0 {
		if _, err := s.wallet.ApplyEntry(ctx, tx, wallet.EntryInput{
			VendorID:      escrow.VendorID,
			Type:          enums.WalletEntryCredit,
			AmountCents:   escrow.VendorAmountCents,
			ReferenceType: enums.WalletReferenceEscrow,
			ReferenceID:   escrow.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.emit(ctx, tx, eventFor(next), escrow, reason, actor); err != nil {
		return nil, err
	}
	if from == enums.EscrowStatusDisputed && action == enums.EscrowActionRefund {
		if err := s.closeDisputes(ctx, tx, escrow, reason, actor, now); err != nil {
			return nil, err
		}
	}
	return escrow, nil
}

// closeDisputes resolves the disputes left open by a refund that bypassed
// dispute resolution, recording the refund reason as their resolution.
func (s *service) closeDisputes(ctx context.Context, tx *gorm.DB, escrow *models.EscrowTransaction, reason string, actor types.Actor, now time.Time) error {
	outcome := enums.DisputeOutcomeRefund
	closed, err := s.repo.WithTx(tx).CloseOpenDisputes(ctx, escrow.ID, map[string]any{
		"outcome":     outcome,
		"resolution":  reason,
		"resolved_by": actor.IDPtr(),
		"resolved_at": now,
		"updated_at":  now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close open disputes")
	}
	for i := range closed {
		dispute := &closed[i]
		dispute.Status = enums.DisputeStatusResolved
		dispute.Outcome = &outcome
		dispute.Resolution = &reason
		dispute.ResolvedBy = actor.IDPtr()
		dispute.ResolvedAt = &now
		if err := s.emitDisputeClosed(ctx, tx, dispute, actor, now); err != nil {
			return err
		}
	}
	return nil
}

func transitionError(escrow *models.EscrowTransaction, action enums.EscrowAction) error {
	releasing := action == enums.EscrowActionRelease || action == enums.EscrowActionResolveRelease
	if releasing && escrow.Status == enums.EscrowStatusReleased {
		return pkgerrors.New(pkgerrors.CodeAlreadyReleased, "escrow already released")
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot %s an escrow in status %s", action, escrow.Status)).
		WithDetails(map[string]any{
			"escrow_id": escrow.ID.String(),
			"status":    escrow.Status,
			"action":    action,
		})
}

func eventFor(status enums.EscrowStatus) enums.OutboxEventType {
	switch status {
	case enums.EscrowStatusReleased:
		return enums.EventEscrowReleased
	case enums.EscrowStatusRefunded:
		return enums.EventEscrowRefunded
	case enums.EscrowStatusDisputed:
		return enums.EventEscrowDisputed
	default:
		return enums.EventEscrowHeld
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}

func (s *service) logTransition(ctx context.Context, escrow *models.EscrowTransaction, action, msg string) {
	if s.logg == nil || escrow == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"escrow_id":           escrow.ID.String(),
		"order_id":            escrow.OrderID.String(),
		"vendor_id":           escrow.VendorID.String(),
		"action":              action,
		"status":              escrow.Status,
		"vendor_amount_cents": escrow.VendorAmountCents,
	})
	s.logg.Info(logCtx, msg)
}
