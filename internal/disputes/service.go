package disputes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type Service interface {
	FileDispute(ctx context.Context, input FileInput) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID, viewer types.Actor) (*models.Dispute, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, viewer types.Actor) ([]models.Dispute, error)
}

type escrowDisputer interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	GetByID(ctx context.Context, escrowID uuid.UUID) (*models.EscrowTransaction, error)
	MarkDisputedTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, reason string, actor types.Actor) (*models.EscrowTransaction, error)
	ResolveDisputeTx(ctx context.Context, tx *gorm.DB, escrowID uuid.UUID, outcome enums.DisputeOutcome, reason string, actor types.Actor) (*models.EscrowTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// FileInput opens a dispute on an order. The filing party is derived from the
// actor's role.
type FileInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   types.Actor
}

type ResolveInput struct {
	DisputeID  uuid.UUID
	Outcome    enums.DisputeOutcome
	Resolution string
	Actor      types.Actor
}

type ServiceParams struct {
	Repo     Repository
	Escrow   escrowDisputer
	Outbox   outbox.Emitter
	TxRunner txRunner
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	escrow   escrowDisputer
	outbox   outbox.Emitter
	txRunner txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		escrow:   params.Escrow,
		outbox:   params.Outbox,
		txRunner: params.TxRunner,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// FileDispute freezes the escrow and records the claim in one transaction.
func (s *service) FileDispute(ctx context.Context, input FileInput) (*models.Dispute, error) {
	reason := strings.TrimSpace(input.Reason)
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason is required")
	}
	party, ok := partyFor(input.Actor)
	if !ok || input.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers, vendors and admins may file disputes")
	}

	ctx = context.WithoutCancel(ctx)
	escrow, err := s.escrow.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !canAccess(input.Actor, escrow) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}

	dispute := &models.Dispute{
		ID:          uuid.New(),
		EscrowID:    escrow.ID,
		OrderID:     escrow.OrderID,
		FiledByType: party,
		FiledBy:     input.Actor.ID,
		Reason:      reason,
		Status:      enums.DisputeStatusOpen,
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.escrow.MarkDisputedTx(ctx, tx, escrow.ID, reason, input.Actor); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, dispute); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "escrow already has an open dispute")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}
		return s.emit(ctx, tx, enums.EventDisputeFiled, dispute, input.Actor)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"dispute_id":    dispute.ID.String(),
			"escrow_id":     dispute.EscrowID.String(),
			"order_id":      dispute.OrderID.String(),
			"filed_by_type": dispute.FiledByType,
		})
		s.logg.Info(logCtx, "dispute filed")
	}
	return dispute, nil
}

// Resolve applies the admin decision to the escrow and closes the dispute
// atomically.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may resolve disputes")
	}
	resolution := strings.TrimSpace(input.Resolution)
	if resolution == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution is required")
	}
	if !input.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown dispute outcome %q", input.Outcome))
	}

	ctx = context.WithoutCancel(ctx)
	var resolved *models.Dispute
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := repo.LockByID(ctx, input.DisputeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock dispute")
		}
		if dispute.Status != enums.DisputeStatusOpen {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "dispute already resolved").
				WithDetails(map[string]any{"dispute_id": dispute.ID.String(), "status": dispute.Status})
		}

		if _, err := s.escrow.ResolveDisputeTx(ctx, tx, dispute.EscrowID, input.Outcome, resolution, input.Actor); err != nil {
			return err
		}

		now := s.now().UTC()
		adminID := input.Actor.ID
		outcome := input.Outcome
		ok, err := repo.MarkResolved(ctx, dispute.ID, map[string]any{
			"outcome":     outcome,
			"resolution":  resolution,
			"resolved_by": adminID,
			"resolved_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "dispute changed concurrently")
		}
		dispute.Status = enums.DisputeStatusResolved
		dispute.Outcome = &outcome
		dispute.Resolution = &resolution
		dispute.ResolvedBy = &adminID
		dispute.ResolvedAt = &now
		resolved = dispute
		return s.emit(ctx, tx, enums.EventDisputeResolved, dispute, input.Actor)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"dispute_id": resolved.ID.String(),
			"escrow_id":  resolved.EscrowID.String(),
			"outcome":    input.Outcome,
			"admin_id":   input.Actor.ID.String(),
		})
		s.logg.Info(logCtx, "dispute resolved")
	}
	return resolved, nil
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID, viewer types.Actor) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id is required")
	}
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if viewer.IsAdmin() || viewer.IsSystem() {
		return dispute, nil
	}
	escrow, err := s.escrow.GetByID(ctx, dispute.EscrowID)
	if err != nil {
		return nil, err
	}
	if !canAccess(viewer, escrow) {
		// Hide disputes on orders the viewer is not part of.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
	}
	return dispute, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID, viewer types.Actor) ([]models.Dispute, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !viewer.IsAdmin() && !viewer.IsSystem() {
		escrow, err := s.escrow.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !canAccess(viewer, escrow) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
		}
	}
	disputes, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	if disputes == nil {
		disputes = []models.Dispute{}
	}
	return disputes, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, dispute *models.Dispute, actor types.Actor) error {
	occurredAt := s.now().UTC()
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDispute,
		AggregateID:   dispute.ID,
		Actor:         outbox.ActorFrom(actor),
		Data: payloads.DisputeEvent{
			DisputeID:   dispute.ID,
			EscrowID:    dispute.EscrowID,
			OrderID:     dispute.OrderID,
			FiledByType: dispute.FiledByType,
			Status:      dispute.Status,
			Outcome:     dispute.Outcome,
			Reason:      dispute.Reason,
			OccurredAt:  occurredAt,
		},
		OccurredAt: occurredAt,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue dispute event")
	}
	return nil
}

func partyFor(actor types.Actor) (enums.DisputeParty, bool) {
	switch actor.Role {
	case enums.ActorRoleBuyer:
		return enums.DisputePartyBuyer, true
	case enums.ActorRoleVendor:
		return enums.DisputePartyVendor, true
	case enums.ActorRoleAdmin:
		return enums.DisputePartyAdmin, true
	default:
		return "", false
	}
}

func canAccess(actor types.Actor, escrow *models.EscrowTransaction) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleBuyer:
		return actor.ID == escrow.BuyerID
	case enums.ActorRoleVendor:
		return actor.ActsFor(escrow.VendorID)
	default:
		return false
	}
}
