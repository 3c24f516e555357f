package refunds

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-engine/pkg/square"
)

const providerSquare = "square"

type refunder interface {
	RefundPayment(ctx context.Context, params square.RefundParams) (*square.RefundResult, error)
}

// Service returns buyer funds for escrows that ended refunded.
type Service interface {
	RefundEscrow(ctx context.Context, event payloads.EscrowEvent) (*models.ProviderRefund, error)
}

type ServiceParams struct {
	Repo     Repository
	Refunder refunder
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
}

type service struct {
	repo     Repository
	refunder refunder
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if params.Refunder == nil {
		return nil, fmt.Errorf("refund provider required")
	}
	return &service{
		repo:     params.Repo,
		refunder: params.Refunder,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// RefundEscrow submits one provider refund per escrow. The escrow id is the
// provider idempotency key, so a retry after a crash between the provider call
// and the insert cannot refund the buyer twice. Returns nil without error when
// there is no captured payment to refund.
func (s *service) RefundEscrow(ctx context.Context, event payloads.EscrowEvent) (*models.ProviderRefund, error) {
	if event.EscrowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow id is required")
	}

	existing, err := s.repo.FindByEscrow(ctx, event.EscrowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup provider refund")
	}
	if existing != nil {
		return existing, nil
	}

	ctx = s.withFields(ctx, event)
	paymentRef := strings.TrimSpace(event.PaymentReference)
	if paymentRef == "" {
		s.warn(ctx, "refunded escrow has no payment reference; skipping provider refund")
		return nil, nil
	}

	result, err := s.refunder.RefundPayment(ctx, square.RefundParams{
		IdempotencyKey: event.EscrowID.String(),
		PaymentID:      paymentRef,
		AmountCents:    event.AmountCents,
		Currency:       event.Currency,
		Reason:         event.Reason,
	})
	s.metrics.ProviderCall(providerSquare, "refund", err)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "submit provider refund")
	}

	refund := &models.ProviderRefund{
		ID:               uuid.New(),
		EscrowID:         event.EscrowID,
		AmountCents:      event.AmountCents,
		Currency:         event.Currency,
		Provider:         providerSquare,
		ProviderRefundID: result.ID,
	}
	if result.Status != "" {
		status := result.Status
		refund.ProviderStatus = &status
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.repo.FindByEscrow(ctx, event.EscrowID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record provider refund")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "provider_refund_id", result.ID), "buyer refund submitted")
	}
	return refund, nil
}

func (s *service) withFields(ctx context.Context, event payloads.EscrowEvent) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, map[string]any{
		"escrow_id":    event.EscrowID.String(),
		"order_id":     event.OrderID.String(),
		"amount_cents": event.AmountCents,
	})
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
