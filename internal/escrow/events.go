package escrow

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, escrow *models.EscrowTransaction, reason string, actor types.Actor) error {
	occurredAt := escrow.UpdatedAt
	if occurredAt.IsZero() {
		occurredAt = escrow.HeldAt
	}
	data := payloads.EscrowEvent{
		EscrowID:          escrow.ID,
		OrderID:           escrow.OrderID,
		BuyerID:           escrow.BuyerID,
		VendorID:          escrow.VendorID,
		Status:            escrow.Status,
		AmountCents:       escrow.AmountCents,
		PlatformFeeCents:  escrow.PlatformFeeCents,
		VendorAmountCents: escrow.VendorAmountCents,
		Currency:          escrow.Currency,
		Reason:            reason,
		OccurredAt:        occurredAt,
	}
	if escrow.PaymentReference != nil {
		data.PaymentReference = *escrow.PaymentReference
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   escrow.ID,
		Actor:         outbox.ActorFrom(actor),
		Data:          data,
		OccurredAt:    occurredAt,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue escrow event")
	}
	return nil
}

func (s *service) emitDisputeClosed(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, actor types.Actor, at time.Time) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDisputeResolved,
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
			OccurredAt:  at,
		},
		OccurredAt: at,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue dispute event")
	}
	return nil
}
