package payouts

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payout *models.Payout, actor types.Actor) error {
	occurredAt := s.now().UTC()
	data := payloads.PayoutEvent{
		PayoutID:    payout.ID,
		VendorID:    payout.VendorID,
		Status:      payout.Status,
		AmountCents: payout.AmountCents,
		Currency:    payout.Currency,
		OccurredAt:  occurredAt,
	}
	if payout.ProviderReference != nil {
		data.ProviderReference = *payout.ProviderReference
	}
	if payout.FailureReason != nil {
		data.FailureReason = *payout.FailureReason
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Actor:         outbox.ActorFrom(actor),
		Data:          data,
		OccurredAt:    occurredAt,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payout event")
	}
	return nil
}
