package refunds

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
)

const refundConsumerName = "escrow-refunds"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns escrow_refunded events into provider refunds.
type Consumer struct {
	service      Service
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

func NewConsumer(service Service, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("refund service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("refunds subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run receives until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventEscrowRefunded) {
		c.logg.Debug(logCtx, "skipping non-refund event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	var event payloads.EscrowEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to parse escrow payload", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":  eventID.String(),
		"escrow_id": event.EscrowID.String(),
	})

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, refundConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if _, err := c.service.RefundEscrow(ctx, event); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			c.logg.Error(logCtx, "refund event rejected", err)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "buyer refund failed", err)
		_ = c.idempotency.Delete(ctx, refundConsumerName, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}
