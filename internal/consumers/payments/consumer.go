// Package payments consumes buyer payment confirmations and opens escrow holds.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type holdCreator interface {
	CreateHold(ctx context.Context, input escrow.HoldInput) (*models.EscrowTransaction, error)
}

// Confirmation is the message the payment gateway publishes once a buyer
// payment for an order has been captured.
type Confirmation struct {
	OrderID          uuid.UUID `json:"orderId"`
	BuyerID          uuid.UUID `json:"buyerId"`
	VendorID         uuid.UUID `json:"vendorId"`
	AmountCents      int64     `json:"amountCents"`
	Currency         string    `json:"currency"`
	PaymentReference string    `json:"paymentReference"`
}

type Consumer struct {
	escrow       holdCreator
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewConsumer(escrow holdCreator, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("payments subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{escrow: escrow, subscription: subscription, logg: logg}, nil
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
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var confirmation Confirmation
	if err := json.Unmarshal(msg.Data, &confirmation); err != nil {
		c.logg.Error(logCtx, "failed to decode payment confirmation", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id":  confirmation.OrderID.String(),
		"vendor_id": confirmation.VendorID.String(),
	})

	held, err := c.escrow.CreateHold(ctx, escrow.HoldInput{
		OrderID:          confirmation.OrderID,
		BuyerID:          confirmation.BuyerID,
		VendorID:         confirmation.VendorID,
		AmountCents:      confirmation.AmountCents,
		Currency:         strings.TrimSpace(confirmation.Currency),
		PaymentReference: confirmation.PaymentReference,
		Actor:            types.SystemActor(),
	})
	switch {
	case err == nil:
		c.logg.Info(c.logg.WithField(logCtx, "escrow_id", held.ID.String()), "escrow hold opened")
		return processResult{ack: true}
	case pkgerrors.IsCode(err, pkgerrors.CodeDuplicateEscrow):
		c.logg.Info(logCtx, "payment confirmation already applied")
		return processResult{ack: true}
	case isPermanent(err):
		c.logg.Error(logCtx, "payment confirmation rejected", err)
		return processResult{ack: true}
	default:
		c.logg.Error(logCtx, "failed to open escrow hold", err)
		return processResult{nack: true}
	}
}

// isPermanent reports errors a redelivery cannot fix.
func isPermanent(err error) bool {
	for _, code := range []pkgerrors.Code{
		pkgerrors.CodeValidation,
		pkgerrors.CodeInvalidAmount,
		pkgerrors.CodeNotFound,
	} {
		if pkgerrors.IsCode(err, code) {
			return true
		}
	}
	return false
}
