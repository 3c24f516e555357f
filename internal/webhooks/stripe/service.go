// Package stripewebhook reconciles Stripe payout events with the payout ledger.
package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	pkgstripe "github.com/angelmondragon/settlement-engine/pkg/stripe"
)

type payoutSettler interface {
	OnProviderCallback(ctx context.Context, input payouts.CallbackInput) (*models.Payout, error)
}

type ServiceParams struct {
	Payouts payoutSettler
	Logger  *logger.Logger
}

type Service struct {
	payouts payoutSettler
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payout service required")
	}
	return &Service{payouts: params.Payouts, logg: params.Logger}, nil
}

// HandleEvent settles the payout named in the event metadata. Event types
// other than payout outcomes, and payouts this service did not create, are
// acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var outcome enums.PayoutOutcome
	switch event.Type {
	case stripe.EventTypePayoutPaid:
		outcome = enums.PayoutOutcomeSuccess
	case stripe.EventTypePayoutFailed, stripe.EventTypePayoutCanceled:
		outcome = enums.PayoutOutcomeFailure
	default:
		return nil
	}

	var stripePayout stripe.Payout
	if err := json.Unmarshal(event.Data.Raw, &stripePayout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payout event")
	}
	payoutID, err := uuid.Parse(strings.TrimSpace(stripePayout.Metadata[pkgstripe.PayoutMetadataKey]))
	if err != nil {
		s.warn(ctx, event, "stripe payout without settlement metadata ignored")
		return nil
	}

	_, err = s.payouts.OnProviderCallback(ctx, payouts.CallbackInput{
		PayoutID:          payoutID,
		Outcome:           outcome,
		ProviderReference: stripePayout.ID,
		FailureReason:     failureReason(event.Type, &stripePayout),
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.warn(ctx, event, "stripe payout references unknown payout")
		return nil
	}
	return err
}

func failureReason(eventType stripe.EventType, p *stripe.Payout) string {
	if eventType == stripe.EventTypePayoutCanceled {
		return "canceled"
	}
	if p.FailureMessage != "" {
		return p.FailureMessage
	}
	return string(p.FailureCode)
}

func (s *Service) warn(ctx context.Context, event *stripe.Event, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id": event.ID,
		"event_type":      string(event.Type),
	})
	s.logg.Warn(logCtx, msg)
}
