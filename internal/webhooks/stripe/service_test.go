package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

type stubSettler struct {
	calls []payouts.CallbackInput
	err   error
}

func (s *stubSettler) OnProviderCallback(_ context.Context, input payouts.CallbackInput) (*models.Payout, error) {
	s.calls = append(s.calls, input)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payout{ID: input.PayoutID}, nil
}

func payoutEvent(t *testing.T, eventType stripe.EventType, p *stripe.Payout) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_" + uuid.NewString()[:8], Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestPaidEventCompletesPayout(t *testing.T) {
	settler := &stubSettler{}
	svc, err := NewService(ServiceParams{Payouts: settler})
	require.NoError(t, err)

	payoutID := uuid.New()
	event := payoutEvent(t, stripe.EventTypePayoutPaid, &stripe.Payout{ID: "po_123", Metadata: map[string]string{"payout_id": payoutID.String()}})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, settler.calls, 1)
	assert.Equal(t, payoutID, settler.calls[0].PayoutID)
	assert.Equal(t, enums.PayoutOutcomeSuccess, settler.calls[0].Outcome)
	assert.Equal(t, "po_123", settler.calls[0].ProviderReference)
}

func TestFailedAndCanceledEventsFailPayout(t *testing.T) {
	settler := &stubSettler{}
	svc, err := NewService(ServiceParams{Payouts: settler})
	require.NoError(t, err)

	failed := payoutEvent(t, stripe.EventTypePayoutFailed, &stripe.Payout{
		ID:             "po_1",
		FailureMessage: "account closed",
		Metadata:       map[string]string{"payout_id": uuid.NewString()},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), failed))

	canceled := payoutEvent(t, stripe.EventTypePayoutCanceled, &stripe.Payout{
		ID:       "po_2",
		Metadata: map[string]string{"payout_id": uuid.NewString()},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), canceled))

	require.Len(t, settler.calls, 2)
	assert.Equal(t, enums.PayoutOutcomeFailure, settler.calls[0].Outcome)
	assert.Equal(t, "account closed", settler.calls[0].FailureReason)
	assert.Equal(t, "canceled", settler.calls[1].FailureReason)
}

func TestIgnoredEvents(t *testing.T) {
	settler := &stubSettler{}
	svc, err := NewService(ServiceParams{Payouts: settler})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, payoutEvent(t, stripe.EventTypeChargeSucceeded, &stripe.Payout{ID: "x"})))
	require.NoError(t, svc.HandleEvent(ctx, payoutEvent(t, stripe.EventTypePayoutPaid, &stripe.Payout{ID: "po_manual"})))
	assert.Empty(t, settler.calls)

	settler.err = pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	require.NoError(t, svc.HandleEvent(ctx, payoutEvent(t, stripe.EventTypePayoutPaid, &stripe.Payout{ID: "po_9", Metadata: map[string]string{"payout_id": uuid.NewString()}})))

	settler.err = pkgerrors.New(pkgerrors.CodeConcurrency, "retry")
	err = svc.HandleEvent(ctx, payoutEvent(t, stripe.EventTypePayoutPaid, &stripe.Payout{ID: "po_10", Metadata: map[string]string{"payout_id": uuid.NewString()}}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrency))

	assert.Error(t, svc.HandleEvent(ctx, nil))
}
