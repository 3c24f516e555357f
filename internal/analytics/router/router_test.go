package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/internal/analytics/types"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/payloads"
)

type fakeWriter struct {
	rows []types.SettlementEventRow
	err  error
}

func (w *fakeWriter) InsertSettlement(_ context.Context, row types.SettlementEventRow) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, row)
	return nil
}

func newTestRouter(t *testing.T) (*Router, *fakeWriter) {
	t.Helper()
	w := &fakeWriter{}
	r, err := NewRouter(w, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return r, w
}

func envelopeFor(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, id uuid.UUID, data any) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return types.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   id.String(),
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:       raw,
	}
}

func TestRouterWritesEscrowRow(t *testing.T) {
	r, w := newTestRouter(t)
	event := payloads.EscrowEvent{
		EscrowID:          uuid.New(),
		OrderID:           uuid.New(),
		BuyerID:           uuid.New(),
		VendorID:          uuid.New(),
		Status:            enums.EscrowStatusReleased,
		AmountCents:       1000000,
		PlatformFeeCents:  50000,
		VendorAmountCents: 950000,
		Currency:          "NGN",
		Reason:            "delivery confirmed",
	}
	env := envelopeFor(t, enums.EventEscrowReleased, enums.AggregateEscrow, event.EscrowID, event)

	require.NoError(t, r.Handle(context.Background(), env))
	require.Len(t, w.rows, 1)
	row := w.rows[0]
	assert.Equal(t, "escrow_released", row.EventType)
	assert.Equal(t, event.EscrowID.String(), *row.EscrowID)
	assert.Equal(t, event.OrderID.String(), *row.OrderID)
	assert.Equal(t, int64(50000), *row.PlatformFeeCents)
	assert.Equal(t, int64(950000), *row.VendorAmountCents)
	assert.Equal(t, "released", *row.Status)
	assert.Nil(t, row.PayoutID)
	assert.True(t, row.Payload.Valid)
}

func TestRouterWritesPayoutAndDisputeRows(t *testing.T) {
	r, w := newTestRouter(t)
	payout := payloads.PayoutEvent{
		PayoutID:      uuid.New(),
		VendorID:      uuid.New(),
		Status:        enums.PayoutStatusFailed,
		AmountCents:   9500,
		Currency:      "NGN",
		FailureReason: "account closed",
	}
	outcome := enums.DisputeOutcomeRefund
	dispute := payloads.DisputeEvent{
		DisputeID:   uuid.New(),
		EscrowID:    uuid.New(),
		OrderID:     uuid.New(),
		FiledByType: enums.DisputePartyBuyer,
		Status:      enums.DisputeStatusResolved,
		Outcome:     &outcome,
	}

	require.NoError(t, r.Handle(context.Background(), envelopeFor(t, enums.EventPayoutFailed, enums.AggregatePayout, payout.PayoutID, payout)))
	require.NoError(t, r.Handle(context.Background(), envelopeFor(t, enums.EventDisputeResolved, enums.AggregateDispute, dispute.DisputeID, dispute)))

	require.Len(t, w.rows, 2)
	assert.Equal(t, payout.PayoutID.String(), *w.rows[0].PayoutID)
	assert.Equal(t, "account closed", *w.rows[0].Reason)
	assert.Nil(t, w.rows[0].EscrowID)
	assert.Equal(t, dispute.DisputeID.String(), *w.rows[1].DisputeID)
	assert.Equal(t, "resolved:refund", *w.rows[1].Status)
	assert.Nil(t, w.rows[1].BuyerID)
}

func TestRouterRejectsUnknownAggregateAndBadPayload(t *testing.T) {
	r, _ := newTestRouter(t)
	env := types.Envelope{EventID: "1", AggregateType: "order", Payload: json.RawMessage(`{}`)}
	err := r.Handle(context.Background(), env)
	assert.True(t, errors.Is(err, ErrUnsupportedAggregate))

	env = types.Envelope{EventID: "2", EventType: enums.EventEscrowHeld, AggregateType: enums.AggregateEscrow, Payload: json.RawMessage(`{"amount_cents":"lots"}`)}
	assert.Error(t, r.Handle(context.Background(), env))
}

func TestRouterPropagatesWriterError(t *testing.T) {
	r, w := newTestRouter(t)
	w.err = errors.New("bigquery down")
	event := payloads.PayoutEvent{PayoutID: uuid.New(), VendorID: uuid.New(), Status: enums.PayoutStatusPending, AmountCents: 100}
	err := r.Handle(context.Background(), envelopeFor(t, enums.EventPayoutRequested, enums.AggregatePayout, event.PayoutID, event))
	assert.EqualError(t, err, "bigquery down")
}
