package courierwebhook

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/internal/delivery"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

type recordingHandler struct {
	events []delivery.StatusEvent
}

func (h *recordingHandler) HandleStatus(_ context.Context, event delivery.StatusEvent) (*delivery.Result, error) {
	h.events = append(h.events, event)
	return &delivery.Result{Outcome: enums.DeliveryOutcomeRecorded}, nil
}

func TestVerify(t *testing.T) {
	svc, err := NewService(&recordingHandler{}, "courier-secret")
	require.NoError(t, err)
	body := []byte(`{"eventId":"e1"}`)
	sig := Sign([]byte("courier-secret"), body)

	assert.True(t, svc.Verify(body, sig))
	assert.True(t, svc.Verify(body, "sha256="+sig))
	assert.False(t, svc.Verify(body, Sign([]byte("other"), body)))
	assert.False(t, svc.Verify([]byte(`{"eventId":"e2"}`), sig))
	assert.False(t, svc.Verify(body, "not-hex"))
	assert.False(t, svc.Verify(body, ""))
}

func TestHandleEventMapsToDeliveryStatus(t *testing.T) {
	handler := &recordingHandler{}
	svc, err := NewService(handler, "courier-secret")
	require.NoError(t, err)

	orderID := uuid.New()
	event, err := Decode([]byte(`{"eventId":"e1","deliveryId":"d-1","orderId":"` + orderID.String() + `","status":"DELIVERED","occurredAt":"2026-03-01T10:00:00Z"}`))
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, handler.events, 1)
	assert.Equal(t, orderID, handler.events[0].OrderID)
	assert.Equal(t, enums.DeliveryStatusDelivered, handler.events[0].Status)
	assert.Equal(t, enums.DeliverySourceCourierWebhook, handler.events[0].Source)
	assert.Equal(t, 2026, handler.events[0].OccurredAt.Year())
}

func TestDecodeAndMappingRejectBadInput(t *testing.T) {
	svc, err := NewService(&recordingHandler{}, "courier-secret")
	require.NoError(t, err)

	_, err = Decode([]byte(`not json`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = Decode([]byte(`{"deliveryId":"d"}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = Decode([]byte(`{"status":"delivered"}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.HandleEvent(context.Background(), &Event{EventID: "e", OrderID: "nope", Status: "delivered"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.HandleEvent(context.Background(), &Event{EventID: "e", OrderID: uuid.NewString(), Status: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewService(&recordingHandler{}, " ")
	assert.Error(t, err)
}

func TestDecodeAcceptsPayloadWithoutEventID(t *testing.T) {
	orderID := uuid.New()
	event, err := Decode([]byte(`{"deliveryId":" d-1 ","orderId":"` + orderID.String() + `","status":"Delivered","occurredAt":"2026-03-01T10:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, "d-1", event.DeliveryID)
	assert.Equal(t, "delivered", event.Status)
	assert.Equal(t, "d-1:delivered", event.GuardKey())

	withID := &Event{EventID: "evt-9", DeliveryID: "d-1", Status: "delivered"}
	assert.Equal(t, "evt-9", withID.GuardKey())
}

func TestHandleEventPassesUnlistedStatusThrough(t *testing.T) {
	handler := &recordingHandler{}
	svc, err := NewService(handler, "courier-secret")
	require.NoError(t, err)

	event, err := Decode([]byte(`{"deliveryId":"d-2","orderId":"` + uuid.NewString() + `","status":"at_pickup_hub"}`))
	require.NoError(t, err)

	_, err = svc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, handler.events, 1)
	assert.Equal(t, enums.DeliveryStatus("at_pickup_hub"), handler.events[0].Status)
}
