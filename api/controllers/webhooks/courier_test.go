package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/internal/delivery"
	courierwebhook "github.com/angelmondragon/settlement-engine/internal/webhooks/courier"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

const courierSecret = "courier-secret"

type recordingDelivery struct {
	events []delivery.StatusEvent
}

func (r *recordingDelivery) HandleStatus(ctx context.Context, event delivery.StatusEvent) (*delivery.Result, error) {
	r.events = append(r.events, event)
	return &delivery.Result{
		Event:   models.DeliveryStatusEvent{ID: uuid.New(), DeliveryID: event.DeliveryID, OrderID: event.OrderID, Status: event.Status},
		Outcome: enums.DeliveryOutcomeReleased,
	}, nil
}

func courierHandler(t *testing.T) (http.HandlerFunc, *recordingDelivery) {
	t.Helper()
	rec := &recordingDelivery{}
	svc, err := courierwebhook.NewService(rec, courierSecret)
	require.NoError(t, err)
	return CourierWebhook(svc, newGuard(t, "courier-webhook"), nil), rec
}

func courierBody(t *testing.T, eventID string) []byte {
	t.Helper()
	body, err := json.Marshal(courierwebhook.Event{
		EventID:    eventID,
		DeliveryID: "dlv-1",
		OrderID:    uuid.NewString(),
		Status:     "delivered",
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return body
}

func postCourier(handler http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(courierwebhook.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCourierWebhookReleasesOnce(t *testing.T) {
	handler, deliveries := courierHandler(t)
	body := courierBody(t, "evt-1")
	signature := courierwebhook.Sign([]byte(courierSecret), body)

	first := postCourier(handler, body, signature)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Contains(t, first.Body.String(), `"outcome":"released"`)

	second := postCourier(handler, body, "sha256="+signature)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"duplicate":true`)

	require.Len(t, deliveries.events, 1)
	assert.Equal(t, enums.DeliveryStatusDelivered, deliveries.events[0].Status)
	assert.Equal(t, enums.DeliverySourceCourierWebhook, deliveries.events[0].Source)
}

func TestCourierWebhookRejectsBadSignature(t *testing.T) {
	handler, deliveries := courierHandler(t)
	body := courierBody(t, "evt-2")

	missing := postCourier(handler, body, "")
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	forged := postCourier(handler, body, courierwebhook.Sign([]byte("other"), body))
	assert.Equal(t, http.StatusUnauthorized, forged.Code)

	assert.Empty(t, deliveries.events)
}

func TestCourierWebhookRejectsBlankStatus(t *testing.T) {
	handler, deliveries := courierHandler(t)
	orderID := uuid.NewString()
	body := []byte(`{"eventId":"evt-3","deliveryId":"dlv-1","orderId":"` + orderID + `","status":"","occurredAt":"2026-01-02T03:04:05Z"}`)

	rec := postCourier(handler, body, courierwebhook.Sign([]byte(courierSecret), body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, deliveries.events)

	// decoding failed before the guard was marked, so a corrected redelivery is processed
	fixed := []byte(`{"eventId":"evt-3","deliveryId":"dlv-1","orderId":"` + orderID + `","status":"delivered","occurredAt":"2026-01-02T03:04:05Z"}`)
	retry := postCourier(handler, fixed, courierwebhook.Sign([]byte(courierSecret), fixed))
	assert.Equal(t, http.StatusOK, retry.Code)
	assert.Len(t, deliveries.events, 1)
}

func TestCourierWebhookAcceptsCallbackWithoutEventID(t *testing.T) {
	handler, deliveries := courierHandler(t)
	orderID := uuid.NewString()
	body := []byte(`{"deliveryId":"dlv-7","orderId":"` + orderID + `","status":"delivered","occurredAt":"2026-01-02T03:04:05Z"}`)
	signature := courierwebhook.Sign([]byte(courierSecret), body)

	first := postCourier(handler, body, signature)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Contains(t, first.Body.String(), `"outcome":"released"`)

	again := postCourier(handler, body, signature)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Contains(t, again.Body.String(), `"duplicate":true`)

	require.Len(t, deliveries.events, 1)
	assert.Equal(t, "dlv-7", deliveries.events[0].DeliveryID)
	assert.Equal(t, orderID, deliveries.events[0].OrderID.String())
}

func TestCourierWebhookRecordsUnlistedStatus(t *testing.T) {
	handler, deliveries := courierHandler(t)
	body := []byte(`{"deliveryId":"dlv-8","orderId":"` + uuid.NewString() + `","status":"AT_PICKUP_HUB"}`)

	rec := postCourier(handler, body, courierwebhook.Sign([]byte(courierSecret), body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, deliveries.events, 1)
	assert.Equal(t, enums.DeliveryStatus("at_pickup_hub"), deliveries.events[0].Status)
}
