package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/settlement-engine/internal/webhooks"
	pkgstripe "github.com/angelmondragon/settlement-engine/pkg/stripe"
)

func TestStripeWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedPayoutEvent(t)
	service := &fakeStripeWebhookService{}
	guard := newGuard(t, "stripe-webhook")
	handler := StripeWebhook(service, &fakeSigningClient{secret: "whsec_test"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, service.calls)
	assert.Equal(t, stripe.EventTypePayoutPaid, service.lastType)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req2.Header.Set("Stripe-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())
	assert.Equal(t, 1, service.calls, "duplicate must not reach the payout service")
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedPayoutEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: "whsec_test"}, newGuard(t, "stripe-webhook"), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, service.calls)
}

func TestStripeWebhook_FailureReleasesGuard(t *testing.T) {
	payload, header := buildSignedPayoutEvent(t)
	service := &fakeStripeWebhookService{err: errors.New("db down")}
	handler := StripeWebhook(service, &fakeSigningClient{secret: "whsec_test"}, newGuard(t, "stripe-webhook"), nil)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
	assert.Equal(t, 2, service.calls, "a failed event must be retried on redelivery")
}

func buildSignedPayoutEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	payout := &stripe.Payout{
		ID:     "po_" + uuid.NewString(),
		Status: stripe.PayoutStatusPaid,
		Metadata: map[string]string{
			pkgstripe.PayoutMetadataKey: uuid.NewString(),
		},
	}
	rawPayout, err := json.Marshal(payout)
	require.NoError(t, err)

	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypePayoutPaid,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawPayout,
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload, buildStripeSignatureHeader(payload, "whsec_test", time.Now().Unix())
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newGuard(t *testing.T, scope string) *webhooks.IdempotencyGuard {
	t.Helper()
	guard, err := webhooks.NewIdempotencyGuard(newInMemoryStore(), time.Minute, scope)
	require.NoError(t, err)
	return guard
}

type fakeStripeWebhookService struct {
	calls    int
	lastType stripe.EventType
	err      error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	f.lastType = event.Type
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("settlement:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
