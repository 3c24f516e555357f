package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/api/controllers"
	pkgAuth "github.com/angelmondragon/settlement-engine/pkg/auth"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryStore struct{ data map[string]string }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "settlement", ExpirationMinutes: 30},
	}
}

func token(t *testing.T, cfg *config.Config, role enums.ActorRole, vendorID *uuid.UUID) string {
	t.Helper()
	tok, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Role:     role,
		VendorID: vendorID,
	})
	require.NoError(t, err)
	return tok
}

func newTestRouter(cfg *config.Config, health map[string]controllers.Pinger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_router_test_total"}))
	return NewRouter(cfg, nil, Dependencies{
		Health:      health,
		Idempotency: &memoryStore{data: map[string]string{}},
		Gatherer:    reg,
	}, Services{})
}

func do(h http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}})

	live := do(router, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "dev", live.Header().Get("X-Settlement-Env"))
	assert.NotEmpty(t, live.Header().Get("X-Request-Id"))

	ready := do(router, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, ready.Code)

	down := newTestRouter(cfg, map[string]controllers.Pinger{"db": stubPinger{err: errors.New("refused")}})
	rec := do(down, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"down"`)
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	rec := do(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "settlement_router_test_total")
}

func TestAuthAndRoleGates(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	vendorID := uuid.New()
	vendorTok := token(t, cfg, enums.ActorRoleVendor, &vendorID)
	buyerTok := token(t, cfg, enums.ActorRoleBuyer, nil)
	adminTok := token(t, cfg, enums.ActorRoleAdmin, nil)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		want   int
	}{
		{"anonymous escrow read", http.MethodGet, "/api/v1/escrows/" + uuid.NewString(), "", http.StatusUnauthorized},
		{"buyer on vendor wallet", http.MethodGet, "/api/v1/vendor/wallet", buyerTok, http.StatusForbidden},
		{"vendor on admin route", http.MethodGet, "/api/admin/v1/vendors/" + vendorID.String() + "/wallet/reconciliation", vendorTok, http.StatusForbidden},
		{"admin on internal route", http.MethodPost, "/api/internal/v1/escrows", adminTok, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/api/v1/nope", vendorTok, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.bearer, "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPayoutRequestNeedsIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil)
	vendorID := uuid.New()

	rec := do(router, http.MethodPost, "/api/v1/vendor/payouts", token(t, cfg, enums.ActorRoleVendor, &vendorID), `{"amount_cents":100,"reference":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

func TestWebhookRoutesUnmountedWithoutServices(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	rec := do(router, http.MethodPost, "/api/v1/webhooks/courier", "", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type windowCounter struct{ counts map[string]int64 }

func (w *windowCounter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	w.counts[scope]++
	return w.counts[scope] <= limit, w.counts[scope], nil
}

func TestPayoutRequestsAreRateLimitedPerVendor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{PayoutRequests: 1, PayoutWindow: time.Hour}
	router := NewRouter(cfg, nil, Dependencies{
		Idempotency: &memoryStore{data: map[string]string{}},
		RateLimiter: &windowCounter{counts: map[string]int64{}},
		Gatherer:    prometheus.NewRegistry(),
	}, Services{})
	vendorID := uuid.New()
	tok := token(t, cfg, enums.ActorRoleVendor, &vendorID)

	first := do(router, http.MethodPost, "/api/v1/vendor/payouts", tok, `{"amount_cents":100,"reference":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := do(router, http.MethodPost, "/api/v1/vendor/payouts", tok, `{"amount_cents":100,"reference":"r1"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")

	otherVendor := uuid.New()
	other := do(router, http.MethodPost, "/api/v1/vendor/payouts", token(t, cfg, enums.ActorRoleVendor, &otherVendor), `{"amount_cents":100,"reference":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, other.Code)
}
