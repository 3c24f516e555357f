package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/redis"
)

// Manager tracks processed event IDs per consumer using Redis SETNX with a TTL.
// Keys follow the `stl:idempotency:evt:processed:<consumer>:<event_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks events as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the event has already been processed and
// otherwise marks it as processed with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return m.CheckAndMarkKey(ctx, consumer, eventID.String())
}

// CheckAndMarkKey is CheckAndMarkProcessed for provider ids that are not UUIDs
// (Stripe evt_ ids, courier event ids).
func (m *Manager) CheckAndMarkKey(ctx context.Context, consumer, eventKey string) (bool, error) {
	key, err := m.processedKey(consumer, eventKey)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return errors.New("event id is required")
	}
	return m.DeleteKey(ctx, consumer, eventID.String())
}

// DeleteKey releases a marker so a failed delivery can be retried.
func (m *Manager) DeleteKey(ctx context.Context, consumer, eventKey string) error {
	key, err := m.processedKey(consumer, eventKey)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, eventKey string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	eventKey = strings.TrimSpace(eventKey)
	if eventKey == "" {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, eventKey), nil
}
