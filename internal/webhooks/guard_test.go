package webhooks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "settlement:idempotency:" + scope + ":" + id
}

func TestGuardMarksAndForgets(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "courier-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(ctx, "evt-1"))
	seen, err = guard.CheckAndMark(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	assert.Error(t, err)
}

func TestNewGuardValidates(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, "x")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(&memoryStore{}, -time.Second, "x")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(&memoryStore{}, time.Hour, "")
	assert.Error(t, err)
}
