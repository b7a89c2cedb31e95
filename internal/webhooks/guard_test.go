package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	keys   map[string]string
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestInFlightGuardMarksOnce(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewInFlightGuard(store, time.Minute, "payment-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Contains(t, store.keys, "idempotency:payment-webhook:evt_1")

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestInFlightGuardErrors(t *testing.T) {
	_, err := NewInFlightGuard(nil, time.Minute, "x")
	require.Error(t, err)
	_, err = NewInFlightGuard(newMemoryStore(), time.Minute, "")
	require.Error(t, err)

	store := newMemoryStore()
	store.setErr = errors.New("redis down")
	guard, err := NewInFlightGuard(store, time.Minute, "payment-webhook")
	require.NoError(t, err)
	_, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.ErrorContains(t, err, "redis down")
	_, err = guard.CheckAndMark(context.Background(), "")
	require.Error(t, err)
}
