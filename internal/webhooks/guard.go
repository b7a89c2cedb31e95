package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/gamestore-backend/pkg/redis"
)

// InFlightGuard short-circuits concurrent redeliveries of the same event while
// the first one is still being processed. The ledger remains the durable dedup.
type InFlightGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewInFlightGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*InFlightGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &InFlightGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports true when the event is already marked.
func (g *InFlightGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *InFlightGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}
