package domain

import (
	"context"
	"time"
)

// ResultCache memoizes serialized pricing responses keyed by a hash of the
// canonical request. Engines are pure, so a hit is always a valid answer.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides fire-and-forget pub/sub for pricing events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// PricingEvent is published on the signal bus after every computed (not
// cached) pricing call.
type PricingEvent struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	Side      Side      `json:"side,omitempty"`
	Price     float64   `json:"price"`
	Elapsed   string    `json:"elapsed"`
	CreatedAt time.Time `json:"created_at"`
}
