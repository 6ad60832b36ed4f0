package ratelimit

import "context"

// Limiter answers whether one more event is allowed for a key right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
