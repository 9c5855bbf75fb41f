package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RateLimiterService is a business-scoped rate limiter. Implementations must be
// safe for concurrent use.
type RateLimiterService interface {
	// Allow consumes one request unit for the business. remaining is never negative;
	// reset is when the current window ends.
	Allow(ctx context.Context, businessID uuid.UUID) (allowed bool, remaining int, limit int, reset time.Time, err error)
}

// RateLimitRepository keeps fixed-window counters. Implementations must be atomic.
type RateLimitRepository interface {
	// IncrementWindow increments the business's counter for the current window and
	// (re)applies ttl. A zero count with a nil error means the store was unavailable.
	IncrementWindow(ctx context.Context, businessID uuid.UUID, window time.Duration, keyPrefix string, ttl time.Duration) (count int, windowStart time.Time, err error)
}
