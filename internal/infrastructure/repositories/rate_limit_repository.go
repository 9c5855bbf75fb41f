package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/ports"
)

// RateLimitRepository keeps fixed-window request counters in the cache store.
type RateLimitRepository struct {
	counters ports.CounterStore
}

func NewRateLimitRepository(counters ports.CounterStore) *RateLimitRepository {
	return &RateLimitRepository{counters: counters}
}

// IncrementWindow increments the business's counter for the window containing now.
// A zero count means the store could not be reached.
func (repo *RateLimitRepository) IncrementWindow(ctx context.Context, businessID uuid.UUID, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
	windowStart := time.Now().Truncate(window)
	key := fmt.Sprintf("%s:%s:%d", keyPrefix, businessID.String(), windowStart.Unix())
	n, err := repo.counters.Increment(ctx, key, 1, ttl)
	if err != nil {
		return 0, windowStart, err
	}
	return int(n), windowStart, nil
}
