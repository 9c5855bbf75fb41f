package redis

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/brandhub/internal/core/ports"
)

var rememberGroup singleflight.Group

// Remember returns the cached value at key, or runs load, caches its result with opts
// and returns it. Concurrent misses for the same key share one load. Cache problems
// never fail the call; only load errors and caller misuse are returned.
func Remember[T any](ctx context.Context, c ports.Cache, key string, opts ports.CacheOptions, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	ok, err := c.Get(ctx, key, &cached)
	if err != nil {
		return cached, err
	}
	if ok {
		return cached, nil
	}

	v, err, _ := rememberGroup.Do(key, func() (interface{}, error) {
		fresh, err := load(ctx)
		if err != nil {
			return fresh, err
		}
		if _, err := c.Set(ctx, key, fresh, opts); err != nil {
			return fresh, err
		}
		return fresh, nil
	})
	out, _ := v.(T)
	return out, err
}

// Invalidate runs write and, when it succeeds, invalidates tags. An unreachable
// cache does not fail the write; entries left behind expire with their TTL.
func Invalidate(ctx context.Context, c ports.Cache, write func(ctx context.Context) error, tags ...string) error {
	if err := write(ctx); err != nil {
		return err
	}
	if err := c.InvalidateByTags(ctx, tags...); err != nil && !errors.Is(err, ErrCacheUnavailable) {
		return err
	}
	return nil
}
