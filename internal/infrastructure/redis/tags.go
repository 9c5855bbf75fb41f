package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// tagKey is the set holding every cache key written with tag.
func (s *Store) tagKey(tag string) string {
	return BuildKey("tag", tag, s.opts.Prefix)
}

// addTags queues tag membership for key on p. The tag set lives at least as long as
// the entry so a live entry is always reachable from its tags.
func (s *Store) addTags(ctx context.Context, p redis.Pipeliner, key string, tags []string, ttl time.Duration) {
	tagTTL := s.opts.TagTTL
	if ttl > tagTTL {
		tagTTL = ttl
	}
	for _, tag := range tags {
		tk := s.tagKey(tag)
		p.SAdd(ctx, tk, key)
		p.Expire(ctx, tk, tagTTL)
	}
}

// InvalidateByTags deletes every entry written with any of tags. For each tag the
// member set is read, exactly those members are removed from the set and only then
// deleted. A key re-tagged by a concurrent Set between the two steps is either
// deleted or still a member, so it stays reachable from the tag.
// Returns nil when caching is disabled and ErrCacheUnavailable when a configured
// backend cannot be reached.
func (s *Store) InvalidateByTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if tag == "" {
			return fmt.Errorf("%w: empty tag", ErrInvalidKey)
		}
	}
	if len(tags) == 0 || s.manager == nil || s.manager.Spec().Mode == ModeDisabled {
		return nil
	}
	started := time.Now()
	removed := 0
	for _, tag := range tags {
		tk := s.tagKey(tag)
		n, ok := call(ctx, s, "invalidate", tk, func(ctx context.Context, c redis.UniversalClient) (int, error) {
			members, err := c.SMembers(ctx, tk).Result()
			if err != nil || len(members) == 0 {
				return 0, err
			}
			args := make([]interface{}, len(members))
			for i, m := range members {
				args[i] = m
			}
			if err := c.SRem(ctx, tk, args...).Err(); err != nil {
				return 0, err
			}
			_, err = c.Pipelined(ctx, func(p redis.Pipeliner) error {
				for _, m := range members {
					p.Del(ctx, m)
				}
				return nil
			})
			return len(members), err
		})
		if !ok {
			return fmt.Errorf("%w: invalidating tag %q", ErrCacheUnavailable, tag)
		}
		removed += n
		s.stats.record(tk, "invalidate", resultOK, started)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"tags": tags, "keys": removed}).Debug("cache tags invalidated")
	}
	return nil
}
