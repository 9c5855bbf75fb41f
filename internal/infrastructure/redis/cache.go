package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/breaker"
	"github.com/avatarctic/brandhub/internal/infrastructure/envelope"
)

var (
	// ErrInvalidKey is returned for empty, oversized or whitespace-containing keys.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrInvalidTTL is returned for negative TTLs.
	ErrInvalidTTL = errors.New("invalid cache ttl")
	// ErrCacheUnavailable is returned by InvalidateByTags when a configured backend
	// cannot be reached, so stale entries may remain until their TTL.
	ErrCacheUnavailable = errors.New("cache backend unavailable")
)

const (
	breakerKey       = "cache"
	encryptedMarker  = "enc:"
	maxKeyLength     = 1024
	defaultOpTimeout = 2 * time.Second
)

// StoreOptions configures a Store; zero values select defaults.
type StoreOptions struct {
	Prefix          string
	DefaultTTL      time.Duration
	TagTTL          time.Duration
	OpTimeout       time.Duration
	SensitiveFields []string
}

// Entry is one key/value pair for MSet.
type Entry struct {
	Key   string
	Value any
}

// HealthResult is the outcome of a cache health probe.
type HealthResult struct {
	Healthy   bool    `json:"healthy"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Store is the cache facade used by every collaborator. It never fails because the
// backend is down: reads miss, writes report false and counters read 0. Only caller
// misuse is returned as an error.
type Store struct {
	manager   *Manager
	keyring   *envelope.Keyring
	breakers  *breaker.Registry
	sanitizer *sanitizer
	stats     *statsBook
	opts      StoreOptions
	logger    *logrus.Logger
}

var _ ports.Cache = (*Store)(nil)
var _ ports.CounterStore = (*Store)(nil)

// NewStore wires a store. keyring may be empty (sensitive values are then not cached);
// breakers may be nil, in which case a private registry with default thresholds is used.
func NewStore(manager *Manager, keyring *envelope.Keyring, breakers *breaker.Registry, opts StoreOptions, logger *logrus.Logger) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.TagTTL <= 0 {
		opts.TagTTL = 24 * time.Hour
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if breakers == nil {
		breakers = breaker.NewRegistry(breaker.Settings{Timeout: opts.OpTimeout}, logger)
	}
	return &Store{
		manager:   manager,
		keyring:   keyring,
		breakers:  breakers,
		sanitizer: newSanitizer(opts.SensitiveFields),
		stats:     newStatsBook(),
		opts:      opts,
		logger:    logger,
	}
}

// Key implements ports.Cache.
func (s *Store) Key(namespace, id string) string {
	return BuildKey(namespace, id, s.opts.Prefix)
}

// SearchKey implements ports.Cache.
func (s *Store) SearchKey(namespace string, params any) (string, error) {
	return BuildSearchKey(namespace, params, s.opts.Prefix)
}

// Manager exposes the connection manager for status reporting.
func (s *Store) Manager() *Manager { return s.manager }

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.IndexFunc(key, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (s *Store) ttlFor(ttl time.Duration) (time.Duration, error) {
	if ttl < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	if ttl == 0 {
		return s.opts.DefaultTTL, nil
	}
	return ttl, nil
}

// call runs fn against the backend under the "cache" breaker and the op timeout.
// ok=false means the backend was unavailable and the caller should degrade.
func call[T any](ctx context.Context, s *Store, op, key string, fn func(ctx context.Context, c redis.UniversalClient) (T, error)) (T, bool) {
	var zero T
	client, ok := s.manager.Client()
	if !ok {
		return zero, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()
	v, err := breaker.Execute(ctx, s.breakers, breakerKey, func(ctx context.Context) (T, error) {
		return fn(ctx, client)
	})
	if err != nil {
		s.degrade(op, key, err)
		return zero, false
	}
	return v, true
}

func (s *Store) degrade(op, key string, err error) {
	if !errors.Is(err, breaker.ErrCircuitOpen) {
		s.manager.ReportError(err)
	}
	s.stats.record(key, op, resultError, time.Now())
	if s.logger != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"op": op, "key": key}).Debug("cache unavailable, degrading")
	}
}

// Get implements ports.Cache. Corrupt, undecryptable or undecodable entries are
// reported as misses.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	started := time.Now()
	raw, ok := call(ctx, s, "get", key, func(ctx context.Context, c redis.UniversalClient) ([]byte, error) {
		b, err := c.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if !ok {
		return false, nil
	}
	if raw == nil {
		s.stats.record(key, "get", resultMiss, started)
		return false, nil
	}
	plain, ok := s.decode(key, raw)
	if ok {
		if err := json.Unmarshal(plain, dest); err != nil {
			s.warn("cache entry could not be decoded", key, err)
			ok = false
		}
	}
	if !ok {
		s.stats.record(key, "get", resultMiss, started)
		return false, nil
	}
	s.stats.record(key, "get", resultHit, started)
	return true, nil
}

// decode unwraps an encrypted entry. ok=false means the entry must be treated as a miss.
func (s *Store) decode(key string, raw []byte) ([]byte, bool) {
	if !bytes.HasPrefix(raw, []byte(encryptedMarker)) {
		return raw, true
	}
	plain, err := s.keyring.Decrypt(string(raw[len(encryptedMarker):]))
	if err != nil {
		s.warn("cache entry failed integrity check", key, err)
		return nil, false
	}
	return plain, true
}

func (s *Store) warn(msg, key string, err error) {
	if s.logger != nil {
		s.logger.WithError(err).WithField("key", key).Warn(msg)
	}
}

// encode serialises value for storage. ok=false means the value must not be cached
// because it carries sensitive fields and no encryption key is configured.
func (s *Store) encode(value any) ([]byte, bool, error) {
	payload, sensitive, err := s.sanitizer.encode(value)
	if err != nil {
		return nil, false, fmt.Errorf("failed to serialise cache value: %w", err)
	}
	if !sensitive {
		return payload, true, nil
	}
	if !s.keyring.Enabled() {
		return nil, false, nil
	}
	env, err := s.keyring.Encrypt(payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encrypt cache value: %w", err)
	}
	return []byte(encryptedMarker + env), true, nil
}

// Set implements ports.Cache. A TTL of zero selects the default TTL.
func (s *Store) Set(ctx context.Context, key string, value any, opts ports.CacheOptions) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	ttl, err := s.ttlFor(opts.TTL)
	if err != nil {
		return false, err
	}
	for _, tag := range opts.Tags {
		if tag == "" {
			return false, fmt.Errorf("%w: empty tag", ErrInvalidKey)
		}
	}
	started := time.Now()
	payload, cacheable, err := s.encode(value)
	if err != nil {
		return false, err
	}
	if !cacheable {
		s.stats.record(key, "set", resultSkipped, started)
		if s.logger != nil {
			s.logger.WithField("key", key).Debug("value holds sensitive fields and no encryption key is configured; not cached")
		}
		return false, nil
	}
	_, ok := call(ctx, s, "set", key, func(ctx context.Context, c redis.UniversalClient) (struct{}, error) {
		if len(opts.Tags) == 0 {
			return struct{}{}, c.Set(ctx, key, payload, ttl).Err()
		}
		_, err := c.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, ttl)
			s.addTags(ctx, p, key, opts.Tags, ttl)
			return nil
		})
		return struct{}{}, err
	})
	if !ok {
		return false, nil
	}
	s.stats.record(key, "set", resultOK, started)
	return true, nil
}

// Delete implements ports.Cache.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	started := time.Now()
	n, ok := call(ctx, s, "delete", key, func(ctx context.Context, c redis.UniversalClient) (int64, error) {
		return c.Del(ctx, key).Result()
	})
	if !ok {
		return false, nil
	}
	s.stats.record(key, "delete", resultOK, started)
	return n > 0, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	started := time.Now()
	n, ok := call(ctx, s, "exists", key, func(ctx context.Context, c redis.UniversalClient) (int64, error) {
		return c.Exists(ctx, key).Result()
	})
	if !ok {
		return false, nil
	}
	s.stats.record(key, "exists", resultOK, started)
	return n > 0, nil
}

// Expire resets the TTL of an existing key. ttl must be positive.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	started := time.Now()
	set, ok := call(ctx, s, "expire", key, func(ctx context.Context, c redis.UniversalClient) (bool, error) {
		return c.Expire(ctx, key, ttl).Result()
	})
	if !ok {
		return false, nil
	}
	s.stats.record(key, "expire", resultOK, started)
	return set, nil
}

// MGet returns the decoded JSON payload of every key, in request order, nil for
// misses. Keys are fetched with one pipelined round trip of individual GETs so the
// call is safe when keys hash to different cluster slots.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return nil, err
		}
	}
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	started := time.Now()
	cmds, ok := call(ctx, s, "mget", keys[0], func(ctx context.Context, c redis.UniversalClient) ([]*redis.StringCmd, error) {
		cmds := make([]*redis.StringCmd, len(keys))
		_, err := c.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, k := range keys {
				cmds[i] = p.Get(ctx, k)
			}
			return nil
		})
		if errors.Is(err, redis.Nil) {
			err = nil
		}
		return cmds, err
	})
	if !ok {
		return out, nil
	}
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			s.stats.record(keys[i], "get", resultMiss, started)
			continue
		}
		plain, ok := s.decode(keys[i], raw)
		if !ok {
			s.stats.record(keys[i], "get", resultMiss, started)
			continue
		}
		out[i] = plain
		s.stats.record(keys[i], "get", resultHit, started)
	}
	return out, nil
}

// MGetInto decodes MGet results into T; misses and undecodable entries are nil.
func MGetInto[T any](ctx context.Context, s *Store, keys []string) ([]*T, error) {
	raws, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			s.warn("cache entry could not be decoded", keys[i], err)
			continue
		}
		out[i] = &v
	}
	return out, nil
}

// MSet writes every entry with the same TTL in one pipelined round trip. It returns
// false if any entry was skipped (sensitive without a key) or the backend failed.
func (s *Store) MSet(ctx context.Context, entries []Entry, ttl time.Duration) (bool, error) {
	ttl, err := s.ttlFor(ttl)
	if err != nil {
		return false, err
	}
	type encoded struct {
		key     string
		payload []byte
	}
	batch := make([]encoded, 0, len(entries))
	complete := true
	for _, e := range entries {
		if err := validateKey(e.Key); err != nil {
			return false, err
		}
		payload, cacheable, err := s.encode(e.Value)
		if err != nil {
			return false, err
		}
		if !cacheable {
			complete = false
			continue
		}
		batch = append(batch, encoded{key: e.Key, payload: payload})
	}
	if len(batch) == 0 {
		return complete && len(entries) == 0, nil
	}
	started := time.Now()
	_, ok := call(ctx, s, "mset", batch[0].key, func(ctx context.Context, c redis.UniversalClient) (struct{}, error) {
		_, err := c.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, b := range batch {
				p.Set(ctx, b.key, b.payload, ttl)
			}
			return nil
		})
		return struct{}{}, err
	})
	if !ok {
		return false, nil
	}
	for _, b := range batch {
		s.stats.record(b.key, "set", resultOK, started)
	}
	return complete, nil
}

// Increment adds amount to the counter at key and re-applies ttl in the same
// transaction, so a counter never outlives its window. Returns 0 when unavailable.
func (s *Store) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	started := time.Now()
	n, ok := call(ctx, s, "incr", key, func(ctx context.Context, c redis.UniversalClient) (int64, error) {
		var incr *redis.IntCmd
		_, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.IncrBy(ctx, key, amount)
			if ttl > 0 {
				p.Expire(ctx, key, ttl)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		return incr.Val(), nil
	})
	if !ok {
		return 0, nil
	}
	s.stats.record(key, "incr", resultOK, started)
	return n, nil
}

// HealthCheck pings the backend directly, bypassing the breaker so that probes
// always reflect the live connection.
func (s *Store) HealthCheck(ctx context.Context) HealthResult {
	latency, err := s.manager.Ping(ctx)
	res := HealthResult{Healthy: err == nil, LatencyMs: float64(latency.Microseconds()) / 1000}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Stats returns the per-namespace tallies sorted by namespace.
func (s *Store) Stats() []NamespaceStats {
	return s.stats.snapshot()
}

// BreakerState reports the state of the cache breaker.
func (s *Store) BreakerState() breaker.State {
	return s.breakers.State(breakerKey)
}

// Encryption reports whether sensitive values can be cached and which key encrypts
// new entries.
func (s *Store) Encryption() (enabled bool, activeKeyID string) {
	if !s.keyring.Enabled() {
		return false, ""
	}
	return true, s.keyring.ActiveKeyID()
}
