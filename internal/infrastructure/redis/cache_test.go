package redis_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/envelope"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
)

type profile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

func ringFor(t *testing.T, bs ...byte) *envelope.Keyring {
	t.Helper()
	var entries []string
	for _, b := range bs {
		entries = append(entries, hex.EncodeToString(bytes.Repeat([]byte{b}, envelope.KeySize)))
	}
	ring, err := envelope.NewKeyring(entries)
	require.NoError(t, err)
	return ring
}

func newStore(t *testing.T, ring *envelope.Keyring) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	m := redis.NewManagerWithClient(client, nil)
	return redis.NewStore(m, ring, nil, redis.StoreOptions{Prefix: "test", DefaultTTL: time.Minute, OpTimeout: time.Second}, nil), mr
}

func TestStore_SetGetAndDefaultTTL(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("brand", "1")
	assert.Equal(t, "test:brand:1", key)

	ok, err := s.Set(ctx, key, profile{ID: "1", Name: "Acme"}, ports.CacheOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	var got profile
	ok, err = s.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Acme", got.Name)

	ok, err = s.Get(ctx, s.Key("brand", "missing"), &got)
	require.NoError(t, err)
	assert.False(t, ok)

	stats := s.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "brand", stats[0].Namespace)
	assert.Equal(t, int64(1), stats[0].Hits)
	assert.Equal(t, int64(1), stats[0].Misses)
	assert.InDelta(t, 0.5, stats[0].HitRate, 0.001)
}

func TestStore_EntryExpires(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("brand", "ttl")
	_, err := s.Set(ctx, key, "v", ports.CacheOptions{TTL: 10 * time.Second})
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)
	var v string
	ok, err := s.Get(ctx, key, &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RejectsMisuse(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()
	var v string

	_, err := s.Get(ctx, "", &v)
	assert.ErrorIs(t, err, redis.ErrInvalidKey)
	_, err = s.Set(ctx, "has space", "x", ports.CacheOptions{})
	assert.ErrorIs(t, err, redis.ErrInvalidKey)
	_, err = s.Set(ctx, "k", "x", ports.CacheOptions{TTL: -time.Second})
	assert.ErrorIs(t, err, redis.ErrInvalidTTL)
	_, err = s.Increment(ctx, "k", 1, -time.Second)
	assert.ErrorIs(t, err, redis.ErrInvalidTTL)
	_, err = s.Expire(ctx, "k", 0)
	assert.ErrorIs(t, err, redis.ErrInvalidTTL)
	_, err = s.MGet(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, redis.ErrInvalidKey)
}

func TestStore_SensitiveValueNotCachedWithoutKey(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("business", "1")

	ok, err := s.Set(ctx, key, profile{ID: "1", ContactEmail: "ops@acme.io"}, ports.CacheOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(key))
}

func TestStore_SensitiveValueEncrypted(t *testing.T) {
	s, mr := newStore(t, ringFor(t, 1))
	ctx := context.Background()
	key := s.Key("business", "1")

	ok, err := s.Set(ctx, key, profile{ID: "1", ContactEmail: "ops@acme.io", PasswordHash: "x"}, ports.CacheOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	raw, err := mr.Get(key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "enc:"))
	assert.NotContains(t, raw, "ops@acme.io")

	var got profile
	ok, err = s.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ops@acme.io", got.ContactEmail)
	assert.Empty(t, got.PasswordHash, "password hashes are never cached")
}

func TestStore_PasswordFieldsStripped(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("user", "1")
	value := map[string]any{"id": "1", "password": "hunter2", "nested": map[string]any{"salt": "abc", "keep": true}}

	ok, err := s.Set(ctx, key, value, ports.CacheOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	raw, err := mr.Get(key)
	require.NoError(t, err)
	assert.NotContains(t, raw, "hunter2")
	assert.NotContains(t, raw, "salt")
	assert.Contains(t, raw, "keep")
}

func TestStore_StrippingKeepsLargeIntegersExact(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("account", "big")
	type account struct {
		ID       uint64  `json:"id"`
		Balance  float64 `json:"balance"`
		Password string  `json:"password,omitempty"`
	}

	ok, err := s.Set(ctx, key, account{ID: 9007199254740993, Balance: 12.5, Password: "x"}, ports.CacheOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	var out account
	hit, err := s.Get(ctx, key, &out)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, uint64(9007199254740993), out.ID)
	assert.Equal(t, 12.5, out.Balance)
	assert.Empty(t, out.Password)
}

func TestStore_TamperedEnvelopeIsMiss(t *testing.T) {
	s, mr := newStore(t, ringFor(t, 2))
	ctx := context.Background()
	key := s.Key("business", "2")
	_, err := s.Set(ctx, key, profile{ID: "2", ContactEmail: "a@b.c"}, ports.CacheOptions{})
	require.NoError(t, err)

	raw, err := mr.Get(key)
	require.NoError(t, err)
	parts := strings.Split(raw, ":")
	// parts: "enc", keyId, iv, tag, ct
	parts[4] = "AAAA" + parts[4][4:]
	require.NoError(t, mr.Set(key, strings.Join(parts, ":")))

	var got profile
	ok, err := s.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReadsEntriesWrittenBeforeRotation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	m := redis.NewManagerWithClient(client, nil)
	ctx := context.Background()

	before := redis.NewStore(m, ringFor(t, 3), nil, redis.StoreOptions{}, nil)
	key := before.Key("business", "r")
	_, err := before.Set(ctx, key, profile{ID: "r", ContactEmail: "x@y.z"}, ports.CacheOptions{})
	require.NoError(t, err)

	after := redis.NewStore(m, ringFor(t, 4, 3), nil, redis.StoreOptions{}, nil)
	var got profile
	ok, err := after.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x@y.z", got.ContactEmail)

	retired := redis.NewStore(m, ringFor(t, 4), nil, redis.StoreOptions{}, nil)
	ok, err = retired.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, ok, "entries under a removed key read as misses")
}

func TestStore_InvalidateByTags(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	set := func(id string, tags ...string) string {
		k := s.Key("brand", id)
		ok, err := s.Set(ctx, k, id, ports.CacheOptions{Tags: tags})
		require.NoError(t, err)
		require.True(t, ok)
		return k
	}
	a := set("a", "business:1")
	b := set("b", "business:1", "brand:b")
	c := set("c", "brand:c")
	d := set("d")

	require.NoError(t, s.InvalidateByTags(ctx, "business:1"))
	assert.False(t, mr.Exists(a))
	assert.False(t, mr.Exists(b))
	assert.True(t, mr.Exists(c))
	assert.True(t, mr.Exists(d))

	var v string
	ok, err := s.Get(ctx, b, &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:tag:business:1"), "invalidated members are removed from the tag set")

	require.NoError(t, s.InvalidateByTags(ctx, "business:unknown"))
	assert.ErrorIs(t, s.InvalidateByTags(ctx, ""), redis.ErrInvalidKey)
}

// retagOnDelete plays a writer that re-sets key with tag right after the
// invalidation has deleted members.
type retagOnDelete struct {
	mr       *miniredis.Miniredis
	key, set string
	fired    bool
}

func (h *retagOnDelete) retag(cmds ...goredis.Cmder) {
	for _, cmd := range cmds {
		if cmd.Name() == "del" && !h.fired {
			h.fired = true
			_ = h.mr.Set(h.key, `"fresh"`)
			_, _ = h.mr.SetAdd(h.set, h.key)
		}
	}
}

func (h *retagOnDelete) BeforeProcess(ctx context.Context, cmd goredis.Cmder) (context.Context, error) {
	return ctx, nil
}
func (h *retagOnDelete) AfterProcess(ctx context.Context, cmd goredis.Cmder) error {
	h.retag(cmd)
	return nil
}
func (h *retagOnDelete) BeforeProcessPipeline(ctx context.Context, cmds []goredis.Cmder) (context.Context, error) {
	return ctx, nil
}
func (h *retagOnDelete) AfterProcessPipeline(ctx context.Context, cmds []goredis.Cmder) error {
	h.retag(cmds...)
	return nil
}

func TestStore_InvalidateKeepsConcurrentlyRetaggedKeyReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	s := redis.NewStore(redis.NewManagerWithClient(client, nil), nil, nil, redis.StoreOptions{Prefix: "test", OpTimeout: time.Second}, nil)
	ctx := context.Background()
	key := s.Key("brand", "race")
	tagSet := redis.BuildKey("tag", "business:1", "test")

	_, err := s.Set(ctx, key, "stale", ports.CacheOptions{Tags: []string{"business:1"}})
	require.NoError(t, err)
	hook := &retagOnDelete{mr: mr, key: key, set: tagSet}
	client.AddHook(hook)

	require.NoError(t, s.InvalidateByTags(ctx, "business:1"))
	require.True(t, hook.fired)

	if mr.Exists(key) {
		member, err := mr.IsMember(tagSet, key)
		require.NoError(t, err)
		assert.True(t, member, "a live entry must stay reachable from its tag")
	}
	require.NoError(t, s.InvalidateByTags(ctx, "business:1"))
	assert.False(t, mr.Exists(key))
}

func TestStore_TagSetOutlivesEntry(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	_, err := s.Set(ctx, s.Key("brand", "long"), "v", ports.CacheOptions{TTL: 48 * time.Hour, Tags: []string{"t"}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mr.TTL("test:tag:t"), 48*time.Hour)
}

func TestStore_MGetPreservesOrder(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()
	k1, k2, k3 := s.Key("p", "1"), s.Key("p", "2"), s.Key("p", "3")
	ok, err := s.MSet(ctx, []redis.Entry{{Key: k1, Value: profile{ID: "1"}}, {Key: k3, Value: profile{ID: "3"}}}, 0)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := redis.MGetInto[profile](ctx, s, []string{k3, k2, k1})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].ID)
	assert.Nil(t, got[1])
	assert.Equal(t, "1", got[2].ID)
}

func TestStore_MSetSkipsSensitiveWithoutKey(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	k1, k2 := s.Key("p", "plain"), s.Key("p", "secret")
	ok, err := s.MSet(ctx, []redis.Entry{{Key: k1, Value: profile{ID: "1"}}, {Key: k2, Value: profile{ContactEmail: "a@b.c"}}}, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists(k1))
	assert.False(t, mr.Exists(k2))
}

func TestStore_IncrementReappliesTTL(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("ratelimit", "b1")

	n, err := s.Increment(ctx, key, 1, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	mr.FastForward(20 * time.Second)
	n, err = s.Increment(ctx, key, 2, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	var count int64
	ok, err := s.Get(ctx, key, &count)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), count)

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(key))
}

func TestStore_DeleteExistsExpire(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("brand", "x")
	_, err := s.Set(ctx, key, 1, ports.CacheOptions{})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Expire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, mr.TTL(key))

	ok, err = s.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DegradesWhenBackendDown(t *testing.T) {
	s, mr := newStore(t, ringFor(t, 5))
	ctx := context.Background()
	key := s.Key("brand", "down")
	mr.Close()

	var v string
	ok, err := s.Get(ctx, key, &v)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Set(ctx, key, "v", ports.CacheOptions{Tags: []string{"t"}})
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Increment(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	vals, err := s.MGet(ctx, []string{key, key})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{nil, nil}, vals)

	assert.ErrorIs(t, s.InvalidateByTags(ctx, "t"), redis.ErrCacheUnavailable)

	h := s.HealthCheck(ctx)
	assert.False(t, h.Healthy)
	assert.NotEmpty(t, h.Error)
}

func TestStore_DisabledBackend(t *testing.T) {
	m, err := redis.NewManager(nil, true, nil)
	require.NoError(t, err)
	s := redis.NewStore(m, nil, nil, redis.StoreOptions{}, nil)
	ctx := context.Background()

	ok, err := s.Set(ctx, s.Key("brand", "1"), "v", ports.CacheOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	var v string
	ok, err = s.Get(ctx, s.Key("brand", "1"), &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.InvalidateByTags(ctx, "business:1"))
	status, _ := m.Status()
	assert.Equal(t, redis.StatusDisabled, status)
}

func TestStore_BreakerOpensOnRepeatedFailures(t *testing.T) {
	s, mr := newStore(t, nil)
	ctx := context.Background()
	mr.SetError("READONLY simulated failure")
	var v string
	for i := 0; i < 5; i++ {
		_, _ = s.Get(ctx, s.Key("brand", "x"), &v)
	}
	assert.Equal(t, "open", string(s.BreakerState()))

	mr.SetError("")
	ok, err := s.Set(ctx, s.Key("brand", "x"), "v", ports.CacheOptions{})
	require.NoError(t, err)
	assert.False(t, ok, "open breaker short-circuits to the degraded path")
}

func TestRemember_LoadsOnceAndCaches(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("report", "b1")
	calls := 0
	load := func(ctx context.Context) (profile, error) {
		calls++
		return profile{ID: "b1", Name: "Report"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := redis.Remember(ctx, s, key, ports.CacheOptions{TTL: time.Minute}, load)
		require.NoError(t, err)
		assert.Equal(t, "Report", got.Name)
	}
	assert.Equal(t, 1, calls)
}

func TestRemember_FallsBackWhenCacheDown(t *testing.T) {
	s, mr := newStore(t, nil)
	mr.Close()
	calls := 0
	got, err := redis.Remember(context.Background(), s, s.Key("report", "x"), ports.CacheOptions{}, func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, calls)
}

func TestInvalidate_DropsTaggedEntriesAfterWrite(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()
	key := s.Key("brand", "b1")
	_, err := s.Set(ctx, key, "old", ports.CacheOptions{Tags: []string{"business:1"}})
	require.NoError(t, err)

	failed := errors.New("write failed")
	err = redis.Invalidate(ctx, s, func(ctx context.Context) error { return failed }, "business:1")
	assert.ErrorIs(t, err, failed)
	var v string
	ok, _ := s.Get(ctx, key, &v)
	assert.True(t, ok, "a failed write leaves the cache alone")

	require.NoError(t, redis.Invalidate(ctx, s, func(ctx context.Context) error { return nil }, "business:1"))
	ok, _ = s.Get(ctx, key, &v)
	assert.False(t, ok)
}

func TestInvalidate_IgnoresUnreachableCache(t *testing.T) {
	s, mr := newStore(t, nil)
	mr.Close()
	wrote := false
	err := redis.Invalidate(context.Background(), s, func(ctx context.Context) error {
		wrote = true
		return nil
	}, "business:1")
	require.NoError(t, err)
	assert.True(t, wrote)
}
