package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/avatarctic/brandhub/configs"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
)

func TestParseConnectionSpec(t *testing.T) {
	cases := []struct {
		name  string
		cfg   *config.CacheConfig
		mode  redis.Mode
		addrs []string
		tls   bool
	}{
		{name: "unset", cfg: &config.CacheConfig{}, mode: redis.ModeDisabled},
		{name: "url", cfg: &config.CacheConfig{URL: "redis://:pw@cache:6380/2"}, mode: redis.ModeSingle, addrs: []string{"cache:6380"}},
		{name: "tls url", cfg: &config.CacheConfig{URL: "rediss://cache:6380"}, mode: redis.ModeSingle, addrs: []string{"cache:6380"}, tls: true},
		{name: "bare addr", cfg: &config.CacheConfig{URL: "cache:6379"}, mode: redis.ModeSingle, addrs: []string{"cache:6379"}},
		{name: "comma list", cfg: &config.CacheConfig{URL: "n1:7000, n2:7001"}, mode: redis.ModeCluster, addrs: []string{"n1:7000", "n2:7001"}},
		{name: "cluster nodes", cfg: &config.CacheConfig{ClusterNodes: []string{"a:1", "b:2", "c:3"}, RequireTLS: true}, mode: redis.ModeCluster, addrs: []string{"a:1", "b:2", "c:3"}, tls: true},
		{name: "single node list", cfg: &config.CacheConfig{ClusterNodes: []string{"a:1"}}, mode: redis.ModeSingle, addrs: []string{"a:1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := redis.ParseConnectionSpec(tc.cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.mode, spec.Mode)
			assert.Equal(t, tc.addrs, spec.Addrs)
			assert.Equal(t, tc.tls, spec.TLS)
		})
	}

	_, err := redis.ParseConnectionSpec(&config.CacheConfig{URL: "http://nope"})
	assert.Error(t, err)
}

func TestNewManager_RequiresPasswordInProduction(t *testing.T) {
	_, err := redis.NewManager(&config.CacheConfig{URL: "redis://cache:6379"}, true, nil)
	assert.ErrorIs(t, err, redis.ErrPasswordRequired)

	m, err := redis.NewManager(&config.CacheConfig{URL: "redis://:secret@cache:6379"}, true, nil)
	require.NoError(t, err)
	_ = m.Close()

	m, err = redis.NewManager(&config.CacheConfig{URL: "redis://cache:6379"}, false, nil)
	require.NoError(t, err)
	_ = m.Close()
}

func TestNewManager_TLSFilesMustExist(t *testing.T) {
	_, err := redis.NewManager(&config.CacheConfig{URL: "redis://cache:6379", RequireTLS: true, TLSCAFile: "/nonexistent/ca.pem"}, false, nil)
	assert.Error(t, err)
}

func TestManager_StatusTransitions(t *testing.T) {
	mr := miniredis.RunT(t)
	m, err := redis.NewManager(&config.CacheConfig{URL: "redis://" + mr.Addr()}, false, nil)
	require.NoError(t, err)
	defer m.Close()

	var mu sync.Mutex
	var seen []redis.Status
	m.OnStatusChange(func(from, to redis.Status) {
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	})

	status, _ := m.Status()
	assert.Equal(t, redis.StatusDisconnected, status)
	require.NoError(t, m.Connect(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, redis.StatusConnecting, seen[0])
	assert.Contains(t, seen, redis.StatusConnected)
	assert.Equal(t, redis.StatusReady, seen[len(seen)-1])
}

func TestManager_ErrorThenRecovery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	m := redis.NewManagerWithClient(client, nil)
	ctx := context.Background()

	_, err := m.Ping(ctx)
	require.NoError(t, err)

	mr.SetError("LOADING dataset in memory")
	_, err = m.Ping(ctx)
	require.Error(t, err)
	status, lastErr := m.Status()
	assert.Equal(t, redis.StatusError, status)
	assert.Error(t, lastErr)

	mr.SetError("")
	_, err = m.Ping(ctx)
	require.NoError(t, err)
	status, _ = m.Status()
	assert.Equal(t, redis.StatusReady, status)
}

func TestManager_AuthFailureLockout(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("correct-horse")
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), Password: "wrong", MaxRetries: -1})
	defer client.Close()
	m := redis.NewManagerWithClient(client, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Ping(ctx)
		require.Error(t, err)
	}
	assert.True(t, m.LockedOut())
	_, ok := m.Client()
	assert.False(t, ok)

	_, err := m.Ping(ctx)
	assert.ErrorIs(t, err, redis.ErrAuthLockout)
}

func TestManager_SuccessResetsAuthFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	m := redis.NewManagerWithClient(client, nil)
	ctx := context.Background()
	authErr := errors.New("WRONGPASS invalid username-password pair")

	m.ReportError(authErr)
	m.ReportError(authErr)
	_, err := m.Ping(ctx)
	require.NoError(t, err)

	m.ReportError(authErr)
	m.ReportError(authErr)
	assert.False(t, m.LockedOut(), "failures separated by a success are not consecutive")

	m.ReportError(authErr)
	assert.True(t, m.LockedOut())
}

func TestManager_ClientUnavailableWhenDisabled(t *testing.T) {
	m, err := redis.NewManager(&config.CacheConfig{}, false, nil)
	require.NoError(t, err)
	_, ok := m.Client()
	assert.False(t, ok)
	assert.ErrorIs(t, m.Connect(context.Background()), redis.ErrCacheDisabled)
	_, err = m.Ping(context.Background())
	assert.ErrorIs(t, err, redis.ErrCacheDisabled)
	assert.NoError(t, m.Close())
}
