package repositories_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/infrastructure/envelope"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
	"github.com/avatarctic/brandhub/internal/infrastructure/repositories"
	tmocks "github.com/avatarctic/brandhub/test/mocks"
)

func newStore(t *testing.T, encrypted bool) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	var entries []string
	if encrypted {
		entries = append(entries, hex.EncodeToString(bytes.Repeat([]byte{7}, envelope.KeySize)))
	}
	ring, err := envelope.NewKeyring(entries)
	require.NoError(t, err)
	m := redis.NewManagerWithClient(client, nil)
	return redis.NewStore(m, ring, nil, redis.StoreOptions{Prefix: "bh", DefaultTTL: time.Minute, OpTimeout: time.Second}, nil), mr
}

func countingBusinessRepo(b *business.Business, calls *int) *tmocks.BusinessRepositoryMock {
	return &tmocks.BusinessRepositoryMock{GetByIDFn: func(ctx context.Context, id uuid.UUID) (*business.Business, error) {
		*calls++
		cp := *b
		return &cp, nil
	}}
}

func TestCachingBusinessRepository_CachesEncryptedAndInvalidatesOnUpdate(t *testing.T) {
	store, mr := newStore(t, true)
	b := &business.Business{ID: uuid.New(), Name: "Acme", Slug: "acme", ContactEmail: "ops@acme.test", Status: business.StatusActive}
	calls := 0
	repo := repositories.NewCachingBusinessRepository(countingBusinessRepo(b, &calls), store, time.Minute)
	ctx := context.Background()

	first, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.ContactEmail, second.ContactEmail)

	raw, err := mr.Get("bh:business:" + b.ID.String())
	require.NoError(t, err)
	assert.NotContains(t, raw, "ops@acme.test")

	require.NoError(t, repo.Update(ctx, b))
	_, err = repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachingBusinessRepository_SkipsSensitiveValuesWithoutKey(t *testing.T) {
	store, mr := newStore(t, false)
	b := &business.Business{ID: uuid.New(), Name: "Acme", Slug: "acme", ContactEmail: "ops@acme.test"}
	calls := 0
	repo := repositories.NewCachingBusinessRepository(countingBusinessRepo(b, &calls), store, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := repo.GetByID(context.Background(), b.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
	assert.False(t, mr.Exists("bh:business:"+b.ID.String()))
}

func TestCachingBusinessRepository_NotFoundIsNotCached(t *testing.T) {
	store, _ := newStore(t, true)
	calls := 0
	inner := &tmocks.BusinessRepositoryMock{GetByIDFn: func(ctx context.Context, id uuid.UUID) (*business.Business, error) {
		calls++
		return nil, business.ErrNotFound
	}}
	repo := repositories.NewCachingBusinessRepository(inner, store, time.Minute)
	id := uuid.New()

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, business.ErrNotFound)
	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, business.ErrNotFound)
	assert.Equal(t, 2, calls)
}

func TestCachingBrandRepository_ProductWriteDropsBusinessEntries(t *testing.T) {
	store, _ := newStore(t, false)
	bizID, brandID := uuid.New(), uuid.New()
	listCalls, productCalls := 0, 0
	inner := &tmocks.BrandRepositoryMock{
		ListFn: func(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error) {
			listCalls++
			return []*brand.Brand{{ID: brandID, BusinessID: businessID, Name: "Acme"}}, nil
		},
		ListProductsFn: func(ctx context.Context, businessID, id uuid.UUID) ([]*brand.Product, error) {
			productCalls++
			return []*brand.Product{{ID: uuid.New(), BrandID: id, BusinessID: businessID, Name: "Widget"}}, nil
		},
	}
	repo := repositories.NewCachingBrandRepository(inner, store, time.Minute)
	ctx := context.Background()
	params := brand.ListParams{Search: "ac", Limit: 10}

	for i := 0; i < 2; i++ {
		_, err := repo.List(ctx, bizID, params)
		require.NoError(t, err)
		_, err = repo.ListProducts(ctx, bizID, brandID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, listCalls)
	assert.Equal(t, 1, productCalls)

	require.NoError(t, repo.CreateProduct(ctx, &brand.Product{ID: uuid.New(), BrandID: brandID, BusinessID: bizID, Name: "Gadget"}))

	_, err := repo.List(ctx, bizID, params)
	require.NoError(t, err)
	_, err = repo.ListProducts(ctx, bizID, brandID)
	require.NoError(t, err)
	assert.Equal(t, 2, listCalls)
	assert.Equal(t, 2, productCalls)
}

func TestCachingBrandRepository_OtherBusinessUnaffected(t *testing.T) {
	store, _ := newStore(t, false)
	a, b := uuid.New(), uuid.New()
	calls := map[uuid.UUID]int{}
	inner := &tmocks.BrandRepositoryMock{CountFn: func(ctx context.Context, businessID uuid.UUID) (int, error) {
		calls[businessID]++
		return 1, nil
	}}
	repo := repositories.NewCachingBrandRepository(inner, store, time.Minute)
	ctx := context.Background()

	_, _ = repo.Count(ctx, a)
	_, _ = repo.Count(ctx, b)
	require.NoError(t, repo.Create(ctx, &brand.Brand{ID: uuid.New(), BusinessID: a, Name: "New", Slug: "new"}))
	_, _ = repo.Count(ctx, a)
	_, _ = repo.Count(ctx, b)

	assert.Equal(t, 2, calls[a])
	assert.Equal(t, 1, calls[b])
}

func TestCachingAnalyticsRepository_VoteRebuildsReport(t *testing.T) {
	store, _ := newStore(t, false)
	bizID := uuid.New()
	builds := 0
	inner := &tmocks.AnalyticsRepositoryMock{BusinessReportFn: func(ctx context.Context, id uuid.UUID) (*analytics.BusinessReport, error) {
		builds++
		return &analytics.BusinessReport{BusinessID: id, TotalVotes: int64(builds)}, nil
	}}
	repo := repositories.NewCachingAnalyticsRepository(inner, store, 30*time.Second, nil)
	ctx := context.Background()

	r1, err := repo.BusinessReport(ctx, bizID)
	require.NoError(t, err)
	r2, err := repo.BusinessReport(ctx, bizID)
	require.NoError(t, err)
	assert.Equal(t, r1.TotalVotes, r2.TotalVotes)
	assert.Equal(t, 1, builds)

	require.NoError(t, repo.RecordVote(ctx, &analytics.Vote{ID: uuid.New(), BusinessID: bizID, ProductID: uuid.New()}))
	r3, err := repo.BusinessReport(ctx, bizID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r3.TotalVotes)
}

func TestCachingRepositories_ServeFromDatabaseWhenCacheDown(t *testing.T) {
	store, mr := newStore(t, false)
	mr.Close()
	calls := 0
	inner := &tmocks.BrandRepositoryMock{CountFn: func(ctx context.Context, businessID uuid.UUID) (int, error) {
		calls++
		return 4, nil
	}}
	repo := repositories.NewCachingBrandRepository(inner, store, time.Minute)

	n, err := repo.Count(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, repo.Create(context.Background(), &brand.Brand{ID: uuid.New(), BusinessID: uuid.New()}))
	assert.Equal(t, 1, calls)
}

func TestRateLimitRepository_CountsPerWindow(t *testing.T) {
	store, mr := newStore(t, false)
	repo := repositories.NewRateLimitRepository(store)
	bizID := uuid.New()
	ctx := context.Background()

	n1, start1, err := repo.IncrementWindow(ctx, bizID, time.Hour, "bh:ratelimit", 2*time.Hour)
	require.NoError(t, err)
	n2, start2, err := repo.IncrementWindow(ctx, bizID, time.Hour, "bh:ratelimit", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)
	assert.Equal(t, start1, start1.Truncate(time.Hour))
	if start1.Equal(start2) {
		assert.Equal(t, 2, n2)
	} else {
		assert.Equal(t, 1, n2)
	}

	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "bh:ratelimit:"+bizID.String()+":") {
			keys = append(keys, k)
		}
	}
	require.NotEmpty(t, keys)
	assert.True(t, mr.TTL(keys[0]) > 0)
}

func TestRateLimitRepository_UnavailableStoreReadsZero(t *testing.T) {
	store, mr := newStore(t, false)
	mr.Close()
	repo := repositories.NewRateLimitRepository(store)

	n, _, err := repo.IncrementWindow(context.Background(), uuid.New(), time.Minute, "bh:ratelimit", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}
