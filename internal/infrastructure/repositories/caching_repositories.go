package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
)

// Tags shared by the caching decorators. Every entry derived from a business's rows
// carries BusinessTag so one invalidation drops all of them.
func BusinessTag(id uuid.UUID) string { return "business:" + id.String() }
func BrandTag(id uuid.UUID) string    { return "brand:" + id.String() }

const businessListTag = "businesses"

// CachingBusinessRepository decorates a BusinessRepository with cache-aside reads and
// tag invalidation on writes.
type CachingBusinessRepository struct {
	inner ports.BusinessRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingBusinessRepository(inner ports.BusinessRepository, cache ports.Cache, ttl time.Duration) ports.BusinessRepository {
	return &CachingBusinessRepository{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingBusinessRepository) entryOpts(id uuid.UUID) ports.CacheOptions {
	return ports.CacheOptions{TTL: c.ttl, Tags: []string{BusinessTag(id)}}
}

func (c *CachingBusinessRepository) Create(ctx context.Context, b *business.Business) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.Create(ctx, b)
	}, businessListTag)
}

func (c *CachingBusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	return redis.Remember(ctx, c.cache, c.cache.Key("business", id.String()), c.entryOpts(id),
		func(ctx context.Context) (*business.Business, error) {
			return c.inner.GetByID(ctx, id)
		})
}

// GetBySlug caches under the slug but tags with the id, so id-based invalidation
// also drops slug lookups.
func (c *CachingBusinessRepository) GetBySlug(ctx context.Context, slug string) (*business.Business, error) {
	key := c.cache.Key("business", "slug:"+slug)
	var cached business.Business
	if ok, err := c.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}
	b, err := c.inner.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	_, _ = c.cache.Set(ctx, key, b, c.entryOpts(b.ID))
	return b, nil
}

func (c *CachingBusinessRepository) Update(ctx context.Context, b *business.Business) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.Update(ctx, b)
	}, BusinessTag(b.ID), businessListTag)
}

func (c *CachingBusinessRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.Delete(ctx, id)
	}, BusinessTag(id), businessListTag)
}

func (c *CachingBusinessRepository) List(ctx context.Context, limit, offset int) ([]*business.Business, error) {
	key, err := c.cache.SearchKey("businesses", map[string]int{"limit": limit, "offset": offset})
	if err != nil {
		return c.inner.List(ctx, limit, offset)
	}
	return redis.Remember(ctx, c.cache, key, ports.CacheOptions{TTL: c.ttl, Tags: []string{businessListTag}},
		func(ctx context.Context) ([]*business.Business, error) {
			return c.inner.List(ctx, limit, offset)
		})
}

func (c *CachingBusinessRepository) Count(ctx context.Context) (int, error) {
	return redis.Remember(ctx, c.cache, c.cache.Key("businesses", "count"), ports.CacheOptions{TTL: c.ttl, Tags: []string{businessListTag}},
		c.inner.Count)
}

// CachingBrandRepository decorates a BrandRepository. Entries are tagged with the
// owning business and, where a single brand is concerned, with the brand itself.
type CachingBrandRepository struct {
	inner ports.BrandRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingBrandRepository(inner ports.BrandRepository, cache ports.Cache, ttl time.Duration) ports.BrandRepository {
	return &CachingBrandRepository{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingBrandRepository) opts(tags ...string) ports.CacheOptions {
	return ports.CacheOptions{TTL: c.ttl, Tags: tags}
}

func (c *CachingBrandRepository) Create(ctx context.Context, b *brand.Brand) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.Create(ctx, b)
	}, BusinessTag(b.BusinessID))
}

func (c *CachingBrandRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error) {
	key := c.cache.Key("brand", businessID.String()+":"+id.String())
	return redis.Remember(ctx, c.cache, key, c.opts(BusinessTag(businessID), BrandTag(id)),
		func(ctx context.Context) (*brand.Brand, error) {
			return c.inner.GetByID(ctx, businessID, id)
		})
}

func (c *CachingBrandRepository) Update(ctx context.Context, b *brand.Brand) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.Update(ctx, b)
	}, BusinessTag(b.BusinessID), BrandTag(b.ID))
}

func (c *CachingBrandRepository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.Delete(ctx, businessID, id)
	}, BusinessTag(businessID), BrandTag(id))
}

type brandListQuery struct {
	BusinessID uuid.UUID        `json:"business_id"`
	Params     brand.ListParams `json:"params"`
}

func (c *CachingBrandRepository) List(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error) {
	params = params.Normalize()
	key, err := c.cache.SearchKey("brands", brandListQuery{BusinessID: businessID, Params: params})
	if err != nil {
		return c.inner.List(ctx, businessID, params)
	}
	return redis.Remember(ctx, c.cache, key, c.opts(BusinessTag(businessID)),
		func(ctx context.Context) ([]*brand.Brand, error) {
			return c.inner.List(ctx, businessID, params)
		})
}

func (c *CachingBrandRepository) Count(ctx context.Context, businessID uuid.UUID) (int, error) {
	return redis.Remember(ctx, c.cache, c.cache.Key("brands", "count:"+businessID.String()), c.opts(BusinessTag(businessID)),
		func(ctx context.Context) (int, error) {
			return c.inner.Count(ctx, businessID)
		})
}

func (c *CachingBrandRepository) CreateProduct(ctx context.Context, p *brand.Product) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.CreateProduct(ctx, p)
	}, BusinessTag(p.BusinessID), BrandTag(p.BrandID))
}

func (c *CachingBrandRepository) ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error) {
	key := c.cache.Key("products", businessID.String()+":"+brandID.String())
	return redis.Remember(ctx, c.cache, key, c.opts(BusinessTag(businessID), BrandTag(brandID)),
		func(ctx context.Context) ([]*brand.Product, error) {
			return c.inner.ListProducts(ctx, businessID, brandID)
		})
}

func (c *CachingBrandRepository) GetProduct(ctx context.Context, businessID, id uuid.UUID) (*brand.Product, error) {
	return c.inner.GetProduct(ctx, businessID, id)
}

// CachingAnalyticsRepository keeps business reports for a short TTL. Recording a
// vote invalidates the business tag so the next report is rebuilt.
type CachingAnalyticsRepository struct {
	inner  ports.AnalyticsRepository
	cache  ports.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachingAnalyticsRepository(inner ports.AnalyticsRepository, cache ports.Cache, ttl time.Duration, logger *logrus.Logger) ports.AnalyticsRepository {
	return &CachingAnalyticsRepository{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachingAnalyticsRepository) RecordVote(ctx context.Context, v *analytics.Vote) error {
	return redis.Invalidate(ctx, c.cache, func(ctx context.Context) error {
		return c.inner.RecordVote(ctx, v)
	}, BusinessTag(v.BusinessID))
}

func (c *CachingAnalyticsRepository) BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error) {
	key := c.cache.Key("report", businessID.String())
	report, err := redis.Remember(ctx, c.cache, key, ports.CacheOptions{TTL: c.ttl, Tags: []string{BusinessTag(businessID)}},
		func(ctx context.Context) (*analytics.BusinessReport, error) {
			return c.inner.BusinessReport(ctx, businessID)
		})
	if err != nil && c.logger != nil {
		c.logger.WithError(err).WithField("business_id", businessID).Warn("business report failed")
	}
	return report, err
}
