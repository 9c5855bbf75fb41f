package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/domain/business"
)

// BusinessRepositoryMock is a lightweight mock for ports.BusinessRepository.
// Lookups default to ErrNotFound, writes to success.
type BusinessRepositoryMock struct {
	CreateFn    func(ctx context.Context, b *business.Business) error
	GetByIDFn   func(ctx context.Context, id uuid.UUID) (*business.Business, error)
	GetBySlugFn func(ctx context.Context, slug string) (*business.Business, error)
	UpdateFn    func(ctx context.Context, b *business.Business) error
	DeleteFn    func(ctx context.Context, id uuid.UUID) error
	ListFn      func(ctx context.Context, limit, offset int) ([]*business.Business, error)
	CountFn     func(ctx context.Context) (int, error)
}

func (m *BusinessRepositoryMock) Create(ctx context.Context, b *business.Business) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, b)
	}
	return nil
}
func (m *BusinessRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, business.ErrNotFound
}
func (m *BusinessRepositoryMock) GetBySlug(ctx context.Context, slug string) (*business.Business, error) {
	if m.GetBySlugFn != nil {
		return m.GetBySlugFn(ctx, slug)
	}
	return nil, business.ErrNotFound
}
func (m *BusinessRepositoryMock) Update(ctx context.Context, b *business.Business) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, b)
	}
	return nil
}
func (m *BusinessRepositoryMock) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}
func (m *BusinessRepositoryMock) List(ctx context.Context, limit, offset int) ([]*business.Business, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, limit, offset)
	}
	return nil, nil
}
func (m *BusinessRepositoryMock) Count(ctx context.Context) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx)
	}
	return 0, nil
}

// BrandRepositoryMock is a lightweight mock for ports.BrandRepository.
type BrandRepositoryMock struct {
	CreateFn        func(ctx context.Context, b *brand.Brand) error
	GetByIDFn       func(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error)
	UpdateFn        func(ctx context.Context, b *brand.Brand) error
	DeleteFn        func(ctx context.Context, businessID, id uuid.UUID) error
	ListFn          func(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error)
	CountFn         func(ctx context.Context, businessID uuid.UUID) (int, error)
	CreateProductFn func(ctx context.Context, p *brand.Product) error
	ListProductsFn  func(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error)
	GetProductFn    func(ctx context.Context, businessID, id uuid.UUID) (*brand.Product, error)
}

func (m *BrandRepositoryMock) Create(ctx context.Context, b *brand.Brand) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, b)
	}
	return nil
}
func (m *BrandRepositoryMock) GetByID(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, businessID, id)
	}
	return nil, brand.ErrNotFound
}
func (m *BrandRepositoryMock) Update(ctx context.Context, b *brand.Brand) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, b)
	}
	return nil
}
func (m *BrandRepositoryMock) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, businessID, id)
	}
	return nil
}
func (m *BrandRepositoryMock) List(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, businessID, params)
	}
	return nil, nil
}
func (m *BrandRepositoryMock) Count(ctx context.Context, businessID uuid.UUID) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, businessID)
	}
	return 0, nil
}
func (m *BrandRepositoryMock) CreateProduct(ctx context.Context, p *brand.Product) error {
	if m.CreateProductFn != nil {
		return m.CreateProductFn(ctx, p)
	}
	return nil
}
func (m *BrandRepositoryMock) ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error) {
	if m.ListProductsFn != nil {
		return m.ListProductsFn(ctx, businessID, brandID)
	}
	return nil, nil
}
func (m *BrandRepositoryMock) GetProduct(ctx context.Context, businessID, id uuid.UUID) (*brand.Product, error) {
	if m.GetProductFn != nil {
		return m.GetProductFn(ctx, businessID, id)
	}
	return nil, brand.ErrProductNotFound
}

// AnalyticsRepositoryMock is a lightweight mock for ports.AnalyticsRepository.
type AnalyticsRepositoryMock struct {
	RecordVoteFn     func(ctx context.Context, v *analytics.Vote) error
	BusinessReportFn func(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error)
}

func (m *AnalyticsRepositoryMock) RecordVote(ctx context.Context, v *analytics.Vote) error {
	if m.RecordVoteFn != nil {
		return m.RecordVoteFn(ctx, v)
	}
	return nil
}
func (m *AnalyticsRepositoryMock) BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error) {
	if m.BusinessReportFn != nil {
		return m.BusinessReportFn(ctx, businessID)
	}
	return &analytics.BusinessReport{BusinessID: businessID}, nil
}

// RateLimitRepositoryMock is a lightweight mock for ports.RateLimitRepository.
type RateLimitRepositoryMock struct {
	IncrementWindowFn func(ctx context.Context, businessID uuid.UUID, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error)
}

func (m *RateLimitRepositoryMock) IncrementWindow(ctx context.Context, businessID uuid.UUID, window time.Duration, keyPrefix string, ttl time.Duration) (int, time.Time, error) {
	if m.IncrementWindowFn != nil {
		return m.IncrementWindowFn(ctx, businessID, window, keyPrefix, ttl)
	}
	return 1, time.Now().Truncate(window), nil
}

// CounterStoreMock is a lightweight mock for ports.CounterStore.
type CounterStoreMock struct {
	IncrementFn func(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)
}

func (m *CounterStoreMock) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	if m.IncrementFn != nil {
		return m.IncrementFn(ctx, key, amount, ttl)
	}
	return amount, nil
}

// BusinessServiceMock is a lightweight mock for ports.BusinessService.
type BusinessServiceMock struct {
	CreateBusinessFn    func(ctx context.Context, req *business.CreateBusinessRequest) (*business.Business, error)
	GetBusinessFn       func(ctx context.Context, id uuid.UUID) (*business.Business, error)
	GetBusinessBySlugFn func(ctx context.Context, slug string) (*business.Business, error)
	GetActiveBusinessFn func(ctx context.Context, id uuid.UUID) (*business.Business, error)
	UpdateBusinessFn    func(ctx context.Context, id uuid.UUID, req *business.UpdateBusinessRequest) (*business.Business, error)
	DeleteBusinessFn    func(ctx context.Context, id uuid.UUID) error
	ListBusinessesFn    func(ctx context.Context, limit, offset int) ([]*business.Business, int, error)
}

func (m *BusinessServiceMock) CreateBusiness(ctx context.Context, req *business.CreateBusinessRequest) (*business.Business, error) {
	if m.CreateBusinessFn != nil {
		return m.CreateBusinessFn(ctx, req)
	}
	return &business.Business{ID: uuid.New(), Name: req.Name, Slug: req.Slug, Status: business.StatusActive}, nil
}
func (m *BusinessServiceMock) GetBusiness(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	if m.GetBusinessFn != nil {
		return m.GetBusinessFn(ctx, id)
	}
	return &business.Business{ID: id, Status: business.StatusActive}, nil
}
func (m *BusinessServiceMock) GetBusinessBySlug(ctx context.Context, slug string) (*business.Business, error) {
	if m.GetBusinessBySlugFn != nil {
		return m.GetBusinessBySlugFn(ctx, slug)
	}
	return nil, business.ErrNotFound
}
func (m *BusinessServiceMock) GetActiveBusiness(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	if m.GetActiveBusinessFn != nil {
		return m.GetActiveBusinessFn(ctx, id)
	}
	return &business.Business{ID: id, Status: business.StatusActive}, nil
}
func (m *BusinessServiceMock) UpdateBusiness(ctx context.Context, id uuid.UUID, req *business.UpdateBusinessRequest) (*business.Business, error) {
	if m.UpdateBusinessFn != nil {
		return m.UpdateBusinessFn(ctx, id, req)
	}
	return &business.Business{ID: id, Status: business.StatusActive}, nil
}
func (m *BusinessServiceMock) DeleteBusiness(ctx context.Context, id uuid.UUID) error {
	if m.DeleteBusinessFn != nil {
		return m.DeleteBusinessFn(ctx, id)
	}
	return nil
}
func (m *BusinessServiceMock) ListBusinesses(ctx context.Context, limit, offset int) ([]*business.Business, int, error) {
	if m.ListBusinessesFn != nil {
		return m.ListBusinessesFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

// BrandServiceMock is a lightweight mock for ports.BrandService.
type BrandServiceMock struct {
	CreateBrandFn   func(ctx context.Context, businessID uuid.UUID, req *brand.CreateBrandRequest) (*brand.Brand, error)
	GetBrandFn      func(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error)
	UpdateBrandFn   func(ctx context.Context, businessID, id uuid.UUID, req *brand.UpdateBrandRequest) (*brand.Brand, error)
	DeleteBrandFn   func(ctx context.Context, businessID, id uuid.UUID) error
	ListBrandsFn    func(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, int, error)
	CreateProductFn func(ctx context.Context, businessID, brandID uuid.UUID, req *brand.CreateProductRequest) (*brand.Product, error)
	ListProductsFn  func(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error)
}

func (m *BrandServiceMock) CreateBrand(ctx context.Context, businessID uuid.UUID, req *brand.CreateBrandRequest) (*brand.Brand, error) {
	if m.CreateBrandFn != nil {
		return m.CreateBrandFn(ctx, businessID, req)
	}
	return &brand.Brand{ID: uuid.New(), BusinessID: businessID, Name: req.Name, Slug: req.Slug}, nil
}
func (m *BrandServiceMock) GetBrand(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error) {
	if m.GetBrandFn != nil {
		return m.GetBrandFn(ctx, businessID, id)
	}
	return nil, brand.ErrNotFound
}
func (m *BrandServiceMock) UpdateBrand(ctx context.Context, businessID, id uuid.UUID, req *brand.UpdateBrandRequest) (*brand.Brand, error) {
	if m.UpdateBrandFn != nil {
		return m.UpdateBrandFn(ctx, businessID, id, req)
	}
	return &brand.Brand{ID: id, BusinessID: businessID}, nil
}
func (m *BrandServiceMock) DeleteBrand(ctx context.Context, businessID, id uuid.UUID) error {
	if m.DeleteBrandFn != nil {
		return m.DeleteBrandFn(ctx, businessID, id)
	}
	return nil
}
func (m *BrandServiceMock) ListBrands(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, int, error) {
	if m.ListBrandsFn != nil {
		return m.ListBrandsFn(ctx, businessID, params)
	}
	return nil, 0, nil
}
func (m *BrandServiceMock) CreateProduct(ctx context.Context, businessID, brandID uuid.UUID, req *brand.CreateProductRequest) (*brand.Product, error) {
	if m.CreateProductFn != nil {
		return m.CreateProductFn(ctx, businessID, brandID, req)
	}
	return &brand.Product{ID: uuid.New(), BrandID: brandID, BusinessID: businessID, Name: req.Name}, nil
}
func (m *BrandServiceMock) ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error) {
	if m.ListProductsFn != nil {
		return m.ListProductsFn(ctx, businessID, brandID)
	}
	return nil, nil
}

// AnalyticsServiceMock is a lightweight mock for ports.AnalyticsService.
type AnalyticsServiceMock struct {
	RecordVoteFn     func(ctx context.Context, businessID uuid.UUID, req *analytics.RecordVoteRequest) (*analytics.Vote, error)
	BusinessReportFn func(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error)
}

func (m *AnalyticsServiceMock) RecordVote(ctx context.Context, businessID uuid.UUID, req *analytics.RecordVoteRequest) (*analytics.Vote, error) {
	if m.RecordVoteFn != nil {
		return m.RecordVoteFn(ctx, businessID, req)
	}
	return &analytics.Vote{ID: uuid.New(), BusinessID: businessID, ProductID: req.ProductID}, nil
}
func (m *AnalyticsServiceMock) BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error) {
	if m.BusinessReportFn != nil {
		return m.BusinessReportFn(ctx, businessID)
	}
	return &analytics.BusinessReport{BusinessID: businessID}, nil
}

// RateLimiterServiceMock is a lightweight mock for ports.RateLimiterService. It
// allows every request unless AllowFn says otherwise.
type RateLimiterServiceMock struct {
	AllowFn func(ctx context.Context, businessID uuid.UUID) (bool, int, int, time.Time, error)
}

func (m *RateLimiterServiceMock) Allow(ctx context.Context, businessID uuid.UUID) (bool, int, int, time.Time, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, businessID)
	}
	return true, 100, 1000, time.Now().Add(time.Minute), nil
}
