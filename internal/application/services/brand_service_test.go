package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/brandhub/internal/application/services"
	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/domain/business"
	tmocks "github.com/avatarctic/brandhub/test/mocks"
)

func businessWithMaxBrands(n int) *tmocks.BusinessRepositoryMock {
	return &tmocks.BusinessRepositoryMock{GetByIDFn: func(ctx context.Context, id uuid.UUID) (*business.Business, error) {
		return &business.Business{ID: id, Status: business.StatusActive, Settings: business.Settings{Limits: business.Limits{MaxBrands: n}}}, nil
	}}
}

func TestCreateBrand_Success(t *testing.T) {
	bizID := uuid.New()
	var stored *brand.Brand
	repo := &tmocks.BrandRepositoryMock{CreateFn: func(ctx context.Context, b *brand.Brand) error {
		stored = b
		return nil
	}}
	svc := impl.NewBrandService(repo, businessWithMaxBrands(0), nil)

	b, err := svc.CreateBrand(context.Background(), bizID, &brand.CreateBrandRequest{Name: "Acme", Slug: "acme", Website: "https://acme.test"})
	require.NoError(t, err)
	require.Same(t, stored, b)
	assert.Equal(t, bizID, b.BusinessID)
}

func TestCreateBrand_LimitReached(t *testing.T) {
	repo := &tmocks.BrandRepositoryMock{
		CountFn: func(ctx context.Context, businessID uuid.UUID) (int, error) { return 3, nil },
		CreateFn: func(ctx context.Context, b *brand.Brand) error {
			t.Fatal("create must not be called past the limit")
			return nil
		},
	}
	svc := impl.NewBrandService(repo, businessWithMaxBrands(3), nil)

	_, err := svc.CreateBrand(context.Background(), uuid.New(), &brand.CreateBrandRequest{Name: "Acme", Slug: "acme"})
	assert.ErrorIs(t, err, brand.ErrLimitReached)
}

func TestCreateBrand_ZeroLimitIsUnlimited(t *testing.T) {
	repo := &tmocks.BrandRepositoryMock{CountFn: func(ctx context.Context, businessID uuid.UUID) (int, error) {
		t.Fatal("count is not needed without a limit")
		return 0, nil
	}}
	svc := impl.NewBrandService(repo, businessWithMaxBrands(0), nil)

	_, err := svc.CreateBrand(context.Background(), uuid.New(), &brand.CreateBrandRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
}

func TestCreateBrand_RejectsBadWebsite(t *testing.T) {
	svc := impl.NewBrandService(&tmocks.BrandRepositoryMock{}, businessWithMaxBrands(0), nil)

	_, err := svc.CreateBrand(context.Background(), uuid.New(), &brand.CreateBrandRequest{Name: "Acme", Slug: "acme", Website: "ftp://acme"})
	assert.ErrorIs(t, err, brand.ErrInvalidRequest)
}

func TestUpdateBrand_AppliesPartialChanges(t *testing.T) {
	bizID, id := uuid.New(), uuid.New()
	loaded := &brand.Brand{ID: id, BusinessID: bizID, Name: "Old", Slug: "old", Description: "keep"}
	var updated *brand.Brand
	repo := &tmocks.BrandRepositoryMock{
		GetByIDFn: func(ctx context.Context, gotBiz, gotID uuid.UUID) (*brand.Brand, error) {
			assert.Equal(t, bizID, gotBiz)
			return loaded, nil
		},
		UpdateFn: func(ctx context.Context, b *brand.Brand) error {
			updated = b
			return nil
		},
	}
	svc := impl.NewBrandService(repo, nil, nil)

	name := "New"
	b, err := svc.UpdateBrand(context.Background(), bizID, id, &brand.UpdateBrandRequest{Name: &name})
	require.NoError(t, err)
	assert.Same(t, updated, b)
	assert.Equal(t, "New", b.Name)
	assert.Equal(t, "keep", b.Description)
	assert.Equal(t, "Old", loaded.Name)
}

func TestListBrands_NormalizesParams(t *testing.T) {
	repo := &tmocks.BrandRepositoryMock{
		ListFn: func(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error) {
			assert.Equal(t, 20, params.Limit)
			assert.Equal(t, 0, params.Offset)
			assert.Equal(t, "acme", params.Search)
			return nil, nil
		},
		CountFn: func(ctx context.Context, businessID uuid.UUID) (int, error) { return 7, nil },
	}
	svc := impl.NewBrandService(repo, nil, nil)

	_, total, err := svc.ListBrands(context.Background(), uuid.New(), brand.ListParams{Search: "  acme ", Limit: 500, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestCreateProduct_RequiresBrandInBusiness(t *testing.T) {
	svc := impl.NewBrandService(&tmocks.BrandRepositoryMock{}, nil, nil)

	_, err := svc.CreateProduct(context.Background(), uuid.New(), uuid.New(), &brand.CreateProductRequest{Name: "Widget"})
	assert.ErrorIs(t, err, brand.ErrNotFound)
}

func TestCreateProduct_Success(t *testing.T) {
	bizID, brandID := uuid.New(), uuid.New()
	repo := &tmocks.BrandRepositoryMock{
		GetByIDFn: func(ctx context.Context, b, id uuid.UUID) (*brand.Brand, error) {
			return &brand.Brand{ID: id, BusinessID: b}, nil
		},
	}
	svc := impl.NewBrandService(repo, nil, nil)

	p, err := svc.CreateProduct(context.Background(), bizID, brandID, &brand.CreateProductRequest{Name: "Widget", SKU: "W-1"})
	require.NoError(t, err)
	assert.Equal(t, bizID, p.BusinessID)
	assert.Equal(t, brandID, p.BrandID)
	assert.Equal(t, "W-1", p.SKU)
}
