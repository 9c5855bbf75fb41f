package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/domain/brand"
)

type BrandRepository interface {
	Create(ctx context.Context, b *brand.Brand) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error)
	Update(ctx context.Context, b *brand.Brand) error
	Delete(ctx context.Context, businessID, id uuid.UUID) error
	List(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error)
	Count(ctx context.Context, businessID uuid.UUID) (int, error)

	CreateProduct(ctx context.Context, p *brand.Product) error
	ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error)
	GetProduct(ctx context.Context, businessID, id uuid.UUID) (*brand.Product, error)
}

type BrandService interface {
	CreateBrand(ctx context.Context, businessID uuid.UUID, req *brand.CreateBrandRequest) (*brand.Brand, error)
	GetBrand(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error)
	UpdateBrand(ctx context.Context, businessID, id uuid.UUID, req *brand.UpdateBrandRequest) (*brand.Brand, error)
	DeleteBrand(ctx context.Context, businessID, id uuid.UUID) error
	ListBrands(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, int, error)

	CreateProduct(ctx context.Context, businessID, brandID uuid.UUID, req *brand.CreateProductRequest) (*brand.Product, error)
	ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error)
}
