package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
)

const brandColumns = `id, business_id, name, slug, description, website, created_at, updated_at`

// BrandRepository stores brands and their products. Every query is scoped to a
// business so one business can never read another's rows.
type BrandRepository struct {
	db *db.Database
}

func NewBrandRepository(database *db.Database) ports.BrandRepository {
	return &BrandRepository{db: database}
}

func (r *BrandRepository) Create(ctx context.Context, b *brand.Brand) error {
	query := `
		INSERT INTO brands (id, business_id, name, slug, description, website, created_at, updated_at)
		VALUES (:id, :business_id, :name, :slug, :description, :website, :created_at, :updated_at)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, b); err != nil {
		if isUniqueViolation(err) {
			return brand.ErrSlugTaken
		}
		return fmt.Errorf("failed to create brand: %w", err)
	}
	return nil
}

func (r *BrandRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error) {
	var b brand.Brand
	query := `SELECT ` + brandColumns + ` FROM brands WHERE business_id = $1 AND id = $2`
	if err := r.db.DB.GetContext(ctx, &b, query, businessID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, brand.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &b, nil
}

func (r *BrandRepository) Update(ctx context.Context, b *brand.Brand) error {
	query := `
		UPDATE brands
		SET name = :name, slug = :slug, description = :description, website = :website, updated_at = :updated_at
		WHERE business_id = :business_id AND id = :id`

	result, err := r.db.DB.NamedExecContext(ctx, query, b)
	if err != nil {
		if isUniqueViolation(err) {
			return brand.ErrSlugTaken
		}
		return fmt.Errorf("failed to update brand: %w", err)
	}
	return expectOneRow(result, brand.ErrNotFound)
}

func (r *BrandRepository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM brands WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return fmt.Errorf("failed to delete brand: %w", err)
	}
	return expectOneRow(result, brand.ErrNotFound)
}

func (r *BrandRepository) List(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, error) {
	params = params.Normalize()
	query := `
		SELECT ` + brandColumns + `
		FROM brands
		WHERE business_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name
		LIMIT $3 OFFSET $4`

	out := []*brand.Brand{}
	if err := r.db.DB.SelectContext(ctx, &out, query, businessID, params.Search, params.Limit, params.Offset); err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	return out, nil
}

func (r *BrandRepository) Count(ctx context.Context, businessID uuid.UUID) (int, error) {
	var count int
	if err := r.db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM brands WHERE business_id = $1`, businessID); err != nil {
		return 0, fmt.Errorf("failed to count brands: %w", err)
	}
	return count, nil
}

func (r *BrandRepository) CreateProduct(ctx context.Context, p *brand.Product) error {
	query := `
		INSERT INTO products (id, brand_id, business_id, name, sku, created_at)
		VALUES (:id, :brand_id, :business_id, :name, :sku, :created_at)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *BrandRepository) ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error) {
	query := `
		SELECT id, brand_id, business_id, name, sku, created_at
		FROM products
		WHERE business_id = $1 AND brand_id = $2
		ORDER BY name`

	out := []*brand.Product{}
	if err := r.db.DB.SelectContext(ctx, &out, query, businessID, brandID); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out, nil
}

func (r *BrandRepository) GetProduct(ctx context.Context, businessID, id uuid.UUID) (*brand.Product, error) {
	var p brand.Product
	query := `SELECT id, brand_id, business_id, name, sku, created_at FROM products WHERE business_id = $1 AND id = $2`
	if err := r.db.DB.GetContext(ctx, &p, query, businessID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, brand.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}
