package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/ports"
)

type BrandService struct {
	repo       ports.BrandRepository
	businesses ports.BusinessRepository
	logger     *logrus.Logger
}

func NewBrandService(repo ports.BrandRepository, businesses ports.BusinessRepository, logger *logrus.Logger) ports.BrandService {
	return &BrandService{repo: repo, businesses: businesses, logger: logger}
}

func (s *BrandService) CreateBrand(ctx context.Context, businessID uuid.UUID, req *brand.CreateBrandRequest) (*brand.Brand, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkBrandLimit(ctx, businessID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	b := &brand.Brand{
		ID:          uuid.New(),
		BusinessID:  businessID,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Website:     req.Website,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"business_id": businessID, "brand_id": b.ID}).Info("brand created")
	}
	return b, nil
}

// checkBrandLimit enforces Settings.Limits.MaxBrands; zero means unlimited.
func (s *BrandService) checkBrandLimit(ctx context.Context, businessID uuid.UUID) error {
	if s.businesses == nil {
		return nil
	}
	biz, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return err
	}
	maxBrands := biz.Settings.Limits.MaxBrands
	if maxBrands <= 0 {
		return nil
	}
	n, err := s.repo.Count(ctx, businessID)
	if err != nil {
		return err
	}
	if n >= maxBrands {
		return fmt.Errorf("%w: %d of %d", brand.ErrLimitReached, n, maxBrands)
	}
	return nil
}

func (s *BrandService) GetBrand(ctx context.Context, businessID, id uuid.UUID) (*brand.Brand, error) {
	return s.repo.GetByID(ctx, businessID, id)
}

func (s *BrandService) UpdateBrand(ctx context.Context, businessID, id uuid.UUID, req *brand.UpdateBrandRequest) (*brand.Brand, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	b := *existing
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Slug != nil {
		b.Slug = *req.Slug
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.Website != nil {
		b.Website = *req.Website
	}
	b.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BrandService) DeleteBrand(ctx context.Context, businessID, id uuid.UUID) error {
	return s.repo.Delete(ctx, businessID, id)
}

func (s *BrandService) ListBrands(ctx context.Context, businessID uuid.UUID, params brand.ListParams) ([]*brand.Brand, int, error) {
	items, err := s.repo.List(ctx, businessID, params.Normalize())
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.Count(ctx, businessID)
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (s *BrandService) CreateProduct(ctx context.Context, businessID, brandID uuid.UUID, req *brand.CreateProductRequest) (*brand.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, businessID, brandID); err != nil {
		return nil, err
	}
	p := &brand.Product{
		ID:         uuid.New(),
		BrandID:    brandID,
		BusinessID: businessID,
		Name:       req.Name,
		SKU:        req.SKU,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *BrandService) ListProducts(ctx context.Context, businessID, brandID uuid.UUID) ([]*brand.Product, error) {
	return s.repo.ListProducts(ctx, businessID, brandID)
}
