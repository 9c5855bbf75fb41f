package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/core/ports"
)

type BusinessService struct {
	repo   ports.BusinessRepository
	logger *logrus.Logger
}

func NewBusinessService(repo ports.BusinessRepository, logger *logrus.Logger) ports.BusinessService {
	return &BusinessService{repo: repo, logger: logger}
}

func (s *BusinessService) CreateBusiness(ctx context.Context, req *business.CreateBusinessRequest) (*business.Business, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetBySlug(ctx, req.Slug); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", business.ErrSlugTaken, req.Slug)
	}

	plan := req.Plan
	if plan == "" {
		plan = business.PlanFree
	}
	now := time.Now().UTC()
	b := &business.Business{
		ID:           uuid.New(),
		Name:         req.Name,
		Slug:         req.Slug,
		ContactEmail: req.ContactEmail,
		Plan:         plan,
		Status:       business.StatusActive,
		Settings:     req.Settings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create business: %w", err)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"business_id": b.ID, "slug": b.Slug, "plan": b.Plan}).Info("business created")
	}
	return b, nil
}

func (s *BusinessService) GetBusiness(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *BusinessService) GetBusinessBySlug(ctx context.Context, slug string) (*business.Business, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *BusinessService) GetActiveBusiness(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.CanAccess() {
		return nil, business.ErrInactive
	}
	return b, nil
}

func (s *BusinessService) UpdateBusiness(ctx context.Context, id uuid.UUID, req *business.UpdateBusinessRequest) (*business.Business, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// the cached copy is shared; work on our own
	b := *existing

	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Slug != nil && *req.Slug != b.Slug {
		if other, err := s.repo.GetBySlug(ctx, *req.Slug); err == nil && other != nil && other.ID != id {
			return nil, fmt.Errorf("%w: %s", business.ErrSlugTaken, *req.Slug)
		} else if err != nil && !errors.Is(err, business.ErrNotFound) {
			return nil, err
		}
		b.Slug = *req.Slug
	}
	if req.ContactEmail != nil {
		b.ContactEmail = *req.ContactEmail
	}
	if req.Plan != nil {
		b.Plan = *req.Plan
	}
	if req.Settings != nil {
		b.Settings = *req.Settings
	}
	if req.Status != nil && *req.Status != b.Status {
		if !b.CanTransitionTo(*req.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", business.ErrInvalidTransition, b.Status, *req.Status)
		}
		b.Status = *req.Status
	}
	b.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, &b); err != nil {
		return nil, fmt.Errorf("failed to update business: %w", err)
	}
	return &b, nil
}

func (s *BusinessService) DeleteBusiness(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *BusinessService) ListBusinesses(ctx context.Context, limit, offset int) ([]*business.Business, int, error) {
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}
