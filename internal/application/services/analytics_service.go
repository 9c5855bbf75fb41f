package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/core/ports"
)

type AnalyticsService struct {
	repo   ports.AnalyticsRepository
	brands ports.BrandRepository
}

func NewAnalyticsService(repo ports.AnalyticsRepository, brands ports.BrandRepository) ports.AnalyticsService {
	return &AnalyticsService{repo: repo, brands: brands}
}

// RecordVote stores a vote for a product owned by the business.
func (s *AnalyticsService) RecordVote(ctx context.Context, businessID uuid.UUID, req *analytics.RecordVoteRequest) (*analytics.Vote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.brands.GetProduct(ctx, businessID, req.ProductID); err != nil {
		return nil, err
	}
	v := &analytics.Vote{
		ID:         uuid.New(),
		BusinessID: businessID,
		ProductID:  req.ProductID,
		VoterRef:   req.VoterRef,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.RecordVote(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *AnalyticsService) BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error) {
	return s.repo.BusinessReport(ctx, businessID)
}
