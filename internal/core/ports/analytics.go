package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
)

// AnalyticsRepository reads aggregates from replicas and writes votes to the primary.
type AnalyticsRepository interface {
	RecordVote(ctx context.Context, v *analytics.Vote) error
	BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error)
}

type AnalyticsService interface {
	RecordVote(ctx context.Context, businessID uuid.UUID, req *analytics.RecordVoteRequest) (*analytics.Vote, error)
	BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error)
}
