package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
)

// AnalyticsRepository writes votes to the primary and reads reports through the
// replica router.
type AnalyticsRepository struct {
	router *db.Router
	logger *logrus.Logger
}

func NewAnalyticsRepository(router *db.Router, logger *logrus.Logger) ports.AnalyticsRepository {
	return &AnalyticsRepository{router: router, logger: logger}
}

func (r *AnalyticsRepository) RecordVote(ctx context.Context, v *analytics.Vote) error {
	query := `
		INSERT INTO votes (id, business_id, product_id, voter_ref, created_at)
		VALUES (:id, :business_id, :product_id, :voter_ref, :created_at)`

	if _, err := r.router.Primary().NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) BusinessReport(ctx context.Context, businessID uuid.UUID) (*analytics.BusinessReport, error) {
	query := `
		SELECT p.id AS product_id, p.name AS product_name, COUNT(v.id) AS votes
		FROM products p
		LEFT JOIN votes v ON v.product_id = p.id
		WHERE p.business_id = $1
		GROUP BY p.id, p.name
		ORDER BY votes DESC, p.name`

	report, err := db.ExecuteQuery(ctx, r.router, func(ctx context.Context, h *sqlx.DB) (*analytics.BusinessReport, error) {
		tallies := []analytics.VoteTally{}
		if err := h.SelectContext(ctx, &tallies, query, businessID); err != nil {
			return nil, err
		}
		rep := &analytics.BusinessReport{
			BusinessID:  businessID,
			Products:    tallies,
			GeneratedAt: time.Now().UTC(),
			Replica:     db.Target(ctx),
		}
		for _, t := range tallies {
			rep.TotalVotes += t.Votes
		}
		return rep, nil
	}, db.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to build business report: %w", err)
	}
	if r.logger != nil && report.Replica == "primary" {
		r.logger.WithField("business_id", businessID).Debug("business report served by primary")
	}
	return report, nil
}
