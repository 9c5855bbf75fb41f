package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
)

const businessColumns = `id, name, slug, contact_email, plan, status, settings, created_at, updated_at`

// BusinessRepository stores businesses in postgres.
type BusinessRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewBusinessRepository(database *db.Database, logger *logrus.Logger) ports.BusinessRepository {
	return &BusinessRepository{db: database, logger: logger}
}

// isUniqueViolation reports a postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *BusinessRepository) Create(ctx context.Context, b *business.Business) error {
	query := `
		INSERT INTO businesses (id, name, slug, contact_email, plan, status, settings, created_at, updated_at)
		VALUES (:id, :name, :slug, :contact_email, :plan, :status, :settings, :created_at, :updated_at)`

	if _, err := r.db.DB.NamedExecContext(ctx, query, b); err != nil {
		if isUniqueViolation(err) {
			return business.ErrSlugTaken
		}
		return fmt.Errorf("failed to create business: %w", err)
	}
	return nil
}

func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	return r.getOne(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
}

func (r *BusinessRepository) GetBySlug(ctx context.Context, slug string) (*business.Business, error) {
	return r.getOne(ctx, `SELECT `+businessColumns+` FROM businesses WHERE slug = $1`, slug)
}

func (r *BusinessRepository) getOne(ctx context.Context, query string, arg any) (*business.Business, error) {
	var b business.Business
	if err := r.db.DB.GetContext(ctx, &b, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, business.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return &b, nil
}

func (r *BusinessRepository) Update(ctx context.Context, b *business.Business) error {
	query := `
		UPDATE businesses
		SET name = :name, slug = :slug, contact_email = :contact_email, plan = :plan,
		    status = :status, settings = :settings, updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.DB.NamedExecContext(ctx, query, b)
	if err != nil {
		if isUniqueViolation(err) {
			return business.ErrSlugTaken
		}
		return fmt.Errorf("failed to update business: %w", err)
	}
	return expectOneRow(result, business.ErrNotFound)
}

func (r *BusinessRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete business: %w", err)
	}
	return expectOneRow(result, business.ErrNotFound)
}

func (r *BusinessRepository) List(ctx context.Context, limit, offset int) ([]*business.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	out := []*business.Business{}
	if err := r.db.DB.SelectContext(ctx, &out, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return out, nil
}

func (r *BusinessRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM businesses`); err != nil {
		return 0, fmt.Errorf("failed to count businesses: %w", err)
	}
	return count, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
