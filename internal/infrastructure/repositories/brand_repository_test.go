package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/infrastructure/repositories"
)

func TestBrandRepository_QueriesAreScopedToBusiness(t *testing.T) {
	database, mock := mockDatabase(t)
	repo := repositories.NewBrandRepository(database)
	bizID, id := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM brands WHERE business_id = \\$1 AND id = \\$2").WithArgs(bizID.String(), id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "name", "slug", "description", "website", "created_at", "updated_at"}))

	_, err := repo.GetByID(context.Background(), bizID, id)
	assert.ErrorIs(t, err, brand.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandRepository_CreateMapsUniqueViolation(t *testing.T) {
	database, mock := mockDatabase(t)
	repo := repositories.NewBrandRepository(database)

	mock.ExpectExec("INSERT INTO brands").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &brand.Brand{ID: uuid.New(), BusinessID: uuid.New(), Name: "Acme", Slug: "acme"})
	assert.ErrorIs(t, err, brand.ErrSlugTaken)
}

func TestBrandRepository_ListNormalizesParams(t *testing.T) {
	database, mock := mockDatabase(t)
	repo := repositories.NewBrandRepository(database)
	bizID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM brands").WithArgs(bizID.String(), "acme", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "name", "slug", "description", "website", "created_at", "updated_at"}).
			AddRow(uuid.NewString(), bizID.String(), "Acme", "acme", "", "", now, now))

	items, err := repo.List(context.Background(), bizID, brand.ListParams{Search: " acme ", Limit: 0, Offset: -5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, bizID, items[0].BusinessID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandRepository_GetProductNotFound(t *testing.T) {
	database, mock := mockDatabase(t)
	repo := repositories.NewBrandRepository(database)

	mock.ExpectQuery("FROM products WHERE business_id = \\$1 AND id = \\$2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "brand_id", "business_id", "name", "sku", "created_at"}))

	_, err := repo.GetProduct(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, brand.ErrProductNotFound)
}

func TestBrandRepository_DeleteMissing(t *testing.T) {
	database, mock := mockDatabase(t)
	repo := repositories.NewBrandRepository(database)

	mock.ExpectExec("DELETE FROM brands WHERE business_id = \\$1 AND id = \\$2").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New(), uuid.New()), brand.ErrNotFound)
}
