package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/brandhub/internal/application/services"
	"github.com/avatarctic/brandhub/internal/core/domain/business"
	tmocks "github.com/avatarctic/brandhub/test/mocks"
)

func TestCreateBusiness_SlugTaken(t *testing.T) {
	repo := &tmocks.BusinessRepositoryMock{GetBySlugFn: func(ctx context.Context, slug string) (*business.Business, error) {
		return &business.Business{ID: uuid.New(), Slug: slug}, nil
	}}
	svc := impl.NewBusinessService(repo, nil)

	_, err := svc.CreateBusiness(context.Background(), &business.CreateBusinessRequest{Name: "Acme", Slug: "acme"})
	assert.ErrorIs(t, err, business.ErrSlugTaken)
}

func TestCreateBusiness_InvalidSlug(t *testing.T) {
	svc := impl.NewBusinessService(&tmocks.BusinessRepositoryMock{}, nil)
	for _, slug := range []string{"", "Acme", "acme--co", "-acme", "acme co"} {
		_, err := svc.CreateBusiness(context.Background(), &business.CreateBusinessRequest{Name: "Acme", Slug: slug})
		assert.ErrorIs(t, err, business.ErrInvalidRequest, slug)
	}
}

func TestCreateBusiness_Success(t *testing.T) {
	var stored *business.Business
	repo := &tmocks.BusinessRepositoryMock{CreateFn: func(ctx context.Context, b *business.Business) error {
		stored = b
		return nil
	}}
	svc := impl.NewBusinessService(repo, nil)

	b, err := svc.CreateBusiness(context.Background(), &business.CreateBusinessRequest{Name: "Acme", Slug: "acme-co", ContactEmail: "ops@acme.test"})
	require.NoError(t, err)
	require.Same(t, stored, b)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, business.PlanFree, b.Plan)
	assert.Equal(t, business.StatusActive, b.Status)
	assert.False(t, b.CreatedAt.IsZero())
}

func TestCreateBusiness_RepositoryError(t *testing.T) {
	repo := &tmocks.BusinessRepositoryMock{CreateFn: func(ctx context.Context, b *business.Business) error {
		return business.ErrSlugTaken
	}}
	svc := impl.NewBusinessService(repo, nil)

	_, err := svc.CreateBusiness(context.Background(), &business.CreateBusinessRequest{Name: "Acme", Slug: "acme"})
	assert.ErrorIs(t, err, business.ErrSlugTaken)
}

func TestGetActiveBusiness_RejectsSuspended(t *testing.T) {
	id := uuid.New()
	repo := &tmocks.BusinessRepositoryMock{GetByIDFn: func(ctx context.Context, got uuid.UUID) (*business.Business, error) {
		return &business.Business{ID: got, Status: business.StatusSuspended}, nil
	}}
	svc := impl.NewBusinessService(repo, nil)

	_, err := svc.GetActiveBusiness(context.Background(), id)
	assert.ErrorIs(t, err, business.ErrInactive)
}

func TestUpdateBusiness_DoesNotMutateLoadedCopy(t *testing.T) {
	id := uuid.New()
	loaded := &business.Business{ID: id, Name: "Old", Slug: "old", Status: business.StatusActive}
	repo := &tmocks.BusinessRepositoryMock{GetByIDFn: func(ctx context.Context, got uuid.UUID) (*business.Business, error) {
		return loaded, nil
	}}
	svc := impl.NewBusinessService(repo, nil)

	name := "New"
	b, err := svc.UpdateBusiness(context.Background(), id, &business.UpdateBusinessRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", b.Name)
	assert.Equal(t, "Old", loaded.Name)
}

func TestUpdateBusiness_SlugTakenByAnother(t *testing.T) {
	id := uuid.New()
	repo := &tmocks.BusinessRepositoryMock{
		GetByIDFn: func(ctx context.Context, got uuid.UUID) (*business.Business, error) {
			return &business.Business{ID: id, Slug: "mine", Status: business.StatusActive}, nil
		},
		GetBySlugFn: func(ctx context.Context, slug string) (*business.Business, error) {
			return &business.Business{ID: uuid.New(), Slug: slug}, nil
		},
	}
	svc := impl.NewBusinessService(repo, nil)

	slug := "theirs"
	_, err := svc.UpdateBusiness(context.Background(), id, &business.UpdateBusinessRequest{Slug: &slug})
	assert.ErrorIs(t, err, business.ErrSlugTaken)
}

func TestUpdateBusiness_StatusTransitions(t *testing.T) {
	cases := []struct {
		from, to business.Status
		ok       bool
	}{
		{business.StatusActive, business.StatusSuspended, true},
		{business.StatusSuspended, business.StatusActive, true},
		{business.StatusActive, business.StatusClosed, true},
		{business.StatusClosed, business.StatusActive, false},
		{business.StatusClosed, business.StatusSuspended, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			id := uuid.New()
			repo := &tmocks.BusinessRepositoryMock{GetByIDFn: func(ctx context.Context, got uuid.UUID) (*business.Business, error) {
				return &business.Business{ID: id, Status: tc.from}, nil
			}}
			svc := impl.NewBusinessService(repo, nil)
			to := tc.to
			b, err := svc.UpdateBusiness(context.Background(), id, &business.UpdateBusinessRequest{Status: &to})
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, b.Status)
			} else {
				assert.ErrorIs(t, err, business.ErrInvalidTransition)
			}
		})
	}
}

func TestListBusinesses_ReturnsCount(t *testing.T) {
	repo := &tmocks.BusinessRepositoryMock{
		ListFn: func(ctx context.Context, limit, offset int) ([]*business.Business, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, 5, offset)
			return []*business.Business{{ID: uuid.New()}}, nil
		},
		CountFn: func(ctx context.Context) (int, error) { return 42, nil },
	}
	svc := impl.NewBusinessService(repo, nil)

	items, total, err := svc.ListBusinesses(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 42, total)
}

func TestListBusinesses_CountError(t *testing.T) {
	boom := errors.New("boom")
	repo := &tmocks.BusinessRepositoryMock{CountFn: func(ctx context.Context) (int, error) { return 0, boom }}
	svc := impl.NewBusinessService(repo, nil)

	_, _, err := svc.ListBusinesses(context.Background(), 10, 0)
	assert.ErrorIs(t, err, boom)
}
