package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
)

// BusinessRepository defines persistence for businesses.
type BusinessRepository interface {
	Create(ctx context.Context, b *business.Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error)
	GetBySlug(ctx context.Context, slug string) (*business.Business, error)
	Update(ctx context.Context, b *business.Business) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*business.Business, error)
	Count(ctx context.Context) (int, error)
}

// BusinessService defines the business lifecycle operations.
type BusinessService interface {
	CreateBusiness(ctx context.Context, req *business.CreateBusinessRequest) (*business.Business, error)
	GetBusiness(ctx context.Context, id uuid.UUID) (*business.Business, error)
	GetBusinessBySlug(ctx context.Context, slug string) (*business.Business, error)
	// GetActiveBusiness returns the business only when it can be served.
	GetActiveBusiness(ctx context.Context, id uuid.UUID) (*business.Business, error)
	UpdateBusiness(ctx context.Context, id uuid.UUID, req *business.UpdateBusinessRequest) (*business.Business, error)
	DeleteBusiness(ctx context.Context, id uuid.UUID) error
	ListBusinesses(ctx context.Context, limit, offset int) ([]*business.Business, int, error)
}
