package brand

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("brand not found")
	ErrProductNotFound = errors.New("product not found")
	ErrSlugTaken       = errors.New("brand slug is already taken")
	ErrLimitReached    = errors.New("brand limit reached for plan")
	ErrInvalidRequest  = errors.New("invalid brand request")
)

type Brand struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BusinessID  uuid.UUID `json:"business_id" db:"business_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	Website     string    `json:"website" db:"website"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Product belongs to a brand and is the unit votes are cast for.
type Product struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BrandID    uuid.UUID `json:"brand_id" db:"brand_id"`
	BusinessID uuid.UUID `json:"business_id" db:"business_id"`
	Name       string    `json:"name" db:"name"`
	SKU        string    `json:"sku" db:"sku"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ListParams filters a brand listing. It doubles as the input of the list's
// cache search key, so field order does not matter but every field does.
type ListParams struct {
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type CreateBrandRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

type UpdateBrandRequest struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
}

type CreateProductRequest struct {
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

func validWebsite(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *CreateBrandRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Slug) == "":
		return fmt.Errorf("%w: slug is required", ErrInvalidRequest)
	case !validWebsite(r.Website):
		return fmt.Errorf("%w: website must be an http(s) URL", ErrInvalidRequest)
	}
	return nil
}

func (r *UpdateBrandRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidRequest)
	}
	if r.Slug != nil && strings.TrimSpace(*r.Slug) == "" {
		return fmt.Errorf("%w: slug must not be empty", ErrInvalidRequest)
	}
	if r.Website != nil && !validWebsite(*r.Website) {
		return fmt.Errorf("%w: website must be an http(s) URL", ErrInvalidRequest)
	}
	return nil
}

func (r *CreateProductRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidRequest)
	}
	return nil
}

// Normalize clamps paging to sane bounds.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	p.Search = strings.TrimSpace(p.Search)
	return p
}
