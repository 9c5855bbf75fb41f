package business

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("business not found")
	ErrSlugTaken         = errors.New("slug is already taken")
	ErrInactive          = errors.New("business is not active")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRequest    = errors.New("invalid business request")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a lowercase, dash separated slug.
func ValidSlug(s string) bool {
	return len(s) <= 64 && slugPattern.MatchString(s)
}

type Business struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	Name         string           `json:"name" db:"name"`
	Slug         string           `json:"slug" db:"slug"`
	ContactEmail string           `json:"contact_email" db:"contact_email"`
	Plan         SubscriptionPlan `json:"plan" db:"plan"`
	Status       Status           `json:"status" db:"status"`
	Settings     Settings         `json:"settings" db:"settings"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// ValidTransitions returns the statuses reachable from s.
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusActive:
		return []Status{StatusSuspended, StatusClosed}
	case StatusSuspended:
		return []Status{StatusActive, StatusClosed}
	default:
		return nil
	}
}

func (s Status) IsValidTransition(next Status) bool {
	return slices.Contains(s.ValidTransitions(), next)
}

// CanAccess reports whether requests on behalf of the business are served.
func (b *Business) CanAccess() bool {
	return b.Status == StatusActive
}

func (b *Business) CanTransitionTo(next Status) bool {
	return b.Status.IsValidTransition(next)
}

type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "free"
	PlanStarter    SubscriptionPlan = "starter"
	PlanPro        SubscriptionPlan = "pro"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

type Settings struct {
	Limits        Limits         `json:"limits"`
	Customization map[string]any `json:"customization,omitempty"`
}

// Value stores settings as a JSON column.
func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Settings) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Settings{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported settings column type %T", src)
	}
	if len(raw) == 0 {
		*s = Settings{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

type Limits struct {
	MaxBrands         int `json:"max_brands"`
	RequestsPerMinute int `json:"requests_per_minute"`
}

type CreateBusinessRequest struct {
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	ContactEmail string           `json:"contact_email"`
	Plan         SubscriptionPlan `json:"plan"`
	Settings     Settings         `json:"settings"`
}

type UpdateBusinessRequest struct {
	Name         *string           `json:"name,omitempty"`
	Slug         *string           `json:"slug,omitempty"`
	ContactEmail *string           `json:"contact_email,omitempty"`
	Plan         *SubscriptionPlan `json:"plan,omitempty"`
	Status       *Status           `json:"status,omitempty"`
	Settings     *Settings         `json:"settings,omitempty"`
}

func (r *CreateBusinessRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case !ValidSlug(r.Slug):
		return fmt.Errorf("%w: slug must be lowercase letters, digits and dashes", ErrInvalidRequest)
	case r.ContactEmail != "" && !strings.Contains(r.ContactEmail, "@"):
		return fmt.Errorf("%w: contact_email is not an email address", ErrInvalidRequest)
	case r.Plan != "" && !r.Plan.Valid():
		return fmt.Errorf("%w: unknown plan %q", ErrInvalidRequest, r.Plan)
	case r.Settings.Limits.RequestsPerMinute < 0 || r.Settings.Limits.MaxBrands < 0:
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidRequest)
	}
	return nil
}

func (r *UpdateBusinessRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidRequest)
	}
	if r.Slug != nil && !ValidSlug(*r.Slug) {
		return fmt.Errorf("%w: slug must be lowercase letters, digits and dashes", ErrInvalidRequest)
	}
	if r.Plan != nil && !r.Plan.Valid() {
		return fmt.Errorf("%w: unknown plan %q", ErrInvalidRequest, *r.Plan)
	}
	if r.Settings != nil && (r.Settings.Limits.RequestsPerMinute < 0 || r.Settings.Limits.MaxBrands < 0) {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidRequest)
	}
	return nil
}
