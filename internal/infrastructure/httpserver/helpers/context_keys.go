package helpers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
)

type ctxKey string

const (
	keyBusiness   ctxKey = "business"
	keyBusinessID ctxKey = "business_id"
)

// BusinessHeader carries the business a request acts for.
const BusinessHeader = "X-Business-ID"

func SetBusiness(c echo.Context, b *business.Business) { c.Set(string(keyBusiness), b) }
func GetBusiness(c echo.Context) (*business.Business, bool) {
	v := c.Get(string(keyBusiness))
	b, ok := v.(*business.Business)
	return b, ok
}

func SetBusinessID(c echo.Context, id uuid.UUID) { c.Set(string(keyBusinessID), id) }
func GetBusinessIDRaw(c echo.Context) (uuid.UUID, bool) {
	v := c.Get(string(keyBusinessID))
	id, ok := v.(uuid.UUID)
	return id, ok
}
