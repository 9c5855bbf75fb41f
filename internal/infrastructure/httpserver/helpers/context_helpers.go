package helpers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
)

func GetBusinessFromContext(c echo.Context) (*business.Business, error) {
	b, ok := GetBusiness(c)
	if !ok || b == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "business context required")
	}
	return b, nil
}

// GetActiveBusinessFromContext returns the resolved business when it may be served.
func GetActiveBusinessFromContext(c echo.Context) (*business.Business, error) {
	b, err := GetBusinessFromContext(c)
	if err != nil {
		return nil, err
	}
	if !b.CanAccess() {
		return nil, echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("business is %s", b.Status))
	}
	return b, nil
}

func GetBusinessIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := GetBusinessIDRaw(c)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "business context required")
	}
	return id, nil
}

// ParseUUIDParam parses a path parameter as a UUID.
func ParseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// Paging reads limit/offset query parameters, defaulting to 20/0 and capping limit at 100.
func Paging(c echo.Context) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
