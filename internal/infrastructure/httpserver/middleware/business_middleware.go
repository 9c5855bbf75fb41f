package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/httpserver/helpers"
)

const businessRoutePrefix = "/api/v1/businesses/:id"

type BusinessMiddleware struct {
	businessService ports.BusinessService
	logger          *logrus.Logger
}

func NewBusinessMiddleware(businessService ports.BusinessService, logger *logrus.Logger) *BusinessMiddleware {
	return &BusinessMiddleware{businessService: businessService, logger: logger}
}

// ResolveBusiness loads the business named by the X-Business-ID header or, on
// business-scoped routes, by the :id path parameter. When both are present they
// must agree. Requests naming no business pass through unresolved.
func (m *BusinessMiddleware) ResolveBusiness() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(helpers.BusinessHeader)
			fromPath := ""
			if strings.HasPrefix(c.Path(), businessRoutePrefix) {
				fromPath = c.Param("id")
			}
			if raw == "" {
				raw = fromPath
			}
			if raw == "" {
				return next(c)
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid business id")
			}
			if fromPath != "" && fromPath != raw {
				if pid, err := uuid.Parse(fromPath); err != nil || pid != id {
					return echo.NewHTTPError(http.StatusForbidden, "business header does not match path")
				}
			}

			b, err := m.businessService.GetBusiness(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, business.ErrNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, err.Error())
				}
				if m.logger != nil {
					m.logger.WithError(err).WithField("business_id", id).Error("failed to resolve business")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve business")
			}
			helpers.SetBusiness(c, b)
			helpers.SetBusinessID(c, b.ID)
			return next(c)
		}
	}
}
