package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
)

// httpError maps service errors onto HTTP statuses.
func (s *Server) httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, business.ErrNotFound), errors.Is(err, brand.ErrNotFound), errors.Is(err, brand.ErrProductNotFound):
		code = http.StatusNotFound
	case errors.Is(err, business.ErrSlugTaken), errors.Is(err, brand.ErrSlugTaken), errors.Is(err, business.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, business.ErrInvalidRequest), errors.Is(err, brand.ErrInvalidRequest), errors.Is(err, analytics.ErrInvalidVote):
		code = http.StatusBadRequest
	case errors.Is(err, business.ErrInactive), errors.Is(err, brand.ErrLimitReached):
		code = http.StatusForbidden
	case errors.Is(err, db.ErrNoReplicaAvailable):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		if s.logger != nil {
			s.logger.WithError(err).Error("request failed")
		}
		return echo.NewHTTPError(code, "internal server error")
	}
	return echo.NewHTTPError(code, err.Error())
}
