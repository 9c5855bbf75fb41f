package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/core/domain/analytics"
	"github.com/avatarctic/brandhub/internal/infrastructure/httpserver/helpers"
)

func (s *Server) recordVote(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	var req analytics.RecordVoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := s.analyticsSvc.RecordVote(c.Request().Context(), biz.ID, &req)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (s *Server) businessReport(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	report, err := s.analyticsSvc.BusinessReport(c.Request().Context(), biz.ID)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}
