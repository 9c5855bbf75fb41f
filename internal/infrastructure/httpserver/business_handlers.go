package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/core/domain/business"
	"github.com/avatarctic/brandhub/internal/infrastructure/httpserver/helpers"
)

func (s *Server) createBusiness(c echo.Context) error {
	var req business.CreateBusinessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := s.businessSvc.CreateBusiness(c.Request().Context(), &req)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) getBusiness(c echo.Context) error {
	id, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	b, err := s.businessSvc.GetBusiness(c.Request().Context(), id)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) updateBusiness(c echo.Context) error {
	id, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req business.UpdateBusinessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "status changes not allowed in update endpoint, use dedicated status endpoints")
	}
	b, err := s.businessSvc.UpdateBusiness(c.Request().Context(), id, &req)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBusiness(c echo.Context) error {
	id, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.businessSvc.DeleteBusiness(c.Request().Context(), id); err != nil {
		return s.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listBusinesses(c echo.Context) error {
	limit, offset := helpers.Paging(c)
	items, total, err := s.businessSvc.ListBusinesses(c.Request().Context(), limit, offset)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"businesses": items,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

func (s *Server) suspendBusiness(c echo.Context) error {
	return s.changeBusinessStatus(c, business.StatusSuspended)
}

func (s *Server) activateBusiness(c echo.Context) error {
	return s.changeBusinessStatus(c, business.StatusActive)
}

func (s *Server) closeBusiness(c echo.Context) error {
	return s.changeBusinessStatus(c, business.StatusClosed)
}

func (s *Server) changeBusinessStatus(c echo.Context, status business.Status) error {
	id, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	b, err := s.businessSvc.UpdateBusiness(c.Request().Context(), id, &business.UpdateBusinessRequest{Status: &status})
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}
