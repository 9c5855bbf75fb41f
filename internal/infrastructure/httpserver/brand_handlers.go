package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/brandhub/internal/core/domain/brand"
	"github.com/avatarctic/brandhub/internal/infrastructure/httpserver/helpers"
)

func (s *Server) createBrand(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	var req brand.CreateBrandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := s.brandSvc.CreateBrand(c.Request().Context(), biz.ID, &req)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) getBrand(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	id, err := helpers.ParseUUIDParam(c, "brandID")
	if err != nil {
		return err
	}
	b, err := s.brandSvc.GetBrand(c.Request().Context(), biz.ID, id)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) updateBrand(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	id, err := helpers.ParseUUIDParam(c, "brandID")
	if err != nil {
		return err
	}
	var req brand.UpdateBrandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := s.brandSvc.UpdateBrand(c.Request().Context(), biz.ID, id, &req)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBrand(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	id, err := helpers.ParseUUIDParam(c, "brandID")
	if err != nil {
		return err
	}
	if err := s.brandSvc.DeleteBrand(c.Request().Context(), biz.ID, id); err != nil {
		return s.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listBrands(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	limit, offset := helpers.Paging(c)
	params := brand.ListParams{Search: c.QueryParam("q"), Limit: limit, Offset: offset}
	items, total, err := s.brandSvc.ListBrands(c.Request().Context(), biz.ID, params)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"brands": items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) createProduct(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	brandID, err := helpers.ParseUUIDParam(c, "brandID")
	if err != nil {
		return err
	}
	var req brand.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := s.brandSvc.CreateProduct(c.Request().Context(), biz.ID, brandID, &req)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) listProducts(c echo.Context) error {
	biz, err := helpers.GetActiveBusinessFromContext(c)
	if err != nil {
		return err
	}
	brandID, err := helpers.ParseUUIDParam(c, "brandID")
	if err != nil {
		return err
	}
	items, err := s.brandSvc.ListProducts(c.Request().Context(), biz.ID, brandID)
	if err != nil {
		return s.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"products": items})
}
