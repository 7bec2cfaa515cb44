package catalog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmalink/pharmalink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
}

// Search handles GET /search?query=. An exact trade-name hit returns the
// single drug object; otherwise a list of fuzzy matches is returned, which
// may be empty.
func (h *Handler) Search(c echo.Context) error {
	result, err := h.svc.Search(c.Request().Context(), c.QueryParam("query"), pagination.FromContext(c).Limit)
	if err != nil {
		if errors.Is(err, ErrQueryTooShort) {
			return echo.NewHTTPError(http.StatusBadRequest, "Query must be at least 2 characters long")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	if result.Exact != nil {
		return c.JSON(http.StatusOK, result.Exact)
	}
	if result.Matches == nil {
		return c.JSON(http.StatusOK, []*ReferenceDrug{})
	}
	return c.JSON(http.StatusOK, result.Matches)
}
