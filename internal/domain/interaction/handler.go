package interaction

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmalink/pharmalink/internal/domain/session"
	"github.com/pharmalink/pharmalink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterDoctorRoutes registers the doctor-side interaction checks.
func (h *Handler) RegisterDoctorRoutes(g *echo.Group) {
	g.POST("/interactions/prescriptions/:id", h.CheckPrescription)
	g.POST("/interactions/check", h.CheckTradeNames)
	g.POST("/interactions/session", h.CheckSessionPatient)
}

// RegisterPatientRoutes registers the patient-side interaction checks.
func (h *Handler) RegisterPatientRoutes(g *echo.Group) {
	g.POST("/interactions/prescriptions/:id", h.CheckPrescription)
	g.POST("/interactions/check", h.CheckTradeNames)
	g.POST("/interactions/all", h.CheckPatient)
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	return p, nil
}

func isGuardError(err error) bool {
	return errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, session.ErrNotVerified) ||
		errors.Is(err, session.ErrEnded) ||
		errors.Is(err, session.ErrExpired)
}

func (h *Handler) CheckPrescription(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	}

	results, err := h.svc.CheckPrescription(c.Request().Context(), id, p.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPrescriptionNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to access this prescription")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "interaction check failed")
	}

	if len(results) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "No interactions found"})
	}
	return c.JSON(http.StatusOK, results)
}

type tradeNamesRequest struct {
	TradeName1 string `json:"trade_name1"`
	TradeName2 string `json:"trade_name2"`
}

func (h *Handler) CheckTradeNames(c echo.Context) error {
	if _, err := principal(c); err != nil {
		return err
	}

	var req tradeNamesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	types, err := h.svc.CheckTradeNames(c.Request().Context(), req.TradeName1, req.TradeName2)
	if err != nil {
		switch {
		case errors.Is(err, ErrNamesRequired):
			return echo.NewHTTPError(http.StatusBadRequest, "Trade names of both drugs are required")
		case errors.Is(err, ErrDrugNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "One or both drugs not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "interaction check failed")
	}

	if len(types) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "No interaction found"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"Type":              "Risky",
		"interaction_types": types,
	})
}

func (h *Handler) CheckSessionPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	results, err := h.svc.CheckSessionPatient(c.Request().Context(), p.ID)
	if err != nil {
		if isGuardError(err) {
			return session.MapGuardError(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "interaction check failed")
	}

	if len(results) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "No interactions found"})
	}
	return c.JSON(http.StatusOK, results)
}

type patientCheckRequest struct {
	TargetUserID *uuid.UUID `json:"target_user_id"`
}

func (h *Handler) CheckPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req patientCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TargetUserID != nil && *req.TargetUserID != p.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to check prescriptions for another user")
	}

	results, err := h.svc.CheckPatient(c.Request().Context(), p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "interaction check failed")
	}

	if len(results) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "No interactions found"})
	}
	return c.JSON(http.StatusOK, results)
}
