package prescription

import (
	"context"
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

// RegisterDoctorRoutes registers the doctor-side prescription endpoints.
func (h *Handler) RegisterDoctorRoutes(g *echo.Group) {
	g.POST("/prescriptions", h.Create)
	g.GET("/prescriptions", h.ListOwn)
	g.GET("/prescriptions/:id", h.Get)
	g.PUT("/prescriptions/:id", h.Update)
	g.DELETE("/prescriptions/:id", h.DeleteByDoctor)
	g.GET("/patients/:patient_id/prescriptions", h.ListForPatient)
	g.GET("/session/prescriptions", h.ListSessionPatient)
	g.GET("/session/prescriptions/active", h.ListSessionPatientActive)
}

// RegisterPatientRoutes registers the patient-side prescription endpoints.
func (h *Handler) RegisterPatientRoutes(g *echo.Group) {
	g.GET("/prescriptions", h.ListMine)
	g.GET("/prescriptions/filter", h.ListMineByState)
	g.GET("/prescriptions/doctor-info", h.ListDoctorInfo)
	g.GET("/prescriptions/:id", h.Get)
	g.DELETE("/prescriptions/:id", h.DeleteByPatient)
	g.POST("/prescriptions/:id/activate", h.ActivateAll)
	g.POST("/prescriptions/:id/activate-drug", h.ActivateOne)
	g.POST("/prescriptions/:id/deactivate", h.DeactivateAll)
	g.POST("/prescriptions/:id/deactivate-drug", h.DeactivateOne)
	g.POST("/prescriptions/:id/auto-deactivate", h.AutoDeactivate)
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	return p, nil
}

// isGuardError reports whether err came out of the session guard.
func isGuardError(err error) bool {
	return errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, session.ErrNotVerified) ||
		errors.Is(err, session.ErrEnded) ||
		errors.Is(err, session.ErrExpired)
}

type drugsRequest struct {
	Drugs map[string]*DrugEntry `json:"drugs"`
}

func (h *Handler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req drugsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := h.svc.Create(c.Request().Context(), p.ID, req.Drugs)
	if err != nil {
		var verr *ValidationError
		switch {
		case isGuardError(err):
			return session.MapGuardError(err)
		case errors.Is(err, ErrDuplicate):
			return echo.NewHTTPError(http.StatusBadRequest, "A prescription already exists for this session")
		case errors.As(err, &verr):
			if verr.DateFormat {
				return echo.NewHTTPError(http.StatusBadRequest, "Date format is incorrect. Please provide the date in YYYY-MM-DD format.")
			}
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create prescription")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Prescription created successfully",
		"prescription": created,
	})
}

func (h *Handler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription does not exist")
	}

	var req drugsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.svc.Update(c.Request().Context(), id, p.ID, req.Drugs)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Prescription does not exist")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this prescription")
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update prescription")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Prescription updated successfully",
		"prescription": updated,
	})
}

func (h *Handler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription does not exist")
	}

	found, err := h.svc.Get(c.Request().Context(), id, p.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Prescription does not exist")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to access this prescription")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load prescription")
	}
	return c.JSON(http.StatusOK, found)
}

func (h *Handler) DeleteByDoctor(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription does not exist")
	}

	if err := h.svc.DeleteByDoctor(c.Request().Context(), id, p.ID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Prescription does not exist")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this prescription")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete prescription")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteByPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	}

	if err := h.svc.DeleteByPatient(c.Request().Context(), id, p.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete prescription")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Prescription deleted successfully"})
}

func (h *Handler) ListOwn(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListByDoctor(c.Request().Context(), p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListMine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListByPatient(c.Request().Context(), p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListMineByState(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	state := c.QueryParam("state")
	if state == "" {
		state = StateActive
	}

	list, err := h.svc.ListByPatientState(c.Request().Context(), p.ID, state)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListDoctorInfo(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	items, err := h.svc.ListPatientDoctorInfo(c.Request().Context(), p.ID, c.QueryParam("state"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	if len(items) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No prescriptions found")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}

	list, err := h.svc.ListForPatientDuringSession(c.Request().Context(), p.ID, patientID)
	if err != nil {
		if isGuardError(err) {
			return session.MapGuardError(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListSessionPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	list, err := h.svc.ListSessionPatient(c.Request().Context(), p.ID)
	if err != nil {
		if isGuardError(err) {
			return session.MapGuardError(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListSessionPatientActive(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	list, err := h.svc.ListSessionPatientActive(c.Request().Context(), p.ID)
	if err != nil {
		if isGuardError(err) {
			return session.MapGuardError(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

type bulkOp func(ctx context.Context, prescriptionID, patientID uuid.UUID) (string, error)

func (h *Handler) ActivateAll(c echo.Context) error {
	return h.bulkLifecycle(c, h.svc.ActivateAll)
}

func (h *Handler) DeactivateAll(c echo.Context) error {
	return h.bulkLifecycle(c, h.svc.DeactivateAll)
}

func (h *Handler) AutoDeactivate(c echo.Context) error {
	return h.bulkLifecycle(c, h.svc.AutoDeactivate)
}

func (h *Handler) bulkLifecycle(c echo.Context, op bulkOp) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	}

	msg, err := op(c.Request().Context(), id, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update prescription")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}

type singleOp func(ctx context.Context, prescriptionID, patientID uuid.UUID, drugName string) (string, error)

func (h *Handler) ActivateOne(c echo.Context) error {
	return h.singleLifecycle(c, h.svc.ActivateOne)
}

func (h *Handler) DeactivateOne(c echo.Context) error {
	return h.singleLifecycle(c, h.svc.DeactivateOne)
}

func (h *Handler) singleLifecycle(c echo.Context, op singleOp) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	drugName := c.QueryParam("drug_name")
	if drugName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing drug_name parameter")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	}

	msg, err := op(c.Request().Context(), id, p.ID, drugName)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
		case errors.Is(err, ErrDrugNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Drug not found in the prescription")
		case errors.Is(err, ErrDrugActive):
			return echo.NewHTTPError(http.StatusBadRequest, "Drug is already activated")
		case errors.Is(err, ErrDrugInactive):
			return echo.NewHTTPError(http.StatusBadRequest, "Drug is already deactivated")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update prescription")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}
