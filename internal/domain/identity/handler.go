package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmalink/pharmalink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterAuthRoutes registers the public signup/login endpoints.
func (h *Handler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/doctor/signup", h.SignupDoctor)
	g.POST("/doctor/login", h.LoginDoctor)
	g.POST("/patient/signup", h.SignupPatient)
	g.POST("/patient/login", h.LoginPatient)
	g.POST("/refresh", h.RefreshToken)
}

// RegisterPatientRoutes registers the patient-token account endpoints.
func (h *Handler) RegisterPatientRoutes(g *echo.Group) {
	g.DELETE("/account", h.DeleteAccount)
}

type doctorSignupRequest struct {
	Doctor
	Password string `json:"password"`
}

func (h *Handler) SignupDoctor(c echo.Context) error {
	var req doctorSignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.SignupDoctor(c.Request().Context(), &req.Doctor, req.Password); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req.Doctor)
}

type patientSignupRequest struct {
	Patient
	Password string `json:"password"`
}

func (h *Handler) SignupPatient(c echo.Context) error {
	var req patientSignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.SignupPatient(c.Request().Context(), &req.Patient, req.Password); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req.Patient)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) LoginDoctor(c echo.Context) error {
	return h.login(c, auth.RoleDoctor)
}

func (h *Handler) LoginPatient(c echo.Context) error {
	return h.login(c, auth.RolePatient)
}

func (h *Handler) login(c echo.Context, role auth.Role) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.svc.Login(c.Request().Context(), role, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) RefreshToken(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Refresh token is required")
	}

	access, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid refresh token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"access_token": access})
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	if err := h.svc.DeletePatient(c.Request().Context(), p.ID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}
