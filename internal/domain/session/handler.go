package session

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pharmalink/pharmalink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the session endpoints on the doctor group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/session/start", h.Start)
	g.POST("/session/verify", h.Verify)
	g.POST("/session/end", h.End)
}

type startRequest struct {
	Email string `json:"email"`
}

func (h *Handler) Start(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	warning, err := h.svc.Start(c.Request().Context(), p.ID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailRequired):
			return echo.NewHTTPError(http.StatusBadRequest, "Email is required")
		case errors.Is(err, ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		case errors.Is(err, ErrSessionActive):
			return echo.NewHTTPError(http.StatusBadRequest, "Session is active")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start session")
	}

	resp := map[string]string{"message": "OTP sent successfully"}
	if warning != "" {
		resp["warning"] = warning
	}
	return c.JSON(http.StatusOK, resp)
}

type verifyRequest struct {
	OTP interface{} `json:"otp"`
}

// parseOTP coerces the submitted OTP, which clients send as either a JSON
// number or a string.
func parseOTP(v interface{}) (*int, bool) {
	switch otp := v.(type) {
	case nil:
		return nil, true
	case float64:
		n := int(otp)
		return &n, true
	case string:
		if otp == "" {
			return nil, true
		}
		n, err := strconv.Atoi(otp)
		if err != nil {
			return nil, false
		}
		return &n, true
	default:
		return nil, false
	}
}

func (h *Handler) Verify(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	otp, ok := parseOTP(req.OTP)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid OTP")
	}

	if err := h.svc.Verify(c.Request().Context(), p.ID, otp); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Session not found for this doctor")
		case errors.Is(err, ErrExpired):
			return echo.NewHTTPError(http.StatusBadRequest, "Session has expired")
		case errors.Is(err, ErrAlreadyVerified):
			return echo.NewHTTPError(http.StatusBadRequest, "Session already verified")
		case errors.Is(err, ErrOTPRequired):
			return echo.NewHTTPError(http.StatusBadRequest, "OTP is required")
		case errors.Is(err, ErrInvalidOTP):
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid OTP")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to verify session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session verified successfully"})
}

func (h *Handler) End(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	if err := h.svc.End(c.Request().Context(), p.ID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Session not found for this doctor")
		case errors.Is(err, ErrAlreadyEnded):
			return echo.NewHTTPError(http.StatusBadRequest, "Session is already ended")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to end session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session ended successfully"})
}

// MapGuardError translates guard failures into their HTTP responses. The
// prescription and interaction handlers share this mapping.
func MapGuardError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "No active session found for this doctor")
	case errors.Is(err, ErrNotVerified):
		return echo.NewHTTPError(http.StatusBadRequest, "Session is not verified")
	case errors.Is(err, ErrEnded):
		return echo.NewHTTPError(http.StatusBadRequest, "Session has ended")
	case errors.Is(err, ErrExpired):
		return echo.NewHTTPError(http.StatusBadRequest, "Session has expired")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "session check failed")
}
