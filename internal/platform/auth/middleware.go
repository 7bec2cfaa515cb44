package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// principalKey is the echo context key under which the authenticated
// principal is stored.
const principalKey = "auth_principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	ID    uuid.UUID
	Role  Role
	Email string
}

// PrincipalFromContext returns the authenticated principal, or false when
// the request did not pass through the auth middleware.
func PrincipalFromContext(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}

// SetPrincipal attaches a principal to the request context. Handler tests
// use it in place of the middleware.
func SetPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalVerifier checks that the principal behind a token still exists.
// A token whose doctor or patient row has been deleted is rejected.
type PrincipalVerifier interface {
	PrincipalExists(ctx context.Context, role Role, id uuid.UUID) (bool, error)
}

// Middleware authenticates requests for one role. The Authorization header
// must carry the role's keyword ("DoctorToken" / "PatientToken") followed by
// exactly one token string.
func Middleware(store TokenStore, verifier PrincipalVerifier, role Role) echo.MiddlewareFunc {
	keyword := role.HeaderKeyword()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			parts := strings.Split(header, " ")

			if header == "" || parts[0] != keyword {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
			}
			if len(parts) == 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token header. No credentials provided.")
			}
			if len(parts) > 2 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token header. Token string should not contain spaces.")
			}

			ctx := c.Request().Context()
			token, err := store.GetByHash(ctx, HashKey(parts[1]))
			if err != nil || token.Role != role {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if verifier != nil {
				exists, err := verifier.PrincipalExists(ctx, role, token.PrincipalID)
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "authentication check failed")
				}
				if !exists {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user")
				}
			}

			SetPrincipal(c, Principal{
				ID:    token.PrincipalID,
				Role:  token.Role,
				Email: token.Email,
			})

			return next(c)
		}
	}
}
