package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type fakeVerifier struct {
	exists bool
}

func (f *fakeVerifier) PrincipalExists(_ context.Context, _ Role, _ uuid.UUID) (bool, error) {
	return f.exists, nil
}

func invokeMiddleware(t *testing.T, store TokenStore, verifier PrincipalVerifier, role Role, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	return c, Middleware(store, verifier, role)(handler)(c)
}

func seedToken(t *testing.T, store TokenStore, role Role) (string, uuid.UUID) {
	t.Helper()
	raw, err := GenerateRawKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pid := uuid.New()
	err = store.Create(context.Background(), &Token{
		KeyHash:     HashKey(raw),
		Role:        role,
		PrincipalID: pid,
		Email:       "user@example.com",
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
	return raw, pid
}

func assertUnauthorized(t *testing.T, err error, message string) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
	if httpErr.Message != message {
		t.Errorf("expected message %q, got %q", message, httpErr.Message)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	store := NewInMemoryTokenStore()
	_, err := invokeMiddleware(t, store, nil, RoleDoctor, "")
	assertUnauthorized(t, err, "Authentication credentials were not provided.")
}

func TestMiddleware_WrongKeyword(t *testing.T) {
	store := NewInMemoryTokenStore()
	raw, _ := seedToken(t, store, RolePatient)

	// Patient token presented on a doctor-only route.
	_, err := invokeMiddleware(t, store, nil, RoleDoctor, "PatientToken "+raw)
	assertUnauthorized(t, err, "Authentication credentials were not provided.")
}

func TestMiddleware_KeywordWithoutToken(t *testing.T) {
	store := NewInMemoryTokenStore()
	_, err := invokeMiddleware(t, store, nil, RoleDoctor, "DoctorToken")
	assertUnauthorized(t, err, "Invalid token header. No credentials provided.")
}

func TestMiddleware_TokenWithSpaces(t *testing.T) {
	store := NewInMemoryTokenStore()
	_, err := invokeMiddleware(t, store, nil, RoleDoctor, "DoctorToken abc def")
	assertUnauthorized(t, err, "Invalid token header. Token string should not contain spaces.")
}

func TestMiddleware_UnknownToken(t *testing.T) {
	store := NewInMemoryTokenStore()
	_, err := invokeMiddleware(t, store, nil, RoleDoctor, "DoctorToken deadbeef")
	assertUnauthorized(t, err, "Invalid token")
}

func TestMiddleware_RoleMismatchInStore(t *testing.T) {
	store := NewInMemoryTokenStore()
	raw, _ := seedToken(t, store, RolePatient)

	// A patient key smuggled in under the doctor keyword is still rejected.
	_, err := invokeMiddleware(t, store, nil, RoleDoctor, "DoctorToken "+raw)
	assertUnauthorized(t, err, "Invalid token")
}

func TestMiddleware_DeletedPrincipal(t *testing.T) {
	store := NewInMemoryTokenStore()
	raw, _ := seedToken(t, store, RolePatient)

	_, err := invokeMiddleware(t, store, &fakeVerifier{exists: false}, RolePatient, "PatientToken "+raw)
	assertUnauthorized(t, err, "Invalid user")
}

func TestMiddleware_Success(t *testing.T) {
	store := NewInMemoryTokenStore()
	raw, pid := seedToken(t, store, RoleDoctor)

	c, err := invokeMiddleware(t, store, &fakeVerifier{exists: true}, RoleDoctor, "DoctorToken "+raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := PrincipalFromContext(c)
	if !ok {
		t.Fatal("expected principal in context")
	}
	if p.ID != pid {
		t.Errorf("expected principal %s, got %s", pid, p.ID)
	}
	if p.Role != RoleDoctor {
		t.Errorf("expected role doctor, got %s", p.Role)
	}
	if p.Email != "user@example.com" {
		t.Errorf("unexpected email: %s", p.Email)
	}
}
