package interaction

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmalink/pharmalink/internal/domain/catalog"
	"github.com/pharmalink/pharmalink/internal/domain/prescription"
	"github.com/pharmalink/pharmalink/internal/domain/session"
	"github.com/pharmalink/pharmalink/internal/platform/auth"
)

func requestContext(t *testing.T, principalID uuid.UUID, role auth.Role, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/interactions/check", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	auth.SetPrincipal(c, auth.Principal{ID: principalID, Role: role})
	return c, rec
}

func wantHTTPError(t *testing.T, err error, code int, message string) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("status = %d, want %d", httpErr.Code, code)
	}
	if httpErr.Message != message {
		t.Errorf("message = %v, want %q", httpErr.Message, message)
	}
}

func TestCheckTradeNamesHandler_Messages(t *testing.T) {
	svc := NewService(testRows(), &fakeResolver{drugs: map[string]*catalog.ResolvedDrug{
		"Aspocid": {TradeName: "Aspocid", Components: []string{"aspirin"}},
		"Marevan": {TradeName: "Marevan", Components: []string{"warfarin"}},
		"Panadol": {TradeName: "Panadol", Components: []string{"paracetamol"}},
	}}, &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{}}, &fakeGuard{})
	h := NewHandler(svc)

	c, _ := requestContext(t, uuid.New(), auth.RoleDoctor, `{"trade_name1":"Aspocid"}`)
	wantHTTPError(t, h.CheckTradeNames(c), http.StatusBadRequest, "Trade names of both drugs are required")

	c, _ = requestContext(t, uuid.New(), auth.RoleDoctor, `{"trade_name1":"Aspocid","trade_name2":"Nosuch"}`)
	wantHTTPError(t, h.CheckTradeNames(c), http.StatusNotFound, "One or both drugs not found")

	c, rec := requestContext(t, uuid.New(), auth.RoleDoctor, `{"trade_name1":"Aspocid","trade_name2":"Marevan"}`)
	if err := h.CheckTradeNames(c); err != nil {
		t.Fatalf("CheckTradeNames: %v", err)
	}
	var risky struct {
		Type             string   `json:"Type"`
		InteractionTypes []string `json:"interaction_types"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &risky); err != nil {
		t.Fatal(err)
	}
	if risky.Type != "Risky" {
		t.Errorf("Type = %q, want Risky", risky.Type)
	}
	if len(risky.InteractionTypes) != 1 || risky.InteractionTypes[0] != "bleeding risk" {
		t.Errorf("interaction_types = %v", risky.InteractionTypes)
	}

	// A resolvable pair with no interaction rows uses the singular message.
	c, rec = requestContext(t, uuid.New(), auth.RoleDoctor, `{"trade_name1":"Aspocid","trade_name2":"Panadol"}`)
	if err := h.CheckTradeNames(c); err != nil {
		t.Fatalf("CheckTradeNames: %v", err)
	}
	var msg map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if msg["message"] != "No interaction found" {
		t.Errorf("message = %q", msg["message"])
	}
}

func TestCheckPrescriptionHandler_Messages(t *testing.T) {
	doctorID := uuid.New()
	p := &prescription.Prescription{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Drugs:     map[string]*prescription.DrugEntry{},
	}
	svc := NewService(testRows(), &fakeResolver{}, &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{p.ID: p}}, &fakeGuard{})
	h := NewHandler(svc)

	c, _ := requestContext(t, doctorID, auth.RoleDoctor, ``)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	wantHTTPError(t, h.CheckPrescription(c), http.StatusNotFound, "Prescription not found")

	c, _ = requestContext(t, uuid.New(), auth.RoleDoctor, ``)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	wantHTTPError(t, h.CheckPrescription(c), http.StatusForbidden, "You are not authorized to access this prescription")

	c, rec := requestContext(t, doctorID, auth.RoleDoctor, ``)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.CheckPrescription(c); err != nil {
		t.Fatalf("CheckPrescription: %v", err)
	}
	var msg map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if msg["message"] != "No interactions found" {
		t.Errorf("message = %q", msg["message"])
	}
}

func TestCheckPatientHandler_ForeignTarget(t *testing.T) {
	patientID := uuid.New()
	svc := NewService(testRows(), &fakeResolver{}, &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{}}, &fakeGuard{})
	h := NewHandler(svc)

	body := `{"target_user_id":"` + uuid.NewString() + `"}`
	c, _ := requestContext(t, patientID, auth.RolePatient, body)
	wantHTTPError(t, h.CheckPatient(c), http.StatusForbidden, "You are not authorized to check prescriptions for another user")
}

func TestCheckSessionPatientHandler_GuardMessages(t *testing.T) {
	svc := NewService(testRows(), &fakeResolver{}, &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{}}, &fakeGuard{err: session.ErrNotVerified})
	h := NewHandler(svc)

	c, _ := requestContext(t, uuid.New(), auth.RoleDoctor, ``)
	wantHTTPError(t, h.CheckSessionPatient(c), http.StatusBadRequest, "Session is not verified")
}
