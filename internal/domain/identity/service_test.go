package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/platform/auth"
)

type fakeDoctorRepo struct {
	byID map[uuid.UUID]*Doctor
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{byID: make(map[uuid.UUID]*Doctor)}
}

func (f *fakeDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	f.byID[d.ID] = d
	return nil
}

func (f *fakeDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return d, nil
}

func (f *fakeDoctorRepo) GetByEmail(_ context.Context, email string) (*Doctor, error) {
	for _, d := range f.byID {
		if strings.EqualFold(d.Email, email) {
			return d, nil
		}
	}
	return nil, ErrUserNotFound
}

type fakePatientRepo struct {
	byID map[uuid.UUID]*Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{byID: make(map[uuid.UUID]*Patient)}
}

func (f *fakePatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	f.byID[p.ID] = p
	return nil
}

func (f *fakePatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return p, nil
}

func (f *fakePatientRepo) GetByEmail(_ context.Context, email string) (*Patient, error) {
	for _, p := range f.byID {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakePatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

func newTestService() (*Service, *fakeDoctorRepo, *fakePatientRepo, *auth.InMemoryTokenStore) {
	doctors := newFakeDoctorRepo()
	patients := newFakePatientRepo()
	tokens := auth.NewInMemoryTokenStore()
	svc := NewService(doctors, patients, tokens, []byte("test-secret"))
	return svc, doctors, patients, tokens
}

func validDoctor() *Doctor {
	return &Doctor{
		Email:     "doc@example.com",
		Username:  "drhouse",
		FirstName: "Greg",
		LastName:  "House",
		Gender:    "M",
		BirthDate: "1970-05-15",
		Phone:     "+201000000000",
	}
}

func validPatient() *Patient {
	return &Patient{
		Email:     "pat@example.com",
		Username:  "patient1",
		FirstName: "Sara",
		LastName:  "Adel",
		Gender:    "F",
		BirthDate: "1990-01-20",
		Phone:     "+201000000001",
	}
}

func TestSignupDoctor(t *testing.T) {
	svc, doctors, _, _ := newTestService()
	ctx := context.Background()

	d := validDoctor()
	if err := svc.SignupDoctor(ctx, d, "supersecret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Error("expected generated ID")
	}
	if d.PasswordHash == "" || d.PasswordHash == "supersecret" {
		t.Error("expected hashed password")
	}
	if len(doctors.byID) != 1 {
		t.Errorf("expected 1 doctor, got %d", len(doctors.byID))
	}
}

func TestSignupDoctor_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.SignupDoctor(ctx, validDoctor(), "supersecret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := svc.SignupDoctor(ctx, validDoctor(), "supersecret")
	if err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Doctor)
		pass   string
	}{
		{"missing email", func(d *Doctor) { d.Email = "" }, "supersecret"},
		{"malformed email", func(d *Doctor) { d.Email = "not-an-email" }, "supersecret"},
		{"missing username", func(d *Doctor) { d.Username = "" }, "supersecret"},
		{"short password", func(d *Doctor) {}, "short"},
		{"bad gender", func(d *Doctor) { d.Gender = "X" }, "supersecret"},
		{"bad birthdate", func(d *Doctor) { d.BirthDate = "15/05/1970" }, "supersecret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDoctor()
			tt.mutate(d)
			if err := svc.SignupDoctor(ctx, d, tt.pass); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLogin_IssuesToken(t *testing.T) {
	svc, _, _, tokens := newTestService()
	ctx := context.Background()

	p := validPatient()
	if err := svc.SignupPatient(ctx, p, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	result, err := svc.Login(ctx, auth.RolePatient, "pat@example.com", "supersecret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Token) != 64 {
		t.Errorf("expected 64-char opaque key, got %d chars", len(result.Token))
	}
	if result.Access == "" || result.Refresh == "" {
		t.Error("expected JWT pair")
	}
	if result.ID != p.ID {
		t.Errorf("expected principal %s, got %s", p.ID, result.ID)
	}

	// The stored token maps the key hash back to the patient.
	stored, err := tokens.GetByHash(ctx, auth.HashKey(result.Token))
	if err != nil {
		t.Fatalf("token not stored: %v", err)
	}
	if stored.PrincipalID != p.ID || stored.Role != auth.RolePatient {
		t.Errorf("unexpected stored token: %+v", stored)
	}
}

func TestLogin_MultipleConcurrentTokens(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.SignupPatient(ctx, validPatient(), "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	r1, err := svc.Login(ctx, auth.RolePatient, "pat@example.com", "supersecret")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	r2, err := svc.Login(ctx, auth.RolePatient, "pat@example.com", "supersecret")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if r1.Token == r2.Token {
		t.Error("expected distinct keys per login")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.SignupPatient(ctx, validPatient(), "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err := svc.Login(ctx, auth.RolePatient, "pat@example.com", "wrongpass")
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Login(context.Background(), auth.RoleDoctor, "nobody@example.com", "supersecret")
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDeletePatient_RevokesTokens(t *testing.T) {
	svc, _, patients, tokens := newTestService()
	ctx := context.Background()

	p := validPatient()
	if err := svc.SignupPatient(ctx, p, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	result, err := svc.Login(ctx, auth.RolePatient, p.Email, "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := patients.byID[p.ID]; ok {
		t.Error("expected patient row deleted")
	}
	if _, err := tokens.GetByHash(ctx, auth.HashKey(result.Token)); err != auth.ErrTokenNotFound {
		t.Error("expected tokens revoked")
	}
}

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	svc, _, _, tokens := newTestService()
	ctx := context.Background()

	p := validPatient()
	if err := svc.SignupPatient(ctx, p, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	result, err := svc.Login(ctx, auth.RolePatient, p.Email, "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	access, err := svc.Refresh(ctx, result.Refresh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access == "" {
		t.Fatal("expected a new access token")
	}

	id, role, err := auth.ParseToken([]byte("test-secret"), access)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if id != p.ID || role != auth.RolePatient {
		t.Errorf("refreshed token carries (%s, %s), want (%s, %s)", id, role, p.ID, auth.RolePatient)
	}

	// The stored row now holds the replacement access token.
	stored, err := tokens.GetByHash(ctx, auth.HashKey(result.Token))
	if err != nil {
		t.Fatalf("get stored token: %v", err)
	}
	if stored.AccessToken != access {
		t.Error("expected stored access token to be replaced")
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Refresh(context.Background(), "never-issued")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefresh_StoredButUnverifiable(t *testing.T) {
	svc, _, _, tokens := newTestService()
	ctx := context.Background()

	// A row whose refresh token was signed with a different secret passes
	// the store lookup but fails JWT validation.
	foreign, err := auth.MintPair([]byte("other-secret"), uuid.New(), auth.RolePatient)
	if err != nil {
		t.Fatalf("mint pair: %v", err)
	}
	tokens.Create(ctx, &auth.Token{
		KeyHash:      "h1",
		Role:         auth.RolePatient,
		PrincipalID:  uuid.New(),
		RefreshToken: foreign.Refresh,
	})

	_, err = svc.Refresh(ctx, foreign.Refresh)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestDeletePatient_UsesTxRunner(t *testing.T) {
	svc, _, patients, _ := newTestService()
	ctx := context.Background()

	p := validPatient()
	if err := svc.SignupPatient(ctx, p, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	var calls int
	svc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		calls++
		return fn(ctx)
	})

	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("tx runner calls = %d, want 1", calls)
	}
	if _, ok := patients.byID[p.ID]; ok {
		t.Error("expected patient row deleted inside the transaction")
	}
}

func TestDeletePatient_TxRunnerPropagatesError(t *testing.T) {
	svc, _, _, _ := newTestService()

	txErr := errors.New("begin transaction: pool closed")
	svc.SetTxRunner(func(context.Context, func(ctx context.Context) error) error {
		return txErr
	})

	if err := svc.DeletePatient(context.Background(), uuid.New()); !errors.Is(err, txErr) {
		t.Errorf("expected tx error, got %v", err)
	}
}

func TestDoctorProfile(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	d := validDoctor()
	if err := svc.SignupDoctor(ctx, d, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	info, err := svc.DoctorProfile(ctx, d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.FirstName != "Greg" || info.LastName != "House" {
		t.Errorf("unexpected profile: %+v", info)
	}
}

func TestFindPatientIDByEmail(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	p := validPatient()
	if err := svc.SignupPatient(ctx, p, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	id, err := svc.FindPatientIDByEmail(ctx, "PAT@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != p.ID {
		t.Errorf("expected %s, got %s", p.ID, id)
	}

	if _, err := svc.FindPatientIDByEmail(ctx, "missing@example.com"); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPrincipalExists(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	p := validPatient()
	if err := svc.SignupPatient(ctx, p, "supersecret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	exists, err := svc.PrincipalExists(ctx, auth.RolePatient, p.ID)
	if err != nil || !exists {
		t.Errorf("expected existing principal, got exists=%v err=%v", exists, err)
	}

	exists, err = svc.PrincipalExists(ctx, auth.RolePatient, uuid.New())
	if err != nil || exists {
		t.Errorf("expected missing principal, got exists=%v err=%v", exists, err)
	}
}
