package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pharmalink/pharmalink/internal/platform/auth"
)

var (
	// ErrUserNotFound indicates no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates the email is already registered for the role.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken indicates the presented refresh token is
	// unknown, expired, or otherwise fails validation.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

var validGenders = map[string]bool{
	"M": true,
	"F": true,
}

const minPasswordLength = 8

// LoginResult carries everything issued at login: the raw opaque key (shown
// once) and the JWT pair stored beside it.
type LoginResult struct {
	Token   string    `json:"token"`
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Role    auth.Role `json:"role"`
}

// TxRunner executes fn atomically. When unset, multi-write operations run
// their statements individually.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service manages doctor and patient accounts and login token issuance.
type Service struct {
	doctors   DoctorRepository
	patients  PatientRepository
	tokens    auth.TokenStore
	jwtSecret []byte
	runTx     TxRunner
}

func NewService(doctors DoctorRepository, patients PatientRepository, tokens auth.TokenStore, jwtSecret []byte) *Service {
	return &Service{doctors: doctors, patients: patients, tokens: tokens, jwtSecret: jwtSecret}
}

// SetTxRunner installs the transaction wrapper used by DeletePatient.
func (s *Service) SetTxRunner(run TxRunner) {
	s.runTx = run
}

func validateAccount(email, username, password, gender, birthDate string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if !validGenders[gender] {
		return fmt.Errorf("invalid gender %q", gender)
	}
	if _, err := time.Parse("2006-01-02", birthDate); err != nil {
		return fmt.Errorf("invalid birthdate %q, expected YYYY-MM-DD", birthDate)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SignupDoctor validates and creates a doctor account.
func (s *Service) SignupDoctor(ctx context.Context, d *Doctor, password string) error {
	if err := validateAccount(d.Email, d.Username, password, d.Gender, d.BirthDate); err != nil {
		return err
	}
	if _, err := s.doctors.GetByEmail(ctx, d.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	d.PasswordHash = hash
	return s.doctors.Create(ctx, d)
}

// SignupPatient validates and creates a patient account.
func (s *Service) SignupPatient(ctx context.Context, p *Patient, password string) error {
	if err := validateAccount(p.Email, p.Username, password, p.Gender, p.BirthDate); err != nil {
		return err
	}
	if _, err := s.patients.GetByEmail(ctx, p.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return s.patients.Create(ctx, p)
}

// Login verifies credentials for the role and issues a fresh opaque token
// with its JWT pair. Multiple concurrent tokens per account are allowed.
func (s *Service) Login(ctx context.Context, role auth.Role, email, password string) (*LoginResult, error) {
	var (
		id   uuid.UUID
		hash string
	)
	switch role {
	case auth.RoleDoctor:
		d, err := s.doctors.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		id, hash = d.ID, d.PasswordHash
	case auth.RolePatient:
		p, err := s.patients.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		id, hash = p.ID, p.PasswordHash
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	rawKey, err := auth.GenerateRawKey()
	if err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}

	pair, err := auth.MintPair(s.jwtSecret, id, role)
	if err != nil {
		return nil, err
	}

	token := &auth.Token{
		KeyHash:      auth.HashKey(rawKey),
		Role:         role,
		PrincipalID:  id,
		Email:        email,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	return &LoginResult{
		Token:   rawKey,
		Access:  pair.Access,
		Refresh: pair.Refresh,
		ID:      id,
		Email:   email,
		Role:    role,
	}, nil
}

// Refresh exchanges a stored refresh token for a fresh access token. The
// token must match a login row, then pass JWT validation; the new access
// token replaces the stored one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	stored, err := s.tokens.GetByRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}

	id, role, err := auth.ParseToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	access, err := auth.MintAccess(s.jwtSecret, id, role)
	if err != nil {
		return "", err
	}
	if err := s.tokens.UpdateAccessToken(ctx, stored.ID, access); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	return access, nil
}

// DeletePatient removes a patient account and revokes all its tokens. Both
// writes run in one transaction when a TxRunner is installed.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	del := func(ctx context.Context) error {
		if err := s.patients.Delete(ctx, id); err != nil {
			return err
		}
		return s.tokens.DeleteByPrincipal(ctx, auth.RolePatient, id)
	}
	if s.runTx != nil {
		return s.runTx(ctx, del)
	}
	return del(ctx)
}

// DoctorProfile returns the public projection of a doctor.
func (s *Service) DoctorProfile(ctx context.Context, id uuid.UUID) (*DoctorInfo, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	info := d.Info()
	return &info, nil
}

// FindPatientIDByEmail resolves a patient email to its account ID. Session
// start uses this to locate the patient a doctor wants to connect with.
func (s *Service) FindPatientIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	p, err := s.patients.GetByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// PrincipalExists implements auth.PrincipalVerifier: a token whose account
// row has been deleted no longer authenticates.
func (s *Service) PrincipalExists(ctx context.Context, role auth.Role, id uuid.UUID) (bool, error) {
	var err error
	switch role {
	case auth.RoleDoctor:
		_, err = s.doctors.GetByID(ctx, id)
	case auth.RolePatient:
		_, err = s.patients.GetByID(ctx, id)
	default:
		return false, nil
	}
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
