// Package auth implements the dual-role opaque-token scheme. Doctors and
// patients authenticate with a custom Authorization header
// ("DoctorToken <key>" / "PatientToken <key>"); the raw key is random hex
// shown once at login, and only its SHA-256 hash is persisted.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two principal kinds.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// HeaderKeyword returns the Authorization header keyword for the role.
func (r Role) HeaderKeyword() string {
	if r == RoleDoctor {
		return "DoctorToken"
	}
	return "PatientToken"
}

var (
	// ErrTokenNotFound indicates no stored token matches the presented key.
	ErrTokenNotFound = errors.New("token not found")
)

// tokenRandomBytes is the amount of key material per token (hex-encoded
// => 64 chars).
const tokenRandomBytes = 32

// Token is a stored login token. The raw key is never persisted; only its
// SHA-256 hash is, alongside the JWT pair minted at login.
type Token struct {
	ID           uuid.UUID `json:"id" db:"id"`
	KeyHash      string    `json:"-" db:"key_hash"`
	Role         Role      `json:"role" db:"role"`
	PrincipalID  uuid.UUID `json:"principal_id" db:"principal_id"`
	Email        string    `json:"email" db:"email"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TokenStore persists login tokens.
type TokenStore interface {
	Create(ctx context.Context, t *Token) error
	GetByHash(ctx context.Context, hash string) (*Token, error)
	GetByRefresh(ctx context.Context, refreshToken string) (*Token, error)
	UpdateAccessToken(ctx context.Context, id uuid.UUID, accessToken string) error
	DeleteByPrincipal(ctx context.Context, role Role, principalID uuid.UUID) error
}

// GenerateRawKey produces a cryptographically random 64-hex-char key.
func GenerateRawKey() (string, error) {
	b := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashKey returns the hex-encoded SHA-256 hash of the raw key string.
func HashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}

// ---------------------------------------------------------------------------
// InMemoryTokenStore
// ---------------------------------------------------------------------------

// InMemoryTokenStore is a thread-safe in-memory TokenStore for tests and
// development.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	byHash map[string]*Token
}

// NewInMemoryTokenStore creates a new empty in-memory store.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{byHash: make(map[string]*Token)}
}

// Create implements TokenStore.
func (s *InMemoryTokenStore) Create(_ context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	s.byHash[cp.KeyHash] = &cp
	return nil
}

// GetByHash implements TokenStore.
func (s *InMemoryTokenStore) GetByHash(_ context.Context, hash string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byHash[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

// GetByRefresh implements TokenStore.
func (s *InMemoryTokenStore) GetByRefresh(_ context.Context, refreshToken string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.byHash {
		if t.RefreshToken == refreshToken {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTokenNotFound
}

// UpdateAccessToken implements TokenStore.
func (s *InMemoryTokenStore) UpdateAccessToken(_ context.Context, id uuid.UUID, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.byHash {
		if t.ID == id {
			t.AccessToken = accessToken
			return nil
		}
	}
	return ErrTokenNotFound
}

// DeleteByPrincipal implements TokenStore.
func (s *InMemoryTokenStore) DeleteByPrincipal(_ context.Context, role Role, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, t := range s.byHash {
		if t.Role == role && t.PrincipalID == principalID {
			delete(s.byHash, hash)
		}
	}
	return nil
}
