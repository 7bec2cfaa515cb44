package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGTokenStore is the Postgres-backed TokenStore.
type PGTokenStore struct {
	pool *pgxpool.Pool
}

// NewPGTokenStore creates a token store backed by the given pool.
func NewPGTokenStore(pool *pgxpool.Pool) *PGTokenStore {
	return &PGTokenStore{pool: pool}
}

func (s *PGTokenStore) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

const tokenCols = `id, key_hash, role, principal_id, email, access_token, refresh_token, created_at`

func scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.KeyHash, &t.Role, &t.PrincipalID, &t.Email,
		&t.AccessToken, &t.RefreshToken, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create implements TokenStore.
func (s *PGTokenStore) Create(ctx context.Context, t *Token) error {
	t.ID = uuid.New()

	query := `INSERT INTO auth_tokens (id, key_hash, role, principal_id, email, access_token, refresh_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := s.conn(ctx).QueryRow(ctx, query,
		t.ID, t.KeyHash, t.Role, t.PrincipalID, t.Email, t.AccessToken, t.RefreshToken,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByHash implements TokenStore.
func (s *PGTokenStore) GetByHash(ctx context.Context, hash string) (*Token, error) {
	query := fmt.Sprintf(`SELECT %s FROM auth_tokens WHERE key_hash = $1`, tokenCols)

	t, err := scanToken(s.conn(ctx).QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token by hash: %w", err)
	}
	return t, nil
}

// GetByRefresh implements TokenStore.
func (s *PGTokenStore) GetByRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	query := fmt.Sprintf(`SELECT %s FROM auth_tokens WHERE refresh_token = $1`, tokenCols)

	t, err := scanToken(s.conn(ctx).QueryRow(ctx, query, refreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token by refresh: %w", err)
	}
	return t, nil
}

// UpdateAccessToken implements TokenStore.
func (s *PGTokenStore) UpdateAccessToken(ctx context.Context, id uuid.UUID, accessToken string) error {
	query := `UPDATE auth_tokens SET access_token = $2 WHERE id = $1`

	tag, err := s.conn(ctx).Exec(ctx, query, id, accessToken)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeleteByPrincipal implements TokenStore.
func (s *PGTokenStore) DeleteByPrincipal(ctx context.Context, role Role, principalID uuid.UUID) error {
	query := `DELETE FROM auth_tokens WHERE role = $1 AND principal_id = $2`

	if _, err := s.conn(ctx).Exec(ctx, query, role, principalID); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
