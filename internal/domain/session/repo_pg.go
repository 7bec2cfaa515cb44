package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

func (r *sessionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const sessionCols = `id, doctor_id, patient_id, otp, verified, ended, created_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.DoctorID, &s.PatientID, &s.OTP, &s.Verified, &s.Ended, &s.CreatedAt)
	return &s, err
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sessions (id, doctor_id, patient_id, otp, verified, ended)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		s.ID, s.DoctorID, s.PatientID, s.OTP, s.Verified, s.Ended,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepoPG) LatestByDoctor(ctx context.Context, doctorID uuid.UUID) (*Session, error) {
	s, err := scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions
		WHERE doctor_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, doctorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return s, nil
}

func (r *sessionRepoPG) HasUnended(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE doctor_id = $1 AND ended = FALSE)`,
		doctorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unended session: %w", err)
	}
	return exists, nil
}

func (r *sessionRepoPG) Update(ctx context.Context, s *Session) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE sessions SET verified = $2, ended = $3 WHERE id = $1`,
		s.ID, s.Verified, s.Ended)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (r *sessionRepoPG) EndExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE sessions SET ended = TRUE WHERE ended = FALSE AND created_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("end expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
