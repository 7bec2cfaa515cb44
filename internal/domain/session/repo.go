package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error

	// LatestByDoctor returns the doctor's most recently created session,
	// regardless of state. Returns ErrNotFound when the doctor has none.
	LatestByDoctor(ctx context.Context, doctorID uuid.UUID) (*Session, error)

	// HasUnended reports whether the doctor has any session with
	// ended=false.
	HasUnended(ctx context.Context, doctorID uuid.UUID) (bool, error)

	Update(ctx context.Context, s *Session) error

	// EndExpired flips ended=true on every unended session created before
	// cutoff and returns the number of sessions affected.
	EndExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
