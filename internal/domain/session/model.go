package session

import (
	"time"

	"github.com/google/uuid"
)

// TTL is the lifetime of a session. A session older than this is treated
// as ended on the next read, whether or not the sweeper got to it first.
const TTL = 4 * time.Hour

// Session links a doctor and a patient for the duration of a consultation.
// It starts unverified; the patient receives an OTP by email and the doctor
// proves contact by submitting it. Verified is monotonic, Ended is terminal.
type Session struct {
	ID        uuid.UUID `db:"id" json:"session_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID `db:"patient_id" json:"user_id"`
	OTP       int       `db:"otp" json:"-"`
	Verified  bool      `db:"verified" json:"verified"`
	Ended     bool      `db:"ended" json:"ended"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the session has outlived TTL.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > TTL
}
