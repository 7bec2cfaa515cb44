package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmalink/pharmalink/internal/platform/notification"
)

var (
	// ErrNotFound indicates the doctor has no session at all.
	ErrNotFound = errors.New("session not found")

	// ErrPatientNotFound indicates the start email matched no patient.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrEmailRequired indicates a start request without an email.
	ErrEmailRequired = errors.New("email is required")

	// ErrSessionActive indicates the doctor already has an unended session.
	ErrSessionActive = errors.New("session is active")

	// ErrExpired indicates the session outlived TTL; the failing read has
	// already persisted ended=true.
	ErrExpired = errors.New("session has expired")

	// ErrOTPRequired indicates a verify request without an OTP.
	ErrOTPRequired = errors.New("otp is required")

	// ErrInvalidOTP indicates the submitted OTP does not match.
	ErrInvalidOTP = errors.New("invalid otp")

	// ErrAlreadyVerified indicates a second verify on a verified session.
	ErrAlreadyVerified = errors.New("session already verified")

	// ErrAlreadyEnded indicates an end request on an ended session.
	ErrAlreadyEnded = errors.New("session is already ended")

	// ErrNotVerified indicates a guarded operation on an unverified session.
	ErrNotVerified = errors.New("session is not verified")

	// ErrEnded indicates a guarded operation on an ended session.
	ErrEnded = errors.New("session has ended")
)

// PatientFinder resolves a patient email to an account ID. It must return
// ErrPatientNotFound for unknown emails.
type PatientFinder interface {
	FindPatientIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
}

// Service manages the OTP-gated doctor-patient session lifecycle.
type Service struct {
	repo     SessionRepository
	patients PatientFinder
	mailer   notification.EmailSender
	logger   zerolog.Logger
}

func NewService(repo SessionRepository, patients PatientFinder, mailer notification.EmailSender, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, mailer: mailer, logger: logger}
}

// Start creates a session between the doctor and the patient behind email
// and mails the patient a 4-digit OTP. A doctor can hold at most one
// unended session. The returned warning is non-empty when the session was
// created but the OTP mail could not be delivered; mail failure never rolls
// the session back.
func (s *Service) Start(ctx context.Context, doctorID uuid.UUID, email string) (warning string, err error) {
	if email == "" {
		return "", ErrEmailRequired
	}

	patientID, err := s.patients.FindPatientIDByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	active, err := s.repo.HasUnended(ctx, doctorID)
	if err != nil {
		return "", err
	}
	if active {
		return "", ErrSessionActive
	}

	otp, err := generateOTP()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	sess := &Session{DoctorID: doctorID, PatientID: patientID, OTP: otp}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}

	subject, body := notification.OTPMessage(otp)
	if err := s.mailer.SendEmail(ctx, email, subject, body); err != nil {
		s.logger.Warn().Err(err).
			Str("session_id", sess.ID.String()).
			Msg("otp mail delivery failed")
		return "OTP email could not be delivered", nil
	}
	return "", nil
}

// Verify checks the OTP against the doctor's latest session and marks it
// verified. An expired session is ended on the spot.
func (s *Service) Verify(ctx context.Context, doctorID uuid.UUID, otp *int) error {
	sess, err := s.repo.LatestByDoctor(ctx, doctorID)
	if err != nil {
		return err
	}

	if sess.Expired(time.Now()) {
		if err := s.end(ctx, sess); err != nil {
			return err
		}
		return ErrExpired
	}

	if sess.Verified {
		return ErrAlreadyVerified
	}
	if otp == nil {
		return ErrOTPRequired
	}
	if *otp != sess.OTP {
		return ErrInvalidOTP
	}

	sess.Verified = true
	return s.repo.Update(ctx, sess)
}

// End terminates the doctor's latest session.
func (s *Service) End(ctx context.Context, doctorID uuid.UUID) error {
	sess, err := s.repo.LatestByDoctor(ctx, doctorID)
	if err != nil {
		return err
	}
	if sess.Ended {
		return ErrAlreadyEnded
	}
	return s.end(ctx, sess)
}

// Guard returns the doctor's latest session when it is usable for guarded
// work. Checks run in a fixed order: existence, verification, ended flag,
// then expiry; an expired session is persisted as ended before the error
// is returned.
func (s *Service) Guard(ctx context.Context, doctorID uuid.UUID) (*Session, error) {
	sess, err := s.repo.LatestByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !sess.Verified {
		return nil, ErrNotVerified
	}
	if sess.Ended {
		return nil, ErrEnded
	}
	if sess.Expired(time.Now()) {
		if err := s.end(ctx, sess); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return sess, nil
}

func (s *Service) end(ctx context.Context, sess *Session) error {
	sess.Ended = true
	return s.repo.Update(ctx, sess)
}

// generateOTP returns a uniform random integer in [1000, 9999].
func generateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1000, nil
}
