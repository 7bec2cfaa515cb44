package prescription

import (
	"context"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error

	// GetByID returns ErrNotFound when the prescription does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)

	// Update rewrites the drugs document.
	Update(ctx context.Context, p *Prescription) error

	// Delete returns ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// ExistsForSession reports whether a prescription already exists for
	// the doctor/patient/session triple.
	ExistsForSession(ctx context.Context, doctorID, patientID, sessionID uuid.UUID) (bool, error)

	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error)
	ListByDoctorAndPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*Prescription, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Prescription, error)
}
