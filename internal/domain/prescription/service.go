package prescription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/domain/catalog"
	"github.com/pharmalink/pharmalink/internal/domain/session"
)

// SessionGuard validates that the doctor has an in-progress verified
// session and returns it. *session.Service satisfies this.
type SessionGuard interface {
	Guard(ctx context.Context, doctorID uuid.UUID) (*session.Session, error)
}

// DrugResolver maps a trade name to its catalog entry. *catalog.Service
// satisfies this.
type DrugResolver interface {
	Resolve(ctx context.Context, tradeName string) (*catalog.ResolvedDrug, error)
}

// DoctorInfo is the doctor projection attached to patient-facing
// prescription listings.
type DoctorInfo struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"fname"`
	LastName  string    `json:"lname"`
	Image     *string   `json:"image"`
}

// DoctorInfoProvider resolves a doctor ID to its public projection. A nil
// result with nil error means the doctor no longer exists; such
// prescriptions are skipped in the listing.
type DoctorInfoProvider interface {
	DoctorInfo(ctx context.Context, id uuid.UUID) (*DoctorInfo, error)
}

// Service implements the prescription store and its listing projections.
// Lifecycle transitions live in lifecycle.go.
type Service struct {
	repo     PrescriptionRepository
	sessions SessionGuard
	catalog  DrugResolver
	doctors  DoctorInfoProvider
}

func NewService(repo PrescriptionRepository, sessions SessionGuard, resolver DrugResolver, doctors DoctorInfoProvider) *Service {
	return &Service{repo: repo, sessions: sessions, catalog: resolver, doctors: doctors}
}

// sortedNames returns the map's trade names in deterministic order.
func sortedNames(drugs map[string]*DrugEntry) []string {
	names := make([]string, 0, len(drugs))
	for name := range drugs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateEntry checks one drug's fields against the entry invariants.
// An empty state is treated as "new" for validation; Create forces it
// afterwards regardless.
func validateEntry(name string, e *DrugEntry) *ValidationError {
	state := e.State
	if state == "" {
		state = StateNew
	}
	if !validState(state) {
		return &ValidationError{Message: fmt.Sprintf("Invalid state '%s' for drug '%s'.", e.State, name)}
	}

	var start, end time.Time
	if e.StartDate != "" {
		var err error
		start, err = time.Parse(DateFormat, e.StartDate)
		if err != nil {
			return &ValidationError{
				Message:    fmt.Sprintf("Invalid date format for drug '%s'. Date should be in format '%%Y-%%m-%%d'.", name),
				DateFormat: true,
			}
		}
	}
	if e.StartDate != "" && e.EndDate != "" {
		var err error
		end, err = time.Parse(DateFormat, e.EndDate)
		if err != nil {
			return &ValidationError{
				Message:    fmt.Sprintf("Invalid date format for drug '%s'. Date should be in format '%%Y-%%m-%%d'.", name),
				DateFormat: true,
			}
		}
		if start.After(end) {
			return &ValidationError{Message: fmt.Sprintf("End date must be after or equal to start date for drug '%s'.", name)}
		}
		today, _ := time.Parse(DateFormat, time.Now().Format(DateFormat))
		if start.Before(today) {
			return &ValidationError{Message: fmt.Sprintf("Start date must be in the future for drug '%s'.", name)}
		}
	}

	if e.Quantity <= 0 {
		return &ValidationError{Message: fmt.Sprintf("Invalid quantity '%d' for drug '%s'.", e.Quantity, name)}
	}
	if e.QuantityUnit == "" {
		return &ValidationError{Message: fmt.Sprintf("Invalid quantity unit '%s' for drug '%s'.", e.QuantityUnit, name)}
	}
	if e.Rate <= 0 {
		return &ValidationError{Message: fmt.Sprintf("Invalid rate '%v' for drug '%s'.", e.Rate, name)}
	}
	if e.RateUnit == "" {
		return &ValidationError{Message: fmt.Sprintf("Invalid rate unit '%s' for drug '%s'.", e.RateUnit, name)}
	}
	return nil
}

// stamp denormalizes the catalog data onto the entry.
func (s *Service) stamp(ctx context.Context, name string, e *DrugEntry) error {
	resolved, err := s.catalog.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, catalog.ErrDrugNotFound) {
			return &ValidationError{Message: fmt.Sprintf("Drug with trade name '%s' does not exist.", name)}
		}
		return err
	}
	e.ScientificName = resolved.ScientificName
	e.Components = resolved.Components
	e.CatalogID = resolved.ID
	return nil
}

// Create makes the one prescription of the doctor's current session.
// Every drug is resolved against the catalog and validated; the stored
// state is forced to "new" regardless of input.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, drugs map[string]*DrugEntry) (*Prescription, error) {
	sess, err := s.sessions.Guard(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsForSession(ctx, doctorID, sess.PatientID, sess.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	for _, name := range sortedNames(drugs) {
		e := drugs[name]
		if err := s.stamp(ctx, name, e); err != nil {
			return nil, err
		}
		if verr := validateEntry(name, e); verr != nil {
			return nil, verr
		}
		e.State = StateNew
	}

	p := &Prescription{
		SessionID: sess.ID,
		DoctorID:  doctorID,
		PatientID: sess.PatientID,
		Drugs:     drugs,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update merges the input drugs into the prescription. Unlike Create, the
// state must be explicit per drug; trade names are re-resolved so each
// must still exist in the catalog. Drugs not named in the input are left
// untouched.
func (s *Service) Update(ctx context.Context, prescriptionID, doctorID uuid.UUID, drugs map[string]*DrugEntry) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != doctorID {
		return nil, ErrForbidden
	}

	for _, name := range sortedNames(drugs) {
		e := drugs[name]
		if err := s.stamp(ctx, name, e); err != nil {
			return nil, err
		}
		if e.State == "" {
			return nil, &ValidationError{Message: fmt.Sprintf("State is required for drug '%s'", name)}
		}
		if verr := validateEntry(name, e); verr != nil {
			return nil, verr
		}
	}

	if p.Drugs == nil {
		p.Drugs = make(map[string]*DrugEntry, len(drugs))
	}
	for name, e := range drugs {
		p.Drugs[name] = e
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the prescription to its doctor or its patient.
func (s *Service) Get(ctx context.Context, prescriptionID, requesterID uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if requesterID != p.DoctorID && requesterID != p.PatientID {
		return nil, ErrForbidden
	}
	return p, nil
}

// DeleteByDoctor hard-deletes a prescription owned by the doctor.
func (s *Service) DeleteByDoctor(ctx context.Context, prescriptionID, doctorID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, prescriptionID)
	if err != nil {
		return err
	}
	if p.DoctorID != doctorID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, p.ID)
}

// DeleteByPatient hard-deletes a prescription belonging to the patient.
// A prescription of another patient is reported as not found, not
// forbidden.
func (s *Service) DeleteByPatient(ctx context.Context, prescriptionID, patientID uuid.UUID) error {
	p, err := s.getForPatient(ctx, prescriptionID, patientID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, p.ID)
}

// getForPatient loads a prescription scoped to the patient; any miss is
// ErrNotFound.
func (s *Service) getForPatient(ctx context.Context, prescriptionID, patientID uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if p.PatientID != patientID {
		return nil, ErrNotFound
	}
	return p, nil
}

// ListByDoctor returns every prescription the doctor has written.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

// ListByPatient returns every prescription issued to the patient.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// ListByPatientState returns the patient's prescriptions containing at
// least one drug in the given state.
func (s *Service) ListByPatientState(ctx context.Context, patientID uuid.UUID, state string) ([]*Prescription, error) {
	all, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	filtered := []*Prescription{}
	for _, p := range all {
		if p.HasDrugInState(state) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// ListForPatientDuringSession returns the doctor's own prescriptions for
// one patient; requires an in-progress verified session.
func (s *Service) ListForPatientDuringSession(ctx context.Context, doctorID, patientID uuid.UUID) ([]*Prescription, error) {
	if _, err := s.sessions.Guard(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListByDoctorAndPatient(ctx, doctorID, patientID)
}

// ListSessionPatient returns every prescription of the current session's
// patient, by any doctor.
func (s *Service) ListSessionPatient(ctx context.Context, doctorID uuid.UUID) ([]*Prescription, error) {
	sess, err := s.sessions.Guard(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, sess.PatientID)
}

// ListSessionPatientActive narrows ListSessionPatient to prescriptions
// with at least one drug in state active.
func (s *Service) ListSessionPatientActive(ctx context.Context, doctorID uuid.UUID) ([]*Prescription, error) {
	all, err := s.ListSessionPatient(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	active := []*Prescription{}
	for _, p := range all {
		if p.HasDrugInState(StateActive) {
			active = append(active, p)
		}
	}
	return active, nil
}

// DoctorInfoItem pairs a prescription with its issuing doctor's public
// projection for the patient home views.
type DoctorInfoItem struct {
	ID         uuid.UUID  `json:"id"`
	DoctorInfo DoctorInfo `json:"doctorInfo"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ListPatientDoctorInfo returns the patient's prescriptions annotated
// with doctor info. A non-empty state narrows to prescriptions containing
// a drug in that state. Prescriptions whose doctor no longer exists are
// skipped.
func (s *Service) ListPatientDoctorInfo(ctx context.Context, patientID uuid.UUID, state string) ([]*DoctorInfoItem, error) {
	var (
		all []*Prescription
		err error
	)
	if state == "" {
		all, err = s.repo.ListByPatient(ctx, patientID)
	} else {
		all, err = s.ListByPatientState(ctx, patientID, state)
	}
	if err != nil {
		return nil, err
	}

	items := []*DoctorInfoItem{}
	for _, p := range all {
		info, err := s.doctors.DoctorInfo(ctx, p.DoctorID)
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}
		items = append(items, &DoctorInfoItem{ID: p.ID, DoctorInfo: *info, CreatedAt: p.CreatedAt})
	}
	return items, nil
}
