package interaction

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/domain/catalog"
	"github.com/pharmalink/pharmalink/internal/domain/prescription"
	"github.com/pharmalink/pharmalink/internal/domain/session"
)

var (
	// ErrPrescriptionNotFound indicates the prescription to scan is absent.
	ErrPrescriptionNotFound = errors.New("prescription not found")

	// ErrForbidden indicates the caller may not view the prescription.
	ErrForbidden = errors.New("not authorized for this prescription")

	// ErrNamesRequired indicates a trade-name check missing a name.
	ErrNamesRequired = errors.New("trade names of both drugs are required")

	// ErrDrugNotFound indicates a trade name with no catalog entry.
	ErrDrugNotFound = errors.New("one or both drugs not found")
)

// SessionGuard validates the doctor's in-progress verified session.
// *session.Service satisfies this.
type SessionGuard interface {
	Guard(ctx context.Context, doctorID uuid.UUID) (*session.Session, error)
}

// DrugResolver maps a trade name to its catalog entry. *catalog.Service
// satisfies this.
type DrugResolver interface {
	Resolve(ctx context.Context, tradeName string) (*catalog.ResolvedDrug, error)
}

// PrescriptionSource is the slice of the prescription store the engine
// reads. The prescription repository satisfies this.
type PrescriptionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*prescription.Prescription, error)
}

// PairResult is one interacting drug pair inside a single prescription.
type PairResult struct {
	Drug1            string   `json:"drug1"`
	Drug2            string   `json:"drug2"`
	InteractionTypes []string `json:"interaction_type"`
}

// CrossResult is one interacting drug pair across a prescription set,
// annotated with both prescriptions and each drug's denormalized data.
type CrossResult struct {
	PrescriptionID1  uuid.UUID `json:"prescription_id_1"`
	PrescriptionID2  uuid.UUID `json:"prescription_id_2"`
	Drug1            string    `json:"drug1"`
	Drug2            string    `json:"drug2"`
	ScName1          string    `json:"scname1"`
	ScName2          string    `json:"scname2"`
	State1           string    `json:"state1"`
	State2           string    `json:"state2"`
	InteractionTypes []string  `json:"interaction_type"`
}

// Service is the drug-drug interaction engine. The prescription-scoped
// scans use exact component matching; the ad hoc trade-name check uses
// substring matching. The two are deliberately not unified.
type Service struct {
	interactions  catalog.InteractionRepository
	catalog       DrugResolver
	prescriptions PrescriptionSource
	sessions      SessionGuard
}

func NewService(interactions catalog.InteractionRepository, resolver DrugResolver, prescriptions PrescriptionSource, sessions SessionGuard) *Service {
	return &Service{
		interactions:  interactions,
		catalog:       resolver,
		prescriptions: prescriptions,
		sessions:      sessions,
	}
}

func sortedNames(drugs map[string]*prescription.DrugEntry) []string {
	names := make([]string, 0, len(drugs))
	for name := range drugs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lowered(components []string) []string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = strings.ToLower(c)
	}
	return out
}

// CheckPrescription scans one prescription for interacting drug pairs.
// Both orderings of every distinct drug-name pair are checked with exact
// component matching.
func (s *Service) CheckPrescription(ctx context.Context, prescriptionID, requesterID uuid.UUID) ([]PairResult, error) {
	p, err := s.prescriptions.GetByID(ctx, prescriptionID)
	if err != nil {
		if errors.Is(err, prescription.ErrNotFound) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}
	if requesterID != p.DoctorID && requesterID != p.PatientID {
		return nil, ErrForbidden
	}

	results := []PairResult{}
	names := sortedNames(p.Drugs)
	for _, name1 := range names {
		for _, name2 := range names {
			if name1 == name2 {
				continue
			}
			c1s := lowered(p.Drugs[name1].Components)
			c2s := lowered(p.Drugs[name2].Components)
			for _, c1 := range c1s {
				for _, c2 := range c2s {
					types, err := s.interactions.FindExact(ctx, c1, c2)
					if err != nil {
						return nil, err
					}
					if len(types) > 0 {
						results = append(results, PairResult{Drug1: name1, Drug2: name2, InteractionTypes: types})
					}
				}
			}
		}
	}
	return results, nil
}

// CheckTradeNames resolves two trade names and reports interaction types
// between their components using substring matching, single direction.
func (s *Service) CheckTradeNames(ctx context.Context, name1, name2 string) ([]string, error) {
	name1 = strings.TrimSpace(name1)
	name2 = strings.TrimSpace(name2)
	if name1 == "" || name2 == "" {
		return nil, ErrNamesRequired
	}

	d1, err := s.catalog.Resolve(ctx, name1)
	if err != nil {
		if errors.Is(err, catalog.ErrDrugNotFound) {
			return nil, ErrDrugNotFound
		}
		return nil, err
	}
	d2, err := s.catalog.Resolve(ctx, name2)
	if err != nil {
		if errors.Is(err, catalog.ErrDrugNotFound) {
			return nil, ErrDrugNotFound
		}
		return nil, err
	}

	types := []string{}
	for _, c1 := range lowered(d1.Components) {
		for _, c2 := range lowered(d2.Components) {
			found, err := s.interactions.FindContaining(ctx, c1, c2)
			if err != nil {
				return nil, err
			}
			types = append(types, found...)
		}
	}
	return types, nil
}

// CheckSessionPatient scans the session patient's active prescriptions,
// plus the current session's own prescriptions, for interacting drug
// pairs. Requires an in-progress verified session.
func (s *Service) CheckSessionPatient(ctx context.Context, doctorID uuid.UUID) ([]CrossResult, error) {
	sess, err := s.sessions.Guard(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	sessionPrescriptions, err := s.prescriptions.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	all, err := s.prescriptions.ListByPatient(ctx, sess.PatientID)
	if err != nil {
		return nil, err
	}

	candidates := append([]*prescription.Prescription{}, sessionPrescriptions...)
	for _, p := range all {
		if p.Active() {
			candidates = append(candidates, p)
		}
	}
	return s.crossScan(ctx, dedupe(candidates))
}

// CheckPatient scans the patient's active prescriptions against each
// other.
func (s *Service) CheckPatient(ctx context.Context, patientID uuid.UUID) ([]CrossResult, error) {
	all, err := s.prescriptions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	active := []*prescription.Prescription{}
	for _, p := range all {
		if p.Active() {
			active = append(active, p)
		}
	}
	return s.crossScan(ctx, active)
}

// dedupe drops prescriptions already seen by id, keeping first occurrence
// order.
func dedupe(ps []*prescription.Prescription) []*prescription.Prescription {
	seen := make(map[uuid.UUID]bool, len(ps))
	out := ps[:0]
	for _, p := range ps {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// crossScan checks every ordered pair of drug entries across the
// prescription set. Pair identity is (prescription, drug name): the same
// trade name appearing in two prescriptions is still scanned against
// itself.
func (s *Service) crossScan(ctx context.Context, candidates []*prescription.Prescription) ([]CrossResult, error) {
	results := []CrossResult{}
	for _, p1 := range candidates {
		names1 := sortedNames(p1.Drugs)
		for _, p2 := range candidates {
			names2 := sortedNames(p2.Drugs)
			for _, name1 := range names1 {
				for _, name2 := range names2 {
					if p1.ID == p2.ID && name1 == name2 {
						continue
					}
					d1 := p1.Drugs[name1]
					d2 := p2.Drugs[name2]
					for _, c1 := range lowered(d1.Components) {
						for _, c2 := range lowered(d2.Components) {
							types, err := s.interactions.FindExact(ctx, c1, c2)
							if err != nil {
								return nil, err
							}
							if len(types) > 0 {
								results = append(results, CrossResult{
									PrescriptionID1:  p1.ID,
									PrescriptionID2:  p2.ID,
									Drug1:            name1,
									Drug2:            name2,
									ScName1:          d1.ScientificName,
									ScName2:          d2.ScientificName,
									State1:           d1.State,
									State2:           d2.State,
									InteractionTypes: types,
								})
							}
						}
					}
				}
			}
		}
	}
	return results, nil
}
