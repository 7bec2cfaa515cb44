package interaction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/domain/catalog"
	"github.com/pharmalink/pharmalink/internal/domain/prescription"
	"github.com/pharmalink/pharmalink/internal/domain/session"
)

// fakeInteractions holds one-directional interaction rows.
type fakeInteractions struct {
	rows []catalog.Interaction
}

func (f *fakeInteractions) FindExact(_ context.Context, a, b string) ([]string, error) {
	types := []string{}
	for _, r := range f.rows {
		if strings.EqualFold(r.ComponentA, a) && strings.EqualFold(r.ComponentB, b) {
			types = append(types, r.InteractionType)
		}
	}
	return types, nil
}

func (f *fakeInteractions) FindContaining(_ context.Context, a, b string) ([]string, error) {
	types := []string{}
	for _, r := range f.rows {
		if strings.Contains(strings.ToLower(r.ComponentA), strings.ToLower(a)) &&
			strings.Contains(strings.ToLower(r.ComponentB), strings.ToLower(b)) {
			types = append(types, r.InteractionType)
		}
	}
	return types, nil
}

type fakeResolver struct {
	drugs map[string]*catalog.ResolvedDrug
}

func (r *fakeResolver) Resolve(_ context.Context, tradeName string) (*catalog.ResolvedDrug, error) {
	d, ok := r.drugs[tradeName]
	if !ok {
		return nil, catalog.ErrDrugNotFound
	}
	return d, nil
}

type fakePrescriptions struct {
	byID map[uuid.UUID]*prescription.Prescription
}

func (f *fakePrescriptions) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, prescription.ErrNotFound
	}
	return p, nil
}

func (f *fakePrescriptions) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error) {
	out := []*prescription.Prescription{}
	for _, p := range f.byID {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrescriptions) ListBySession(_ context.Context, sessionID uuid.UUID) ([]*prescription.Prescription, error) {
	out := []*prescription.Prescription{}
	for _, p := range f.byID {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeGuard struct {
	sess *session.Session
	err  error
}

func (g *fakeGuard) Guard(_ context.Context, doctorID uuid.UUID) (*session.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.sess, nil
}

// The reference rows are one-directional: aspirin → warfarin only.
func testRows() *fakeInteractions {
	return &fakeInteractions{rows: []catalog.Interaction{
		{ComponentA: "aspirin", ComponentB: "warfarin", InteractionType: "bleeding risk"},
		{ComponentA: "warfarin sodium", ComponentB: "vitamin k", InteractionType: "antagonism"},
	}}
}

func drugEntry(state, scName string, components ...string) *prescription.DrugEntry {
	return &prescription.DrugEntry{
		State:          state,
		Quantity:       1,
		QuantityUnit:   "tablet",
		Rate:           1,
		RateUnit:       "per day",
		ScientificName: scName,
		Components:     components,
	}
}

func TestCheckPrescription_OneDirectionalExactMatch(t *testing.T) {
	doctorID := uuid.New()
	patientID := uuid.New()
	p := &prescription.Prescription{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Drugs: map[string]*prescription.DrugEntry{
			// Components carry catalog casing; the lookup lowercases them.
			"Aspocid": drugEntry(prescription.StateNew, "Aspirin", "Aspirin"),
			"Marevan": drugEntry(prescription.StateNew, "Warfarin", "Warfarin"),
		},
	}
	store := &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{p.ID: p}}
	svc := NewService(testRows(), &fakeResolver{}, store, &fakeGuard{})

	results, err := svc.CheckPrescription(context.Background(), p.ID, doctorID)
	if err != nil {
		t.Fatalf("CheckPrescription: %v", err)
	}

	// The table only has (aspirin, warfarin); the cross product visits
	// both orderings but only that one matches, so it is reported once.
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	r := results[0]
	if r.Drug1 != "Aspocid" || r.Drug2 != "Marevan" {
		t.Errorf("pair = (%s, %s)", r.Drug1, r.Drug2)
	}
	if len(r.InteractionTypes) != 1 || r.InteractionTypes[0] != "bleeding risk" {
		t.Errorf("types = %v", r.InteractionTypes)
	}
}

func TestCheckPrescription_ExactDoesNotMatchSubstring(t *testing.T) {
	doctorID := uuid.New()
	p := &prescription.Prescription{
		ID:       uuid.New(),
		DoctorID: doctorID,
		Drugs: map[string]*prescription.DrugEntry{
			"Aspocid": drugEntry(prescription.StateNew, "Aspirin", "aspirin"),
			// "warfarin sodium" is not an exact match for the table's
			// "warfarin" row.
			"Marevan": drugEntry(prescription.StateNew, "Warfarin Sodium", "warfarin sodium"),
		},
	}
	store := &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{p.ID: p}}
	svc := NewService(testRows(), &fakeResolver{}, store, &fakeGuard{})

	results, err := svc.CheckPrescription(context.Background(), p.ID, doctorID)
	if err != nil {
		t.Fatalf("CheckPrescription: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("exact matching should not match component variants: %+v", results)
	}
}

func TestCheckPrescription_Authorization(t *testing.T) {
	p := &prescription.Prescription{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Drugs:     map[string]*prescription.DrugEntry{},
	}
	store := &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{p.ID: p}}
	svc := NewService(testRows(), &fakeResolver{}, store, &fakeGuard{})

	if _, err := svc.CheckPrescription(context.Background(), uuid.New(), p.DoctorID); !errors.Is(err, ErrPrescriptionNotFound) {
		t.Errorf("missing prescription: err = %v", err)
	}
	if _, err := svc.CheckPrescription(context.Background(), p.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v", err)
	}
	if _, err := svc.CheckPrescription(context.Background(), p.ID, p.PatientID); err != nil {
		t.Errorf("patient: %v", err)
	}
}

func TestCheckTradeNames_SubstringMatchesVariants(t *testing.T) {
	resolver := &fakeResolver{drugs: map[string]*catalog.ResolvedDrug{
		"Aspocid": {TradeName: "Aspocid", ScientificName: "Aspirin", Components: []string{"aspirin"}},
		"Marevan": {TradeName: "Marevan", ScientificName: "Warfarin Sodium", Components: []string{"warfarin sodium"}},
		"Konakion": {TradeName: "Konakion", ScientificName: "Vitamin K", Components: []string{"vitamin k"}},
	}}
	svc := NewService(testRows(), resolver, &fakePrescriptions{}, &fakeGuard{})

	// Substring matching lets "warfarin" hit the "warfarin sodium" row
	// that the exact-match scan above misses.
	rows := &fakeInteractions{rows: []catalog.Interaction{
		{ComponentA: "aspirin", ComponentB: "warfarin sodium", InteractionType: "bleeding risk"},
	}}
	svc.interactions = rows

	types, err := svc.CheckTradeNames(context.Background(), "Aspocid", "Marevan")
	if err != nil {
		t.Fatalf("CheckTradeNames: %v", err)
	}
	if len(types) != 1 || types[0] != "bleeding risk" {
		t.Errorf("types = %v", types)
	}

	// Single direction only: reversed arguments find nothing.
	types, err = svc.CheckTradeNames(context.Background(), "Marevan", "Aspocid")
	if err != nil {
		t.Fatalf("CheckTradeNames reversed: %v", err)
	}
	if len(types) != 0 {
		t.Errorf("reversed lookup should be empty, got %v", types)
	}
}

func TestCheckTradeNames_Errors(t *testing.T) {
	resolver := &fakeResolver{drugs: map[string]*catalog.ResolvedDrug{
		"Aspocid": {TradeName: "Aspocid", Components: []string{"aspirin"}},
	}}
	svc := NewService(testRows(), resolver, &fakePrescriptions{}, &fakeGuard{})

	if _, err := svc.CheckTradeNames(context.Background(), "", "Aspocid"); !errors.Is(err, ErrNamesRequired) {
		t.Errorf("missing name: err = %v", err)
	}
	if _, err := svc.CheckTradeNames(context.Background(), "  ", "Aspocid"); !errors.Is(err, ErrNamesRequired) {
		t.Errorf("blank name: err = %v", err)
	}
	if _, err := svc.CheckTradeNames(context.Background(), "Aspocid", "Nosuchdrug"); !errors.Is(err, ErrDrugNotFound) {
		t.Errorf("unknown drug: err = %v", err)
	}
}

func TestCheckPatient_CrossPrescriptionScan(t *testing.T) {
	patientID := uuid.New()
	p1 := &prescription.Prescription{
		ID:        uuid.New(),
		PatientID: patientID,
		CreatedAt: time.Now(),
		Drugs: map[string]*prescription.DrugEntry{
			"Aspocid": drugEntry(prescription.StateActive, "Aspirin", "aspirin"),
		},
	}
	p2 := &prescription.Prescription{
		ID:        uuid.New(),
		PatientID: patientID,
		CreatedAt: time.Now(),
		Drugs: map[string]*prescription.DrugEntry{
			"Marevan": drugEntry(prescription.StateNew, "Warfarin", "warfarin"),
		},
	}
	// Inactive-only prescriptions are excluded from the scan.
	p3 := &prescription.Prescription{
		ID:        uuid.New(),
		PatientID: patientID,
		Drugs: map[string]*prescription.DrugEntry{
			"Aspocid": drugEntry(prescription.StateInactive, "Aspirin", "aspirin"),
		},
	}
	store := &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{
		p1.ID: p1, p2.ID: p2, p3.ID: p3,
	}}
	svc := NewService(testRows(), &fakeResolver{}, store, &fakeGuard{})

	results, err := svc.CheckPatient(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CheckPatient: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	r := results[0]
	if r.Drug1 != "Aspocid" || r.Drug2 != "Marevan" {
		t.Errorf("pair = (%s, %s)", r.Drug1, r.Drug2)
	}
	if r.State1 != prescription.StateActive || r.State2 != prescription.StateNew {
		t.Errorf("states = (%s, %s)", r.State1, r.State2)
	}
	if r.ScName1 != "Aspirin" || r.ScName2 != "Warfarin" {
		t.Errorf("scientific names = (%s, %s)", r.ScName1, r.ScName2)
	}
	if r.PrescriptionID1 != p1.ID || r.PrescriptionID2 != p2.ID {
		t.Errorf("prescription ids = (%s, %s)", r.PrescriptionID1, r.PrescriptionID2)
	}
}

func TestCheckSessionPatient_DedupesSessionPrescriptions(t *testing.T) {
	doctorID := uuid.New()
	patientID := uuid.New()
	sess := &session.Session{ID: uuid.New(), DoctorID: doctorID, PatientID: patientID, Verified: true}

	// The session's own prescription is also an active prescription of
	// the patient; it must be scanned once, not twice.
	p := &prescription.Prescription{
		ID:        uuid.New(),
		SessionID: sess.ID,
		DoctorID:  doctorID,
		PatientID: patientID,
		Drugs: map[string]*prescription.DrugEntry{
			"Aspocid": drugEntry(prescription.StateNew, "Aspirin", "aspirin"),
			"Marevan": drugEntry(prescription.StateNew, "Warfarin", "warfarin"),
		},
	}
	store := &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{p.ID: p}}
	svc := NewService(testRows(), &fakeResolver{}, store, &fakeGuard{sess: sess})

	results, err := svc.CheckSessionPatient(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("CheckSessionPatient: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (duplicate candidates not collapsed?): %+v", len(results), results)
	}
}

func TestCheckSessionPatient_GuardFailurePropagates(t *testing.T) {
	svc := NewService(testRows(), &fakeResolver{}, &fakePrescriptions{}, &fakeGuard{err: session.ErrNotVerified})
	if _, err := svc.CheckSessionPatient(context.Background(), uuid.New()); !errors.Is(err, session.ErrNotVerified) {
		t.Fatalf("err = %v, want session.ErrNotVerified", err)
	}
}

func TestCrossScan_SameDrugNameAcrossPrescriptions(t *testing.T) {
	patientID := uuid.New()
	rows := &fakeInteractions{rows: []catalog.Interaction{
		{ComponentA: "aspirin", ComponentB: "aspirin", InteractionType: "duplicate therapy"},
	}}
	p1 := &prescription.Prescription{
		ID:        uuid.New(),
		PatientID: patientID,
		Drugs:     map[string]*prescription.DrugEntry{"Aspocid": drugEntry(prescription.StateActive, "Aspirin", "aspirin")},
	}
	p2 := &prescription.Prescription{
		ID:        uuid.New(),
		PatientID: patientID,
		Drugs:     map[string]*prescription.DrugEntry{"Aspocid": drugEntry(prescription.StateActive, "Aspirin", "aspirin")},
	}
	store := &fakePrescriptions{byID: map[uuid.UUID]*prescription.Prescription{p1.ID: p1, p2.ID: p2}}
	svc := NewService(rows, &fakeResolver{}, store, &fakeGuard{})

	results, err := svc.CheckPatient(context.Background(), patientID)
	if err != nil {
		t.Fatalf("CheckPatient: %v", err)
	}
	// Pair identity is (prescription, drug name): the same trade name in
	// two prescriptions is checked against itself, in both orderings.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	for _, r := range results {
		if r.PrescriptionID1 == r.PrescriptionID2 {
			t.Errorf("self-pair within one prescription reported: %+v", r)
		}
	}
}
