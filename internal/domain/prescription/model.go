package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Drug lifecycle states. A drug starts as new and then moves between
// active and inactive; nothing transitions back to new.
const (
	StateNew      = "new"
	StateActive   = "active"
	StateInactive = "inactive"
)

// DateFormat is the wire format for drug start/end dates.
const DateFormat = "2006-01-02"

func validState(state string) bool {
	return state == StateNew || state == StateActive || state == StateInactive
}

// DrugEntry is one drug line inside a prescription. The JSON field names
// are the external contract; ScName/ScNameComponents/DrugEye are
// denormalized from the reference catalog at create/update time and never
// re-derived afterwards.
type DrugEntry struct {
	State          string   `json:"state"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	Quantity       int      `json:"quantity"`
	QuantityUnit   string   `json:"quantity_unit"`
	Rate           float64  `json:"rate"`
	RateUnit       string   `json:"rate_unit"`
	ScientificName string   `json:"ScName,omitempty"`
	Components     []string `json:"ScNameComponents,omitempty"`
	CatalogID      int64    `json:"DrugEye,omitempty"`
}

// Prescription is one doctor's record of drugs issued to a patient within
// a single session. Drugs are a trade-name keyed map persisted as a single
// JSONB document; every mutation rewrites the whole map.
type Prescription struct {
	ID        uuid.UUID             `db:"id" json:"id"`
	SessionID uuid.UUID             `db:"session_id" json:"session_id"`
	DoctorID  uuid.UUID             `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID             `db:"patient_id" json:"user_id"`
	CreatedAt time.Time             `db:"created_at" json:"created_at"`
	Drugs     map[string]*DrugEntry `db:"drugs" json:"drugs"`
}

// HasDrugInState reports whether any drug in the prescription carries the
// given state.
func (p *Prescription) HasDrugInState(state string) bool {
	for _, d := range p.Drugs {
		if d.State == state {
			return true
		}
	}
	return false
}

// Active reports whether the prescription counts as active for interaction
// scans: at least one drug in state active or new.
func (p *Prescription) Active() bool {
	return p.HasDrugInState(StateActive) || p.HasDrugInState(StateNew)
}
