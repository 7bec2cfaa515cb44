package prescription

import "errors"

var (
	// ErrNotFound indicates the prescription does not exist, or is not
	// visible to the caller on patient-scoped lookups.
	ErrNotFound = errors.New("prescription not found")

	// ErrForbidden indicates the caller is neither the prescription's
	// doctor nor its patient, or lacks the role the operation requires.
	ErrForbidden = errors.New("not authorized for this prescription")

	// ErrDuplicate indicates a prescription already exists for the
	// doctor/patient/session triple.
	ErrDuplicate = errors.New("prescription already exists for this session")

	// ErrDrugNotFound indicates the named drug is not in the prescription.
	ErrDrugNotFound = errors.New("drug not found in the prescription")

	// ErrDrugActive indicates a single-drug activate on an active drug.
	ErrDrugActive = errors.New("drug is already activated")

	// ErrDrugInactive indicates a single-drug deactivate on an inactive drug.
	ErrDrugInactive = errors.New("drug is already deactivated")
)

// ValidationError reports a per-drug input violation. DateFormat marks the
// date-parse failures that the create path reports with a dedicated
// message naming the required format.
type ValidationError struct {
	Message    string
	DateFormat bool
}

func (e *ValidationError) Error() string { return e.Message }
