package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivateAll sets every drug in the prescription to active. Drugs already
// active are reported in a separate bucket of the message; the call
// succeeds either way.
func (s *Service) ActivateAll(ctx context.Context, prescriptionID, patientID uuid.UUID) (string, error) {
	return s.setAll(ctx, prescriptionID, patientID, StateActive)
}

// DeactivateAll mirrors ActivateAll with target state inactive.
func (s *Service) DeactivateAll(ctx context.Context, prescriptionID, patientID uuid.UUID) (string, error) {
	return s.setAll(ctx, prescriptionID, patientID, StateInactive)
}

func (s *Service) setAll(ctx context.Context, prescriptionID, patientID uuid.UUID, target string) (string, error) {
	p, err := s.getForPatient(ctx, prescriptionID, patientID)
	if err != nil {
		return "", err
	}

	var already, changed []string
	for _, name := range sortedNames(p.Drugs) {
		d := p.Drugs[name]
		if d.State == target {
			already = append(already, name)
		} else {
			d.State = target
			changed = append(changed, name)
		}
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return "", err
	}

	verb := "activated"
	verbCap := "Activated"
	if target == StateInactive {
		verb = "deactivated"
		verbCap = "Deactivated"
	}

	var msg strings.Builder
	if len(already) > 0 {
		fmt.Fprintf(&msg, "The following drugs are already %s: %s", verb, strings.Join(already, ", "))
	}
	// The changed bucket always carries a leading newline, even when it is
	// the only bucket.
	if len(changed) > 0 {
		fmt.Fprintf(&msg, "\n%s the following drugs: %s", verbCap, strings.Join(changed, ", "))
	}
	return msg.String(), nil
}

// ActivateOne sets a single drug to active. Already-active is an error,
// unlike the bulk variant.
func (s *Service) ActivateOne(ctx context.Context, prescriptionID, patientID uuid.UUID, drugName string) (string, error) {
	return s.setOne(ctx, prescriptionID, patientID, drugName, StateActive)
}

// DeactivateOne mirrors ActivateOne with target state inactive.
func (s *Service) DeactivateOne(ctx context.Context, prescriptionID, patientID uuid.UUID, drugName string) (string, error) {
	return s.setOne(ctx, prescriptionID, patientID, drugName, StateInactive)
}

func (s *Service) setOne(ctx context.Context, prescriptionID, patientID uuid.UUID, drugName, target string) (string, error) {
	p, err := s.getForPatient(ctx, prescriptionID, patientID)
	if err != nil {
		return "", err
	}

	d, ok := p.Drugs[drugName]
	if !ok {
		return "", ErrDrugNotFound
	}
	if d.State == target {
		if target == StateActive {
			return "", ErrDrugActive
		}
		return "", ErrDrugInactive
	}

	d.State = target
	if err := s.repo.Update(ctx, p); err != nil {
		return "", err
	}

	verb := "activated"
	if target == StateInactive {
		verb = "deactivated"
	}
	return fmt.Sprintf("Drug '%s' %s successfully", drugName, verb), nil
}

// AutoDeactivate forces inactive every drug whose [start_date, end_date]
// window excludes today, from any state. Drugs inside their window, or
// missing either date, are left untouched.
func (s *Service) AutoDeactivate(ctx context.Context, prescriptionID, patientID uuid.UUID) (string, error) {
	p, err := s.getForPatient(ctx, prescriptionID, patientID)
	if err != nil {
		return "", err
	}

	today, _ := time.Parse(DateFormat, time.Now().Format(DateFormat))

	var deactivated []string
	for _, name := range sortedNames(p.Drugs) {
		d := p.Drugs[name]
		if d.StartDate == "" || d.EndDate == "" {
			continue
		}
		start, err := time.Parse(DateFormat, d.StartDate)
		if err != nil {
			continue
		}
		end, err := time.Parse(DateFormat, d.EndDate)
		if err != nil {
			continue
		}
		if today.Before(start) || today.After(end) {
			d.State = StateInactive
			deactivated = append(deactivated, name)
		}
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return "", err
	}

	if len(deactivated) == 0 {
		return "No drugs deactivated based on dates", nil
	}
	return fmt.Sprintf("Deactivated the following drugs based on dates: %s", strings.Join(deactivated, ", ")), nil
}
