package engine

import (
	"github.com/google/uuid"

	"github.com/clinicflow/backend/internal/models"
	"github.com/clinicflow/backend/internal/store"
)

// CheckIn registers a patient and opens a visit. The visit is created in
// CheckedIn and immediately moved to Triage, where it stays until the intake
// collaborator delivers the TriageCompletion.
func (e *Engine) CheckIn(patientName, complaint string) (models.Visit, error) {
	now := e.now()
	visit := models.Visit{
		ID:        uuid.NewString(),
		PatientID: uuid.NewString(),
		Status:    models.StatusCheckedIn,
		ArrivedAt: now,
		Complaint: complaint,
		Priority:  models.PriorityNormal,
	}

	err := e.store.Exec(func(tx *store.Tx) error {
		if err := tx.AddPatient(&models.Patient{ID: visit.PatientID, Name: patientName}); err != nil {
			return err
		}
		v := visit
		v.Status = models.StatusTriage
		if err := tx.AddVisit(&v); err != nil {
			return err
		}
		visit = v
		return nil
	})
	if err != nil {
		return models.Visit{}, err
	}

	e.logger.Info().Str("visit_id", visit.ID).Msg("visit checked in")
	return visit, nil
}

// CallIn starts the consultation for a waiting, assigned visit. A clinician
// runs at most one consultation at a time; a second call-in is rejected with
// ErrClinicianBusy until the first completes.
func (e *Engine) CallIn(visitID string) (models.Visit, error) {
	var out models.Visit
	err := e.store.Exec(func(tx *store.Tx) error {
		v, err := tx.Visit(visitID)
		if err != nil {
			return err
		}
		if !v.Status.CanTransitionTo(models.StatusInConsultation) {
			return ErrInvalidTransition
		}
		if v.ClinicianID == nil {
			return ErrNotAssigned
		}
		if tx.InConsultation(*v.ClinicianID) {
			return ErrClinicianBusy
		}
		now := e.now()
		v.Status = models.StatusInConsultation
		v.ConsultStartedAt = &now
		out = *v
		return nil
	})
	return out, err
}

// Complete closes the consultation and releases the clinician's load slot.
// The clinical summary arrives from the summarization collaborator and is
// stored verbatim.
func (e *Engine) Complete(visitID, summary string) (models.Visit, error) {
	var out models.Visit
	err := e.store.Exec(func(tx *store.Tx) error {
		v, err := tx.Visit(visitID)
		if err != nil {
			return err
		}
		if !v.Status.CanTransitionTo(models.StatusCompleted) {
			return ErrInvalidTransition
		}
		now := e.now()
		v.Status = models.StatusCompleted
		v.ConsultEndedAt = &now
		if summary != "" {
			v.Summary = summary
		}
		if v.ClinicianID != nil {
			if err := tx.DecrementLoad(*v.ClinicianID); err != nil {
				return err
			}
		}
		out = *v
		return nil
	})
	if err != nil {
		return models.Visit{}, err
	}

	e.logger.Info().Str("visit_id", visitID).Msg("visit completed")
	return out, nil
}

// RegisterClinician adds a roster entry. The ledger starts at zero; loads are
// only ever derived from live assignments.
func (e *Engine) RegisterClinician(c models.Clinician) error {
	c.CurrentLoad = 0
	return e.store.Exec(func(tx *store.Tx) error {
		return tx.AddClinician(&c)
	})
}

// SetAvailability is the roster-management hook. Availability changes never
// touch the load ledger; open cases stay with the clinician until completed
// or rebalanced away.
func (e *Engine) SetAvailability(clinicianID string, availability models.Availability) (models.Clinician, error) {
	var out models.Clinician
	err := e.store.Exec(func(tx *store.Tx) error {
		c, err := tx.Clinician(clinicianID)
		if err != nil {
			return err
		}
		c.Availability = availability
		out = *c
		return nil
	})
	return out, err
}
