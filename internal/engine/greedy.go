package engine

import (
	"github.com/clinicflow/backend/internal/models"
	"github.com/clinicflow/backend/internal/store"
)

// TriageCompletion is delivered by the intake collaborator the moment triage
// finishes. The specialty is already resolved; the engine never classifies.
type TriageCompletion struct {
	VisitID           string
	RequiredSpecialty string
	Priority          models.Priority
}

// CompleteTriage moves the visit from Triage to Waiting and decides its
// clinician: the emergency fast-path for Emergency priority, the scored
// greedy pick otherwise. On ErrNoAvailableClinician the visit stays Waiting
// and unassigned, with a nil-clinician decision returned alongside the error.
// A re-delivered completion for such a visit is a retry and re-runs the pick;
// repeats for an already-assigned visit are rejected.
func (e *Engine) CompleteTriage(tc TriageCompletion) (models.AssignmentDecision, error) {
	start := e.now()
	decision := models.AssignmentDecision{VisitID: tc.VisitID}
	if !tc.Priority.Valid() {
		return decision, ErrInvalidPriority
	}

	err := e.store.Exec(func(tx *store.Tx) error {
		v, err := tx.Visit(tc.VisitID)
		if err != nil {
			return err
		}
		retry := v.Status == models.StatusWaiting && v.ClinicianID == nil
		if !retry && !v.Status.CanTransitionTo(models.StatusWaiting) {
			return ErrInvalidTransition
		}

		now := e.now()
		v.RequiredSpecialty = tc.RequiredSpecialty
		v.Priority = tc.Priority
		if v.TriagedAt == nil {
			v.TriagedAt = &now
		}
		v.Status = models.StatusWaiting

		active := tx.ActiveClinicians()
		if len(active) == 0 {
			return ErrNoAvailableClinician
		}

		var chosen *models.Clinician
		if v.Priority == models.PriorityEmergency {
			chosen = pickEmergency(active, v.RequiredSpecialty, tx.AverageActiveLoad())
		} else {
			chosen, decision.Breakdown = e.pickGreedy(active, v.RequiredSpecialty, tx.AverageActiveLoad())
		}

		if err := tx.IncrementLoad(chosen.ID); err != nil {
			return err
		}
		id := chosen.ID
		v.ClinicianID = &id
		decision.ClinicianID = &id
		return nil
	})

	decided := e.now()
	decision.DecidedAt = decided
	decision.LatencyMS = decided.Sub(start).Milliseconds()

	if err != nil {
		return decision, err
	}

	e.logger.Info().
		Str("visit_id", tc.VisitID).
		Str("clinician_id", *decision.ClinicianID).
		Float64("cost_total", decision.Breakdown.Total).
		Int64("latency_ms", decision.LatencyMS).
		Msg("visit assigned")
	return decision, nil
}

// pickGreedy scores every active clinician and takes the minimum total cost.
// The candidate slice arrives sorted by id, so a strict less-than keeps ties
// on the lowest clinician id.
func (e *Engine) pickGreedy(active []*models.Clinician, requiredSpecialty string, avgLoad float64) (*models.Clinician, models.CostBreakdown) {
	now := e.now()
	var best *models.Clinician
	var bestCost models.CostBreakdown
	for _, c := range active {
		cost := e.params.Score(requiredSpecialty, *c, avgLoad, now)
		if best == nil || cost.Total < bestCost.Total {
			best = c
			bestCost = cost
		}
	}
	return best, bestCost
}

// Abandon issues the compensating decrement for a caller that gave up on a
// visit after its assignment committed. The visit returns to Waiting
// unassigned; no rollback is ever assumed.
func (e *Engine) Abandon(visitID string) error {
	return e.store.Exec(func(tx *store.Tx) error {
		v, err := tx.Visit(visitID)
		if err != nil {
			return err
		}
		if v.Status != models.StatusWaiting || v.ClinicianID == nil {
			return ErrNotAssigned
		}
		if err := tx.DecrementLoad(*v.ClinicianID); err != nil {
			return err
		}
		v.ClinicianID = nil
		return nil
	})
}
