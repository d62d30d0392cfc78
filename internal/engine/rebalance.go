package engine

import (
	"github.com/clinicflow/backend/internal/matching"
	"github.com/clinicflow/backend/internal/models"
	"github.com/clinicflow/backend/internal/store"
)

// Rebalance recomputes a globally optimal assignment for every waiting
// non-emergency visit via exact minimum-cost bipartite matching, then applies
// only the diffs: visits whose optimal clinician is unchanged are not
// touched, so an already-optimal queue produces zero churn. Each active
// clinician exposes MaxParallelWaiting slots in the cost matrix; a slot k
// is scored as if k earlier waiting cases already queue on that clinician,
// so stacking a clinician always costs more than spreading.
//
// The whole cycle (snapshot, solve, apply) runs inside one store critical
// section, so it cannot race with a concurrent real-time assignment. On
// ErrInfeasibleBatch every prior assignment is left exactly as it was.
func (e *Engine) Rebalance() ([]models.AssignmentDecision, error) {
	start := e.now()
	var decisions []models.AssignmentDecision

	err := e.store.Exec(func(tx *store.Tx) error {
		var waiting []*models.Visit
		for _, v := range tx.WaitingVisits() {
			if v.Priority != models.PriorityEmergency {
				waiting = append(waiting, v)
			}
		}
		if len(waiting) == 0 {
			return nil
		}

		active := tx.ActiveClinicians()
		if len(active) == 0 {
			return ErrInfeasibleBatch
		}

		slotsPer := e.params.MaxParallelWaiting
		if slotsPer < 1 {
			slotsPer = 1
		}
		cols := len(active) * slotsPer
		if cols < len(waiting) {
			return ErrInfeasibleBatch
		}

		// Base load excludes the waiting cases being re-matched: those rows
		// are exactly what the solver is about to place.
		reassignable := make(map[string]int, len(active))
		for _, v := range waiting {
			if v.ClinicianID != nil {
				reassignable[*v.ClinicianID]++
			}
		}
		baseLoad := make([]int, len(active))
		var baseSum int
		for j, c := range active {
			baseLoad[j] = c.CurrentLoad - reassignable[c.ID]
			if baseLoad[j] < 0 {
				baseLoad[j] = 0
			}
			baseSum += baseLoad[j]
		}
		avgBase := float64(baseSum) / float64(len(active))

		now := e.now()
		cost := make([][]float64, len(waiting))
		breakdown := make([][]models.CostBreakdown, len(waiting))
		for i, v := range waiting {
			cost[i] = make([]float64, cols)
			breakdown[i] = make([]models.CostBreakdown, cols)
			for j := 0; j < cols; j++ {
				c := *active[j/slotsPer]
				c.CurrentLoad = baseLoad[j/slotsPer] + j%slotsPer
				b := e.params.Score(v.RequiredSpecialty, c, avgBase, now)
				cost[i][j] = b.Total
				breakdown[i][j] = b
			}
		}

		rowToCol, err := matching.Solve(cost)
		if err != nil {
			return ErrInfeasibleBatch
		}

		for i, v := range waiting {
			chosen := active[rowToCol[i]/slotsPer]
			if v.ClinicianID != nil && *v.ClinicianID == chosen.ID {
				continue
			}
			if v.ClinicianID != nil {
				if err := tx.DecrementLoad(*v.ClinicianID); err != nil {
					return err
				}
			}
			if err := tx.IncrementLoad(chosen.ID); err != nil {
				return err
			}
			id := chosen.ID
			v.ClinicianID = &id
			decisions = append(decisions, models.AssignmentDecision{
				VisitID:     v.ID,
				ClinicianID: &id,
				Breakdown:   breakdown[i][rowToCol[i]],
				DecidedAt:   now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	latency := e.now().Sub(start).Milliseconds()
	for i := range decisions {
		decisions[i].LatencyMS = latency
	}
	if len(decisions) > 0 {
		e.logger.Info().
			Int("reassigned", len(decisions)).
			Int64("latency_ms", latency).
			Msg("rebalance applied")
	}
	return decisions, nil
}
