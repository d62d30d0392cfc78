package engine

import (
	"github.com/clinicflow/backend/internal/models"
)

// pickEmergency is the fast-path for Emergency visits. It never consults the
// cost model: candidates are the active clinicians at or below the average
// load (all of them when that subset is empty), an exact specialty match with
// the lowest load wins, and failing that the least-loaded candidate takes
// the case regardless of specialty. Speed dominates specialty precision here.
func pickEmergency(active []*models.Clinician, requiredSpecialty string, avgLoad float64) *models.Clinician {
	candidates := make([]*models.Clinician, 0, len(active))
	for _, c := range active {
		if float64(c.CurrentLoad) <= avgLoad {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		candidates = active
	}

	var match *models.Clinician
	var least *models.Clinician
	for _, c := range candidates {
		if least == nil || c.CurrentLoad < least.CurrentLoad {
			least = c
		}
		if SpecialtyMatches(requiredSpecialty, c.Specialty) {
			if match == nil || c.CurrentLoad < match.CurrentLoad {
				match = c
			}
		}
	}
	if match != nil {
		return match
	}
	return least
}
