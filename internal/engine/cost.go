package engine

import (
	"strings"
	"time"

	"github.com/clinicflow/backend/internal/models"
)

// Params enumerates every assignment tunable. All penalty values are in
// seconds so the four cost terms stay directly comparable.
type Params struct {
	MismatchPenaltySec       float64
	LoadPenaltyWeightSec     float64
	DefaultServiceTimeSec    float64
	ShiftPenaltyThresholdSec float64
	ShiftPenaltySec          float64
	MaxParallelWaiting       int
}

// Score computes the full cost breakdown for assigning a visit that requires
// requiredSpecialty to the given clinician. Pure: identical inputs always
// produce an identical breakdown. An empty requirement matches any specialty,
// so its mismatch term is always 0.
func (p Params) Score(requiredSpecialty string, c models.Clinician, avgActiveLoad float64, now time.Time) models.CostBreakdown {
	var b models.CostBreakdown

	if !SpecialtyMatches(requiredSpecialty, c.Specialty) {
		b.Mismatch = p.MismatchPenaltySec
	}

	svc := c.AvgServiceTimeSec
	if svc <= 0 {
		svc = p.DefaultServiceTimeSec
	}
	b.Wait = float64(c.CurrentLoad) * svc

	// Only clinicians above the active-set average are penalized.
	if over := float64(c.CurrentLoad) - avgActiveLoad; over > 0 {
		b.Load = over * p.LoadPenaltyWeightSec
	}

	if c.ShiftEndsAt != nil {
		if remaining := c.ShiftEndsAt.Sub(now).Seconds(); remaining < p.ShiftPenaltyThresholdSec {
			b.Shift = p.ShiftPenaltySec
		}
	}

	b.Total = b.Mismatch + b.Wait + b.Load + b.Shift
	return b
}

// SpecialtyMatches compares specialties case-insensitively after trimming.
// An empty requirement matches everything: a visit with no required
// specialty is routed as if any clinician fits.
func SpecialtyMatches(required, specialty string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return true
	}
	return strings.EqualFold(required, strings.TrimSpace(specialty))
}
