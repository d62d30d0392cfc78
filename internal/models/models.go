package models

import "time"

type Priority string

const (
	PriorityNormal    Priority = "NORMAL"
	PriorityPriority  Priority = "PRIORITY"
	PriorityEmergency Priority = "EMERGENCY"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityPriority, PriorityEmergency:
		return true
	}
	return false
}

type Availability string

const (
	AvailabilityActive  Availability = "active"
	AvailabilityBreak   Availability = "break"
	AvailabilityOffline Availability = "offline"
)

func (a Availability) Valid() bool {
	switch a {
	case AvailabilityActive, AvailabilityBreak, AvailabilityOffline:
		return true
	}
	return false
}

type Patient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Clinician struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Specialty         string       `json:"specialty"`
	Availability      Availability `json:"availability"`
	CurrentLoad       int          `json:"current_load"`
	AvgServiceTimeSec float64      `json:"avg_service_time_sec"`
	ShiftEndsAt       *time.Time   `json:"shift_ends_at,omitempty"`
}

// CostBreakdown itemizes a scored (visit, clinician) pair. All terms are in
// seconds; Total is always the sum of the other four.
type CostBreakdown struct {
	Mismatch float64 `json:"mismatch"`
	Wait     float64 `json:"wait"`
	Load     float64 `json:"load"`
	Shift    float64 `json:"shift"`
	Total    float64 `json:"total"`
}

// AssignmentDecision is the engine's output for one visit. ClinicianID is nil
// when no active clinician was available at decision time.
type AssignmentDecision struct {
	VisitID     string        `json:"visit_id"`
	ClinicianID *string       `json:"clinician_id"`
	Breakdown   CostBreakdown `json:"cost_breakdown"`
	DecidedAt   time.Time     `json:"decided_at"`
	LatencyMS   int64         `json:"latency_ms"`
}
