package models

import "time"

type VisitStatus string

const (
	StatusCheckedIn      VisitStatus = "CHECKED_IN"
	StatusTriage         VisitStatus = "TRIAGE"
	StatusWaiting        VisitStatus = "WAITING"
	StatusInConsultation VisitStatus = "IN_CONSULTATION"
	StatusCompleted      VisitStatus = "COMPLETED"
)

// Visit is one clinic encounter. Transcript and Summary are opaque payloads
// produced by the intake collaborators; the engine never interprets them.
type Visit struct {
	ID                string      `json:"id"`
	PatientID         string      `json:"patient_id"`
	Status            VisitStatus `json:"status"`
	ArrivedAt         time.Time   `json:"arrived_at"`
	TriagedAt         *time.Time  `json:"triaged_at,omitempty"`
	ConsultStartedAt  *time.Time  `json:"consult_started_at,omitempty"`
	ConsultEndedAt    *time.Time  `json:"consult_ended_at,omitempty"`
	Complaint         string      `json:"complaint"`
	Priority          Priority    `json:"priority"`
	RequiredSpecialty string      `json:"required_specialty"`
	ClinicianID       *string     `json:"clinician_id"`
	Transcript        string      `json:"transcript,omitempty"`
	Summary           string      `json:"summary,omitempty"`
}

var visitTransitions = map[VisitStatus]VisitStatus{
	StatusCheckedIn:      StatusTriage,
	StatusTriage:         StatusWaiting,
	StatusWaiting:        StatusInConsultation,
	StatusInConsultation: StatusCompleted,
}

// CanTransitionTo reports whether next is the single allowed successor of s.
// The lifecycle is strictly linear; no state may be skipped.
func (s VisitStatus) CanTransitionTo(next VisitStatus) bool {
	return visitTransitions[s] == next
}

func (s VisitStatus) Terminal() bool {
	return s == StatusCompleted
}

func (v *Visit) Assigned() bool {
	return v.ClinicianID != nil
}
