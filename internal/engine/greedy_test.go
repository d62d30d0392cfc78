package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicflow/backend/internal/models"
	"github.com/clinicflow/backend/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(store.New(), testParams, zerolog.Nop())
}

func addClinician(t *testing.T, e *Engine, id, specialty string, load int) {
	t.Helper()
	err := e.store.Exec(func(tx *store.Tx) error {
		return tx.AddClinician(&models.Clinician{
			ID:           id,
			Name:         id,
			Specialty:    specialty,
			Availability: models.AvailabilityActive,
			CurrentLoad:  load,
		})
	})
	if err != nil {
		t.Fatalf("add clinician %s: %v", id, err)
	}
}

func checkIn(t *testing.T, e *Engine) models.Visit {
	t.Helper()
	v, err := e.CheckIn("Test Patient", "chest pain")
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	return v
}

func TestGreedyPrefersMatchedIdleClinician(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	addClinician(t, e, "B", "Cardiology", 2)
	addClinician(t, e, "C", "Neurology", 0)
	v := checkIn(t, e)

	d, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
	if err != nil {
		t.Fatalf("complete triage: %v", err)
	}
	if d.ClinicianID == nil || *d.ClinicianID != "A" {
		t.Fatalf("expected A, got %v", d.ClinicianID)
	}
	if d.Breakdown.Total != 0 {
		t.Fatalf("expected zero total for idle match, got %+v", d.Breakdown)
	}

	got, _ := e.store.GetVisit(v.ID)
	if got.Status != models.StatusWaiting || got.ClinicianID == nil || *got.ClinicianID != "A" {
		t.Fatalf("expected waiting visit assigned to A, got %+v", got)
	}
	if c, _ := e.store.GetClinician("A"); c.CurrentLoad != 1 {
		t.Fatalf("expected A load 1, got %d", c.CurrentLoad)
	}
}

func TestGreedyNoSpecialtyMatchPicksLowestLoadByID(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	addClinician(t, e, "B", "Cardiology", 2)
	addClinician(t, e, "C", "Neurology", 0)
	v := checkIn(t, e)

	d, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Endocrinology", Priority: models.PriorityNormal})
	if err != nil {
		t.Fatalf("complete triage: %v", err)
	}
	// Mismatch penalty applies to everyone; A and C tie on cost and the
	// lowest id wins.
	if d.ClinicianID == nil || *d.ClinicianID != "A" {
		t.Fatalf("expected A, got %v", d.ClinicianID)
	}
	if d.Breakdown.Mismatch != testParams.MismatchPenaltySec {
		t.Fatalf("expected mismatch penalty in breakdown, got %+v", d.Breakdown)
	}
}

func TestGreedyNoActiveClinicians(t *testing.T) {
	e := newTestEngine(t)
	v := checkIn(t, e)

	d, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
	if !errors.Is(err, ErrNoAvailableClinician) {
		t.Fatalf("expected ErrNoAvailableClinician, got %v", err)
	}
	if d.ClinicianID != nil {
		t.Fatalf("expected nil clinician, got %v", *d.ClinicianID)
	}

	// The visit still reached Waiting so a later rebalance can pick it up.
	got, _ := e.store.GetVisit(v.ID)
	if got.Status != models.StatusWaiting || got.ClinicianID != nil {
		t.Fatalf("expected waiting unassigned visit, got %+v", got)
	}
}

func TestTriageRetryAfterNoClinicianAssigns(t *testing.T) {
	e := newTestEngine(t)
	v := checkIn(t, e)

	_, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
	if !errors.Is(err, ErrNoAvailableClinician) {
		t.Fatalf("expected ErrNoAvailableClinician, got %v", err)
	}

	// A re-delivered completion after a clinician came online must assign
	// instead of rejecting the repeat.
	addClinician(t, e, "A", "Cardiology", 0)
	d, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
	if err != nil {
		t.Fatalf("retried triage: %v", err)
	}
	if d.ClinicianID == nil || *d.ClinicianID != "A" {
		t.Fatalf("expected A on retry, got %v", d.ClinicianID)
	}
	got, _ := e.store.GetVisit(v.ID)
	if got.Status != models.StatusWaiting || got.ClinicianID == nil || *got.ClinicianID != "A" {
		t.Fatalf("expected waiting visit assigned to A, got %+v", got)
	}
	if c, _ := e.store.GetClinician("A"); c.CurrentLoad != 1 {
		t.Fatalf("expected A load 1 after retry, got %d", c.CurrentLoad)
	}
}

func TestTriageRejectsUnknownPriority(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	v := checkIn(t, e)

	_, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.Priority("URGENT")})
	if !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	got, _ := e.store.GetVisit(v.ID)
	if got.Status != models.StatusTriage {
		t.Fatalf("expected visit untouched in triage, got %s", got.Status)
	}
	if c, _ := e.store.GetClinician("A"); c.CurrentLoad != 0 {
		t.Fatalf("expected no load taken, got %d", c.CurrentLoad)
	}
}

func TestGreedySkipsInactiveClinicians(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	_, err := e.SetAvailability("A", models.AvailabilityBreak)
	if err != nil {
		t.Fatalf("set availability: %v", err)
	}
	addClinician(t, e, "B", "Neurology", 5)
	v := checkIn(t, e)

	d, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
	if err != nil {
		t.Fatalf("complete triage: %v", err)
	}
	// A matches but is on break; the mismatched active B must take it.
	if *d.ClinicianID != "B" {
		t.Fatalf("expected B, got %s", *d.ClinicianID)
	}
}

func TestGreedyRejectsWrongState(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	v := checkIn(t, e)

	if _, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, Priority: models.PriorityNormal}); err != nil {
		t.Fatalf("first triage: %v", err)
	}
	_, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, Priority: models.PriorityNormal})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on repeat, got %v", err)
	}
}

func TestGreedyUnknownVisit(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	_, err := e.CompleteTriage(TriageCompletion{VisitID: "missing", Priority: models.PriorityNormal})
	if !errors.Is(err, store.ErrVisitNotFound) {
		t.Fatalf("expected ErrVisitNotFound, got %v", err)
	}
}

func TestAbandonCompensatesLoad(t *testing.T) {
	e := newTestEngine(t)
	addClinician(t, e, "A", "Cardiology", 0)
	v := checkIn(t, e)
	if _, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal}); err != nil {
		t.Fatalf("triage: %v", err)
	}

	if err := e.Abandon(v.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if c, _ := e.store.GetClinician("A"); c.CurrentLoad != 0 {
		t.Fatalf("expected load back to 0, got %d", c.CurrentLoad)
	}
	got, _ := e.store.GetVisit(v.ID)
	if got.Status != models.StatusWaiting || got.ClinicianID != nil {
		t.Fatalf("expected waiting unassigned, got %+v", got)
	}

	if err := e.Abandon(v.ID); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned on second abandon, got %v", err)
	}
}

func TestDecisionUsesEngineClock(t *testing.T) {
	e := newTestEngine(t).WithClock(func() time.Time { return testNow })
	addClinician(t, e, "A", "Cardiology", 0)
	v := checkIn(t, e)

	d, err := e.CompleteTriage(TriageCompletion{VisitID: v.ID, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	if !d.DecidedAt.Equal(testNow) {
		t.Fatalf("expected DecidedAt %v, got %v", testNow, d.DecidedAt)
	}
	if d.LatencyMS != 0 {
		t.Fatalf("expected zero latency under a frozen clock, got %d", d.LatencyMS)
	}
}

func TestConcurrentAssignmentsConserveLoad(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 4; i++ {
		addClinician(t, e, fmt.Sprintf("c%d", i), "Cardiology", 0)
	}

	const visits = 40
	ids := make([]string, visits)
	for i := range ids {
		ids[i] = checkIn(t, e).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = e.CompleteTriage(TriageCompletion{VisitID: id, RequiredSpecialty: "Cardiology", Priority: models.PriorityNormal})
		}(id)
	}
	wg.Wait()

	var totalLoad int
	for _, c := range e.store.ListClinicians("") {
		totalLoad += c.CurrentLoad
	}
	assigned := 0
	for _, v := range e.store.ListVisits(models.StatusWaiting) {
		if v.ClinicianID != nil {
			assigned++
		}
	}
	if totalLoad != visits || assigned != visits {
		t.Fatalf("load conservation violated: total load %d, assigned %d, want %d", totalLoad, assigned, visits)
	}
}
