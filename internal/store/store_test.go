package store

import (
	"errors"
	"testing"
	"time"

	"github.com/clinicflow/backend/internal/models"
)

func seed(t *testing.T, s *Store, clinicians ...*models.Clinician) {
	t.Helper()
	err := s.Exec(func(tx *Tx) error {
		for _, c := range clinicians {
			if err := tx.AddClinician(c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestLedgerIncrementDecrement(t *testing.T) {
	s := New()
	seed(t, s, &models.Clinician{ID: "c1", Availability: models.AvailabilityActive})

	err := s.Exec(func(tx *Tx) error {
		if err := tx.IncrementLoad("c1"); err != nil {
			return err
		}
		if err := tx.IncrementLoad("c1"); err != nil {
			return err
		}
		if load, _ := tx.CurrentLoad("c1"); load != 2 {
			t.Fatalf("expected load 2, got %d", load)
		}
		return tx.DecrementLoad("c1")
	})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}

	c, err := s.GetClinician("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.CurrentLoad != 1 {
		t.Fatalf("expected load 1, got %d", c.CurrentLoad)
	}
}

func TestDecrementFloorsAtZero(t *testing.T) {
	s := New()
	seed(t, s, &models.Clinician{ID: "c1", Availability: models.AvailabilityActive})

	_ = s.Exec(func(tx *Tx) error {
		_ = tx.DecrementLoad("c1")
		_ = tx.DecrementLoad("c1")
		return nil
	})

	c, _ := s.GetClinician("c1")
	if c.CurrentLoad != 0 {
		t.Fatalf("expected load floored at 0, got %d", c.CurrentLoad)
	}
}

func TestAverageActiveLoadExcludesInactive(t *testing.T) {
	s := New()
	seed(t, s,
		&models.Clinician{ID: "c1", Availability: models.AvailabilityActive, CurrentLoad: 2},
		&models.Clinician{ID: "c2", Availability: models.AvailabilityActive, CurrentLoad: 4},
		&models.Clinician{ID: "c3", Availability: models.AvailabilityOffline, CurrentLoad: 100},
	)

	_ = s.Exec(func(tx *Tx) error {
		if avg := tx.AverageActiveLoad(); avg != 3 {
			t.Fatalf("expected average 3, got %v", avg)
		}
		return nil
	})
}

func TestAverageActiveLoadZeroWhenNoActive(t *testing.T) {
	s := New()
	seed(t, s, &models.Clinician{ID: "c1", Availability: models.AvailabilityBreak, CurrentLoad: 5})

	_ = s.Exec(func(tx *Tx) error {
		if avg := tx.AverageActiveLoad(); avg != 0 {
			t.Fatalf("expected 0, got %v", avg)
		}
		return nil
	})
}

func TestActiveCliniciansSortedByID(t *testing.T) {
	s := New()
	seed(t, s,
		&models.Clinician{ID: "c3", Availability: models.AvailabilityActive},
		&models.Clinician{ID: "c1", Availability: models.AvailabilityActive},
		&models.Clinician{ID: "c2", Availability: models.AvailabilityBreak},
	)

	_ = s.Exec(func(tx *Tx) error {
		active := tx.ActiveClinicians()
		if len(active) != 2 {
			t.Fatalf("expected 2 active, got %d", len(active))
		}
		if active[0].ID != "c1" || active[1].ID != "c3" {
			t.Fatalf("expected [c1 c3], got [%s %s]", active[0].ID, active[1].ID)
		}
		return nil
	})
}

func TestInConsultation(t *testing.T) {
	s := New()
	id := "c1"
	seed(t, s, &models.Clinician{ID: id, Availability: models.AvailabilityActive})
	err := s.Exec(func(tx *Tx) error {
		return tx.AddVisit(&models.Visit{
			ID:          "v1",
			Status:      models.StatusInConsultation,
			ClinicianID: &id,
		})
	})
	if err != nil {
		t.Fatalf("add visit: %v", err)
	}

	_ = s.Exec(func(tx *Tx) error {
		if !tx.InConsultation("c1") {
			t.Fatal("expected c1 in consultation")
		}
		if tx.InConsultation("c2") {
			t.Fatal("c2 should not be in consultation")
		}
		return nil
	})
}

func TestWaitingVisitsOrderedByArrival(t *testing.T) {
	s := New()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	err := s.Exec(func(tx *Tx) error {
		for _, v := range []*models.Visit{
			{ID: "v2", Status: models.StatusWaiting, ArrivedAt: base.Add(time.Minute)},
			{ID: "v1", Status: models.StatusWaiting, ArrivedAt: base},
			{ID: "v3", Status: models.StatusCompleted, ArrivedAt: base},
		} {
			if err := tx.AddVisit(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed visits: %v", err)
	}

	_ = s.Exec(func(tx *Tx) error {
		waiting := tx.WaitingVisits()
		if len(waiting) != 2 {
			t.Fatalf("expected 2 waiting, got %d", len(waiting))
		}
		if waiting[0].ID != "v1" || waiting[1].ID != "v2" {
			t.Fatalf("expected arrival order [v1 v2], got [%s %s]", waiting[0].ID, waiting[1].ID)
		}
		return nil
	})
}

func TestDuplicateIDsRejected(t *testing.T) {
	s := New()
	seed(t, s, &models.Clinician{ID: "c1"})
	err := s.Exec(func(tx *Tx) error {
		return tx.AddClinician(&models.Clinician{ID: "c1"})
	})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestListCliniciansSpecialtyFilterCaseInsensitive(t *testing.T) {
	s := New()
	seed(t, s,
		&models.Clinician{ID: "c1", Specialty: "Cardiology"},
		&models.Clinician{ID: "c2", Specialty: "Neurology"},
	)

	out := s.ListClinicians("cardiology")
	if len(out) != 1 || out[0].ID != "c1" {
		t.Fatalf("expected [c1], got %+v", out)
	}
}
