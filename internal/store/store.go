// Package store holds the live visit and clinician collections plus the
// clinician load ledger. It is the only shared mutable state in the service.
// All composite read-modify-write operations run through Exec, which
// serializes them under a single lock so two concurrent assignments can never
// act on the same stale load snapshot.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/clinicflow/backend/internal/models"
)

var (
	ErrVisitNotFound     = errors.New("store: visit not found")
	ErrClinicianNotFound = errors.New("store: clinician not found")
	ErrDuplicateID       = errors.New("store: duplicate id")
)

type Store struct {
	mu         sync.Mutex
	patients   map[string]*models.Patient
	visits     map[string]*models.Visit
	clinicians map[string]*models.Clinician
}

func New() *Store {
	return &Store{
		patients:   make(map[string]*models.Patient),
		visits:     make(map[string]*models.Visit),
		clinicians: make(map[string]*models.Clinician),
	}
}

// Exec runs fn with exclusive access to the collections. Engine operations
// compose their whole critical section (snapshot, decide, mutate) inside one
// Exec call.
func (s *Store) Exec(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Tx is a handle to the locked collections, valid only inside Exec.
type Tx struct {
	s *Store
}

func (t *Tx) Visit(id string) (*models.Visit, error) {
	v, ok := t.s.visits[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	return v, nil
}

func (t *Tx) Clinician(id string) (*models.Clinician, error) {
	c, ok := t.s.clinicians[id]
	if !ok {
		return nil, ErrClinicianNotFound
	}
	return c, nil
}

func (t *Tx) AddPatient(p *models.Patient) error {
	if _, ok := t.s.patients[p.ID]; ok {
		return ErrDuplicateID
	}
	t.s.patients[p.ID] = p
	return nil
}

func (t *Tx) AddVisit(v *models.Visit) error {
	if _, ok := t.s.visits[v.ID]; ok {
		return ErrDuplicateID
	}
	t.s.visits[v.ID] = v
	return nil
}

func (t *Tx) AddClinician(c *models.Clinician) error {
	if _, ok := t.s.clinicians[c.ID]; ok {
		return ErrDuplicateID
	}
	t.s.clinicians[c.ID] = c
	return nil
}

// ActiveClinicians returns the clinicians eligible for new assignments,
// ordered by id so downstream tie-breaks are deterministic.
func (t *Tx) ActiveClinicians() []*models.Clinician {
	out := make([]*models.Clinician, 0, len(t.s.clinicians))
	for _, c := range t.s.clinicians {
		if c.Availability == models.AvailabilityActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WaitingVisits returns all visits in Waiting, ordered by arrival then id.
func (t *Tx) WaitingVisits() []*models.Visit {
	var out []*models.Visit
	for _, v := range t.s.visits {
		if v.Status == models.StatusWaiting {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArrivedAt.Equal(out[j].ArrivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ArrivedAt.Before(out[j].ArrivedAt)
	})
	return out
}

// InConsultation reports whether the clinician currently has a visit in
// consultation. At most one is allowed at a time.
func (t *Tx) InConsultation(clinicianID string) bool {
	for _, v := range t.s.visits {
		if v.Status == models.StatusInConsultation && v.ClinicianID != nil && *v.ClinicianID == clinicianID {
			return true
		}
	}
	return false
}

// IncrementLoad records one more open assignment against the clinician.
func (t *Tx) IncrementLoad(id string) error {
	c, ok := t.s.clinicians[id]
	if !ok {
		return ErrClinicianNotFound
	}
	c.CurrentLoad++
	return nil
}

// DecrementLoad releases one assignment; the ledger floors at zero.
func (t *Tx) DecrementLoad(id string) error {
	c, ok := t.s.clinicians[id]
	if !ok {
		return ErrClinicianNotFound
	}
	if c.CurrentLoad > 0 {
		c.CurrentLoad--
	}
	return nil
}

func (t *Tx) CurrentLoad(id string) (int, error) {
	c, ok := t.s.clinicians[id]
	if !ok {
		return 0, ErrClinicianNotFound
	}
	return c.CurrentLoad, nil
}

// AverageActiveLoad is the mean load over active clinicians, 0 when none.
func (t *Tx) AverageActiveLoad() float64 {
	active := t.ActiveClinicians()
	if len(active) == 0 {
		return 0
	}
	var sum int
	for _, c := range active {
		sum += c.CurrentLoad
	}
	return float64(sum) / float64(len(active))
}

// Read-only snapshot accessors. These copy so callers never hold references
// into the locked collections.

func (s *Store) GetVisit(id string) (models.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok {
		return models.Visit{}, ErrVisitNotFound
	}
	return *v, nil
}

func (s *Store) GetClinician(id string) (models.Clinician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clinicians[id]
	if !ok {
		return models.Clinician{}, ErrClinicianNotFound
	}
	return *c, nil
}

func (s *Store) ListVisits(status models.VisitStatus) []models.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Visit, 0, len(s.visits))
	for _, v := range s.visits {
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArrivedAt.Equal(out[j].ArrivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ArrivedAt.Before(out[j].ArrivedAt)
	})
	return out
}

func (s *Store) ListClinicians(specialty string) []models.Clinician {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Clinician, 0, len(s.clinicians))
	for _, c := range s.clinicians {
		if specialty != "" && !strings.EqualFold(strings.TrimSpace(specialty), strings.TrimSpace(c.Specialty)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
