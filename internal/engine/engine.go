// Package engine decides which clinician takes each triaged visit and
// periodically re-optimizes all waiting assignments. Every operation is
// synchronous and runs its full read-modify-write inside one store.Exec
// critical section.
package engine

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicflow/backend/internal/store"
)

var (
	// ErrNoAvailableClinician means no active clinician existed at decision
	// time. The visit stays Waiting and unassigned; a later triage retry or
	// rebalance cycle picks it up. Never fatal.
	ErrNoAvailableClinician = errors.New("engine: no available clinician")

	// ErrInfeasibleBatch means the rebalancer could not construct any
	// complete matching. Prior assignments are left intact.
	ErrInfeasibleBatch = errors.New("engine: infeasible batch")

	ErrInvalidTransition = errors.New("engine: invalid visit transition")

	// ErrInvalidPriority rejects a triage completion whose priority is not
	// one of the known levels. Nothing is coerced on the engine's behalf.
	ErrInvalidPriority = errors.New("engine: invalid priority")

	// ErrClinicianBusy blocks a call-in while the assigned clinician already
	// has another visit in consultation.
	ErrClinicianBusy = errors.New("engine: clinician already in consultation")

	ErrNotAssigned = errors.New("engine: visit has no assigned clinician")
)

type Engine struct {
	store  *store.Store
	params Params
	logger zerolog.Logger
	now    func() time.Time
}

func New(s *store.Store, params Params, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  s,
		params: params,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the engine's time source. The shared simulation clock
// collaborator uses this; tests do too.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Store() *store.Store {
	return e.store
}
