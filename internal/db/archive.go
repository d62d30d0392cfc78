// Package db persists the durable records around the in-memory engine: the
// clinician roster loaded at startup, an audit row per assignment decision,
// and completed visits. The engine itself never blocks on the database;
// handlers write through best-effort.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/backend/internal/models"
)

type Archive struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Archive{Pool: pool}, nil
}

func (a *Archive) Close() {
	a.Pool.Close()
}

func (a *Archive) Ping(ctx context.Context) error {
	return a.Pool.Ping(ctx)
}

func (a *Archive) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := a.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LoadClinicians reads the whole roster. Loads are reset to zero: the ledger
// is rebuilt from live assignments, never trusted from a previous process.
func (a *Archive) LoadClinicians(ctx context.Context) ([]models.Clinician, error) {
	rows, err := a.Pool.Query(ctx, `SELECT id, name, specialty, availability, avg_service_time_sec, shift_ends_at FROM clinicians ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Clinician
	for rows.Next() {
		var c models.Clinician
		var availability string
		if err := rows.Scan(&c.ID, &c.Name, &c.Specialty, &availability, &c.AvgServiceTimeSec, &c.ShiftEndsAt); err != nil {
			return nil, err
		}
		c.Availability = models.Availability(availability)
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertAssignment records one decision for the audit trail. Every decision
// is kept, including batch reassignments of the same visit.
func (a *Archive) InsertAssignment(ctx context.Context, tx pgx.Tx, d models.AssignmentDecision) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO assignments (visit_id, clinician_id, mismatch_cost, wait_cost, load_cost, shift_cost, total_cost, decided_at, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.VisitID, d.ClinicianID, d.Breakdown.Mismatch, d.Breakdown.Wait, d.Breakdown.Load, d.Breakdown.Shift, d.Breakdown.Total, d.DecidedAt, d.LatencyMS)
	return err
}

// ArchiveVisit upserts the visit record; called on completion.
func (a *Archive) ArchiveVisit(ctx context.Context, tx pgx.Tx, v models.Visit) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO visits (id, patient_id, status, arrived_at, triaged_at, consult_started_at, consult_ended_at, complaint, priority, required_specialty, clinician_id, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, consult_started_at = EXCLUDED.consult_started_at, consult_ended_at = EXCLUDED.consult_ended_at, clinician_id = EXCLUDED.clinician_id, summary = EXCLUDED.summary`,
		v.ID, v.PatientID, v.Status, v.ArrivedAt, v.TriagedAt, v.ConsultStartedAt, v.ConsultEndedAt, v.Complaint, v.Priority, v.RequiredSpecialty, v.ClinicianID, v.Summary)
	return err
}
