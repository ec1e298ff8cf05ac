// Package postgres is the default storage.Gateway implementation, a thin
// wrapper over pgx/v5 and pkg/db's pooling conventions.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

// Gateway is the default storage.Gateway implementation.
type Gateway struct {
	pool *pgxpool.Pool
}

var _ storage.Gateway = (*Gateway)(nil)

// New constructs a Gateway over an already-configured pool (see pkg/db.Open).
func New(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// Healthcheck pings the pool, compatible with pkg/health.CheckFunc.
func (g *Gateway) Healthcheck(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// Begin opens a transaction scope.
func (g *Gateway) Begin(ctx context.Context) (storage.TxHandle, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageConflict, err)
	}
	return &txImpl{tx: tx}, nil
}

func (g *Gateway) LedgerForCycle(ctx context.Context, cycleID uuid.UUID) ([]domain.ExportedVolunteerLedgerRow, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT l.volunteer_id, l.job_id, l.workspace_email, l.org_unit
		FROM exported_volunteer_ledger l
		JOIN volunteers v ON v.id = l.volunteer_id
		WHERE v.cycle_id = $1`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExportedVolunteerLedgerRow
	for rows.Next() {
		var r domain.ExportedVolunteerLedgerRow
		if err := rows.Scan(&r.VolunteerID, &r.JobID, &r.WorkspaceEmail, &r.OrgUnit); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *Gateway) CreateJob(ctx context.Context, cycleID *uuid.UUID, job domain.Job) (uuid.UUID, error) {
	id := uuid.New()
	details, err := encodeJobDetails(job.Details)
	if err != nil {
		return uuid.Nil, err
	}
	_, err = g.pool.Exec(ctx, `
		INSERT INTO jobs (id, cycle_id, status, label, description, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, cycleID, job.Status, job.Label, job.Description, details)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (g *Gateway) FetchJob(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT id, created_at, updated_at, cycle_id, status, label, description, details
		FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (g *Gateway) FetchAllJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, created_at, updated_at, cycle_id, status, label, description, details
		FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (g *Gateway) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg *string) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, updated_at = now(),
			details = jsonb_set(details, '{error}', to_jsonb($3::text), true)
		WHERE id = $1 AND status NOT IN ('complete', 'error', 'cancelled')`,
		id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the job doesn't exist or it's already terminal; the
		// latter is a documented no-op (R1), so only surface an error
		// when the job genuinely does not exist.
		if _, ferr := g.FetchJob(ctx, id); ferr != nil {
			return ferr
		}
	}
	return nil
}

func (g *Gateway) SetJobCycle(ctx context.Context, id, cycleID uuid.UUID) error {
	_, err := g.pool.Exec(ctx, `UPDATE jobs SET cycle_id = $2, updated_at = now() WHERE id = $1`, id, cycleID)
	return err
}

func (g *Gateway) EditJob(ctx context.Context, id uuid.UUID, label, description *string) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE jobs SET
			label = COALESCE($2, label),
			description = COALESCE($3, description),
			updated_at = now()
		WHERE id = $1`, id, label, description)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (domain.Job, error) {
	var j domain.Job
	var detailsRaw []byte
	if err := r.Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt, &j.CycleID, &j.Status, &j.Label, &j.Description, &detailsRaw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, err
	}
	details, err := decodeJobDetails(detailsRaw)
	if err != nil {
		return domain.Job{}, err
	}
	j.Details = details
	return j, nil
}

// jobDetailsWire is the jsonb-stored shape of domain.JobDetails, matching
// the camelCase external contract of spec section 6.
type jobDetailsWire struct {
	JobType domain.JobType  `json:"jobType"`
	Error   *string         `json:"error,omitempty"`
	BaseID  string          `json:"baseId,omitempty"`
	Destination string      `json:"destination,omitempty"`
	Volunteers []domain.UndoExportedVolunteer `json:"volunteers,omitempty"`
}

func encodeJobDetails(d domain.JobDetails) ([]byte, error) {
	w := jobDetailsWire{JobType: d.Type, Error: d.Error}
	switch data := d.Data.(type) {
	case domain.ImportBaseData:
		w.BaseID = data.BaseID
	case domain.ExportUsersData:
		w.Destination = data.Destination
	case domain.UndoExportData:
		w.Volunteers = data.Volunteers
	}
	return json.Marshal(w)
}

func decodeJobDetails(raw []byte) (domain.JobDetails, error) {
	var w jobDetailsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.JobDetails{}, err
	}
	d := domain.JobDetails{Type: w.JobType, Error: w.Error}
	switch w.JobType {
	case domain.JobTypeImportBase:
		d.Data = domain.ImportBaseData{BaseID: w.BaseID}
	case domain.JobTypeExportUsers:
		d.Data = domain.ExportUsersData{Destination: w.Destination}
	case domain.JobTypeUndoExport:
		d.Data = domain.UndoExportData{Volunteers: w.Volunteers}
	}
	return d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "23503"
	}
	return false
}
