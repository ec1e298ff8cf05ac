// Package storage defines the capability contract both pipelines and the
// job registry depend on for transactional persistence. The default
// implementation, in the postgres subpackage, is a thin wrapper over
// pgx/v5 following this repository's pkg/db conventions.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
)

// Tx is an explicit transaction scope obtained from Gateway.Begin. All
// writes made through it are invisible to other callers until Commit.
type Tx interface {
	// Cycles
	CreateCycle(ctx context.Context, name string, description *string) (uuid.UUID, error)

	// Batch inserts, returning a natural-key -> id map for linkage
	// resolution within the same transaction.
	BatchCreateNonprofits(ctx context.Context, cycleID uuid.UUID, nonprofits []domain.Nonprofit) (map[string]uuid.UUID, error)
	BatchCreateVolunteers(ctx context.Context, cycleID uuid.UUID, volunteers []domain.Volunteer) (map[string]uuid.UUID, error)
	BatchCreateMentors(ctx context.Context, cycleID uuid.UUID, mentors []domain.Mentor) (map[string]uuid.UUID, error)

	BatchLinkVolunteerNonprofit(ctx context.Context, links []domain.VolunteerNonprofitLink) error
	BatchLinkMentorNonprofit(ctx context.Context, links []domain.MentorNonprofitLink) error
	BatchLinkVolunteerMentor(ctx context.Context, links []domain.VolunteerMentorLink) error

	SetJobCycle(ctx context.Context, jobID, cycleID uuid.UUID) error

	// InsertLedgerRows persists a batch of successful directory
	// provisionings in one statement.
	InsertLedgerRows(ctx context.Context, rows []domain.ExportedVolunteerLedgerRow) error

	// DeleteLedgerRows removes ledger rows for the given volunteer ids,
	// used by the undo pipeline once a directory delete has succeeded.
	DeleteLedgerRows(ctx context.Context, volunteerIDs []uuid.UUID) error
}

// Gateway is the capability the pipelines and job registry require from
// the storage layer.
type Gateway interface {
	// Begin opens an explicit transaction scope. Callers are responsible
	// for calling Commit or Rollback on the returned handle.
	Begin(ctx context.Context) (TxHandle, error)

	// LedgerForCycle returns every ledger row for cycleID, used to build
	// the export preflight's already_exported set.
	LedgerForCycle(ctx context.Context, cycleID uuid.UUID) ([]domain.ExportedVolunteerLedgerRow, error)

	// Jobs
	CreateJob(ctx context.Context, cycleID *uuid.UUID, job domain.Job) (uuid.UUID, error)
	FetchJob(ctx context.Context, id uuid.UUID) (domain.Job, error)
	FetchAllJobs(ctx context.Context) ([]domain.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg *string) error
	SetJobCycle(ctx context.Context, id, cycleID uuid.UUID) error
	EditJob(ctx context.Context, id uuid.UUID, label, description *string) error

	Healthcheck(ctx context.Context) error
}

// TxHandle is a Tx bound to an in-flight database transaction; callers
// must call Commit or Rollback exactly once.
type TxHandle interface {
	Tx
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
