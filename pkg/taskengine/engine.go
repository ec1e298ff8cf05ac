package taskengine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/developforgood/cycle-orchestrator/internal/exportpipeline"
	"github.com/developforgood/cycle-orchestrator/internal/importpipeline"
	"github.com/developforgood/cycle-orchestrator/pkg/job"
	"github.com/developforgood/cycle-orchestrator/pkg/mailgw"
	"github.com/developforgood/cycle-orchestrator/pkg/policy"
)

// Engine wraps a pkg/job.Manager preconfigured with this deployment's
// tasks, bounding concurrent pipeline execution the same way
// job.WithMaxWorkers does for every other Forge-family service.
type Engine struct {
	manager *job.Manager
}

// New builds the task engine and its job.Manager. maxWorkers bounds how
// many import/export pipelines may run concurrently; pass 0 for the
// manager's default.
func New(pool *pgxpool.Pool, importPipeline *importpipeline.Pipeline, exportPipeline *exportpipeline.Pipeline, mail mailgw.Gateway, maxWorkers int, logger *slog.Logger) (*Engine, error) {
	manager, err := job.NewManager(pool,
		job.WithTask(NewImportTask(importPipeline)),
		job.WithTask(NewExportTask(exportPipeline)),
		job.WithTask(NewOnboardingMailTask(mail)),
		job.WithMaxWorkers(maxWorkers),
		job.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{manager: manager}, nil
}

// Scheduler returns a mailgw.Scheduler backed by this engine, for wiring
// into mailgw.New.
func (e *Engine) Scheduler(logger *slog.Logger) *MailScheduler {
	return NewMailScheduler(e.manager, logger)
}

// Start begins processing enqueued jobs.
func (e *Engine) Start(ctx context.Context) error { return e.manager.Start(ctx) }

// Stop gracefully drains in-flight jobs.
func (e *Engine) Stop(ctx context.Context) error { return e.manager.Stop(ctx) }

// EnqueueImport dispatches an import pipeline run. name and description
// become the resulting ProjectCycle's name and description.
func (e *Engine) EnqueueImport(ctx context.Context, jobID uuid.UUID, baseID, name string, description *string) error {
	return e.manager.Enqueue(ctx, TaskImportBase, ImportBasePayload{JobID: jobID, BaseID: baseID, Name: name, Description: description})
}

// ExportOptions carries the per-request policy knobs ExportRequest
// exposes at the HTTP boundary.
type ExportOptions struct {
	EmailPolicy               policy.EmailConfig
	PasswordLength            int
	ChangePasswordAtNextLogin bool
	SkipUsersOnConflict       bool
}

// EnqueueExport dispatches an export pipeline run.
func (e *Engine) EnqueueExport(ctx context.Context, jobID, cycleID uuid.UUID, principal string, volunteers []exportpipeline.VolunteerDetails, opts ExportOptions) error {
	return e.manager.Enqueue(ctx, TaskExportUsers, ExportUsersPayload{
		JobID:                     jobID,
		CycleID:                   cycleID,
		Principal:                 principal,
		Volunteers:                volunteers,
		EmailPolicy:               opts.EmailPolicy,
		PasswordLength:            opts.PasswordLength,
		ChangePasswordAtNextLogin: opts.ChangePasswordAtNextLogin,
		SkipUsersOnConflict:       opts.SkipUsersOnConflict,
	})
}

// Healthcheck reports the task engine's readiness, for wiring into
// pkg/health the way pkg/job.Healthcheck is documented to be used.
func (e *Engine) Healthcheck() func(ctx context.Context) error {
	return job.Healthcheck(e.manager)
}
