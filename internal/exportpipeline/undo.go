package exportpipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/internal/jobregistry"
	"github.com/developforgood/cycle-orchestrator/pkg/directorygw"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

// UndoParams is the input to RunUndo.
type UndoParams struct {
	JobID      uuid.UUID
	Principal  string
	Volunteers []domain.UndoExportedVolunteer
	Delay      time.Duration
}

// RunUndo deprovisions the directory accounts listed in params.Volunteers
// one at a time, pausing Delay between calls to respect the directory
// provider's eventual-consistency window on just-created accounts, then
// removes the ledger rows for whichever deletes succeeded. It is called
// directly by ExportPipeline.Run's finalization step, not dispatched as
// a separate task, so the parent pipeline's caller observes the undo
// job's outcome before returning.
func RunUndo(ctx context.Context, directory directorygw.Gateway, store storage.Gateway, jobs *jobregistry.Registry, logger *slog.Logger, params UndoParams) error {
	if logger == nil {
		logger = slog.Default()
	}

	var deleted []uuid.UUID
	var failures []string

	for i, v := range params.Volunteers {
		if i > 0 && params.Delay > 0 {
			select {
			case <-time.After(params.Delay):
			case <-ctx.Done():
				failures = append(failures, fmt.Sprintf("%s: %s", v.WorkspaceEmail, ctx.Err()))
				continue
			}
		}

		if err := directory.DeleteUser(ctx, params.Principal, v.WorkspaceEmail); err != nil {
			if errors.Is(err, domain.ErrDirectoryNotFound) {
				// Already gone, most likely a prior undo run for the same
				// volunteer; nothing left to roll back for this account.
				logger.InfoContext(ctx, "undo: directory account already absent", "workspace_email", v.WorkspaceEmail)
				deleted = append(deleted, v.VolunteerID)
				continue
			}
			logger.WarnContext(ctx, "undo: failed to delete directory account", "workspace_email", v.WorkspaceEmail, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %s", v.WorkspaceEmail, err))
			continue
		}
		deleted = append(deleted, v.VolunteerID)
	}

	if len(deleted) > 0 {
		tx, err := store.Begin(ctx)
		if err != nil {
			failures = append(failures, fmt.Sprintf("remove ledger rows: %s", err))
		} else {
			if err := tx.DeleteLedgerRows(ctx, deleted); err != nil {
				failures = append(failures, fmt.Sprintf("remove ledger rows: %s", err))
				_ = tx.Rollback(ctx)
			} else if err := tx.Commit(ctx); err != nil {
				failures = append(failures, fmt.Sprintf("commit ledger removal: %s", err))
			}
		}
	}

	if len(failures) > 0 {
		msg := strings.Join(failures, "; ")
		return jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusError, &msg)
	}
	return jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusComplete, nil)
}
