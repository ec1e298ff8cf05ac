// Package exportpipeline implements the ExportPipeline component (spec
// C8): provisioning directory accounts for a batch of volunteers,
// recording a deduplicating ledger entry per account, and notifying each
// volunteer by email. A partial or cancelled run compensates by spawning
// an Undo sub-job that deprovisions whatever accounts were created.
package exportpipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/internal/jobregistry"
	"github.com/developforgood/cycle-orchestrator/pkg/directorygw"
	"github.com/developforgood/cycle-orchestrator/pkg/id"
	"github.com/developforgood/cycle-orchestrator/pkg/mailgw"
	"github.com/developforgood/cycle-orchestrator/pkg/policy"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

// Config shapes the timing and policy knobs that govern one export run.
type Config struct {
	// ExportGraceDelay is slept before the export loop starts, giving a
	// cancellation fired immediately after job creation a chance to
	// preempt all directory work.
	ExportGraceDelay time.Duration
	// UndoDeleteDelay is slept between directory deletes in the Undo
	// sub-job, to respect the directory provider's eventual-consistency
	// window on just-created accounts.
	UndoDeleteDelay time.Duration
	// Timeout bounds one export run; exceeding it marks the job Error and
	// runs the Undo sub-job over the accounts created so far.
	Timeout time.Duration
	// MailRecipientOverride, if non-empty, redirects every onboarding
	// mail to this address instead of the volunteer's personal email.
	// Off by default; intended for non-production deployments only.
	MailRecipientOverride string
}

// DefaultConfig returns the timing defaults grounded in the original
// implementation's sleep durations and the distilled spec's 20-minute
// timeout.
func DefaultConfig() Config {
	return Config{
		ExportGraceDelay: 7 * time.Second,
		UndoDeleteDelay:  5 * time.Second,
		Timeout:          20 * time.Minute,
	}
}

// VolunteerDetails is one volunteer requested for export.
type VolunteerDetails struct {
	VolunteerID uuid.UUID
	FirstName   string
	LastName    string
	Email       string
}

// Params is the input to Run, matching spec's ExportParams shape: the
// email and password policy, and skip-on-conflict, travel with the
// request rather than being fixed at Pipeline construction, since a
// deployment may vary them per export call.
type Params struct {
	JobID      uuid.UUID
	CycleID    uuid.UUID
	Principal  string
	Volunteers []VolunteerDetails

	EmailPolicy               policy.EmailConfig
	PasswordLength            int
	ChangePasswordAtNextLogin bool
	SkipUsersOnConflict       bool
}

// ErrConflict is returned by Preflight when a requested volunteer is
// already in the ledger and SkipUsersOnConflict is not set.
var ErrConflict = errors.New("exportpipeline: volunteer already exported")

type processedVolunteer struct {
	VolunteerDetails
	workspaceEmail    string
	temporaryPassword string
}

// Pipeline runs one export end to end.
type Pipeline struct {
	directory directorygw.Gateway
	mail      mailgw.Gateway
	storage   storage.Gateway
	jobs      *jobregistry.Registry
	cfg       Config
	logger    *slog.Logger
}

// New constructs a Pipeline.
func New(directory directorygw.Gateway, mail mailgw.Gateway, store storage.Gateway, jobs *jobregistry.Registry, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{directory: directory, mail: mail, storage: store, jobs: jobs, cfg: cfg, logger: logger}
}

// Preflight fetches the ledger for cycleID and either drops already
// exported volunteers (SkipUsersOnConflict) or fails with ErrConflict.
// Callers (the HTTP boundary) run this before spawning the job so a
// conflict surfaces synchronously.
func (p *Pipeline) Preflight(ctx context.Context, cycleID uuid.UUID, volunteers []VolunteerDetails, skipUsersOnConflict bool) ([]VolunteerDetails, error) {
	ledger, err := p.storage.LedgerForCycle(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}
	alreadyExported := make(map[uuid.UUID]struct{}, len(ledger))
	for _, row := range ledger {
		alreadyExported[row.VolunteerID] = struct{}{}
	}

	if !skipUsersOnConflict {
		for _, v := range volunteers {
			if _, ok := alreadyExported[v.VolunteerID]; ok {
				return nil, fmt.Errorf("%w: volunteer %s", ErrConflict, v.VolunteerID)
			}
		}
		return volunteers, nil
	}

	out := make([]VolunteerDetails, 0, len(volunteers))
	for _, v := range volunteers {
		if _, ok := alreadyExported[v.VolunteerID]; ok {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Run executes the export algorithm: a grace delay, a sequential export
// loop raced against cancellation and a hard timeout, then finalization
// per whichever of the three fired first.
func (p *Pipeline) Run(ctx context.Context, params Params) error {
	runID := id.NewULID()
	logger := p.logger.With(slog.String("run_id", runID), slog.String("job_id", params.JobID.String()))
	logger.InfoContext(ctx, "export run starting", "cycle_id", params.CycleID, "volunteer_count", len(params.Volunteers))

	cancelCh := p.jobs.Subscribe(params.JobID)
	defer p.jobs.Unsubscribe(params.JobID)

	select {
	case <-cancelCh:
		return p.finalizeCancelled(ctx, params, nil, logger)
	case <-time.After(p.cfg.ExportGraceDelay):
	case <-ctx.Done():
		return p.finalizeCancelled(ctx, params, nil, logger)
	}

	processed := make([]processedVolunteer, 0, len(params.Volunteers))
	for _, v := range params.Volunteers {
		email, err := policy.BuildEmail(v.FirstName, v.LastName, params.EmailPolicy)
		if err != nil {
			return fmt.Errorf("build email for %s: %w", v.VolunteerID, err)
		}
		pw, err := policy.GeneratePassword(ctx, logger, params.PasswordLength)
		if err != nil {
			return fmt.Errorf("generate password for %s: %w", v.VolunteerID, err)
		}
		processed = append(processed, processedVolunteer{VolunteerDetails: v, workspaceEmail: email, temporaryPassword: pw})
	}

	loopDone := make(chan loopResult, 1)
	go p.exportLoop(ctx, params.Principal, params.ChangePasswordAtNextLogin, processed, cancelCh, loopDone)

	select {
	case <-cancelCh:
		result := <-loopDone
		return p.finalizeCancelled(ctx, params, result.succeeded, logger)
	case result := <-loopDone:
		return p.finalizeLoopResult(ctx, params, result, logger)
	case <-time.After(p.cfg.Timeout):
		result := <-loopDone
		return p.finalizeTimeout(ctx, params, result.succeeded, logger)
	}
}

type loopResult struct {
	succeeded []processedVolunteer
	err       error
}

// exportLoop calls CreateUser for each volunteer in order, stopping on
// the first failure or on cancellation observed between users. In-flight
// directory calls are never aborted.
func (p *Pipeline) exportLoop(ctx context.Context, principal string, changePasswordAtNextLogin bool, processed []processedVolunteer, cancelCh <-chan struct{}, done chan<- loopResult) {
	succeeded := make([]processedVolunteer, 0, len(processed))
	for _, v := range processed {
		select {
		case <-cancelCh:
			done <- loopResult{succeeded: succeeded}
			return
		default:
		}

		err := p.directory.CreateUser(ctx, principal, directorygw.CreateUserParams{
			PrimaryEmail:              v.workspaceEmail,
			GivenName:                 v.FirstName,
			FamilyName:                v.LastName,
			Password:                  v.temporaryPassword,
			ChangePasswordAtNextLogin: changePasswordAtNextLogin,
			RecoveryEmail:             v.Email,
			OrgUnitPath:               domain.PantheonOrgUnit,
		})
		if err != nil {
			done <- loopResult{succeeded: succeeded, err: fmt.Errorf("create user %s: %w", v.workspaceEmail, err)}
			return
		}
		succeeded = append(succeeded, v)
	}
	done <- loopResult{succeeded: succeeded}
}

func (p *Pipeline) recipientFor(v processedVolunteer) string {
	if p.cfg.MailRecipientOverride != "" {
		return p.cfg.MailRecipientOverride
	}
	return v.Email
}

// persistLedgerAndNotify inserts ledger rows for succeeded in one
// transaction, then dispatches onboarding mail for each. The two
// failure modes are distinguished because they drive different
// finalization outcomes: a ledger failure means accounts exist with no
// durable record of them (undo required); a mail failure means accounts
// are created and recorded, and the failure is purely downstream
// notification (no undo).
func (p *Pipeline) persistLedgerAndNotify(ctx context.Context, params Params, succeeded []processedVolunteer) (ledgerErr, mailErr error) {
	rows := make([]domain.ExportedVolunteerLedgerRow, len(succeeded))
	for i, v := range succeeded {
		rows[i] = domain.ExportedVolunteerLedgerRow{
			VolunteerID:    v.VolunteerID,
			JobID:          params.JobID,
			WorkspaceEmail: v.workspaceEmail,
			OrgUnit:        domain.PantheonOrgUnit,
		}
	}

	tx, err := p.storage.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err), nil
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := tx.InsertLedgerRows(ctx, rows); err != nil {
		return fmt.Errorf("insert ledger rows: %w", err), nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger: %w", err), nil
	}

	var mailErrs error
	for _, v := range succeeded {
		if err := p.mail.SendOnboarding(ctx, mailgw.OnboardingMail{
			FirstName:         v.FirstName,
			LastName:          v.LastName,
			RecipientEmail:    p.recipientFor(v),
			WorkspaceEmail:    v.workspaceEmail,
			TemporaryPassword: v.temporaryPassword,
		}); err != nil {
			mailErrs = errors.Join(mailErrs, fmt.Errorf("notify %s: %w", v.workspaceEmail, err))
		}
	}
	return nil, mailErrs
}

// finalizeLoopResult handles the export loop completing (F2) before
// cancellation or the timeout fired.
func (p *Pipeline) finalizeLoopResult(ctx context.Context, params Params, result loopResult, logger *slog.Logger) error {
	partial := result.err != nil || len(result.succeeded) < len(params.Volunteers)

	ledgerErr, mailErr := p.persistLedgerAndNotify(ctx, params, result.succeeded)
	if ledgerErr != nil {
		msg := ledgerErr.Error()
		if err := p.jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusError, &msg); err != nil {
			return err
		}
		return p.spawnUndo(ctx, params, result.succeeded, logger)
	}

	if partial {
		msg := "export did not complete for all requested volunteers"
		if result.err != nil {
			msg = result.err.Error()
		}
		if err := p.jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusError, &msg); err != nil {
			return err
		}
		return p.spawnUndo(ctx, params, result.succeeded, logger)
	}

	if mailErr != nil {
		// Accounts are created and recorded; the failure is purely
		// downstream notification, so the job errors without undoing.
		msg := mailErr.Error()
		return p.jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusError, &msg)
	}

	return p.jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusComplete, nil)
}

// finalizeCancelled handles F1 firing first: the job transitions to
// Cancelled and an Undo sub-job rolls back whatever directory accounts
// had already been created by the time cancellation was observed.
func (p *Pipeline) finalizeCancelled(ctx context.Context, params Params, succeeded []processedVolunteer, logger *slog.Logger) error {
	if err := p.jobs.Cancel(ctx, params.JobID); err != nil {
		return err
	}
	return p.spawnUndo(ctx, params, succeeded, logger)
}

// finalizeTimeout handles F3 firing first: identical compensating action
// to cancellation, but the job ends in Error with a timeout message.
func (p *Pipeline) finalizeTimeout(ctx context.Context, params Params, succeeded []processedVolunteer, logger *slog.Logger) error {
	msg := "export exceeded its time budget"
	if err := p.jobs.UpdateStatus(ctx, params.JobID, domain.JobStatusError, &msg); err != nil {
		return err
	}
	return p.spawnUndo(ctx, params, succeeded, logger)
}

func (p *Pipeline) spawnUndo(ctx context.Context, params Params, succeeded []processedVolunteer, logger *slog.Logger) error {
	if len(succeeded) == 0 {
		return nil
	}

	undone := make([]domain.UndoExportedVolunteer, len(succeeded))
	for i, v := range succeeded {
		undone[i] = domain.UndoExportedVolunteer{VolunteerID: v.VolunteerID, WorkspaceEmail: v.workspaceEmail}
	}

	cycleID := params.CycleID
	undoJobID, err := p.jobs.Create(ctx, &cycleID, "undo export", nil, domain.JobDetails{
		Type: domain.JobTypeUndoExport,
		Data: domain.UndoExportData{Volunteers: undone},
	})
	if err != nil {
		return fmt.Errorf("create undo job: %w", err)
	}

	return RunUndo(ctx, p.directory, p.storage, p.jobs, logger, UndoParams{
		JobID:      undoJobID,
		Principal:  params.Principal,
		Volunteers: undone,
		Delay:      p.cfg.UndoDeleteDelay,
	})
}
