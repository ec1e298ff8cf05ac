// Package taskengine dispatches the import and export pipelines onto
// pkg/job's River-backed task runner, and implements mailgw.Scheduler so
// a deferred onboarding mail survives a process restart the same way any
// other task does. Cancellation stays the job registry's in-process
// keyed channel (spec.md §4.5/§9): River's own retry-on-next-attempt
// semantics are the wrong shape for cooperative, in-flight cancellation.
package taskengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/exportpipeline"
	"github.com/developforgood/cycle-orchestrator/internal/importpipeline"
	"github.com/developforgood/cycle-orchestrator/pkg/job"
	"github.com/developforgood/cycle-orchestrator/pkg/mailgw"
	"github.com/developforgood/cycle-orchestrator/pkg/policy"
)

const (
	TaskImportBase    = "import_base"
	TaskExportUsers   = "export_users"
	TaskSendOnboarding = "send_onboarding_mail"
)

// ImportBasePayload is the River job payload for TaskImportBase.
type ImportBasePayload struct {
	JobID       uuid.UUID `json:"job_id"`
	BaseID      string    `json:"base_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

// ImportTask adapts importpipeline.Pipeline to pkg/job's structural task
// interface.
type ImportTask struct {
	pipeline *importpipeline.Pipeline
}

// NewImportTask constructs an ImportTask.
func NewImportTask(pipeline *importpipeline.Pipeline) *ImportTask {
	return &ImportTask{pipeline: pipeline}
}

func (t *ImportTask) Name() string { return TaskImportBase }

func (t *ImportTask) Handle(ctx context.Context, p ImportBasePayload) error {
	return t.pipeline.Run(ctx, p.JobID, p.BaseID, p.Name, p.Description)
}

// ExportUsersPayload is the River job payload for TaskExportUsers.
type ExportUsersPayload struct {
	JobID      uuid.UUID                        `json:"job_id"`
	CycleID    uuid.UUID                        `json:"cycle_id"`
	Principal  string                           `json:"principal"`
	Volunteers []exportpipeline.VolunteerDetails `json:"volunteers"`

	EmailPolicy               policy.EmailConfig `json:"email_policy"`
	PasswordLength            int                `json:"password_length"`
	ChangePasswordAtNextLogin bool               `json:"change_password_at_next_login"`
	SkipUsersOnConflict       bool               `json:"skip_users_on_conflict"`
}

// ExportTask adapts exportpipeline.Pipeline to pkg/job's structural task
// interface.
type ExportTask struct {
	pipeline *exportpipeline.Pipeline
}

// NewExportTask constructs an ExportTask.
func NewExportTask(pipeline *exportpipeline.Pipeline) *ExportTask {
	return &ExportTask{pipeline: pipeline}
}

func (t *ExportTask) Name() string { return TaskExportUsers }

func (t *ExportTask) Handle(ctx context.Context, p ExportUsersPayload) error {
	return t.pipeline.Run(ctx, exportpipeline.Params{
		JobID:                     p.JobID,
		CycleID:                   p.CycleID,
		Principal:                 p.Principal,
		Volunteers:                p.Volunteers,
		EmailPolicy:               p.EmailPolicy,
		PasswordLength:            p.PasswordLength,
		ChangePasswordAtNextLogin: p.ChangePasswordAtNextLogin,
		SkipUsersOnConflict:       p.SkipUsersOnConflict,
	})
}

// OnboardingMailPayload is the River job payload for TaskSendOnboarding,
// the deferred counterpart of mailgw.Gateway.SendOnboarding.
type OnboardingMailPayload struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	RecipientEmail    string `json:"recipient_email"`
	WorkspaceEmail    string `json:"workspace_email"`
	TemporaryPassword string `json:"temporary_password"`
}

// OnboardingMailTask sends one deferred onboarding mail through the mail
// gateway at its scheduled time.
type OnboardingMailTask struct {
	mail mailgw.Gateway
}

// NewOnboardingMailTask constructs an OnboardingMailTask.
func NewOnboardingMailTask(mail mailgw.Gateway) *OnboardingMailTask {
	return &OnboardingMailTask{mail: mail}
}

func (t *OnboardingMailTask) Name() string { return TaskSendOnboarding }

func (t *OnboardingMailTask) Handle(ctx context.Context, p OnboardingMailPayload) error {
	return t.mail.SendOnboarding(ctx, mailgw.OnboardingMail{
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		RecipientEmail:    p.RecipientEmail,
		WorkspaceEmail:    p.WorkspaceEmail,
		TemporaryPassword: p.TemporaryPassword,
	})
}

// MailScheduler implements mailgw.Scheduler by enqueueing a
// TaskSendOnboarding job scheduled for the requested time.
type MailScheduler struct {
	manager *job.Manager
	logger  *slog.Logger
}

// NewMailScheduler constructs a MailScheduler over an already-configured
// job.Manager (TaskSendOnboarding must be registered on it via
// job.WithTask(NewOnboardingMailTask(...))).
func NewMailScheduler(manager *job.Manager, logger *slog.Logger) *MailScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailScheduler{manager: manager, logger: logger}
}

var _ mailgw.Scheduler = (*MailScheduler)(nil)

func (s *MailScheduler) ScheduleSend(ctx context.Context, at time.Time, mail mailgw.OnboardingMail) error {
	err := s.manager.Enqueue(ctx, TaskSendOnboarding, OnboardingMailPayload{
		FirstName:         mail.FirstName,
		LastName:          mail.LastName,
		RecipientEmail:    mail.RecipientEmail,
		WorkspaceEmail:    mail.WorkspaceEmail,
		TemporaryPassword: mail.TemporaryPassword,
	}, job.ScheduledAt(at))
	if err != nil {
		return fmt.Errorf("taskengine: schedule onboarding mail: %w", err)
	}
	s.logger.DebugContext(ctx, "scheduled onboarding mail", "recipient", mail.RecipientEmail, "at", at)
	return nil
}
