// Package mailgw adapts pkg/mailer into the MailGateway capability the
// export pipeline depends on to render and dispatch an onboarding email.
// Scheduling is layered on top of pkg/mailer (which only sends
// immediately) by handing a delayed send off to the task engine.
package mailgw

import (
	"context"
	"time"

	"github.com/developforgood/cycle-orchestrator/pkg/mailer"
)

// OnboardingMail is the payload the export pipeline hands to the
// MailGateway for each newly provisioned volunteer.
type OnboardingMail struct {
	FirstName         string
	LastName          string
	RecipientEmail    string
	WorkspaceEmail    string
	TemporaryPassword string
	// SendAt, if non-zero, defers dispatch; zero means send immediately.
	SendAt time.Time
}

// Gateway is the capability the export pipeline requires to notify a
// newly provisioned volunteer of their account.
type Gateway interface {
	SendOnboarding(ctx context.Context, mail OnboardingMail) error
}

const onboardingTemplate = "onboarding.md"

// MailerGateway is the default Gateway implementation, backed by
// pkg/mailer. Scheduler is optional; when SendAt is non-zero and a
// Scheduler is configured, dispatch is deferred to it instead of sending
// inline.
type MailerGateway struct {
	mailer    *mailer.Mailer
	scheduler Scheduler
}

// Scheduler defers a send to a later time, used when OnboardingMail.SendAt
// is set. The task engine's scheduled-task enqueue path implements this.
type Scheduler interface {
	ScheduleSend(ctx context.Context, at time.Time, mail OnboardingMail) error
}

// New constructs a MailerGateway. scheduler may be nil, in which case a
// non-zero SendAt is ignored and the mail is sent immediately.
func New(m *mailer.Mailer, scheduler Scheduler) *MailerGateway {
	return &MailerGateway{mailer: m, scheduler: scheduler}
}

var _ Gateway = (*MailerGateway)(nil)

// SetScheduler attaches a Scheduler after construction, for callers that
// need the gateway to build the task engine before the engine can hand
// back its own Scheduler implementation.
func (g *MailerGateway) SetScheduler(scheduler Scheduler) {
	g.scheduler = scheduler
}

// SendOnboarding renders the onboarding template and dispatches it, or
// schedules it for later per mail.SendAt.
func (g *MailerGateway) SendOnboarding(ctx context.Context, mail OnboardingMail) error {
	if !mail.SendAt.IsZero() && g.scheduler != nil {
		return g.scheduler.ScheduleSend(ctx, mail.SendAt, mail)
	}

	return g.mailer.Send(ctx, mailer.SendParams{
		To:       mail.RecipientEmail,
		Template: onboardingTemplate,
		Data: map[string]any{
			"FirstName":         mail.FirstName,
			"LastName":          mail.LastName,
			"WorkspaceEmail":    mail.WorkspaceEmail,
			"TemporaryPassword": mail.TemporaryPassword,
		},
	})
}
