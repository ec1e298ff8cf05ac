// Package config loads this deployment's configuration from the
// environment into one struct tree, following the env-tag convention
// pkg/db.Config, pkg/mailer.Config, and pkg/mailer/resend.Config already
// use throughout this repository.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/developforgood/cycle-orchestrator/pkg/db"
	"github.com/developforgood/cycle-orchestrator/pkg/directorygw/workspacehttp"
	"github.com/developforgood/cycle-orchestrator/pkg/logger"
	"github.com/developforgood/cycle-orchestrator/pkg/mailer"
	"github.com/developforgood/cycle-orchestrator/pkg/mailer/resend"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw/airtablehttp"
)

// Config is the root of this deployment's configuration tree.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// DirectoryPrincipal is the service-account identity the directory
	// gateway impersonates when provisioning or deleting accounts (§5,
	// "Principal").
	DirectoryPrincipal string `env:"DIRECTORY_PRINCIPAL,required"`
	// WorkspaceEmailDomain is the fixed suffix every generated workspace
	// handle receives.
	WorkspaceEmailDomain string `env:"WORKSPACE_EMAIL_DOMAIN,required"`
	// MailRecipientOverride, if set, redirects every onboarding mail
	// instead of the volunteer's personal address. Intended for non-
	// production deployments only.
	MailRecipientOverride string `env:"MAIL_RECIPIENT_OVERRIDE"`

	// SchemaCacheRedisURL, if set, backs the source gateway's schema
	// validation cache with Redis instead of an in-process map, for
	// deployments running more than one server replica.
	SchemaCacheRedisURL string `env:"SCHEMA_CACHE_REDIS_URL"`

	ExportGraceDelay time.Duration `env:"EXPORT_GRACE_DELAY" envDefault:"7s"`
	UndoDeleteDelay  time.Duration `env:"UNDO_DELETE_DELAY" envDefault:"5s"`
	ExportTimeout    time.Duration `env:"EXPORT_TIMEOUT" envDefault:"20m"`

	TaskEngineMaxWorkers int `env:"TASK_ENGINE_MAX_WORKERS" envDefault:"10"`

	DB        db.Config
	Source    airtablehttp.Config
	Directory workspacehttp.Config
	Mail      mailer.Config
	Resend    resend.Config
	Sentry    logger.SentryConfig
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
