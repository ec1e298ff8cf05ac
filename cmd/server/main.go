// Command server boots the cycle orchestrator: the HTTP boundary, the
// import and export pipelines, and the task engine that dispatches them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/developforgood/cycle-orchestrator/internal/config"
	"github.com/developforgood/cycle-orchestrator/internal/exportpipeline"
	"github.com/developforgood/cycle-orchestrator/internal/httpapi"
	"github.com/developforgood/cycle-orchestrator/internal/importpipeline"
	"github.com/developforgood/cycle-orchestrator/internal/jobregistry"
	"github.com/developforgood/cycle-orchestrator/internal/templates"
	"github.com/developforgood/cycle-orchestrator/pkg/cache"
	"github.com/developforgood/cycle-orchestrator/pkg/db"
	"github.com/developforgood/cycle-orchestrator/pkg/directorygw/workspacehttp"
	"github.com/developforgood/cycle-orchestrator/pkg/logger"
	"github.com/developforgood/cycle-orchestrator/pkg/mailer"
	"github.com/developforgood/cycle-orchestrator/pkg/mailer/resend"
	"github.com/developforgood/cycle-orchestrator/pkg/mailgw"
	"github.com/developforgood/cycle-orchestrator/pkg/redis"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw/airtablehttp"
	"github.com/developforgood/cycle-orchestrator/pkg/storage/postgres"
	"github.com/developforgood/cycle-orchestrator/pkg/storage/postgres/migrations"
	"github.com/developforgood/cycle-orchestrator/pkg/taskengine"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.NewWithSentry(cfg.Sentry)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := connectDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	schemaCache, err := newSchemaCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	source := sourcegw.NewCachedGateway(airtablehttp.New(cfg.Source, http.DefaultClient, log), schemaCache)
	directory := workspacehttp.New(cfg.Directory, http.DefaultClient, log)
	store := postgres.New(pool)
	jobs := jobregistry.New(store)

	renderer := mailer.NewRenderer(templates.FS)
	sender := resend.New(cfg.Resend)
	mailClient := mailer.New(sender, renderer, cfg.Mail)

	importPipeline := importpipeline.New(source, store, jobs, log)

	exportCfg := exportpipeline.DefaultConfig()
	exportCfg.ExportGraceDelay = cfg.ExportGraceDelay
	exportCfg.UndoDeleteDelay = cfg.UndoDeleteDelay
	exportCfg.Timeout = cfg.ExportTimeout
	exportCfg.MailRecipientOverride = cfg.MailRecipientOverride

	// mailgw and the task engine depend on each other: the gateway needs
	// a Scheduler to defer sends, and the engine needs the gateway to
	// register its onboarding-mail task. Wire the gateway first without
	// a scheduler, build the engine, then attach the engine's scheduler.
	mail := mailgw.New(mailClient, nil)
	exportPipeline := exportpipeline.New(directory, mail, store, jobs, exportCfg, log)

	engine, err := taskengine.New(pool, importPipeline, exportPipeline, mail, cfg.TaskEngineMaxWorkers, log)
	if err != nil {
		return fmt.Errorf("task engine: %w", err)
	}
	mail.SetScheduler(engine.Scheduler(log))

	handlers := httpapi.NewHandlers(source, store, jobs, exportPipeline, engine, cfg.DirectoryPrincipal, cfg.WorkspaceEmailDomain, log)
	router := httpapi.NewRouter(handlers, engine)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start task engine: %w", err)
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func connectDB(ctx context.Context, cfg config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := db.Open(ctx, cfg.DB.ConnectionString,
		db.WithLogger(log),
		db.WithMaxConns(cfg.DB.MaxOpenConns),
		db.WithMinConns(cfg.DB.MinConns),
		db.WithHealthCheckPeriod(cfg.DB.HealthCheckPeriod),
		db.WithMaxConnIdleTime(cfg.DB.MaxConnIdleTime),
		db.WithMaxConnLifetime(cfg.DB.MaxConnLifetime),
		db.WithRetry(cfg.DB.RetryAttempts, cfg.DB.RetryInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := db.Migrate(ctx, pool, migrations.FS, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, nil
}

// newSchemaCache builds the cache backing the source gateway's
// ValidateSchema memoization. With SchemaCacheRedisURL unset, a single
// replica's in-process cache is sufficient; set it to share the cache
// across replicas.
func newSchemaCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache[bool], error) {
	if cfg.SchemaCacheRedisURL == "" {
		return cache.NewMemory[bool](cache.WithDefaultTTL(5 * time.Minute)), nil
	}

	client, err := redis.Open(ctx, cfg.SchemaCacheRedisURL)
	if err != nil {
		return nil, fmt.Errorf("schema cache redis: %w", err)
	}
	return cache.NewRedis[bool](client, nil), nil
}
