package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/internal/exportpipeline"
	"github.com/developforgood/cycle-orchestrator/internal/jobregistry"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
	"github.com/developforgood/cycle-orchestrator/pkg/taskengine"
)

const (
	minGeneratedPasswordLength = 8
	maxGeneratedPasswordLength = 64
)

// Dispatcher is the subset of *taskengine.Engine the HTTP boundary needs:
// enough to hand off a validated request and to report readiness,
// without pinning this package to River's pgxpool-backed engine.
type Dispatcher interface {
	EnqueueImport(ctx context.Context, jobID uuid.UUID, baseID, name string, description *string) error
	EnqueueExport(ctx context.Context, jobID, cycleID uuid.UUID, principal string, volunteers []exportpipeline.VolunteerDetails, opts taskengine.ExportOptions) error
	Healthcheck() func(ctx context.Context) error
}

// Handlers implements the OrchestratorAPI described in spec.md §6: a thin
// boundary that validates eagerly (schema, ledger conflicts, password
// length) so callers get a 400 before any job row is created, then hands
// the rest off to the job registry and task engine.
type Handlers struct {
	source      sourcegw.Gateway
	storage     storage.Gateway
	jobs        *jobregistry.Registry
	export      *exportpipeline.Pipeline
	tasks       Dispatcher
	principal   string
	emailDomain string
	logger      *slog.Logger
}

// NewHandlers constructs Handlers. principal is the directory service
// account on whose behalf CreateUser/DeleteUser calls are made;
// emailDomain is the fixed suffix appended to every generated workspace
// handle.
func NewHandlers(
	source sourcegw.Gateway,
	store storage.Gateway,
	jobs *jobregistry.Registry,
	export *exportpipeline.Pipeline,
	tasks Dispatcher,
	principal, emailDomain string,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		source:      source,
		storage:     store,
		jobs:        jobs,
		export:      export,
		tasks:       tasks,
		principal:   principal,
		emailDomain: emailDomain,
		logger:      logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// handleImportBase implements POST /imports/{base_id}: validates the
// source schema synchronously, creates an Import job in Pending status,
// dispatches ImportPipeline asynchronously, and returns the job id.
func (h *Handlers) handleImportBase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	baseID := chi.URLParam(r, "base_id")
	if baseID == "" {
		writeError(w, http.StatusBadRequest, errors.New("base_id is required"))
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	valid, err := h.source.ValidateSchema(ctx, baseID)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.ErrorContext(ctx, "validate schema", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if !valid {
		writeError(w, http.StatusBadRequest, domain.ErrSchemaInvalid)
		return
	}

	jobID, err := h.jobs.Create(ctx, nil, req.Name, req.Description, domain.JobDetails{
		Type: domain.JobTypeImportBase,
		Data: domain.ImportBaseData{BaseID: baseID},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "create import job", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := h.tasks.EnqueueImport(ctx, jobID, baseID, req.Name, req.Description); err != nil {
		h.logger.ErrorContext(ctx, "enqueue import", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, jobIDResponse{JobID: jobID})
}

// handleExportUsers implements POST /exports/{cycle_id}: runs Preflight
// synchronously so a ledger conflict or a malformed password length
// surfaces as a 400 before any job row is created, then dispatches
// ExportPipeline asynchronously.
func (h *Handlers) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycleID, err := uuid.Parse(chi.URLParam(r, "cycle_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("cycle_id must be a UUID"))
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.GeneratedPasswordLength < minGeneratedPasswordLength || req.GeneratedPasswordLength > maxGeneratedPasswordLength {
		writeError(w, http.StatusBadRequest, errors.New("generatedPasswordLength must be in [8, 64]"))
		return
	}

	volunteers, err := h.export.Preflight(ctx, cycleID, req.volunteerDetails(), req.SkipUsersOnConflict)
	if err != nil {
		if errors.Is(err, exportpipeline.ErrConflict) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.ErrorContext(ctx, "export preflight", "cycle_id", cycleID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	jobID, err := h.jobs.Create(ctx, &cycleID, "export users", nil, domain.JobDetails{
		Type: domain.JobTypeExportUsers,
		Data: domain.ExportUsersData{Destination: "google_workspace"},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "create export job", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	err = h.tasks.EnqueueExport(ctx, jobID, cycleID, h.principal, volunteers, taskengine.ExportOptions{
		EmailPolicy:               req.emailConfig(h.emailDomain),
		PasswordLength:            req.GeneratedPasswordLength,
		ChangePasswordAtNextLogin: req.ChangePasswordAtNextLogin,
		SkipUsersOnConflict:       req.SkipUsersOnConflict,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "enqueue export", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, jobIDResponse{JobID: jobID})
}

// handleCancelJob implements POST /jobs/cancel/{job_id}.
func (h *Handlers) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("job_id must be a UUID"))
		return
	}

	if err := h.jobs.Cancel(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.ErrorContext(ctx, "cancel job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleListJobs implements GET /jobs.
func (h *Handlers) handleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobs, err := h.jobs.FetchAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetJob implements GET /jobs/{id}, a supplement to spec.md §6 for
// polling a single job's status without refetching the whole list.
func (h *Handlers) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("id must be a UUID"))
		return
	}

	job, err := h.jobs.Fetch(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.ErrorContext(ctx, "fetch job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// handleEditJob implements PATCH /jobs/{id}, a supplement letting a
// caller relabel a job after creation.
func (h *Handlers) handleEditJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("id must be a UUID"))
		return
	}

	var req jobEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.jobs.Edit(ctx, jobID, req.Label, req.Description); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.ErrorContext(ctx, "edit job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	job, err := h.jobs.Fetch(ctx, jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// storageHealthcheck adapts storage.Gateway.Healthcheck to health.CheckFunc.
func (h *Handlers) storageHealthcheck(ctx context.Context) error {
	return h.storage.Healthcheck(ctx)
}
