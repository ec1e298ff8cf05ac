package exportpipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/internal/exportpipeline"
	"github.com/developforgood/cycle-orchestrator/internal/jobregistry"
	"github.com/developforgood/cycle-orchestrator/pkg/directorygw"
	"github.com/developforgood/cycle-orchestrator/pkg/mailgw"
	"github.com/developforgood/cycle-orchestrator/pkg/policy"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDirectory struct {
	mu         sync.Mutex
	created    []string
	deleted    []string
	failOn     string   // email that CreateUser fails for
	notFoundOn []string // emails for which DeleteUser returns ErrDirectoryNotFound
}

func (f *fakeDirectory) CreateUser(ctx context.Context, principal string, user directorygw.CreateUserParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && user.PrimaryEmail == f.failOn {
		return errors.New("directory: simulated failure")
	}
	f.created = append(f.created, user.PrimaryEmail)
	return nil
}

func (f *fakeDirectory) DeleteUser(ctx context.Context, principal, primaryEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.notFoundOn {
		if e == primaryEmail {
			return domain.ErrDirectoryNotFound
		}
	}
	f.deleted = append(f.deleted, primaryEmail)
	return nil
}

var _ directorygw.Gateway = (*fakeDirectory)(nil)

type fakeMail struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMail) SendOnboarding(ctx context.Context, mail mailgw.OnboardingMail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, mail.RecipientEmail)
	return nil
}

var _ mailgw.Gateway = (*fakeMail)(nil)

// fakeStore is a minimal in-memory storage.Gateway + storage.TxHandle.
type fakeStore struct {
	mu sync.Mutex

	jobs   map[uuid.UUID]domain.Job
	ledger map[uuid.UUID]domain.ExportedVolunteerLedgerRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:   make(map[uuid.UUID]domain.Job),
		ledger: make(map[uuid.UUID]domain.ExportedVolunteerLedgerRow),
	}
}

var _ storage.Gateway = (*fakeStore)(nil)
var _ storage.TxHandle = (*fakeStore)(nil)

func (f *fakeStore) Begin(ctx context.Context) (storage.TxHandle, error) { return f, nil }
func (f *fakeStore) Commit(ctx context.Context) error                    { return nil }
func (f *fakeStore) Rollback(ctx context.Context) error                  { return nil }

func (f *fakeStore) CreateCycle(ctx context.Context, name string, description *string) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeStore) BatchCreateNonprofits(ctx context.Context, cycleID uuid.UUID, nonprofits []domain.Nonprofit) (map[string]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeStore) BatchCreateVolunteers(ctx context.Context, cycleID uuid.UUID, volunteers []domain.Volunteer) (map[string]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeStore) BatchCreateMentors(ctx context.Context, cycleID uuid.UUID, mentors []domain.Mentor) (map[string]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeStore) BatchLinkVolunteerNonprofit(ctx context.Context, links []domain.VolunteerNonprofitLink) error {
	return nil
}
func (f *fakeStore) BatchLinkMentorNonprofit(ctx context.Context, links []domain.MentorNonprofitLink) error {
	return nil
}
func (f *fakeStore) BatchLinkVolunteerMentor(ctx context.Context, links []domain.VolunteerMentorLink) error {
	return nil
}
func (f *fakeStore) SetJobCycle(ctx context.Context, jobID, cycleID uuid.UUID) error { return nil }

func (f *fakeStore) InsertLedgerRows(ctx context.Context, rows []domain.ExportedVolunteerLedgerRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.ledger[r.VolunteerID] = r
	}
	return nil
}

func (f *fakeStore) DeleteLedgerRows(ctx context.Context, volunteerIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range volunteerIDs {
		delete(f.ledger, id)
	}
	return nil
}

func (f *fakeStore) LedgerForCycle(ctx context.Context, cycleID uuid.UUID) ([]domain.ExportedVolunteerLedgerRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ExportedVolunteerLedgerRow, 0, len(f.ledger))
	for _, row := range f.ledger {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStore) CreateJob(ctx context.Context, cycleID *uuid.UUID, job domain.Job) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	job.ID = id
	job.CycleID = cycleID
	f.jobs[id] = job
	return id, nil
}

func (f *fakeStore) FetchJob(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeStore) FetchAllJobs(ctx context.Context) ([]domain.Job, error) { return nil, nil }

func (f *fakeStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = status
	j.Details.Error = errMsg
	f.jobs[id] = j
	return nil
}

func (f *fakeStore) EditJob(ctx context.Context, id uuid.UUID, label, description *string) error {
	return nil
}

func (f *fakeStore) Healthcheck(ctx context.Context) error { return nil }

func newExportJob(t *testing.T, reg *jobregistry.Registry) uuid.UUID {
	t.Helper()
	id, err := reg.Create(context.Background(), nil, "export", nil, domain.JobDetails{
		Type: domain.JobTypeExportUsers,
		Data: domain.ExportUsersData{Destination: "google_workspace"},
	})
	require.NoError(t, err)
	return id
}

func testConfig() exportpipeline.Config {
	cfg := exportpipeline.DefaultConfig()
	cfg.ExportGraceDelay = 0
	cfg.UndoDeleteDelay = 0
	cfg.Timeout = time.Second
	return cfg
}

func testEmailPolicy() policy.EmailConfig {
	return policy.EmailConfig{UseFirstAndLastName: true, Separator: ".", Domain: "volunteer.example.org"}
}

func TestPipeline_Run_FullSuccessCompletesAndNotifies(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{}
	mail := &fakeMail{}
	store := newFakeStore()
	reg := jobregistry.New(store)
	jobID := newExportJob(t, reg)

	p := exportpipeline.New(directory, mail, store, reg, testConfig(), discardLogger())

	vID := uuid.New()
	err := p.Run(context.Background(), exportpipeline.Params{
		JobID:     jobID,
		CycleID:   uuid.New(),
		Principal: "admin@volunteer.example.org",
		Volunteers: []exportpipeline.VolunteerDetails{
			{VolunteerID: vID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@personal.example"},
		},
		EmailPolicy:    testEmailPolicy(),
		PasswordLength: 12,
	})
	require.NoError(t, err)

	job, err := reg.Fetch(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusComplete, job.Status)
	assert.Len(t, directory.created, 1)
	assert.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent, "ada@personal.example")
}

func TestPipeline_Run_DirectoryFailureErrorsAndUndoes(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{failOn: "bobjones@volunteer.example.org"}
	mail := &fakeMail{}
	store := newFakeStore()
	reg := jobregistry.New(store)
	jobID := newExportJob(t, reg)

	p := exportpipeline.New(directory, mail, store, reg, testConfig(), discardLogger())

	err := p.Run(context.Background(), exportpipeline.Params{
		JobID:     jobID,
		CycleID:   uuid.New(),
		Principal: "admin@volunteer.example.org",
		Volunteers: []exportpipeline.VolunteerDetails{
			{VolunteerID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: "ada@personal.example"},
			{VolunteerID: uuid.New(), FirstName: "Bob", LastName: "Jones", Email: "bob@personal.example"},
		},
		EmailPolicy:    testEmailPolicy(),
		PasswordLength: 12,
	})
	require.NoError(t, err)

	job, err := reg.Fetch(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusError, job.Status)

	// The first user succeeded then was undone once the second failed.
	assert.Contains(t, directory.created, "adalovelace@volunteer.example.org")
	assert.Contains(t, directory.deleted, "adalovelace@volunteer.example.org")
}

func TestRunUndo_ReRunOverAlreadyDeletedAccountsReachesComplete(t *testing.T) {
	t.Parallel()

	volunteerID := uuid.New()
	directory := &fakeDirectory{notFoundOn: []string{"adalovelace@volunteer.example.org"}}
	store := newFakeStore()
	reg := jobregistry.New(store)
	undoJobID, err := reg.Create(context.Background(), nil, "undo export", nil, domain.JobDetails{
		Type: domain.JobTypeUndoExport,
		Data: domain.UndoExportData{Volunteers: []domain.UndoExportedVolunteer{
			{VolunteerID: volunteerID, WorkspaceEmail: "adalovelace@volunteer.example.org"},
		}},
	})
	require.NoError(t, err)

	err = exportpipeline.RunUndo(context.Background(), directory, store, reg, discardLogger(), exportpipeline.UndoParams{
		JobID:     undoJobID,
		Principal: "admin@volunteer.example.org",
		Volunteers: []domain.UndoExportedVolunteer{
			{VolunteerID: volunteerID, WorkspaceEmail: "adalovelace@volunteer.example.org"},
		},
	})
	require.NoError(t, err)

	job, err := reg.Fetch(context.Background(), undoJobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusComplete, job.Status, "a re-run over an already-deleted account must tolerate DirectoryNotFound")
}

func TestPipeline_Run_CancellationDuringGraceDelayCreatesNoAccounts(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{}
	mail := &fakeMail{}
	store := newFakeStore()
	reg := jobregistry.New(store)
	jobID := newExportJob(t, reg)

	cfg := testConfig()
	cfg.ExportGraceDelay = 50 * time.Millisecond

	p := exportpipeline.New(directory, mail, store, reg, cfg, discardLogger())

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = reg.Cancel(context.Background(), jobID)
	}()

	err := p.Run(context.Background(), exportpipeline.Params{
		JobID:     jobID,
		CycleID:   uuid.New(),
		Principal: "admin@volunteer.example.org",
		Volunteers: []exportpipeline.VolunteerDetails{
			{VolunteerID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: "ada@personal.example"},
		},
		EmailPolicy:    testEmailPolicy(),
		PasswordLength: 12,
	})
	require.NoError(t, err)

	job, err := reg.Fetch(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status, "R2: cancellation before any directory call leaves no accounts created")
	assert.Empty(t, directory.created)
}

func TestPreflight_ConflictWithoutSkipFails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cycleID := uuid.New()
	vID := uuid.New()
	require.NoError(t, store.InsertLedgerRows(context.Background(), []domain.ExportedVolunteerLedgerRow{
		{VolunteerID: vID, JobID: uuid.New(), WorkspaceEmail: "existing@volunteer.example.org", OrgUnit: domain.PantheonOrgUnit},
	}))

	reg := jobregistry.New(store)
	p := exportpipeline.New(&fakeDirectory{}, &fakeMail{}, store, reg, testConfig(), discardLogger())

	_, err := p.Preflight(context.Background(), cycleID, []exportpipeline.VolunteerDetails{
		{VolunteerID: vID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@personal.example"},
	}, false)
	assert.ErrorIs(t, err, exportpipeline.ErrConflict)
}

func TestPreflight_SkipOnConflictDropsAlreadyExported(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cycleID := uuid.New()
	exportedID := uuid.New()
	newID := uuid.New()
	require.NoError(t, store.InsertLedgerRows(context.Background(), []domain.ExportedVolunteerLedgerRow{
		{VolunteerID: exportedID, JobID: uuid.New(), WorkspaceEmail: "existing@volunteer.example.org", OrgUnit: domain.PantheonOrgUnit},
	}))

	reg := jobregistry.New(store)
	p := exportpipeline.New(&fakeDirectory{}, &fakeMail{}, store, reg, testConfig(), discardLogger())

	out, err := p.Preflight(context.Background(), cycleID, []exportpipeline.VolunteerDetails{
		{VolunteerID: exportedID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@personal.example"},
		{VolunteerID: newID, FirstName: "Bob", LastName: "Jones", Email: "bob@personal.example"},
	}, true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, newID, out[0].VolunteerID)
}
