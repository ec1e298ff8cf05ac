// Package jobregistry implements the Job state machine both pipelines
// report into: a persisted row (via storage.Gateway) plus a per-process,
// per-job one-shot cancellation channel. It is the single source of
// truth for a job's externally visible status.
package jobregistry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/storage"
)

// Registry is the JobRegistry component (spec C6). It is safe for
// concurrent use.
type Registry struct {
	storage storage.Gateway

	mu       sync.Mutex
	cancels  map[uuid.UUID]chan struct{}
}

// New constructs a Registry over the given storage gateway.
func New(store storage.Gateway) *Registry {
	return &Registry{
		storage: store,
		cancels: make(map[uuid.UUID]chan struct{}),
	}
}

// Create persists a new job in Pending status and arms its cancellation
// channel. cycleID may be nil; import jobs set it later via SetCycle once
// the cycle row exists.
func (r *Registry) Create(ctx context.Context, cycleID *uuid.UUID, label string, description *string, details domain.JobDetails) (uuid.UUID, error) {
	job := domain.Job{
		Status:      domain.JobStatusPending,
		Label:       label,
		Description: description,
		Details:     details,
	}

	id, err := r.storage.CreateJob(ctx, cycleID, job)
	if err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	r.cancels[id] = make(chan struct{})
	r.mu.Unlock()

	return id, nil
}

// Fetch returns one job by id.
func (r *Registry) Fetch(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	return r.storage.FetchJob(ctx, id)
}

// FetchAll returns every job, most recently created first.
func (r *Registry) FetchAll(ctx context.Context) ([]domain.Job, error) {
	return r.storage.FetchAllJobs(ctx)
}

// UpdateStatus transitions id to status. A write to a job already in a
// terminal status is ignored by the storage layer (I3): the status stays
// as it was and the call returns nil, as Cancel does.
func (r *Registry) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg *string) error {
	return r.storage.UpdateJobStatus(ctx, id, status, errMsg)
}

// SetCycle attaches a cycle id to a job once the cycle row has been
// created (used by ImportPipeline after persistence commits).
func (r *Registry) SetCycle(ctx context.Context, id, cycleID uuid.UUID) error {
	return r.storage.SetJobCycle(ctx, id, cycleID)
}

// Edit updates a job's label and/or description. Either may be nil to
// leave the existing value unchanged.
func (r *Registry) Edit(ctx context.Context, id uuid.UUID, label, description *string) error {
	return r.storage.EditJob(ctx, id, label, description)
}

// Cancel persists status Cancelled and publishes a one-shot signal on the
// job's cancellation channel. Cancelling a terminal job is a no-op that
// still returns success (R1): the storage layer's terminal-state guard
// silently refuses the write, and publishing to an already-fired or
// unsubscribed channel is always safe.
func (r *Registry) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := r.storage.UpdateJobStatus(ctx, id, domain.JobStatusCancelled, nil); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.cancels[id]
	if !ok {
		// No subscriber (e.g. the process restarted after creating the
		// job): the status update above is the source of truth.
		return nil
	}

	select {
	case <-ch:
		// Already fired; cancelling twice is a no-op.
	default:
		close(ch)
	}
	return nil
}

// Subscribe registers a cancellation listener for id. The returned channel
// closes exactly once, either when Cancel(id) is called or never, if the
// job finishes first. Callers should call Unsubscribe when the pipeline
// finishes to release the entry.
func (r *Registry) Subscribe(id uuid.UUID) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.cancels[id]
	if !ok {
		ch = make(chan struct{})
		r.cancels[id] = ch
	}
	return ch
}

// Unsubscribe releases the bookkeeping entry for id. Safe to call even if
// Cancel already fired or no one ever subscribed.
func (r *Registry) Unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, id)
}
