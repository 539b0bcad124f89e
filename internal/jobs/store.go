// Package jobs implements the job store: the single source of truth for
// outfit-generation job state. Jobs move queued -> running -> complete or
// failed, progress is monotonic, and results are append-only. Subscribers
// observe writes through Watch, which replays current state before tailing.
package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/pkg/models"
)

var (
	// ErrNotFound means the referenced job id does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidState means the job's current status does not permit the
	// attempted operation. Callers must not retry the same call.
	ErrInvalidState = errors.New("job state does not permit this operation")
)

// Store is the job data access interface. All mutations on a single job are
// serialized relative to each other; reads see a consistent snapshot.
type Store interface {
	// Create allocates a job in the queued state.
	Create(ctx context.Context, userID uuid.UUID, expectedCount int) (*models.Job, error)
	// AppendOutfit records one produced outfit. The first append moves a
	// queued job to running. Appends on terminal jobs, or beyond the
	// expected count, fail with ErrInvalidState.
	AppendOutfit(ctx context.Context, jobID uuid.UUID, outfit models.Outfit) error
	// SetProgress updates the progress percentage. Backward updates are
	// logged and ignored to protect the monotonic invariant; updates on
	// terminal jobs fail with ErrInvalidState.
	SetProgress(ctx context.Context, jobID uuid.UUID, percent int) error
	// Complete moves the job to its terminal complete state, attaching the
	// pass-through reasoning transcript. Calling Complete on an already
	// complete job is a no-op so that worker retries are safe.
	Complete(ctx context.Context, jobID uuid.UUID, reasoning string) error
	// Fail moves the job to its terminal failed state. Repeated Fail is a
	// no-op; Fail after Complete fails with ErrInvalidState.
	Fail(ctx context.Context, jobID uuid.UUID, reason string) error
	// Get returns a snapshot of the job.
	Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	// Watch returns a channel that first replays the job's already-recorded
	// state as events (progress, one event per recorded outfit, terminal
	// event if any) and then tails new writes in store order. The channel is
	// closed after a terminal event. The returned cancel function detaches
	// the subscriber; it is safe to call more than once.
	Watch(ctx context.Context, jobID uuid.UUID) (<-chan models.JobEvent, func(), error)
}
