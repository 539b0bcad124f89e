package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/pkg/models"
)

// subscriberBuffer bounds how far a subscriber may lag behind the writer
// before it is dropped. Expected event volume per job is small (one event per
// outfit plus one per progress change), so this is generous.
const subscriberBuffer = 256

// MemoryStore is the in-memory Store implementation. Each job carries its own
// mutex, so writes to one job never contend with writes to another.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*jobEntry
}

type jobEntry struct {
	mu      sync.Mutex
	job     models.Job
	subs    map[int]chan models.JobEvent
	nextSub int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*jobEntry)}
}

func (s *MemoryStore) Create(_ context.Context, userID uuid.UUID, expectedCount int) (*models.Job, error) {
	now := time.Now().UTC()
	job := models.Job{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        models.JobStatusQueued,
		Progress:      0,
		ExpectedCount: expectedCount,
		Results:       []models.Outfit{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = &jobEntry{
		job:  job,
		subs: make(map[int]chan models.JobEvent),
	}
	s.mu.Unlock()

	snapshot := cloneJob(&job)
	return &snapshot, nil
}

func (s *MemoryStore) AppendOutfit(_ context.Context, jobID uuid.UUID, outfit models.Outfit) error {
	e, ok := s.entry(jobID)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Terminal() {
		return ErrInvalidState
	}
	if len(e.job.Results) >= e.job.ExpectedCount {
		return ErrInvalidState
	}

	if e.job.Status == models.JobStatusQueued {
		e.job.Status = models.JobStatusRunning
	}
	e.job.Results = append(e.job.Results, outfit)
	e.job.UpdatedAt = time.Now().UTC()

	e.emit(models.JobEvent{
		Type:    models.EventOutfit,
		Percent: e.job.Progress,
		Index:   len(e.job.Results) - 1,
		Outfit:  &outfit,
	})
	return nil
}

func (s *MemoryStore) SetProgress(_ context.Context, jobID uuid.UUID, percent int) error {
	e, ok := s.entry(jobID)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Terminal() {
		return ErrInvalidState
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidState
	}
	if percent < e.job.Progress {
		slog.Warn("rejecting backward progress update",
			"job_id", jobID, "current", e.job.Progress, "attempted", percent)
		return nil
	}
	if percent == e.job.Progress {
		return nil
	}

	if e.job.Status == models.JobStatusQueued {
		e.job.Status = models.JobStatusRunning
	}
	e.job.Progress = percent
	e.job.UpdatedAt = time.Now().UTC()

	e.emit(models.JobEvent{Type: models.EventProgress, Percent: percent})
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, jobID uuid.UUID, reasoning string) error {
	e, ok := s.entry(jobID)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.job.Status {
	case models.JobStatusComplete:
		return nil // idempotent: a worker retry must not error
	case models.JobStatusFailed:
		return ErrInvalidState
	}

	e.job.Status = models.JobStatusComplete
	e.job.Progress = 100
	e.job.Reasoning = reasoning
	e.job.UpdatedAt = time.Now().UTC()

	e.emit(models.JobEvent{
		Type:      models.EventComplete,
		Percent:   100,
		Results:   cloneOutfits(e.job.Results),
		Reasoning: reasoning,
	})
	e.closeSubs()
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, jobID uuid.UUID, reason string) error {
	e, ok := s.entry(jobID)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.job.Status {
	case models.JobStatusFailed:
		return nil
	case models.JobStatusComplete:
		return ErrInvalidState
	}

	e.job.Status = models.JobStatusFailed
	e.job.Error = reason
	e.job.UpdatedAt = time.Now().UTC()

	e.emit(models.JobEvent{
		Type:    models.EventError,
		Percent: e.job.Progress,
		Message: reason,
	})
	e.closeSubs()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID uuid.UUID) (*models.Job, error) {
	e, ok := s.entry(jobID)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := cloneJob(&e.job)
	return &snapshot, nil
}

func (s *MemoryStore) Watch(_ context.Context, jobID uuid.UUID) (<-chan models.JobEvent, func(), error) {
	e, ok := s.entry(jobID)
	if !ok {
		return nil, nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	replay := replayEvents(&e.job)

	// Terminal job: deliver the full history and close; nothing to tail.
	if e.job.Terminal() {
		ch := make(chan models.JobEvent, len(replay))
		for _, ev := range replay {
			ch <- ev
		}
		close(ch)
		return ch, func() {}, nil
	}

	ch := make(chan models.JobEvent, subscriberBuffer)
	for _, ev := range replay {
		ch <- ev
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// StartSweeper launches the retention sweep loop. Terminal jobs untouched for
// longer than retention are removed. The loop stops when ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(retention)
			}
		}
	}()
}

func (s *MemoryStore) sweep(retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.jobs {
		e.mu.Lock()
		expired := e.job.Terminal() && e.job.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			slog.Debug("swept expired job", "job_id", id)
		}
	}
}

func (s *MemoryStore) entry(jobID uuid.UUID) (*jobEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[jobID]
	return e, ok
}

// emit delivers an event to every subscriber. Callers hold e.mu, so events
// are observed in exactly the order writes were applied. A subscriber whose
// buffer is full is dropped rather than blocked on.
func (e *jobEntry) emit(ev models.JobEvent) {
	for id, sub := range e.subs {
		select {
		case sub <- ev:
		default:
			slog.Warn("dropping slow job subscriber", "job_id", e.job.ID)
			delete(e.subs, id)
			close(sub)
		}
	}
}

// closeSubs detaches every subscriber after a terminal event. Callers hold e.mu.
func (e *jobEntry) closeSubs() {
	for id, sub := range e.subs {
		delete(e.subs, id)
		close(sub)
	}
}

// replayEvents synthesizes the event history for a job's current state:
// the progress baseline, one outfit event per recorded result in append
// order, then the terminal event if the job already finished.
func replayEvents(job *models.Job) []models.JobEvent {
	events := []models.JobEvent{
		{Type: models.EventProgress, Percent: job.Progress},
	}
	for i := range job.Results {
		outfit := job.Results[i]
		events = append(events, models.JobEvent{
			Type:    models.EventOutfit,
			Percent: job.Progress,
			Index:   i,
			Outfit:  &outfit,
		})
	}
	switch job.Status {
	case models.JobStatusComplete:
		events = append(events, models.JobEvent{
			Type:      models.EventComplete,
			Percent:   100,
			Results:   cloneOutfits(job.Results),
			Reasoning: job.Reasoning,
		})
	case models.JobStatusFailed:
		events = append(events, models.JobEvent{
			Type:    models.EventError,
			Percent: job.Progress,
			Message: job.Error,
		})
	}
	return events
}

func cloneJob(job *models.Job) models.Job {
	snapshot := *job
	snapshot.Results = cloneOutfits(job.Results)
	return snapshot
}

func cloneOutfits(outfits []models.Outfit) []models.Outfit {
	out := make([]models.Outfit, len(outfits))
	copy(out, outfits)
	return out
}

var _ Store = (*MemoryStore)(nil)
