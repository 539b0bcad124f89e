package jobs_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/internal/jobs"
	"github.com/outfitly/outfitly/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*jobs.MemoryStore, *models.Job) {
	t.Helper()
	s := jobs.NewMemoryStore()
	job, err := s.Create(context.Background(), uuid.New(), 3)
	require.NoError(t, err)
	return s, job
}

func outfit(title string) models.Outfit {
	return models.Outfit{
		Title: title,
		Items: []models.OutfitPiece{
			{Category: "tops", Name: "linen shirt", Color: "white"},
			{Category: "bottoms", Name: "chinos", Color: "navy"},
		},
	}
}

// collect drains events from ch until it closes or the timeout elapses.
func collect(t *testing.T, ch <-chan models.JobEvent, timeout time.Duration) []models.JobEvent {
	t.Helper()
	var events []models.JobEvent
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
}

func TestCreate_StartsQueued(t *testing.T) {
	_, job := newStore(t)

	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, 3, job.ExpectedCount)
	assert.Empty(t, job.Results)
	assert.NotEqual(t, uuid.Nil, job.ID)
}

func TestAppendOutfit_FirstAppendStartsRunning(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("casual friday")))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "casual friday", got.Results[0].Title)
}

func TestAppendOutfit_UnknownJob(t *testing.T) {
	s, _ := newStore(t)

	err := s.AppendOutfit(context.Background(), uuid.New(), outfit("x"))
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestAppendOutfit_NeverExceedsExpectedCount(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("fit")))
	}
	err := s.AppendOutfit(ctx, job.ID, outfit("one too many"))
	assert.ErrorIs(t, err, jobs.ErrInvalidState)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, got.Results, 3)
}

func TestAppendOutfit_RejectedOnTerminalJob(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Fail(ctx, job.ID, "provider exploded"))

	err := s.AppendOutfit(ctx, job.ID, outfit("late"))
	assert.ErrorIs(t, err, jobs.ErrInvalidState)
}

func TestSetProgress_Monotonic(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetProgress(ctx, job.ID, 33))
	require.NoError(t, s.SetProgress(ctx, job.ID, 67))

	// Backward update is ignored, not fatal.
	require.NoError(t, s.SetProgress(ctx, job.ID, 10))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 67, got.Progress)
}

func TestSetProgress_OutOfRange(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SetProgress(ctx, job.ID, -1), jobs.ErrInvalidState)
	assert.ErrorIs(t, s.SetProgress(ctx, job.ID, 101), jobs.ErrInvalidState)
}

func TestSetProgress_RejectedOnTerminalJob(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Complete(ctx, job.ID, ""))
	assert.ErrorIs(t, s.SetProgress(ctx, job.ID, 50), jobs.ErrInvalidState)
}

func TestComplete_Idempotent(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Complete(ctx, job.ID, "because it matches"))
	require.NoError(t, s.Complete(ctx, job.ID, "ignored second transcript"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "because it matches", got.Reasoning)
}

func TestFail_AfterCompleteRejected(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Complete(ctx, job.ID, ""))
	assert.ErrorIs(t, s.Fail(ctx, job.ID, "too late"), jobs.ErrInvalidState)
}

func TestComplete_AfterFailRejected(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Fail(ctx, job.ID, "boom"))
	assert.ErrorIs(t, s.Complete(ctx, job.ID, ""), jobs.ErrInvalidState)
}

func TestFail_RepeatedIsNoop(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Fail(ctx, job.ID, "first cause"))
	require.NoError(t, s.Fail(ctx, job.ID, "second cause"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "first cause", got.Error)
}

// Partial results survive a failure: outfits A and B are recorded, the third
// never arrives, and the job ends failed with progress reflecting 2/3.
func TestFailureKeepsPartialResults(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("A")))
	require.NoError(t, s.SetProgress(ctx, job.ID, 33))
	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("B")))
	require.NoError(t, s.SetProgress(ctx, job.ID, 67))
	require.NoError(t, s.Fail(ctx, job.ID, strings.Repeat("x", 500)))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "A", got.Results[0].Title)
	assert.Equal(t, "B", got.Results[1].Title)
	assert.Equal(t, 67, got.Progress)
	assert.LessOrEqual(t, len(got.Error), 500)
}

// A subscriber that connects after two of three outfits were recorded
// receives both immediately, then streams the third.
func TestWatch_LateSubscriberGetsReplay(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("A")))
	require.NoError(t, s.SetProgress(ctx, job.ID, 33))
	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("B")))
	require.NoError(t, s.SetProgress(ctx, job.ID, 67))

	ch, cancel, err := s.Watch(ctx, job.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("C")))
	require.NoError(t, s.SetProgress(ctx, job.ID, 100))
	require.NoError(t, s.Complete(ctx, job.ID, ""))

	events := collect(t, ch, 2*time.Second)

	var outfits []string
	var percents []int
	for _, ev := range events {
		switch ev.Type {
		case models.EventOutfit:
			outfits = append(outfits, ev.Outfit.Title)
		case models.EventProgress:
			percents = append(percents, ev.Percent)
		}
	}

	assert.Equal(t, []string{"A", "B", "C"}, outfits)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress regressed")
	}

	last := events[len(events)-1]
	assert.Equal(t, models.EventComplete, last.Type)
	assert.Len(t, last.Results, 3)
}

func TestWatch_TerminalJobReplaysHistoryAndCloses(t *testing.T) {
	s, job := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendOutfit(ctx, job.ID, outfit("A")))
	require.NoError(t, s.Fail(ctx, job.ID, "upstream gone"))

	ch, cancel, err := s.Watch(ctx, job.ID)
	require.NoError(t, err)
	defer cancel()

	events := collect(t, ch, time.Second)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, models.EventError, last.Type)
	assert.Equal(t, "upstream gone", last.Message)
}

func TestWatch_UnknownJob(t *testing.T) {
	s, _ := newStore(t)

	_, _, err := s.Watch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestWatch_CancelIsIdempotent(t *testing.T) {
	s, job := newStore(t)

	_, cancel, err := s.Watch(context.Background(), job.ID)
	require.NoError(t, err)

	cancel()
	cancel() // second cancel must not panic
}

func TestSweeper_RemovesExpiredTerminalJobs(t *testing.T) {
	s := jobs.NewMemoryStore()
	ctx := context.Background()

	done, err := s.Create(ctx, uuid.New(), 1)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, done.ID, ""))

	live, err := s.Create(ctx, uuid.New(), 1)
	require.NoError(t, err)

	sweepCtx, stop := context.WithCancel(ctx)
	defer stop()
	s.StartSweeper(sweepCtx, 10*time.Millisecond, 0)

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, done.ID)
		return err == jobs.ErrNotFound
	}, 2*time.Second, 20*time.Millisecond)

	// A job that has not finished is never swept.
	_, err = s.Get(ctx, live.ID)
	assert.NoError(t, err)
}
