package stylist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/internal/cache"
	"github.com/outfitly/outfitly/internal/jobs"
	"github.com/outfitly/outfitly/internal/metrics"
	"github.com/outfitly/outfitly/pkg/models"
)

// maxErrorLen bounds the provider error text recorded on a failed job so
// error payloads never bloat downstream responses.
const maxErrorLen = 500

// statusTTL is how long the Redis status mirror outlives the last write.
const statusTTL = 30 * time.Minute

// Service is the generation worker: it creates a job, drives the outfit
// provider's lazy stream in a background goroutine, and finalizes the job.
type Service struct {
	provider models.OutfitProvider
	jobs     jobs.Store
	cache    cache.Cache
	timeout  time.Duration
}

// NewService creates a new Service.
func NewService(provider models.OutfitProvider, jobStore jobs.Store, ca cache.Cache, timeout time.Duration) *Service {
	return &Service{
		provider: provider,
		jobs:     jobStore,
		cache:    ca,
		timeout:  timeout,
	}
}

// Trigger creates a queued job and dispatches generation in a background
// goroutine. Returns the job immediately without waiting on the provider.
func (s *Service) Trigger(ctx context.Context, req models.OutfitRequest) (*models.Job, error) {
	if req.Count <= 0 {
		return nil, fmt.Errorf("invalid request: count must be positive")
	}

	job, err := s.jobs.Create(ctx, req.UserID, req.Count)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusQueued, statusTTL)
	metrics.JobsStarted.Inc()

	go s.run(job.ID, req)

	return job, nil
}

// run drives the provider stream for one job. It recovers from panics and
// always leaves the job in a terminal state. The provider is never retried:
// generation is costly and a blind retry could double-bill, so a failed
// generation is terminal and the client must resubmit.
func (s *Service) run(jobID uuid.UUID, req models.OutfitRequest) {
	ctx := context.Background()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in generation worker", "error", r, "job_id", jobID)
			s.fail(ctx, jobID, fmt.Errorf("panic: %v", r))
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream, err := s.provider.Generate(genCtx, req)
	if err != nil {
		s.fail(ctx, jobID, err)
		return
	}
	defer stream.Close()

	produced := 0
	for produced < req.Count {
		outfit, err := stream.Next(genCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(ctx, jobID, err)
			return
		}

		if err := s.jobs.AppendOutfit(ctx, jobID, outfit); err != nil {
			slog.Error("appending outfit", "error", err, "job_id", jobID)
			return
		}
		produced++
		metrics.OutfitsGenerated.Inc()

		_ = s.jobs.SetProgress(ctx, jobID, progressPercent(produced, req.Count))
		_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, statusTTL)
	}

	var reasoning string
	if req.IncludeReasoning {
		reasoning = stream.Reasoning()
	}

	if err := s.jobs.Complete(ctx, jobID, reasoning); err != nil {
		slog.Error("completing job", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusComplete, statusTTL)

	metrics.JobsCompleted.Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	slog.Info("generation complete", "job_id", jobID, "outfits", produced,
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *Service) fail(ctx context.Context, jobID uuid.UUID, cause error) {
	// Only a concise, user-safe message crosses the worker boundary.
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = ErrGenerationTimeout
	}
	msg := truncateString(cause.Error(), maxErrorLen)
	if err := s.jobs.Fail(ctx, jobID, msg); err != nil {
		slog.Error("failing job", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, statusTTL)
	metrics.JobsFailed.Inc()
	slog.Warn("generation failed", "job_id", jobID, "cause", msg)
}

// progressPercent computes round(100 * produced/expected).
func progressPercent(produced, expected int) int {
	return int(math.Round(100 * float64(produced) / float64(expected)))
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
