package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	mw "github.com/outfitly/outfitly/internal/api/middleware"
	"github.com/outfitly/outfitly/internal/api/response"
	"github.com/outfitly/outfitly/internal/jobs"
	"github.com/outfitly/outfitly/internal/metrics"
	"github.com/outfitly/outfitly/pkg/models"
	"golang.org/x/sync/errgroup"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// JobWatcher subscribes to a job's event feed. The channel replays everything
// already delivered, then tails live events, and closes once the job is
// terminal.
type JobWatcher interface {
	Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	Watch(ctx context.Context, jobID uuid.UUID) (<-chan models.JobEvent, func(), error)
}

// NewStreamHandler returns the handler for GET /api/v1/outfits/{jobID}/stream.
func NewStreamHandler(store JobWatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job ID format", nil)
			return
		}

		// Resolve the job before upgrading so missing jobs still get a
		// plain HTTP 404.
		job, err := store.Get(r.Context(), jobID)
		if errors.Is(err, jobs.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}
		if job.UserID != userID {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		events, cancelWatch, err := store.Watch(r.Context(), jobID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to subscribe to job", nil)
			return
		}
		defer cancelWatch()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written its own error response.
			slog.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
			return
		}
		defer conn.Close()

		metrics.StreamSubscribers.Inc()
		defer metrics.StreamSubscribers.Dec()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		// Read pump: the client sends nothing meaningful, but reading is what
		// surfaces disconnects and close frames.
		g.Go(func() error {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return err
				}
			}
		})

		// Write pump: replayed events first, then live ones, in order.
		g.Go(func() error {
			for {
				select {
				case ev, open := <-events:
					if !open {
						deadline := time.Now().Add(writeTimeout)
						conn.WriteControl(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
						cancel()
						return nil
					}
					conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteJSON(ev); err != nil {
						cancel()
						return err
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})

		if err := g.Wait(); err != nil && !websocket.IsCloseError(err,
			websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
			!errors.Is(err, context.Canceled) {
			slog.Debug("stream ended", "job_id", jobID, "error", err)
		}
	}
}
