package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/outfitly/outfitly/internal/api/middleware"
	"github.com/outfitly/outfitly/internal/api/response"
	"github.com/outfitly/outfitly/internal/jobs"
	"github.com/outfitly/outfitly/pkg/models"
)

const (
	defaultOutfitCount = 3
	maxOutfitCount     = 6
)

// Stylist triggers generation jobs.
type Stylist interface {
	Trigger(ctx context.Context, req models.OutfitRequest) (*models.Job, error)
}

// JobReader reads job snapshots.
type JobReader interface {
	Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
}

// JobStatusMirror reads the Redis job-status mirror, which outlives swept
// in-memory job records.
type JobStatusMirror interface {
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, bool, error)
}

// NewTriggerHandler returns the handler for POST /api/v1/outfits.
func NewTriggerHandler(svc Stylist) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Mode             string   `json:"mode"`
			Occasion         string   `json:"occasion"`
			AnchorItemID     string   `json:"anchor_item_id"`
			Constraints      []string `json:"constraints"`
			Count            int      `json:"count"`
			IncludeReasoning bool     `json:"include_reasoning"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		mode := req.Mode
		if mode == "" {
			if req.AnchorItemID != "" {
				mode = models.ModeAnchor
			} else {
				mode = models.ModeOccasion
			}
		}

		var anchorID *uuid.UUID
		switch mode {
		case models.ModeOccasion:
			if req.Occasion == "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"occasion is required for occasion mode", nil)
				return
			}
		case models.ModeAnchor:
			id, err := uuid.Parse(req.AnchorItemID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"anchor_item_id must be a valid UUID", nil)
				return
			}
			anchorID = &id
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"mode must be occasion or anchor", nil)
			return
		}

		count := req.Count
		if count == 0 {
			count = defaultOutfitCount
		}
		if count < 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"count must be positive", nil)
			return
		}
		if count > maxOutfitCount {
			count = maxOutfitCount
		}

		job, err := svc.Trigger(r.Context(), models.OutfitRequest{
			UserID:           userID,
			Mode:             mode,
			Occasion:         req.Occasion,
			AnchorItemID:     anchorID,
			Constraints:      req.Constraints,
			Count:            count,
			IncludeReasoning: req.IncludeReasoning,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to start generation", nil)
			return
		}

		response.Accepted(w, map[string]any{
			"job_id":         job.ID.String(),
			"status":         job.Status,
			"expected_count": job.ExpectedCount,
		})
	}
}

// NewPollJobHandler returns the handler for GET /api/v1/outfits/{jobID}.
// Polling is the fallback delivery path: the snapshot carries everything the
// stream would have delivered so far.
func NewPollJobHandler(store JobReader, mirror JobStatusMirror) http.HandlerFunc {
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

		job, err := store.Get(r.Context(), jobID)
		if errors.Is(err, jobs.ErrNotFound) {
			// The status mirror distinguishes a swept job from one that never
			// existed.
			if _, found, _ := mirror.GetJobStatus(r.Context(), jobID); found {
				response.Error(w, http.StatusNotFound, "JOB_EXPIRED",
					"Job results have expired", nil)
				return
			}
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

		response.JSON(w, job)
	}
}
