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
	"github.com/outfitly/outfitly/internal/closet"
	"github.com/outfitly/outfitly/internal/store"
	"github.com/outfitly/outfitly/pkg/models"
)

// Closet is the decision-ledger service surface the handlers depend on.
type Closet interface {
	Add(ctx context.Context, userID uuid.UUID, payload models.ItemPayload) (*models.CandidateItem, error)
	List(ctx context.Context, userID uuid.UUID, status string) ([]*models.CandidateItem, error)
	Decide(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, decision, reason string) (*closet.Outcome, error)
	Counts(ctx context.Context, userID uuid.UUID) (*models.ClosetCounts, error)
}

// WardrobeReader lists owned wardrobe items.
type WardrobeReader interface {
	ListWardrobe(ctx context.Context, userID uuid.UUID) ([]*models.WardrobeItem, error)
}

// NewAddItemHandler returns the handler for POST /api/v1/closet/candidates.
func NewAddItemHandler(svc Closet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var payload models.ItemPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if payload.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if payload.Category == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "category is required", nil)
			return
		}

		item, err := svc.Add(r.Context(), userID, payload)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to add candidate", nil)
			return
		}
		response.Created(w, item)
	}
}

// NewListItemsHandler returns the handler for GET /api/v1/closet/candidates.
func NewListItemsHandler(svc Closet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		items, err := svc.List(r.Context(), userID, r.URL.Query().Get("status"))
		if err != nil {
			if errors.Is(err, closet.ErrInvalidStatusFilter) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"status must be considering or passed", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list candidates", nil)
			return
		}
		if items == nil {
			items = []*models.CandidateItem{}
		}
		response.JSON(w, items)
	}
}

// NewDecideItemHandler returns the handler for
// POST /api/v1/closet/candidates/{itemID}/decision.
func NewDecideItemHandler(svc Closet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid item ID format", nil)
			return
		}

		var req struct {
			Decision string `json:"decision"`
			Reason   string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		outcome, err := svc.Decide(r.Context(), userID, itemID, req.Decision, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, closet.ErrInvalidDecision):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"decision must be bought, passed, or later", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to record decision", nil)
			}
			return
		}
		response.JSON(w, outcome)
	}
}

// NewCountsHandler returns the handler for GET /api/v1/closet/counts.
func NewCountsHandler(svc Closet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		counts, err := svc.Counts(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load counts", nil)
			return
		}
		response.JSON(w, counts)
	}
}

// NewListWardrobeHandler returns the handler for GET /api/v1/wardrobe.
func NewListWardrobeHandler(st WardrobeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		items, err := st.ListWardrobe(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list wardrobe", nil)
			return
		}
		if items == nil {
			items = []*models.WardrobeItem{}
		}
		response.JSON(w, items)
	}
}
